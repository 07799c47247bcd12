package parser

import (
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Select grammar:
//
//	select      → SELECT [DISTINCT|ALL] projection (',' projection)*
//	              [FROM table_ref (',' table_ref)*]
//	              [WHERE expr] [GROUP BY (ALL | expr_list)] [HAVING expr]
//	projection  → '*' | name '.' '*' | expr [[AS] alias]
//	table_ref   → (name | name '(' args ')' | TABLE '(' call ')' | LATERAL call) [[AS] alias]

// parseSelect parses a single SELECT block.
func (p *Parser) parseSelect() *SelectStatement {
	start := p.token.Pos.Offset
	if !p.expect(token.SELECT) {
		return nil
	}

	sel := &SelectStatement{}
	if p.match(token.DISTINCT) {
		sel.Distinct = true
	} else {
		p.match(token.ALL)
	}

	sel.Projections = p.parseProjections()
	if p.failed() {
		return nil
	}

	if p.match(token.FROM) {
		sel.From = p.parseFromList()
		if p.failed() {
			return nil
		}
	}

	if p.match(token.WHERE) {
		sel.Where = p.parseExpression()
	}

	if p.check(token.GROUP) {
		p.nextToken()
		if !p.expect(token.BY) {
			return nil
		}
		if p.match(token.ALL) {
			sel.GroupByAll = true
		} else {
			sel.GroupBy = p.parseExpressionList()
		}
	}

	if p.match(token.HAVING) {
		sel.Having = p.parseExpression()
	}

	if p.check(token.QUALIFY) || p.check(token.WINDOW) {
		p.addError(ErrWindowFunction)
		return nil
	}
	if p.failed() {
		return nil
	}

	sel.Span = p.spanFrom(start)
	return sel
}

// parseProjections parses the select list.
func (p *Parser) parseProjections() []*Projection {
	var items []*Projection
	for {
		item := p.parseProjection()
		if p.failed() {
			return nil
		}
		items = append(items, item)
		if !p.match(token.COMMA) {
			return items
		}
	}
}

// parseProjection parses one select-list item.
func (p *Parser) parseProjection() *Projection {
	start := p.token.Pos.Offset

	if p.match(token.STAR) {
		return &Projection{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Kind:     ProjWildcard,
		}
	}

	expr := p.parseExpression()
	if p.failed() {
		return nil
	}

	if star, ok := expr.(*QualifiedStar); ok {
		return &Projection{
			NodeInfo:  NodeInfo{Span: star.Span},
			Kind:      ProjQualifiedWildcard,
			Qualifier: star.Qualifier,
		}
	}

	proj := &Projection{Expr: expr}
	switch {
	case p.match(token.AS):
		if !isIdentLike(p.token) && !p.token.Type.IsKeyword() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "alias"))
			return nil
		}
		proj.Kind = ProjExprWithAlias
		proj.Alias = p.token.Literal
		p.nextToken()
	case isImplicitAlias(p.token):
		proj.Kind = ProjExprWithAlias
		proj.Alias = p.token.Literal
		p.nextToken()
	default:
		proj.Kind = ProjExpr
		proj.Alias = InferAlias(expr, p.input)
	}

	proj.Span = p.spanFrom(start)
	return proj
}

// parseFromList parses: table_ref (',' table_ref)*
func (p *Parser) parseFromList() []*TableRef {
	var refs []*TableRef
	for {
		ref := p.parseTableRef()
		if p.failed() {
			return nil
		}
		refs = append(refs, ref)

		if isJoinKeyword(p.token) {
			p.addError(ErrJoinUnsupported)
			return nil
		}
		if !p.match(token.COMMA) {
			return refs
		}
	}
}

// parseTableRef parses one FROM item with its optional alias.
func (p *Parser) parseTableRef() *TableRef {
	start := p.token.Pos.Offset
	ref := &TableRef{}

	switch {
	case p.check(token.LPAREN):
		p.addError(ErrDerivedTable)
		return nil

	case p.check(token.LATERAL):
		p.nextToken()
		if p.check(token.LPAREN) {
			p.addError(ErrDerivedTable)
			return nil
		}
		ref.Kind = TableFunction
		ref.Func = p.parseTableFunctionCall()

	case p.check(token.TABLE) && p.checkPeek(token.LPAREN):
		p.nextToken()
		p.nextToken()
		ref.Kind = TableFunction
		ref.Func = p.parseTableFunctionCall()
		p.expect(token.RPAREN)

	case isIdentLike(p.token):
		nameStart := p.token.Pos.Offset
		name := p.parseNameParts()
		if p.failed() {
			return nil
		}
		if p.check(token.LPAREN) {
			ref.Kind = TableFunction
			ref.Func = p.parseFunctionCall(name, nameStart)
		} else {
			ref.Kind = TableName
			ref.Name = name
		}

	default:
		if isJoinKeyword(p.token) {
			p.addError(ErrJoinUnsupported)
			return nil
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "table name"))
		return nil
	}
	if p.failed() {
		return nil
	}

	if p.match(token.AS) {
		if !isIdentLike(p.token) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "alias"))
			return nil
		}
		ref.Alias = p.token.Literal
		p.nextToken()
	} else if isImplicitAlias(p.token) {
		ref.Alias = p.token.Literal
		p.nextToken()
	}
	if ref.Alias != "" && p.check(token.LPAREN) {
		p.addError(ErrTableAliasColumns)
		return nil
	}

	ref.Span = p.spanFrom(start)
	return ref
}

// parseTableFunctionCall parses the call inside TABLE(...) or after LATERAL.
func (p *Parser) parseTableFunctionCall() *FuncCall {
	if !isIdentLike(p.token) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "function name"))
		return nil
	}
	start := p.token.Pos.Offset
	name := p.parseNameParts()
	if p.failed() {
		return nil
	}
	if !p.check(token.LPAREN) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "("))
		return nil
	}
	return p.parseFunctionCall(name, start)
}

// parseNameParts parses a dotted name: a, s.a, db.s.a. Any keyword is
// accepted after a dot.
func (p *Parser) parseNameParts() []string {
	parts := []string{p.token.Literal}
	p.nextToken()
	for p.check(token.DOT) {
		p.nextToken()
		if !isIdentLike(p.token) && !p.token.Type.IsKeyword() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "identifier"))
			return nil
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}
	return parts
}
