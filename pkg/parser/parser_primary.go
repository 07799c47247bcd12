package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Primary expression parsing: literals, column refs, function calls.
//
// Grammar:
//
//	primary       → literal | typed_literal | column_ref | qualified_star | func_call
//	                | paren_expr | subquery | case_expr | cast_expr | exists_expr
//	literal       → NUMBER | STRING | TRUE | FALSE | NULL
//	typed_literal → (DATE | TIME | TIMESTAMP* | INTERVAL) STRING
//	column_ref    → name ("." name)*
//	func_call     → name ("." name)* "(" [DISTINCT|ALL] [args | "*"] [ORDER BY order_list] ")"
//	                [WITHIN GROUP "(" ORDER BY order_list ")"]
//	arg           → name "=>" expr | expr

// typedLiteralTypes are the type names that may prefix a string literal.
var typedLiteralTypes = map[string]bool{
	"DATE":          true,
	"TIME":          true,
	"TIMESTAMP":     true,
	"TIMESTAMP_NTZ": true,
	"TIMESTAMP_LTZ": true,
	"TIMESTAMP_TZ":  true,
	"INTERVAL":      true,
}

// parsePrimary parses primary expressions.
func (p *Parser) parsePrimary() Expr {
	start := p.token.Pos.Offset

	switch p.token.Type {
	case token.NUMBER:
		return p.literal(LitNumber)

	case token.STRING:
		return p.literal(LitString)

	case token.TRUE, token.FALSE:
		return p.literal(LitBool)

	case token.NULL:
		return p.literal(LitNull)

	case token.LPAREN:
		if p.checkPeek(token.SELECT) || p.checkPeek(token.WITH) {
			p.nextToken()
			q := p.parseQuery()
			if p.failed() || !p.expect(token.RPAREN) {
				return nil
			}
			return &SubqueryExpr{
				NodeInfo: NodeInfo{Span: p.spanFrom(start)},
				Query:    q,
			}
		}
		p.nextToken()
		inner := p.parseExpression()
		if p.failed() {
			return nil
		}
		if p.check(token.COMMA) {
			p.addError(ErrRowValueExpression)
			return nil
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
		return &ParenExpr{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Expr:     inner,
		}

	case token.EXISTS:
		p.nextToken()
		if !p.expect(token.LPAREN) {
			return nil
		}
		q := p.parseQuery()
		if p.failed() || !p.expect(token.RPAREN) {
			return nil
		}
		return &SubqueryExpr{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Exists:   true,
			Query:    q,
		}

	case token.CASE:
		return p.parseCase()

	case token.CAST:
		p.nextToken()
		return p.parseCastBody(start)

	case token.LEFT, token.RIGHT:
		// left(s, n) and right(s, n) are functions
		if p.checkPeek(token.LPAREN) {
			name := []string{p.token.Literal}
			p.nextToken()
			return p.callExpr(name, start)
		}
	}

	if isIdentLike(p.token) {
		return p.parseIdentOrCall()
	}

	if isStatementKeyword(p.token) {
		p.addError(fmt.Sprintf(ErrOnlySelect, p.token.Type))
		return nil
	}
	p.addError(fmt.Sprintf(ErrExpectedExpression, describe(p.token)))
	return nil
}

// literal consumes the current token as a literal of the given kind.
func (p *Parser) literal(kind LiteralKind) Expr {
	lit := &Literal{
		NodeInfo: NodeInfo{Span: p.token.Span()},
		Kind:     kind,
		Value:    p.token.Literal,
	}
	p.nextToken()
	return lit
}

// parseIdentOrCall parses a column reference, qualified star, typed literal
// or function call.
func (p *Parser) parseIdentOrCall() Expr {
	start := p.token.Pos.Offset

	if p.check(token.IDENT) && p.checkPeek(token.STRING) && typedLiteralTypes[strings.ToUpper(p.token.Literal)] {
		typ := strings.ToUpper(p.token.Literal)
		p.nextToken()
		value := p.token.Literal
		p.nextToken()
		return &TypedLiteral{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Type:     typ,
			Value:    value,
		}
	}

	if p.check(token.IDENT) && p.checkPeek(token.LPAREN) && strings.EqualFold(p.token.Literal, "try_cast") {
		p.nextToken()
		return p.parseCastBody(start)
	}

	parts := []string{p.token.Literal}
	p.nextToken()
	for p.check(token.DOT) {
		if p.checkPeek(token.STAR) {
			p.nextToken()
			p.nextToken()
			return &QualifiedStar{
				NodeInfo:  NodeInfo{Span: p.spanFrom(start)},
				Qualifier: parts,
			}
		}
		p.nextToken()
		if !isIdentLike(p.token) && !p.token.Type.IsKeyword() {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "identifier"))
			return nil
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	if p.check(token.LPAREN) {
		return p.callExpr(parts, start)
	}

	return &Identifier{
		NodeInfo: NodeInfo{Span: p.spanFrom(start)},
		Parts:    parts,
	}
}

// callExpr parses a function call as an Expr, keeping a failed call a nil
// interface.
func (p *Parser) callExpr(name []string, start int) Expr {
	if fn := p.parseFunctionCall(name, start); fn != nil {
		return fn
	}
	return nil
}

// parseFunctionCall parses the argument list of a call whose name has been
// consumed. The current token is '('.
func (p *Parser) parseFunctionCall(name []string, start int) *FuncCall {
	if !p.expect(token.LPAREN) {
		return nil
	}
	fn := &FuncCall{Name: name}

	switch {
	case p.check(token.RPAREN):
	case p.check(token.STAR) && p.checkPeek(token.RPAREN):
		p.nextToken()
		fn.Star = true
	default:
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(token.ALL)
		}
		for {
			arg := p.parseFunctionArg()
			if p.failed() {
				return nil
			}
			fn.Args = append(fn.Args, arg)
			if !p.match(token.COMMA) {
				break
			}
		}
		if p.check(token.ORDER) && p.checkPeek(token.BY) {
			p.nextToken()
			p.nextToken()
			fn.OrderBy = p.parseOrderByList()
		}
	}
	if p.failed() || !p.expect(token.RPAREN) {
		return nil
	}

	// WITHIN GROUP (ORDER BY ...)
	if p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "within") && p.checkPeek(token.GROUP) {
		p.nextToken()
		p.nextToken()
		if !p.expect(token.LPAREN) || !p.expect(token.ORDER) || !p.expect(token.BY) {
			return nil
		}
		fn.OrderBy = p.parseOrderByList()
		if p.failed() || !p.expect(token.RPAREN) {
			return nil
		}
	}

	if p.check(token.OVER) {
		p.addError(ErrWindowFunction)
		return nil
	}

	fn.Span = p.spanFrom(start)
	return fn
}

// parseFunctionArg parses a positional or named (name => value) argument.
func (p *Parser) parseFunctionArg() Expr {
	if isIdentLike(p.token) && p.checkPeek(token.ARROW) {
		start := p.token.Pos.Offset
		name := p.token.Literal
		p.nextToken()
		p.nextToken()
		value := p.parseExpression()
		if p.failed() {
			return nil
		}
		return &NamedArg{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Name:     name,
			Value:    value,
		}
	}
	return p.parseExpression()
}

// parseCastBody parses '(' expr AS type ')' after CAST or TRY_CAST.
func (p *Parser) parseCastBody(start int) Expr {
	if !p.expect(token.LPAREN) {
		return nil
	}
	expr := p.parseExpression()
	if p.failed() || !p.expect(token.AS) {
		return nil
	}
	typ := p.parseTypeName()
	if p.failed() || !p.expect(token.RPAREN) {
		return nil
	}
	return &CastExpr{
		NodeInfo: NodeInfo{Span: p.spanFrom(start)},
		Expr:     expr,
		Type:     typ,
	}
}

// parseCase parses CASE [operand] (WHEN cond THEN result)+ [ELSE result] END.
func (p *Parser) parseCase() Expr {
	start := p.token.Pos.Offset
	p.nextToken() // CASE

	c := &CaseExpr{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
		if p.failed() {
			return nil
		}
	}

	for p.match(token.WHEN) {
		cond := p.parseExpression()
		if p.failed() || !p.expect(token.THEN) {
			return nil
		}
		result := p.parseExpression()
		if p.failed() {
			return nil
		}
		c.Whens = append(c.Whens, WhenClause{Cond: cond, Result: result})
	}
	if len(c.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "WHEN"))
		return nil
	}

	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
		if p.failed() {
			return nil
		}
	}
	if !p.expect(token.END) {
		return nil
	}

	c.Span = p.spanFrom(start)
	return c
}
