package parser

import (
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Statement grammar:
//
//	query       → [WITH [RECURSIVE] cte (',' cte)*] set_expr query_tail
//	cte         → name AS '(' set_expr query_tail ')'
//	query_tail  → [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//	set_expr    → set_term (set_op set_term)*
//	set_op      → UNION [ALL|DISTINCT] | EXCEPT [ALL|DISTINCT] | MINUS | INTERSECT [ALL|DISTINCT]
//	set_term    → select | '(' set_expr query_tail ')'

// parseQuery parses a query without consuming a trailing semicolon. It is
// used for the top level and for subqueries.
func (p *Parser) parseQuery() *Query {
	start := p.token.Pos.Offset
	q := &Query{}

	if p.match(token.WITH) {
		q.Recursive = p.match(token.RECURSIVE)
		q.With = p.parseCTEList()
		if p.failed() {
			return nil
		}
	}

	q.Body = p.parseSetExpr()
	if p.failed() {
		return nil
	}
	q.OrderBy, q.Limit, q.Offset = p.parseQueryTail()
	if p.failed() {
		return nil
	}

	q.Span = p.spanFrom(start)
	return q
}

// parseCTEList parses: cte (',' cte)*
func (p *Parser) parseCTEList() []*CTE {
	var ctes []*CTE
	for {
		cte := p.parseCTE()
		if p.failed() {
			return nil
		}
		ctes = append(ctes, cte)
		if !p.match(token.COMMA) {
			return ctes
		}
	}
}

// parseCTE parses: name AS '(' set_expr query_tail ')'
func (p *Parser) parseCTE() *CTE {
	start := p.token.Pos.Offset
	if !isIdentLike(p.token) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "CTE name"))
		return nil
	}
	cte := &CTE{
		Name:     p.token.Literal,
		NameSpan: p.token.Span(),
	}
	p.nextToken()

	if p.check(token.LPAREN) {
		p.addError(ErrCTEColumnList)
		return nil
	}
	if !p.expect(token.AS) || !p.expect(token.LPAREN) {
		return nil
	}
	if p.check(token.WITH) {
		p.addError(ErrNestedWith)
		return nil
	}

	cte.Body = p.parseSetExpr()
	if p.failed() {
		return nil
	}
	cte.OrderBy, cte.Limit, cte.Offset = p.parseQueryTail()
	if !p.expect(token.RPAREN) {
		return nil
	}

	cte.Span = p.spanFrom(start)
	return cte
}

// parseSetExpr parses a left-associative chain of set operations.
// A UNION ALL B UNION ALL C becomes SetOp(SetOp(A, B), C).
func (p *Parser) parseSetExpr() SetExpr {
	start := p.token.Pos.Offset
	left := p.parseSetTerm()
	if p.failed() {
		return nil
	}

	for {
		op, ok := p.parseSetOperator()
		if !ok {
			return left
		}
		right := p.parseSetTerm()
		if p.failed() {
			return nil
		}
		left = &SetOperation{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Op:       op,
			Left:     left,
			Right:    right,
		}
	}
}

// parseSetOperator consumes a set operator if one is present.
func (p *Parser) parseSetOperator() (SetOperator, bool) {
	switch {
	case p.match(token.UNION):
		if p.match(token.ALL) {
			return SetOpUnionAll, true
		}
		p.match(token.DISTINCT)
		return SetOpUnion, true
	case p.match(token.EXCEPT), p.match(token.MINUS_KW):
		if !p.match(token.ALL) {
			p.match(token.DISTINCT)
		}
		return SetOpExcept, true
	case p.match(token.INTERSECT):
		if !p.match(token.ALL) {
			p.match(token.DISTINCT)
		}
		return SetOpIntersect, true
	}
	return SetOpNone, false
}

// parseSetTerm parses a SELECT or a parenthesised set expression.
func (p *Parser) parseSetTerm() SetExpr {
	switch {
	case p.check(token.SELECT):
		start := p.token.Pos.Offset
		sel := p.parseSelect()
		if p.failed() {
			return nil
		}
		return &InnerQuery{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Select:   sel,
		}

	case p.check(token.LPAREN):
		p.nextToken()
		if p.check(token.WITH) {
			p.addError(ErrNestedWith)
			return nil
		}
		inner := p.parseSetExpr()
		if p.failed() {
			return nil
		}
		// ORDER BY / LIMIT inside a parenthesised operand do not change
		// the shape of the result.
		p.parseQueryTail()
		if !p.expect(token.RPAREN) {
			return nil
		}
		return inner

	case isStatementKeyword(p.token):
		p.addError(fmt.Sprintf(ErrOnlySelect, p.token.Type))
		return nil
	}

	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "SELECT"))
	return nil
}

// parseQueryTail parses: [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
func (p *Parser) parseQueryTail() ([]OrderByItem, Expr, Expr) {
	var (
		orderBy       []OrderByItem
		limit, offset Expr
	)
	if p.check(token.ORDER) && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		orderBy = p.parseOrderByList()
	}
	if p.match(token.LIMIT) {
		limit = p.parseExpression()
	}
	if p.match(token.OFFSET) {
		offset = p.parseExpression()
	}
	return orderBy, limit, offset
}

// parseOrderByList parses: expr [ASC|DESC] [NULLS FIRST|LAST] (',' ...)*
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		item := OrderByItem{Expr: p.parseExpression()}
		if p.failed() {
			return nil
		}
		if p.match(token.DESC) {
			item.Desc = true
		} else {
			p.match(token.ASC)
		}
		if p.match(token.NULLS) {
			first := p.check(token.FIRST)
			if !first && !p.check(token.LAST) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "FIRST or LAST"))
				return nil
			}
			p.nextToken()
			item.NullsFirst = &first
		}
		items = append(items, item)
		if !p.match(token.COMMA) {
			return items
		}
	}
}
