package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Expression grammar (lowest to highest precedence):
//
//	expr        → or_expr
//	or_expr     → and_expr (OR and_expr)*
//	and_expr    → not_expr (AND not_expr)*
//	not_expr    → NOT not_expr | comparison
//	comparison  → concat (cmp_op concat | IS [NOT] (NULL|TRUE|FALSE|DISTINCT FROM concat)
//	              | [NOT] IN '(' (query | expr_list) ')' | [NOT] BETWEEN concat AND concat
//	              | [NOT] (LIKE|ILIKE) concat)*
//	concat      → additive ('||' additive)*
//	additive    → multiplicative (('+'|'-') multiplicative)*
//	multiplicative → unary (('*'|'/'|'%') unary)*
//	unary       → ('-'|'+') unary | postfix
//	postfix     → primary ('::' type | '[' expr ']' | ':' path)*

// parseExpression parses an expression.
func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		e := p.parseExpression()
		if p.failed() {
			return nil
		}
		exprs = append(exprs, e)
		if !p.match(token.COMMA) {
			return exprs
		}
	}
}

// binary builds a BinaryExpr spanning both operands.
func binary(op string, left, right Expr) Expr {
	return &BinaryExpr{
		NodeInfo: NodeInfo{Span: left.GetSpan().Cover(right.GetSpan())},
		Op:       op,
		Left:     left,
		Right:    right,
	}
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for !p.failed() && p.match(token.OR) {
		right := p.parseAnd()
		if p.failed() {
			return nil
		}
		left = binary("OR", left, right)
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseNot()
	for !p.failed() && p.match(token.AND) {
		right := p.parseNot()
		if p.failed() {
			return nil
		}
		left = binary("AND", left, right)
	}
	return left
}

func (p *Parser) parseNot() Expr {
	if p.check(token.NOT) {
		start := p.token.Pos.Offset
		p.nextToken()
		operand := p.parseNot()
		if p.failed() {
			return nil
		}
		return &UnaryExpr{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Op:       "NOT",
			Operand:  operand,
		}
	}
	return p.parseComparison()
}

// comparisonOps maps comparison tokens to their operator text.
var comparisonOps = map[token.TokenType]string{
	token.EQ: "=",
	token.NE: "<>",
	token.LT: "<",
	token.GT: ">",
	token.LE: "<=",
	token.GE: ">=",
}

func (p *Parser) parseComparison() Expr {
	start := p.token.Pos.Offset
	left := p.parseConcat()

	for !p.failed() {
		if op, ok := comparisonOps[p.token.Type]; ok {
			p.nextToken()
			right := p.parseConcat()
			if p.failed() {
				return nil
			}
			left = binary(op, left, right)
			continue
		}

		if p.check(token.IS) {
			left = p.parseIs(left, start)
			continue
		}

		not := false
		if p.check(token.NOT) {
			switch p.peek.Type {
			case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
				p.nextToken()
				not = true
			default:
				return left
			}
		}

		switch p.token.Type {
		case token.IN:
			left = p.parseIn(left, not, start)
		case token.BETWEEN:
			left = p.parseBetween(left, not, start)
		case token.LIKE, token.ILIKE:
			ilike := p.check(token.ILIKE)
			p.nextToken()
			pattern := p.parseConcat()
			if p.failed() {
				return nil
			}
			left = &LikeExpr{
				NodeInfo: NodeInfo{Span: p.spanFrom(start)},
				Expr:     left,
				Not:      not,
				ILike:    ilike,
				Pattern:  pattern,
			}
		default:
			return left
		}
	}
	if p.failed() {
		return nil
	}
	return left
}

// parseIs parses IS [NOT] NULL|TRUE|FALSE and IS [NOT] DISTINCT FROM.
func (p *Parser) parseIs(left Expr, start int) Expr {
	p.nextToken() // IS
	not := p.match(token.NOT)

	switch {
	case p.match(token.NULL):
		return &IsNullExpr{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Expr:     left,
			Not:      not,
		}
	case p.check(token.DISTINCT):
		p.nextToken()
		if !p.expect(token.FROM) {
			return nil
		}
		right := p.parseConcat()
		if p.failed() {
			return nil
		}
		op := "IS DISTINCT FROM"
		if not {
			op = "IS NOT DISTINCT FROM"
		}
		return binary(op, left, right)
	case p.check(token.TRUE), p.check(token.FALSE):
		right := p.parsePrimary()
		op := "IS"
		if not {
			op = "IS NOT"
		}
		return binary(op, left, right)
	}

	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "NULL, TRUE, FALSE or DISTINCT FROM"))
	return nil
}

// parseIn parses [NOT] IN '(' (query | expr_list) ')'.
func (p *Parser) parseIn(left Expr, not bool, start int) Expr {
	p.nextToken() // IN
	if !p.expect(token.LPAREN) {
		return nil
	}

	in := &InExpr{Expr: left, Not: not}
	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseQuery()
	} else {
		in.List = p.parseExpressionList()
	}
	if p.failed() || !p.expect(token.RPAREN) {
		return nil
	}

	in.Span = p.spanFrom(start)
	return in
}

// parseBetween parses [NOT] BETWEEN low AND high.
func (p *Parser) parseBetween(left Expr, not bool, start int) Expr {
	p.nextToken() // BETWEEN
	low := p.parseConcat()
	if p.failed() || !p.expect(token.AND) {
		return nil
	}
	high := p.parseConcat()
	if p.failed() {
		return nil
	}
	return &BetweenExpr{
		NodeInfo: NodeInfo{Span: p.spanFrom(start)},
		Expr:     left,
		Not:      not,
		Low:      low,
		High:     high,
	}
}

func (p *Parser) parseConcat() Expr {
	left := p.parseAdditive()
	for !p.failed() && p.match(token.DPIPE) {
		right := p.parseAdditive()
		if p.failed() {
			return nil
		}
		left = binary("||", left, right)
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for !p.failed() && (p.check(token.PLUS) || p.check(token.MINUS)) {
		op := p.token.Literal
		p.nextToken()
		right := p.parseMultiplicative()
		if p.failed() {
			return nil
		}
		left = binary(op, left, right)
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for !p.failed() && (p.check(token.STAR) || p.check(token.SLASH) || p.check(token.PERCENT)) {
		op := p.token.Literal
		p.nextToken()
		right := p.parseUnary()
		if p.failed() {
			return nil
		}
		left = binary(op, left, right)
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.check(token.MINUS) || p.check(token.PLUS) {
		start := p.token.Pos.Offset
		op := p.token.Literal
		p.nextToken()
		operand := p.parseUnary()
		if p.failed() {
			return nil
		}
		return &UnaryExpr{
			NodeInfo: NodeInfo{Span: p.spanFrom(start)},
			Op:       op,
			Operand:  operand,
		}
	}
	return p.parsePostfix()
}

// parsePostfix parses casts and semi-structured access after a primary.
func (p *Parser) parsePostfix() Expr {
	start := p.token.Pos.Offset
	expr := p.parsePrimary()

	for !p.failed() {
		switch {
		case p.match(token.DCOLON):
			typ := p.parseTypeName()
			if p.failed() {
				return nil
			}
			expr = &CastExpr{
				NodeInfo: NodeInfo{Span: p.spanFrom(start)},
				Expr:     expr,
				Type:     typ,
			}

		case p.check(token.LBRACKET):
			pathStart := p.token.Pos.Offset
			p.nextToken()
			p.parseExpression()
			if p.failed() || !p.expect(token.RBRACKET) {
				return nil
			}
			expr = &PathExpr{
				NodeInfo: NodeInfo{Span: p.spanFrom(start)},
				Expr:     expr,
				Path:     p.text(p.spanFrom(pathStart)),
			}

		case p.check(token.COLON):
			pathStart := p.token.Pos.Offset
			p.nextToken()
			if !isIdentLike(p.token) && !p.token.Type.IsKeyword() && !p.check(token.STRING) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "path element"))
				return nil
			}
			p.nextToken()
			for p.check(token.DOT) && (isIdentLike(p.peek) || p.peek.Type.IsKeyword()) {
				p.nextToken()
				p.nextToken()
			}
			expr = &PathExpr{
				NodeInfo: NodeInfo{Span: p.spanFrom(start)},
				Expr:     expr,
				Path:     p.text(p.spanFrom(pathStart)),
			}

		default:
			return expr
		}
	}
	return nil
}

// parseTypeName parses a type such as number(38, 0), varchar, timestamp_ntz.
func (p *Parser) parseTypeName() string {
	start := p.token.Pos.Offset
	if !isIdentLike(p.token) && !p.token.Type.IsKeyword() {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "type name"))
		return ""
	}
	p.nextToken()
	if p.match(token.LPAREN) {
		for !p.failed() && !p.check(token.RPAREN) {
			if !p.check(token.NUMBER) && !p.check(token.COMMA) && !isIdentLike(p.token) {
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), ")"))
				return ""
			}
			p.nextToken()
		}
		p.expect(token.RPAREN)
	}
	return strings.ToUpper(p.text(p.spanFrom(start)))
}
