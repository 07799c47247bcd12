// Package parser parses rendered dbt model SQL into a query AST.
//
// # Usage
//
//	q, err := parser.Parse("with a as (select id from t) select * from a")
//	if err != nil {
//	    var syntaxErr *parser.SyntaxError
//	    errors.As(err, &syntaxErr) // position in the rendered SQL
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for the SELECT subset of
// Snowflake-flavoured SQL that dbt models are written in:
//
//	query      → [WITH [RECURSIVE] cte_list] set_expr [ORDER BY order_list]
//	             [LIMIT expr] [OFFSET expr] [;]
//	set_expr   → set_term ((UNION [ALL|DISTINCT] | EXCEPT | MINUS | INTERSECT) set_term)*
//	set_term   → select | '(' set_expr ')'
//	select     → SELECT [DISTINCT|ALL] select_list [FROM from_list]
//	             [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//
// Joins, derived tables, window functions and non-SELECT statements are
// rejected with a SyntaxError. See each file for the rules of that section.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Parser parses SQL into an AST.
type Parser struct {
	input   string
	lexer   *Lexer
	token   token.Token // current token
	peek    token.Token // lookahead token
	peek2   token.Token // second lookahead token
	prevEnd int         // end offset of the last consumed token
	err     *SyntaxError
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{
		input: sql,
		lexer: NewLexer(sql),
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	p.prevEnd = 0
	return p
}

// Parse parses a single query and returns its AST.
//
// Only the first syntax error is reported. The returned error is always a
// *SyntaxError.
func Parse(sql string) (*Query, error) {
	p := NewParser(sql)
	q := p.ParseQuery()
	if p.err != nil {
		return nil, p.err
	}
	return q, nil
}

// ParseQuery parses a top-level query including an optional trailing
// semicolon and checks that no input remains.
func (p *Parser) ParseQuery() *Query {
	q := p.parseQuery()
	if p.failed() {
		return nil
	}
	p.match(token.SEMI)
	if !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrTrailingInput, p.token.Type))
		return nil
	}
	return q
}

// Err returns the first syntax error, if any.
func (p *Parser) Err() error {
	if p.err == nil {
		return nil
	}
	return p.err
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.token.End
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()

	if p.token.Type == token.ILLEGAL {
		p.addError(p.token.Literal)
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// addError records a syntax error at the current token. Only the first
// error is kept; everything after it is usually a consequence.
func (p *Parser) addError(msg string) {
	if p.err != nil {
		return
	}
	p.err = &SyntaxError{
		Pos:     p.token.Pos,
		End:     p.token.End,
		Message: msg,
	}
}

// failed reports whether an error has been recorded. Loops check it so
// that parsing unwinds quickly after the first error.
func (p *Parser) failed() bool {
	return p.err != nil
}

// spanFrom returns the span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start int) token.Span {
	end := p.prevEnd
	if end < start {
		end = start
	}
	return token.Span{Start: start, End: end}
}

// text returns the rendered SQL covered by span.
func (p *Parser) text(span token.Span) string {
	return sourceText(p.input, span)
}

// ---------- Keyword Helpers ----------

// isIdentLike returns true if the token can start an identifier. FIRST,
// LAST and NULLS are only keywords inside ORDER BY.
func isIdentLike(tok token.Token) bool {
	switch tok.Type {
	case token.IDENT, token.QUOTED_IDENT, token.FIRST, token.LAST, token.NULLS:
		return true
	}
	return false
}

// isImplicitAlias returns true if the token may follow an expression or
// table as an alias without AS.
func isImplicitAlias(tok token.Token) bool {
	return tok.Type == token.IDENT || tok.Type == token.QUOTED_IDENT
}

// isJoinKeyword returns true if token is a JOIN-related keyword.
func isJoinKeyword(tok token.Token) bool {
	switch tok.Type {
	case token.JOIN, token.LEFT, token.RIGHT, token.INNER, token.OUTER,
		token.FULL, token.CROSS, token.NATURAL, token.ON, token.USING:
		return true
	}
	return false
}

// isStatementKeyword returns true if token starts a non-SELECT statement.
func isStatementKeyword(tok token.Token) bool {
	switch tok.Type {
	case token.INSERT, token.UPDATE, token.DELETE, token.MERGE, token.CREATE,
		token.DROP, token.ALTER, token.TRUNCATE:
		return true
	}
	return false
}

// describe renders a token for error messages.
func describe(tok token.Token) string {
	switch tok.Type {
	case token.IDENT, token.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING:
		return "string literal"
	case token.QUOTED_IDENT:
		return fmt.Sprintf("identifier %q", tok.Literal)
	}
	return tok.Type.String()
}
