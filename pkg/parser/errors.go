package parser

import (
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// SyntaxError is a failure to parse the rendered SQL. Positions refer to the
// rendered text, not to the template source.
type SyntaxError struct {
	Pos     token.Position
	End     int // byte offset past the offending token; equals Pos.Offset for a point
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Span returns the byte range of the offending token.
func (e *SyntaxError) Span() token.Span {
	return token.Span{Start: e.Pos.Offset, End: e.End}
}

// IsPoint reports whether the error has a position but no extent (e.g. at EOF).
func (e *SyntaxError) IsPoint() bool {
	return e.End <= e.Pos.Offset
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected token %s, expected %s"
	ErrExpectedExpression  = "unexpected token %s, expected expression"
	ErrTrailingInput       = "unexpected token %s after end of query"
	ErrUnterminatedString  = "unterminated string literal"
	ErrUnterminatedIdent   = "unterminated quoted identifier"
	ErrUnterminatedComment = "unterminated block comment"
	ErrUnexpectedChar      = "unexpected character %q"

	// Constructs outside the supported subset
	ErrOnlySelect         = "only SELECT statements are supported, found %s"
	ErrJoinUnsupported    = "joins are not supported"
	ErrDerivedTable       = "subqueries in FROM are not supported"
	ErrWindowFunction     = "window functions are not supported"
	ErrCTEColumnList      = "CTE column lists are not supported"
	ErrNestedWith         = "nested WITH is not supported"
	ErrTableAliasColumns  = "table alias column lists are not supported"
	ErrRowValueExpression = "row value expressions are not supported"
)
