package template

import (
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Error is the base interface for all template errors.
// Spans and positions refer to the original source.
type Error interface {
	error
	Span() token.Span
	Position() token.Position
}

// baseError provides common error functionality.
type baseError struct {
	span token.Span
	pos  token.Position
	msg  string
}

func (e *baseError) Span() token.Span         { return e.span }
func (e *baseError) Position() token.Position { return e.pos }
func (e *baseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// UnsupportedConstructError rejects a file containing a template construct
// outside the ref()/comment subset. No output is produced for such a file.
type UnsupportedConstructError struct {
	baseError
	Construct string // raw text of the first unsupported construct
}

// NewUnsupportedConstructError creates an error for the construct at span.
func NewUnsupportedConstructError(src string, span token.Span) *UnsupportedConstructError {
	construct := src[span.Start:span.End]
	return &UnsupportedConstructError{
		baseError: baseError{
			span: span,
			pos:  token.NewLineIndex(src).Position(span.Start),
			msg:  fmt.Sprintf("unsupported template construct %s", abbreviate(construct, 40)),
		},
		Construct: construct,
	}
}

// GrammarError reports raw source the template grammar cannot partition,
// such as an unterminated delimiter.
type GrammarError struct {
	baseError
}

// NewGrammarError creates a grammar error anchored at span.
func NewGrammarError(src string, span token.Span, msg string) *GrammarError {
	return &GrammarError{baseError: baseError{
		span: span,
		pos:  token.NewLineIndex(src).Position(span.Start),
		msg:  msg,
	}}
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%q...", s[:n])
}
