package lineage

import (
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// ErrorKind classifies a lineage failure.
type ErrorKind int

// ErrorKind constants.
const (
	UnresolvedTable ErrorKind = iota + 1
	UnresolvedColumn
	ArityMismatch
	Unsupported
)

func (k ErrorKind) String() string {
	switch k {
	case UnresolvedTable:
		return "unresolved table"
	case UnresolvedColumn:
		return "unresolved column"
	case ArityMismatch:
		return "arity mismatch"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a lineage resolution failure. Span is the offending node's span
// in the rendered SQL.
type Error struct {
	Kind    ErrorKind
	Span    token.Span
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches another *Error of the same kind, so errors.Is(err,
// lineage.ErrArityMismatch) works regardless of message and span.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnresolvedTable  = &Error{Kind: UnresolvedTable}
	ErrUnresolvedColumn = &Error{Kind: UnresolvedColumn}
	ErrArityMismatch    = &Error{Kind: ArityMismatch}
	ErrUnsupported      = &Error{Kind: Unsupported}
)

func newError(kind ErrorKind, span token.Span, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Span:    span,
		Message: fmt.Sprintf(format, args...),
	}
}
