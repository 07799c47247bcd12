package parser

import (
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// InferAlias returns the output name of an unaliased projection.
//
// A bare or qualified identifier is named by its last component, so t.id
// becomes id. Any other expression is named by its text in sql, which is
// a display name only and never resolves as a column.
func InferAlias(expr Expr, sql string) string {
	if id, ok := expr.(*Identifier); ok {
		return id.Name()
	}
	if expr == nil {
		return ""
	}
	return sourceText(sql, expr.GetSpan())
}

// sourceText returns sql[span], clamped to the bounds of sql.
func sourceText(sql string, span token.Span) string {
	start, end := span.Start, span.End
	if start < 0 {
		start = 0
	}
	if end > len(sql) {
		end = len(sql)
	}
	if start >= end {
		return ""
	}
	return sql[start:end]
}

func joinName(parts []string) string {
	return strings.Join(parts, ".")
}
