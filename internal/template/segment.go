// Package template expands the ref()/comment subset of dbt templating into
// plain SQL and records where every byte of the output came from.
package template

import "github.com/leapstack-labs/dbt-analyzer/pkg/token"

// SegmentKind classifies a run of template source.
type SegmentKind int

// SegmentKind constants.
const (
	Literal      SegmentKind = iota // SQL copied verbatim
	TemplateExpr                    // {{ ref('name') }}
	Comment                         // {# ... #}, dropped from output
	Unknown                         // any other {{ }} or {% %}
)

func (k SegmentKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case TemplateExpr:
		return "template"
	case Comment:
		return "comment"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Segment pairs a span of the original source with the span it produced in
// the rendered output. Comments have a zero-width output span.
type Segment struct {
	Kind     SegmentKind
	Original token.Span
	Output   token.Span
	Ref      string // referenced model, TemplateExpr only
}

// expansion returns the text the segment contributes to the output.
func (s Segment) expansion(src string) string {
	switch s.Kind {
	case Literal:
		return src[s.Original.Start:s.Original.End]
	case TemplateExpr:
		return " " + s.Ref + " "
	default:
		return ""
	}
}
