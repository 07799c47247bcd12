package template

import (
	"sort"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// PositionMap records, for one rendering of one source file, the paired
// original and output spans of every segment. It is read-only once built.
type PositionMap struct {
	segments []Segment
}

// NewPositionMap creates a map over segments ordered by output offset.
func NewPositionMap(segments []Segment) *PositionMap {
	return &PositionMap{segments: segments}
}

// Segments returns a copy of the segments in output order.
func (m *PositionMap) Segments() []Segment {
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// Translate maps an output offset to an original offset.
//
// Only offsets strictly inside a segment's output span are mapped; segment
// boundaries and offsets past the output are not. Inside a template
// expansion the result collapses to the start of the template call.
func (m *PositionMap) Translate(out int) (int, bool) {
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].Output.End > out
	})
	for ; i < len(m.segments); i++ {
		seg := m.segments[i]
		if seg.Output.Start >= out {
			break
		}
		if out > seg.Output.Start && out < seg.Output.End {
			switch seg.Kind {
			case TemplateExpr:
				return seg.Original.Start, true
			case Literal:
				return seg.Original.Start + (out - seg.Output.Start), true
			}
		}
	}
	return 0, false
}

// TranslateSpan maps both ends of an output span. It fails unless both ends
// translate.
func (m *PositionMap) TranslateSpan(span token.Span) (token.Span, bool) {
	start, ok := m.Translate(span.Start)
	if !ok {
		return token.Span{}, false
	}
	end, ok := m.Translate(span.End)
	if !ok {
		return token.Span{}, false
	}
	return token.Span{Start: start, End: end}, true
}
