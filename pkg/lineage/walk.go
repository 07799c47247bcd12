package lineage

import "strings"

// EndReason says why a lineage walk stopped.
type EndReason int

// EndReason constants.
const (
	EndBaseTable     EndReason = iota // reference names a model in no scope
	EndNone                           // reached a column with no upstream
	EndDisjoint                       // reached a set-operation column
	EndAggregate                      // reached a computed column
	EndUnknown                        // reached a column of unknown provenance
	EndMissingColumn                  // referenced model lacks the column
)

var endReasonNames = map[EndReason]string{
	EndBaseTable:     "base table",
	EndNone:          "none",
	EndDisjoint:      "disjoint",
	EndAggregate:     "aggregate",
	EndUnknown:       "unknown",
	EndMissingColumn: "missing column",
}

func (r EndReason) String() string {
	return endReasonNames[r]
}

// Trace is the result of following one column's Single sources upstream.
type Trace struct {
	Column *Column
	Hops   []ModelReference // references followed, nearest first
	End    EndReason
	Source ColumnSource // the source that stopped the walk
}

// Terminus returns the last reference followed, if any.
func (t *Trace) Terminus() (ModelReference, bool) {
	if len(t.Hops) == 0 {
		return ModelReference{}, false
	}
	return t.Hops[len(t.Hops)-1], true
}

func (t *Trace) String() string {
	var sb strings.Builder
	sb.WriteString(t.Column.Name)
	for _, hop := range t.Hops {
		sb.WriteString(" -> ")
		sb.WriteString(hop.String())
	}
	sb.WriteString(" (")
	sb.WriteString(t.End.String())
	sb.WriteString(")")
	return sb.String()
}

// maxHops bounds a walk through hand-built models that reference
// themselves. Resolved models cannot form such a loop.
const maxHops = 1024

// Walk follows column's Single source through scope until the reference
// leaves every scope or reaches a non-Single source. Entering a resolved
// model or CTE continues in the context it was resolved in, so a CTE that
// shadows an outer name reaches the outer model, and a walk can cross from
// one file's model into the CTEs of another.
func Walk(scope *Context, column *Column) *Trace {
	trace := &Trace{Column: column}
	current := column

	for range maxHops {
		src := current.Source
		switch src.Kind {
		case SourceSingle:
		case SourceNone:
			trace.End, trace.Source = EndNone, src
			return trace
		case SourceDisjoint:
			trace.End, trace.Source = EndDisjoint, src
			return trace
		case SourceAggregate:
			trace.End, trace.Source = EndAggregate, src
			return trace
		default:
			trace.End, trace.Source = EndUnknown, src
			return trace
		}

		trace.Hops = append(trace.Hops, src.Ref)
		if scope == nil {
			trace.End, trace.Source = EndBaseTable, src
			return trace
		}
		next, model := scope.FollowModelReference(src.Ref)
		switch {
		case model == nil:
			trace.End, trace.Source = EndBaseTable, src
			return trace
		case next == nil:
			trace.End, trace.Source = EndMissingColumn, src
			return trace
		}
		if model.scope != nil {
			scope = model.scope
		}
		current = next
	}

	trace.End, trace.Source = EndUnknown, current.Source
	return trace
}

// WalkModel traces every column of a resolved model through its own scope.
func WalkModel(m *Model) []*Trace {
	traces := make([]*Trace, len(m.Columns))
	for i, c := range m.Columns {
		traces[i] = Walk(m.scope, c)
	}
	return traces
}
