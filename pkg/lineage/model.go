package lineage

import (
	"fmt"
	"strings"
)

// SQLType is the inferred type of a column. Type inference is not
// implemented, so every column is TypeUnknown.
type SQLType int

// SQLType constants.
const (
	TypeUnknown SQLType = iota
)

func (t SQLType) String() string {
	return "unknown"
}

// ModelReference names one column of one model.
type ModelReference struct {
	ModelName  string
	ColumnName string
}

func (r ModelReference) String() string {
	return r.ModelName + "." + r.ColumnName
}

// SourceKind tags a ColumnSource.
type SourceKind int

// SourceKind constants. The zero value is SourceUnknown so that an
// unset source never reads as a lineage terminus.
const (
	SourceUnknown   SourceKind = iota // provenance not determined
	SourceSingle                      // copied unchanged from one upstream column
	SourceDisjoint                    // rows come from one of several branches
	SourceAggregate                   // computed from several upstream columns
	SourceNone                        // no upstream: seed, source or literal
)

var sourceKindNames = map[SourceKind]string{
	SourceUnknown:   "unknown",
	SourceSingle:    "single",
	SourceDisjoint:  "disjoint",
	SourceAggregate: "aggregate",
	SourceNone:      "none",
}

func (k SourceKind) String() string {
	if name, ok := sourceKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// ColumnSource describes where a column's values come from.
//
// Only the fields of the active Kind are set: Ref for SourceSingle,
// Branches for SourceDisjoint and Refs for SourceAggregate.
type ColumnSource struct {
	Kind     SourceKind
	Ref      ModelReference
	Branches []ColumnSource
	Refs     []ModelReference
}

// Single returns a source copying one upstream column.
func Single(model, column string) ColumnSource {
	return ColumnSource{Kind: SourceSingle, Ref: ModelReference{ModelName: model, ColumnName: column}}
}

// Disjoint returns a source with one branch per set-operation operand.
func Disjoint(branches ...ColumnSource) ColumnSource {
	return ColumnSource{Kind: SourceDisjoint, Branches: branches}
}

// Aggregate returns a source computed from several upstream columns.
func Aggregate(refs ...ModelReference) ColumnSource {
	return ColumnSource{Kind: SourceAggregate, Refs: refs}
}

// NoSource returns the lineage terminus.
func NoSource() ColumnSource {
	return ColumnSource{Kind: SourceNone}
}

// UnknownSource returns a source whose provenance was not determined.
func UnknownSource() ColumnSource {
	return ColumnSource{Kind: SourceUnknown}
}

// References returns every model reference in the source, depth first.
func (s ColumnSource) References() []ModelReference {
	switch s.Kind {
	case SourceSingle:
		return []ModelReference{s.Ref}
	case SourceAggregate:
		return append([]ModelReference(nil), s.Refs...)
	case SourceDisjoint:
		var refs []ModelReference
		for _, b := range s.Branches {
			refs = append(refs, b.References()...)
		}
		return refs
	}
	return nil
}

func (s ColumnSource) String() string {
	switch s.Kind {
	case SourceSingle:
		return s.Ref.String()
	case SourceDisjoint:
		parts := make([]string, len(s.Branches))
		for i, b := range s.Branches {
			parts[i] = b.String()
		}
		return "disjoint(" + strings.Join(parts, " | ") + ")"
	case SourceAggregate:
		parts := make([]string, len(s.Refs))
		for i, r := range s.Refs {
			parts[i] = r.String()
		}
		return "aggregate(" + strings.Join(parts, ", ") + ")"
	}
	return s.Kind.String()
}

// Column is one output column of a model.
type Column struct {
	Name   string
	Type   SQLType
	Source ColumnSource
}

// Model is the resolved output of a query, CTE or catalog table.
type Model struct {
	Name    string
	Columns []*Column

	// scope is the context the model was resolved in: the query's last
	// CTE layer for a model, the layer before its own for a CTE, and nil
	// for leaf models.
	scope *Context
}

// NewModel creates a model from columns.
func NewModel(name string, columns ...*Column) *Model {
	return &Model{Name: name, Columns: columns}
}

// NewLeafModel creates a model whose columns have no upstream. Catalog
// tables, seeds and sources are leaf models.
func NewLeafModel(name string, columns ...string) *Model {
	m := &Model{Name: name, Columns: make([]*Column, len(columns))}
	for i, c := range columns {
		m.Columns[i] = &Column{Name: c, Type: TypeUnknown, Source: NoSource()}
	}
	return m
}

// Named returns a copy of m registered under name. The columns are shared.
func (m *Model) Named(name string) *Model {
	out := *m
	out.Name = name
	return &out
}

// Scope returns the context the model was resolved in, including its CTEs.
// It is nil for leaf models.
func (m *Model) Scope() *Context {
	return m.scope
}

// Column returns the first column named name, compared case-insensitively.
func (m *Model) Column(name string) (*Column, bool) {
	key := foldName(name)
	for _, c := range m.Columns {
		if foldName(c.Name) == key {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in order.
func (m *Model) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// TypeMatch reports whether m and other have the same number of columns
// and the same type at every position.
func (m *Model) TypeMatch(other *Model) bool {
	if len(m.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range m.Columns {
		if c.Type != other.Columns[i].Type {
			return false
		}
	}
	return true
}
