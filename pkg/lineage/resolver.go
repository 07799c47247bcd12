package lineage

import (
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/parser"
)

// Resolver turns query ASTs into models.
//
// The zero configuration follows the resolution rules exactly: computed
// expressions have unknown provenance and set-operation branches carry the
// real upstream sources. Options relax or change these.
type Resolver struct {
	branchLabels      *[2]string
	expressionLineage bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBranchLabels makes UNION columns point at fixed placeholder models
// (for example "left" and "right") instead of the operands' own sources.
func WithBranchLabels(left, right string) Option {
	return func(r *Resolver) {
		r.branchLabels = &[2]string{left, right}
	}
}

// WithExpressionLineage gives computed columns an Aggregate source listing
// the input columns the expression reads, or None when it reads none.
func WithExpressionLineage() Option {
	return func(r *Resolver) {
		r.expressionLineage = true
	}
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveQuery resolves q against outer with the default resolver.
func ResolveQuery(q *parser.Query, outer *Context) (*Model, error) {
	return NewResolver().ResolveQuery(q, outer)
}

// ResolveSelect resolves a single SELECT against scope with the default
// resolver.
func ResolveSelect(sel *parser.SelectStatement, scope *Context) (*Model, error) {
	return NewResolver().ResolveSelect(sel, scope)
}

// ResolveQuery resolves q in a fresh child of outer.
//
// CTEs are resolved in declaration order. Each one is resolved in the layer
// holding the CTEs before it and then registered in a new child layer, so
// a CTE never sees itself or a later CTE, and its model keeps the layer it
// was resolved in. The first error aborts resolution; it is always an
// *Error. The returned model is unnamed and its Scope holds every CTE.
func (r *Resolver) ResolveQuery(q *parser.Query, outer *Context) (*Model, error) {
	scope := NewContext(outer)

	for _, cte := range q.With {
		m, err := r.resolveSetExpr(cte.Body, scope)
		if err != nil {
			return nil, err
		}
		named := m.Named(cte.Name)
		named.scope = scope
		scope = scope.Child()
		scope.AddModel(cte.Name, named)
	}

	m, err := r.resolveSetExpr(q.Body, scope)
	if err != nil {
		return nil, err
	}
	m.scope = scope
	return m, nil
}

func (r *Resolver) resolveSetExpr(expr parser.SetExpr, scope *Context) (*Model, error) {
	switch e := expr.(type) {
	case *parser.InnerQuery:
		return r.ResolveSelect(e.Select, scope)
	case *parser.SetOperation:
		return r.resolveSetOperation(e, scope)
	}
	return nil, newError(Unsupported, expr.GetSpan(), "unsupported query shape %T", expr)
}

func (r *Resolver) resolveSetOperation(op *parser.SetOperation, scope *Context) (*Model, error) {
	switch op.Op {
	case parser.SetOpUnion, parser.SetOpUnionAll:
	default:
		return nil, newError(Unsupported, op.Span, "%s is not supported", op.Op)
	}

	left, err := r.resolveSetExpr(op.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := r.resolveSetExpr(op.Right, scope)
	if err != nil {
		return nil, err
	}

	if !left.TypeMatch(right) {
		if len(left.Columns) != len(right.Columns) {
			return nil, newError(ArityMismatch, op.Span,
				"%s operands have %d and %d columns", op.Op, len(left.Columns), len(right.Columns))
		}
		return nil, newError(ArityMismatch, op.Span, "%s operand column types differ", op.Op)
	}

	columns := make([]*Column, len(left.Columns))
	for i, lc := range left.Columns {
		rc := right.Columns[i]
		var source ColumnSource
		if r.branchLabels != nil {
			source = Disjoint(
				Single(r.branchLabels[0], lc.Name),
				Single(r.branchLabels[1], rc.Name),
			)
		} else {
			merged := append([]ColumnSource(nil), branches(lc.Source)...)
			source = Disjoint(append(merged, branches(rc.Source)...)...)
		}
		columns[i] = &Column{Name: lc.Name, Type: lc.Type, Source: source}
	}
	return NewModel("", columns...), nil
}

// branches flattens a nested union chain into one branch per operand.
func branches(s ColumnSource) []ColumnSource {
	if s.Kind == SourceDisjoint {
		return s.Branches
	}
	return []ColumnSource{s}
}

// input is one FROM item of a SELECT.
type input struct {
	name  string // model name used in references
	alias string
	model *Model
}

// ResolveSelect resolves one SELECT against scope.
func (r *Resolver) ResolveSelect(sel *parser.SelectStatement, scope *Context) (*Model, error) {
	inputs := make([]input, 0, len(sel.From))
	for _, ref := range sel.From {
		if ref.Kind == parser.TableFunction {
			return nil, newError(Unsupported, ref.Span, "table function %s is not supported", strings.Join(ref.Func.Name, "."))
		}
		name := ref.QualifiedName()
		m, ok := scope.GetModel(name)
		if !ok {
			return nil, newError(UnresolvedTable, ref.Span, "table %q is not in scope", name)
		}
		if m.Name != "" {
			name = m.Name
		}
		inputs = append(inputs, input{name: name, alias: ref.Alias, model: m})
	}

	var columns []*Column
	for _, proj := range sel.Projections {
		switch proj.Kind {
		case parser.ProjWildcard:
			for _, in := range inputs {
				for _, c := range in.model.Columns {
					columns = append(columns, &Column{Name: c.Name, Type: c.Type, Source: Single(in.name, c.Name)})
				}
			}

		case parser.ProjQualifiedWildcard:
			return nil, newError(Unsupported, proj.Span, "qualified wildcard %s.* is not supported", strings.Join(proj.Qualifier, "."))

		default:
			col, err := r.resolveProjection(proj, inputs)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}
	}

	return NewModel("", columns...), nil
}

func (r *Resolver) resolveProjection(proj *parser.Projection, inputs []input) (*Column, error) {
	if id, ok := proj.Expr.(*parser.Identifier); ok {
		in, c, err := lookupColumn(inputs, id)
		if err != nil {
			return nil, err
		}
		name := c.Name
		if proj.Kind == parser.ProjExprWithAlias {
			name = proj.Alias
		}
		return &Column{Name: name, Type: c.Type, Source: Single(in.name, c.Name)}, nil
	}

	source := UnknownSource()
	if r.expressionLineage {
		source = expressionSource(proj.Expr, inputs)
	}
	return &Column{Name: proj.Alias, Type: TypeUnknown, Source: source}, nil
}

// lookupColumn finds the input and column an identifier refers to. A bare
// name takes the first input, in FROM order, that has the column; a
// qualified name uses the input whose alias or model name matches.
func lookupColumn(inputs []input, id *parser.Identifier) (input, *Column, error) {
	name := id.Name()

	if qualifier := id.Qualifier(); len(qualifier) > 0 {
		q := strings.Join(qualifier, ".")
		in, ok := findInput(inputs, q)
		if !ok {
			return input{}, nil, newError(UnresolvedColumn, id.Span, "unknown table or alias %q", q)
		}
		c, ok := in.model.Column(name)
		if !ok {
			return input{}, nil, newError(UnresolvedColumn, id.Span, "column %q not found in %s", name, in.name)
		}
		return in, c, nil
	}

	for _, in := range inputs {
		if c, ok := in.model.Column(name); ok {
			return in, c, nil
		}
	}
	if len(inputs) == 0 {
		return input{}, nil, newError(UnresolvedColumn, id.Span, "column %q has no FROM clause to come from", name)
	}
	return input{}, nil, newError(UnresolvedColumn, id.Span, "column %q not found in %s", name, inputNames(inputs))
}

func findInput(inputs []input, qualifier string) (input, bool) {
	key := foldName(qualifier)
	for _, in := range inputs {
		if in.alias != "" && foldName(in.alias) == key {
			return in, true
		}
	}
	for _, in := range inputs {
		if in.alias == "" && (foldName(in.name) == key || foldName(lastPart(in.name)) == foldName(lastPart(qualifier))) {
			return in, true
		}
	}
	return input{}, false
}

func inputNames(inputs []input) string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.name
	}
	return strings.Join(names, ", ")
}

func lastPart(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// expressionSource lists the input columns an expression reads. Names
// that match no input (current_date and the like) are skipped.
func expressionSource(expr parser.Expr, inputs []input) ColumnSource {
	var refs []ModelReference
	seen := make(map[ModelReference]bool)

	parser.Inspect(expr, func(e parser.Expr) bool {
		id, ok := e.(*parser.Identifier)
		if !ok {
			return true
		}
		in, c, err := lookupColumn(inputs, id)
		if err != nil {
			return false
		}
		ref := ModelReference{ModelName: in.name, ColumnName: c.Name}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
		return false
	})

	if len(refs) == 0 {
		return NoSource()
	}
	return Aggregate(refs...)
}
