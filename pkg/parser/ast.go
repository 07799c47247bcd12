package parser

import "github.com/leapstack-labs/dbt-analyzer/pkg/token"

// Every node records the span it covers in the rendered SQL.

// Node is implemented by all AST nodes.
type Node interface {
	GetSpan() token.Span
}

// NodeInfo provides common fields for all AST nodes.
type NodeInfo struct {
	Span token.Span
}

// GetSpan returns the node's span in the rendered SQL.
func (n *NodeInfo) GetSpan() token.Span {
	return n.Span
}

// ---------- Query Structure ----------

// Query is a complete statement: an optional WITH list followed by a body.
type Query struct {
	NodeInfo
	Recursive bool
	With      []*CTE
	Body      SetExpr
	OrderBy   []OrderByItem
	Limit     Expr
	Offset    Expr
}

// CTE is a named query in a WITH clause.
type CTE struct {
	NodeInfo
	Name     string
	NameSpan token.Span
	Body     SetExpr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SetExpr is either a *SetOperation or an *InnerQuery.
type SetExpr interface {
	Node
	setExprNode()
}

// SetOperator identifies a set operation.
type SetOperator int

// SetOperator constants.
const (
	SetOpNone SetOperator = iota
	SetOpUnionAll
	SetOpUnion
	SetOpExcept
	SetOpIntersect
)

func (op SetOperator) String() string {
	switch op {
	case SetOpUnionAll:
		return "UNION ALL"
	case SetOpUnion:
		return "UNION"
	case SetOpExcept:
		return "EXCEPT"
	case SetOpIntersect:
		return "INTERSECT"
	default:
		return ""
	}
}

// SetOperation combines two operands. Chains nest to the left:
// A UNION B UNION C is (A UNION B) UNION C.
type SetOperation struct {
	NodeInfo
	Op    SetOperator
	Left  SetExpr
	Right SetExpr
}

// InnerQuery wraps a single SELECT as a set-operation operand.
type InnerQuery struct {
	NodeInfo
	Select *SelectStatement
}

func (*SetOperation) setExprNode() {}
func (*InnerQuery) setExprNode()   {}

// SelectStatement is one SELECT ... FROM ... block.
type SelectStatement struct {
	NodeInfo
	Distinct    bool
	Projections []*Projection
	From        []*TableRef
	Where       Expr
	GroupBy     []Expr
	GroupByAll  bool
	Having      Expr
}

// ProjectionKind classifies a select-list item.
type ProjectionKind int

// ProjectionKind constants.
const (
	ProjExpr              ProjectionKind = iota // expr
	ProjExprWithAlias                           // expr [AS] alias
	ProjWildcard                                // *
	ProjQualifiedWildcard                       // qualifier.*
)

// Projection is one item of a select list.
type Projection struct {
	NodeInfo
	Kind      ProjectionKind
	Expr      Expr     // nil for wildcards
	Alias     string   // explicit alias or inferred output name
	Qualifier []string // for qualified wildcards
}

// TableKind classifies a FROM item.
type TableKind int

// TableKind constants.
const (
	TableName     TableKind = iota // schema.table
	TableFunction                  // table(fn(...)), flatten(...)
)

// TableRef is one FROM item.
type TableRef struct {
	NodeInfo
	Kind  TableKind
	Name  []string  // name parts for TableName
	Func  *FuncCall // for TableFunction
	Alias string
}

// QualifiedName joins the name parts with dots.
func (t *TableRef) QualifiedName() string {
	return joinName(t.Name)
}

// ---------- Expressions ----------

// Expr is any scalar expression.
type Expr interface {
	Node
	exprNode()
}

// Identifier is a possibly qualified column reference: a, t.a, db.s.t.a.
type Identifier struct {
	NodeInfo
	Parts []string
}

// Name returns the last component.
func (i *Identifier) Name() string {
	return i.Parts[len(i.Parts)-1]
}

// Qualifier returns all components but the last.
func (i *Identifier) Qualifier() []string {
	return i.Parts[:len(i.Parts)-1]
}

// LiteralKind classifies a literal.
type LiteralKind int

// LiteralKind constants.
const (
	LitNumber LiteralKind = iota
	LitString
	LitBool
	LitNull
)

// QualifiedStar is `qualifier.*`. In a select list it becomes a
// ProjQualifiedWildcard projection.
type QualifiedStar struct {
	NodeInfo
	Qualifier []string
}

// Literal is a constant value.
type Literal struct {
	NodeInfo
	Kind  LiteralKind
	Value string
}

// TypedLiteral is a type name applied to a string: DATE '2020-01-01'.
type TypedLiteral struct {
	NodeInfo
	Type  string
	Value string
}

// BinaryExpr is an infix operation.
type BinaryExpr struct {
	NodeInfo
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is a prefix operation (NOT, -, +).
type UnaryExpr struct {
	NodeInfo
	Op      string
	Operand Expr
}

// FuncCall is a function invocation.
type FuncCall struct {
	NodeInfo
	Name     []string
	Distinct bool
	Star     bool // count(*)
	Args     []Expr
	OrderBy  []OrderByItem // array_agg(x ORDER BY y), WITHIN GROUP (ORDER BY y)
}

// NamedArg is a `name => value` function argument.
type NamedArg struct {
	NodeInfo
	Name  string
	Value Expr
}

// CaseExpr is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	NodeInfo
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

// WhenClause is one WHEN/THEN pair.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CastExpr is CAST(x AS t) or x::t.
type CastExpr struct {
	NodeInfo
	Expr Expr
	Type string
}

// InExpr is x [NOT] IN (list) or x [NOT] IN (subquery).
type InExpr struct {
	NodeInfo
	Expr  Expr
	Not   bool
	List  []Expr
	Query *Query
}

// BetweenExpr is x [NOT] BETWEEN lo AND hi.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// LikeExpr is x [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	NodeInfo
	Expr    Expr
	Not     bool
	ILike   bool
	Pattern Expr
}

// IsNullExpr is x IS [NOT] NULL.
type IsNullExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
}

// ParenExpr is a parenthesised expression.
type ParenExpr struct {
	NodeInfo
	Expr Expr
}

// SubqueryExpr is a scalar subquery or EXISTS (subquery).
type SubqueryExpr struct {
	NodeInfo
	Exists bool
	Query  *Query
}

// PathExpr is semi-structured access: col:field, col['k'], col[0].
type PathExpr struct {
	NodeInfo
	Expr Expr
	Path string
}

func (*Identifier) exprNode()    {}
func (*QualifiedStar) exprNode() {}
func (*Literal) exprNode()       {}
func (*TypedLiteral) exprNode()  {}
func (*BinaryExpr) exprNode()    {}
func (*UnaryExpr) exprNode()     {}
func (*FuncCall) exprNode()      {}
func (*NamedArg) exprNode()      {}
func (*CaseExpr) exprNode()      {}
func (*CastExpr) exprNode()      {}
func (*InExpr) exprNode()        {}
func (*BetweenExpr) exprNode()   {}
func (*LikeExpr) exprNode()      {}
func (*IsNullExpr) exprNode()    {}
func (*ParenExpr) exprNode()     {}
func (*SubqueryExpr) exprNode()  {}
func (*PathExpr) exprNode()      {}

// OrderByItem is one ORDER BY key.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}
