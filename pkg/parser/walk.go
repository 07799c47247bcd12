package parser

// Inspect traverses expr depth first, calling f for every expression. If f
// returns false the children of that expression are skipped. Subqueries
// are not entered; f sees the *SubqueryExpr or *InExpr itself.
func Inspect(expr Expr, f func(Expr) bool) {
	if expr == nil || !f(expr) {
		return
	}

	switch e := expr.(type) {
	case *BinaryExpr:
		Inspect(e.Left, f)
		Inspect(e.Right, f)
	case *UnaryExpr:
		Inspect(e.Operand, f)
	case *FuncCall:
		for _, arg := range e.Args {
			Inspect(arg, f)
		}
		for _, item := range e.OrderBy {
			Inspect(item.Expr, f)
		}
	case *NamedArg:
		Inspect(e.Value, f)
	case *CaseExpr:
		Inspect(e.Operand, f)
		for _, w := range e.Whens {
			Inspect(w.Cond, f)
			Inspect(w.Result, f)
		}
		Inspect(e.Else, f)
	case *CastExpr:
		Inspect(e.Expr, f)
	case *InExpr:
		Inspect(e.Expr, f)
		for _, item := range e.List {
			Inspect(item, f)
		}
	case *BetweenExpr:
		Inspect(e.Expr, f)
		Inspect(e.Low, f)
		Inspect(e.High, f)
	case *LikeExpr:
		Inspect(e.Expr, f)
		Inspect(e.Pattern, f)
	case *IsNullExpr:
		Inspect(e.Expr, f)
	case *ParenExpr:
		Inspect(e.Expr, f)
	case *PathExpr:
		Inspect(e.Expr, f)
	}
}
