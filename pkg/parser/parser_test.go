package parser_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/dbt-analyzer/pkg/parser"
	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selectOf returns the SELECT of a query whose body is a single inner query.
func selectOf(t *testing.T, q *parser.Query) *parser.SelectStatement {
	t.Helper()
	inner, ok := q.Body.(*parser.InnerQuery)
	require.True(t, ok, "expected *InnerQuery body, got %T", q.Body)
	return inner.Select
}

func TestParse_SimpleSelect(t *testing.T) {
	q, err := parser.Parse("select 1 as x")
	require.NoError(t, err)

	sel := selectOf(t, q)
	require.Len(t, sel.Projections, 1)
	proj := sel.Projections[0]
	assert.Equal(t, parser.ProjExprWithAlias, proj.Kind)
	assert.Equal(t, "x", proj.Alias)

	lit, ok := proj.Expr.(*parser.Literal)
	require.True(t, ok, "expected literal, got %T", proj.Expr)
	assert.Equal(t, parser.LitNumber, lit.Kind)
	assert.Equal(t, "1", lit.Value)
	assert.Empty(t, sel.From)
}

func TestParse_CTEs(t *testing.T) {
	sql := "with a as (select id from t), b as (select id from a) select * from b"

	q, err := parser.Parse(sql)
	require.NoError(t, err)

	require.Len(t, q.With, 2)
	assert.Equal(t, "a", q.With[0].Name)
	assert.Equal(t, token.Span{Start: 5, End: 6}, q.With[0].NameSpan)
	assert.Equal(t, token.Span{Start: 5, End: 28}, q.With[0].Span)
	assert.Equal(t, "b", q.With[1].Name)
	assert.Equal(t, token.Span{Start: 30, End: 53}, q.With[1].Span)

	inner, ok := q.With[1].Body.(*parser.InnerQuery)
	require.True(t, ok)
	require.Len(t, inner.Select.From, 1)
	assert.Equal(t, []string{"a"}, inner.Select.From[0].Name)

	sel := selectOf(t, q)
	require.Len(t, sel.Projections, 1)
	assert.Equal(t, parser.ProjWildcard, sel.Projections[0].Kind)
	assert.Equal(t, token.Span{Start: 0, End: 69}, q.Span)
}

func TestParse_SetOperationsAreLeftAssociative(t *testing.T) {
	q, err := parser.Parse("select a from x union all select a from y union all select a from z")
	require.NoError(t, err)

	top, ok := q.Body.(*parser.SetOperation)
	require.True(t, ok, "expected *SetOperation, got %T", q.Body)
	assert.Equal(t, parser.SetOpUnionAll, top.Op)

	left, ok := top.Left.(*parser.SetOperation)
	require.True(t, ok, "left operand should be the nested chain")
	assert.Equal(t, parser.SetOpUnionAll, left.Op)
	assert.IsType(t, &parser.InnerQuery{}, left.Left)
	assert.IsType(t, &parser.InnerQuery{}, left.Right)

	right, ok := top.Right.(*parser.InnerQuery)
	require.True(t, ok)
	assert.Equal(t, []string{"z"}, right.Select.From[0].Name)
}

func TestParse_SetOperators(t *testing.T) {
	tests := []struct {
		op   string
		want parser.SetOperator
	}{
		{"union all", parser.SetOpUnionAll},
		{"union", parser.SetOpUnion},
		{"union distinct", parser.SetOpUnion},
		{"except", parser.SetOpExcept},
		{"minus", parser.SetOpExcept},
		{"intersect", parser.SetOpIntersect},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			q, err := parser.Parse("select a from x " + tt.op + " select a from y")
			require.NoError(t, err)

			op, ok := q.Body.(*parser.SetOperation)
			require.True(t, ok)
			assert.Equal(t, tt.want, op.Op)
		})
	}
}

func TestParse_MixedSetOperatorsChainLeftToRight(t *testing.T) {
	q, err := parser.Parse("select a from x union select a from y except select a from z")
	require.NoError(t, err)

	top, ok := q.Body.(*parser.SetOperation)
	require.True(t, ok)
	assert.Equal(t, parser.SetOpExcept, top.Op)

	left, ok := top.Left.(*parser.SetOperation)
	require.True(t, ok)
	assert.Equal(t, parser.SetOpUnion, left.Op)
}

func TestParse_ParenthesisedOperands(t *testing.T) {
	q, err := parser.Parse("(select a from t) union all (select a from u order by a limit 1)")
	require.NoError(t, err)

	op, ok := q.Body.(*parser.SetOperation)
	require.True(t, ok)
	assert.IsType(t, &parser.InnerQuery{}, op.Left)
	assert.IsType(t, &parser.InnerQuery{}, op.Right)
}

func TestParse_Projections(t *testing.T) {
	q, err := parser.Parse("select *, t.*, a, t.b, a + 1, c as d, e f from t")
	require.NoError(t, err)

	expected := []struct {
		kind  parser.ProjectionKind
		alias string
	}{
		{parser.ProjWildcard, ""},
		{parser.ProjQualifiedWildcard, ""},
		{parser.ProjExpr, "a"},
		{parser.ProjExpr, "b"},
		{parser.ProjExpr, "a + 1"},
		{parser.ProjExprWithAlias, "d"},
		{parser.ProjExprWithAlias, "f"},
	}

	sel := selectOf(t, q)
	require.Len(t, sel.Projections, len(expected))
	for i, exp := range expected {
		assert.Equal(t, exp.kind, sel.Projections[i].Kind, "projection[%d] kind", i)
		assert.Equal(t, exp.alias, sel.Projections[i].Alias, "projection[%d] alias", i)
	}
	assert.Equal(t, []string{"t"}, sel.Projections[1].Qualifier)
}

func TestParse_Spans(t *testing.T) {
	sql := "select a, b + 1 as c from t"

	q, err := parser.Parse(sql)
	require.NoError(t, err)

	sel := selectOf(t, q)
	require.Len(t, sel.Projections, 2)
	assert.Equal(t, token.Span{Start: 7, End: 8}, sel.Projections[0].Span)
	assert.Equal(t, token.Span{Start: 10, End: 20}, sel.Projections[1].Span)
	assert.Equal(t, token.Span{Start: 10, End: 15}, sel.Projections[1].Expr.GetSpan())
	assert.Equal(t, token.Span{Start: 26, End: 27}, sel.From[0].Span)
	assert.Equal(t, token.Span{Start: 0, End: len(sql)}, sel.Span)
}

func TestParse_FromItems(t *testing.T) {
	q, err := parser.Parse("select * from db.raw.orders o, table(flatten(input => o.items)) f, lateral flatten(o.tags)")
	require.NoError(t, err)

	from := selectOf(t, q).From
	require.Len(t, from, 3)

	assert.Equal(t, parser.TableName, from[0].Kind)
	assert.Equal(t, "db.raw.orders", from[0].QualifiedName())
	assert.Equal(t, "o", from[0].Alias)

	assert.Equal(t, parser.TableFunction, from[1].Kind)
	require.NotNil(t, from[1].Func)
	assert.Equal(t, []string{"flatten"}, from[1].Func.Name)
	require.Len(t, from[1].Func.Args, 1)
	assert.IsType(t, &parser.NamedArg{}, from[1].Func.Args[0])
	assert.Equal(t, "f", from[1].Alias)

	assert.Equal(t, parser.TableFunction, from[2].Kind)
	assert.Empty(t, from[2].Alias)
}

func TestParse_QueryTail(t *testing.T) {
	q, err := parser.Parse("select a from t order by a desc nulls last, b limit 10 offset 5;")
	require.NoError(t, err)

	require.Len(t, q.OrderBy, 2)
	assert.True(t, q.OrderBy[0].Desc)
	require.NotNil(t, q.OrderBy[0].NullsFirst)
	assert.False(t, *q.OrderBy[0].NullsFirst)
	assert.False(t, q.OrderBy[1].Desc)
	assert.NotNil(t, q.Limit)
	assert.NotNil(t, q.Offset)
}

func TestParse_Expressions(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"case", "select case when a > 1 then 'x' else 'y' end as c from t"},
		{"simple case", "select case a when 1 then 'one' end from t"},
		{"cast", "select cast(a as number(38, 0)) from t"},
		{"try_cast", "select try_cast(a as int) from t"},
		{"double colon cast", "select a::varchar as s from t"},
		{"variant path", "select v:field.sub::string as f from t"},
		{"bracket path", "select v['k'][0] as f from t"},
		{"aggregates", "select count(*), count(distinct a) from t group by all"},
		{"group by having", "select a, sum(b) from t group by a having sum(b) > 0"},
		{"in subquery", "select a from t where b in (select b from u) and c not in (1, 2)"},
		{"between like is", "select a from t where b between 1 and 2 and c not like 'x%' and d is not null"},
		{"ilike", "select a from t where b ilike '%x'"},
		{"is distinct from", "select a from t where x is distinct from y"},
		{"exists", "select exists (select 1 from u) as e"},
		{"not exists", "select a from t where not exists (select 1 from u where u.a = t.a)"},
		{"scalar subquery", "select (select max(a) from u) as m"},
		{"typed literal", "select date '2020-01-01' as d, interval '1 day' as i"},
		{"qualified table", "select coalesce(a, b) as c from db.schema.t"},
		{"within group", "select listagg(a, ',') within group (order by a) from t"},
		{"left right functions", "select left(a, 2), right(a, 1) from t"},
		{"arithmetic", "select -a * (b + c) / 2 % 3 || 'x' from t"},
		{"comments", "select a -- trailing\nfrom t /* block */"},
		{"quoted identifiers", `select "Quoted Col" from "T"`},
		{"distinct", "select distinct a from t"},
		{"named args", "select parse_json(x), object_construct('a', 1) from t"},
		{"keyword columns", "select t.first, nulls from t"},
		{"ordered aggregate", "select array_agg(a order by b) from t"},
		{"recursive with", "with recursive r as (select 1 as n) select n from r"},
		{"unicode identifier", "select beløb from posteringer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.sql)
			assert.NoError(t, err)
		})
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantMsg string
	}{
		{"inner join", "select * from a join b on a.id = b.id", parser.ErrJoinUnsupported},
		{"left join", "select * from a left join b on true", parser.ErrJoinUnsupported},
		{"aliased join", "select * from a x inner join b y on x.id = y.id", parser.ErrJoinUnsupported},
		{"cross join", "select * from a cross join b", parser.ErrJoinUnsupported},
		{"derived table", "select * from (select 1)", parser.ErrDerivedTable},
		{"window function", "select row_number() over (order by a) from t", parser.ErrWindowFunction},
		{"qualify", "select a from t qualify a = 1", parser.ErrWindowFunction},
		{"insert", "insert into t select 1", "only SELECT statements are supported"},
		{"create", "create table t as select 1", "only SELECT statements are supported"},
		{"cte column list", "with a (x) as (select 1) select * from a", parser.ErrCTEColumnList},
		{"nested with", "with a as (with b as (select 1) select * from b) select * from a", parser.ErrNestedWith},
		{"two statements", "select 1; select 2", "after end of query"},
		{"missing from target", "select a from", "expected table name"},
		{"unterminated string", "select 'abc from t", parser.ErrUnterminatedString},
		{"unterminated comment", "select a /* from t", parser.ErrUnterminatedComment},
		{"unexpected character", "select a ? b", "unexpected character"},
		{"row value", "select a from t where (a, b) in (select 1, 2)", parser.ErrRowValueExpression},
		{"case without when", "select case a end", "expected WHEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parser.Parse(tt.sql)
			require.Error(t, err)
			assert.Nil(t, q)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var syntaxErr *parser.SyntaxError
			assert.True(t, errors.As(err, &syntaxErr), "expected *SyntaxError, got %T", err)
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := parser.Parse("select a,\n  from t")
	require.Error(t, err)

	var syntaxErr *parser.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, 2, syntaxErr.Pos.Line)
	assert.Equal(t, 3, syntaxErr.Pos.Column)
	assert.Equal(t, token.Span{Start: 12, End: 16}, syntaxErr.Span())
	assert.False(t, syntaxErr.IsPoint())
	assert.Equal(t, "parse error at line 2, column 3: unexpected token FROM, expected expression", syntaxErr.Error())
}

func TestParse_ErrorAtEOFIsPoint(t *testing.T) {
	_, err := parser.Parse("select a from")
	require.Error(t, err)

	var syntaxErr *parser.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.True(t, syntaxErr.IsPoint())
	assert.Equal(t, 13, syntaxErr.Pos.Offset)
}

func TestParse_UnterminatedStringPosition(t *testing.T) {
	_, err := parser.Parse("select a from t where x = 'abc")
	require.Error(t, err)

	var syntaxErr *parser.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, token.Span{Start: 26, End: 30}, syntaxErr.Span())
}
