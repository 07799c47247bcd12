package lineage_test

import (
	"testing"

	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_LookupWalksParents(t *testing.T) {
	root := lineage.NewContext(nil)
	root.AddModel("orders", lineage.NewLeafModel("orders", "id"))

	child := root.Child()
	child.AddModel("a", lineage.NewLeafModel("a", "x"))

	m, ok := child.GetModel("orders")
	require.True(t, ok, "child should see parent models")
	assert.Equal(t, "orders", m.Name)

	_, ok = root.GetModel("a")
	assert.False(t, ok, "parent must not see child models")

	_, ok = child.GetModel("missing")
	assert.False(t, ok)
}

func TestContext_ChildShadowsParent(t *testing.T) {
	root := lineage.NewContext(nil)
	root.AddModel("t", lineage.NewLeafModel("t", "outer_col"))

	child := root.Child()
	child.AddModel("t", lineage.NewLeafModel("t", "inner_col"))

	m, ok := child.GetModel("t")
	require.True(t, ok)
	assert.Equal(t, []string{"inner_col"}, m.ColumnNames())

	m, ok = root.GetModel("t")
	require.True(t, ok)
	assert.Equal(t, []string{"outer_col"}, m.ColumnNames(), "shadowing must not modify the parent")
}

func TestContext_CaseInsensitiveAndQualifiedNames(t *testing.T) {
	root := lineage.NewContext(nil)
	root.AddModel("Orders", lineage.NewLeafModel("Orders", "ID"))

	tests := []struct {
		name string
		ok   bool
	}{
		{"orders", true},
		{"ORDERS", true},
		{"analytics.staging.orders", true},
		{"staging.customers", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := root.GetModel(tt.name)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestContext_FollowModelReference(t *testing.T) {
	root := lineage.NewContext(nil)
	root.AddModel("t", lineage.NewLeafModel("t", "id", "name"))
	child := root.Child()

	col, m := child.FollowModelReference(lineage.ModelReference{ModelName: "t", ColumnName: "name"})
	require.NotNil(t, m)
	require.NotNil(t, col)
	assert.Equal(t, "name", col.Name)
	assert.Equal(t, lineage.SourceNone, col.Source.Kind)

	col, m = child.FollowModelReference(lineage.ModelReference{ModelName: "t", ColumnName: "nope"})
	assert.NotNil(t, m)
	assert.Nil(t, col)

	col, m = child.FollowModelReference(lineage.ModelReference{ModelName: "u", ColumnName: "id"})
	assert.Nil(t, m)
	assert.Nil(t, col)
}

func TestContext_ModelsKeepRegistrationOrder(t *testing.T) {
	ctx := lineage.NewContext(nil)
	ctx.AddModel("b", lineage.NewLeafModel("b"))
	ctx.AddModel("a", lineage.NewLeafModel("a"))
	ctx.AddModel("b", lineage.NewLeafModel("b2"))

	models := ctx.Models()
	require.Len(t, models, 2)
	assert.Equal(t, "b2", models[0].Name, "re-registering replaces in place")
	assert.Equal(t, "a", models[1].Name)
	assert.Equal(t, 2, ctx.Len())
}

func TestModel_TypeMatch(t *testing.T) {
	a := lineage.NewLeafModel("a", "x", "y")
	b := lineage.NewLeafModel("b", "p", "q")
	c := lineage.NewLeafModel("c", "x")

	assert.True(t, a.TypeMatch(b), "same arity and types match regardless of names")
	assert.False(t, a.TypeMatch(c))
	assert.False(t, c.TypeMatch(a))
}

func TestColumnSource_String(t *testing.T) {
	tests := []struct {
		source lineage.ColumnSource
		want   string
	}{
		{lineage.Single("t", "id"), "t.id"},
		{lineage.Disjoint(lineage.Single("a", "x"), lineage.Single("b", "x")), "disjoint(a.x | b.x)"},
		{lineage.Aggregate(lineage.ModelReference{ModelName: "t", ColumnName: "a"}), "aggregate(t.a)"},
		{lineage.NoSource(), "none"},
		{lineage.UnknownSource(), "unknown"},
		{lineage.ColumnSource{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.source.String())
		})
	}
}
