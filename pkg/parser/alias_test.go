package parser_test

import (
	"testing"

	"github.com/leapstack-labs/dbt-analyzer/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferAlias(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"bare column", "select id from t", "id"},
		{"qualified column", "select t.id from t", "id"},
		{"fully qualified column", "select db.s.t.id from t", "id"},
		{"quoted column", `select "Id" from t`, "Id"},
		{"function call", "select upper(name) from t", "upper(name)"},
		{"arithmetic keeps spacing", "select a +  b from t", "a +  b"},
		{"literal", "select 42", "42"},
		{"string literal", "select 'x'", "'x'"},
		{"case", "select case when a then 1 end from t", "case when a then 1 end"},
		{"cast", "select a::int from t", "a::int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parser.Parse(tt.sql)
			require.NoError(t, err)

			inner, ok := q.Body.(*parser.InnerQuery)
			require.True(t, ok)
			proj := inner.Select.Projections[0]
			assert.Equal(t, parser.ProjExpr, proj.Kind)
			assert.Equal(t, tt.want, proj.Alias)
			assert.Equal(t, tt.want, parser.InferAlias(proj.Expr, tt.sql))
		})
	}
}
