package project

import (
	"context"
	"testing"

	"github.com/leapstack-labs/dbt-analyzer/internal/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	root := writeProject(t, map[string]string{
		"seeds/raw_customers.csv":   "id,name\n1,ada\n",
		"models/stg_customers.sql":  "select id as customer_id, name from raw_customers",
		"models/customer_names.sql": "select name from {{ ref('stg_customers') }}",
	})
	cfg, err := config.LoadFromDir(root)
	require.NoError(t, err)

	report, cat, err := Load(context.Background(), cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 1, cat.Len())
	assert.Len(t, report.Files, 2)
	assert.Zero(t, report.Errors())

	m, ok := report.Context.GetModel("customer_names")
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, m.ColumnNames())
	_, ok = report.Context.GetModel("raw_customers")
	assert.True(t, ok, "catalog tables stay visible through the report context")
}

func TestLoad_MissingModelsDir(t *testing.T) {
	root := writeProject(t, map[string]string{
		"seeds/raw_customers.csv": "id\n",
	})
	cfg, err := config.LoadFromDir(root)
	require.NoError(t, err)

	report, cat, err := Load(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Files)
	assert.Equal(t, 1, cat.Len())
}

func TestLoad_LineageDisabled(t *testing.T) {
	root := writeProject(t, map[string]string{
		"dbt-analyzer.yaml":  "lineage:\n  enabled: false\n",
		"models/orders.sql": "select id from raw_orders",
	})
	cfg, err := config.LoadFromDir(root)
	require.NoError(t, err)

	report, _, err := Load(context.Background(), cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Empty(t, report.Files[0].Result.Diagnostics)
	assert.Nil(t, report.Files[0].Result.Model)
}
