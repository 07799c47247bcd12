package catalog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/dbt-analyzer/internal/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/testutil"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourcesYAML = `
version: 2
sources:
  - name: raw
    tables:
      - name: orders
        columns:
          - name: id
          - name: customer_id
      - name: customers
        identifier: raw_customers
        columns:
          - name: id
      - name: events
models:
  - name: stg_orders
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func names(tables []Table) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Name)
	}
	return out
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "staging", "sources.yml"), sourcesYAML)
	writeFile(t, filepath.Join(dir, "broken.yaml"), "sources: [")
	writeFile(t, filepath.Join(dir, ".hidden", "sources.yml"), sourcesYAML)
	writeFile(t, filepath.Join(dir, "stg_orders.sql"), "select 1")

	tables, err := LoadSources(dir, testutil.NewTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "raw.orders", "raw_customers", "raw.raw_customers"}, names(tables))
	assert.Equal(t, []string{"id", "customer_id"}, tables[0].Columns)
	assert.Equal(t, OriginSource, tables[0].Origin)
	assert.Equal(t, filepath.Join(dir, "staging", "sources.yml"), tables[0].Path)
}

func TestLoadSources_MissingDir(t *testing.T) {
	tables, err := LoadSources(filepath.Join(t.TempDir(), "nope"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestLoadSeeds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "country_codes.csv"), "\ufeffcode, name\nDK,Denmark\n")
	writeFile(t, filepath.Join(dir, "nested", "fx_rates.CSV"), "currency,rate\n")
	writeFile(t, filepath.Join(dir, "empty.csv"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "a,b\n")

	tables, err := LoadSeeds(dir, testutil.NewTestLogger(t))
	require.NoError(t, err)

	require.Len(t, tables, 2)
	assert.Equal(t, Table{
		Name:    "country_codes",
		Columns: []string{"code", "name"},
		Origin:  OriginSeed,
		Path:    filepath.Join(dir, "country_codes.csv"),
	}, tables[0])
	assert.Equal(t, "fx_rates", tables[1].Name)
	assert.Equal(t, []string{"currency", "rate"}, tables[1].Columns)
}

func TestIntrospect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM information_schema\.columns\s+WHERE table_schema = \$1`).
		WithArgs("analytics").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("customers", "id").
			AddRow("customers", "email").
			AddRow("orders", "id"))

	tables, err := Introspect(context.Background(), db, "analytics", "$1")
	require.NoError(t, err)

	assert.Equal(t, []string{"customers", "analytics.customers", "orders", "analytics.orders"}, names(tables))
	assert.Equal(t, []string{"id", "email"}, tables[0].Columns)
	assert.Equal(t, []string{"id", "email"}, tables[1].Columns)
	assert.Equal(t, OriginWarehouse, tables[2].Origin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospect_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`information_schema\.columns`).WillReturnError(errors.New("permission denied"))

	_, err = Introspect(context.Background(), db, "main", "?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		target      config.TargetConfig
		driver      string
		dsn         string
		placeholder string
		wantErr     bool
	}{
		{config.TargetConfig{Type: "duckdb", Database: "dev.duckdb"}, "duckdb", "dev.duckdb", "?", false},
		{config.TargetConfig{Type: "Postgres", DSN: "postgres://x"}, "pgx", "postgres://x", "$1", false},
		{config.TargetConfig{Type: "mysql"}, "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.target.Type, func(t *testing.T) {
			driver, dsn, placeholder, err := driverFor(&tt.target)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.dsn, dsn)
			assert.Equal(t, tt.placeholder, placeholder)
		})
	}
}

func projectConfig(root string, target *config.TargetConfig) *config.ProjectConfig {
	return &config.ProjectConfig{
		ModelsDir: filepath.Join(root, "models"),
		SeedsDir:  filepath.Join(root, "seeds"),
		Target:    target,
	}
}

func TestLoad_MergeOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "seeds", "orders.csv"), "id,seeded_at\n")
	writeFile(t, filepath.Join(root, "models", "sources.yml"), sourcesYAML)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("orders", "legacy_id").
			AddRow("payments", "amount"))
	mock.ExpectClose()

	var gotDriver, gotDSN string
	open := func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return db, nil
	}

	target := &config.TargetConfig{Type: "duckdb", Database: "dev.duckdb", Schema: "main"}
	cat, err := Load(context.Background(), projectConfig(root, target),
		WithLogger(testutil.NewTestLogger(t)), WithOpener(open))
	require.NoError(t, err)
	assert.Equal(t, "duckdb", gotDriver)
	assert.Equal(t, "dev.duckdb", gotDSN)
	assert.NoError(t, mock.ExpectationsWereMet())

	origins := make(map[string]Origin)
	for _, tbl := range cat.Tables() {
		origins[tbl.Name] = tbl.Origin
	}
	assert.Equal(t, OriginWarehouse, origins["payments"])
	assert.Equal(t, OriginSource, origins["orders"], "sources are merged last")

	ctx := cat.Context()
	orders, ok := ctx.GetModel("orders")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "customer_id"}, orders.ColumnNames())
	assert.Equal(t, lineage.SourceNone, orders.Columns[0].Source.Kind)

	payments, ok := ctx.GetModel("main.payments")
	require.True(t, ok)
	assert.Equal(t, []string{"amount"}, payments.ColumnNames())
}

func TestLoad_WarehouseFailureIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "seeds", "regions.csv"), "region\n")

	open := func(string, string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}
	target := &config.TargetConfig{Type: "postgres", DSN: "postgres://localhost/db", Schema: "public"}

	cat, err := Load(context.Background(), projectConfig(root, target),
		WithLogger(testutil.NewTestLogger(t)), WithOpener(open))
	require.NoError(t, err)
	assert.Equal(t, []string{"regions"}, names(cat.Tables()))
}

func TestLoad_NoTarget(t *testing.T) {
	root := t.TempDir()

	opened := false
	open := func(string, string) (*sql.DB, error) {
		opened = true
		return nil, errors.New("unexpected")
	}

	cat, err := Load(context.Background(), projectConfig(root, &config.TargetConfig{}), WithOpener(open))
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Zero(t, cat.Len())
	assert.Zero(t, cat.Context().Len())
}
