package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"   // postgres driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/dbt-analyzer/internal/config"
)

const columnsQuery = `
	SELECT
		table_name,
		column_name
	FROM information_schema.columns
	WHERE table_schema = %s
	ORDER BY table_name, ordinal_position
`

// driverFor returns the database/sql driver, data source and placeholder
// for a target.
func driverFor(t *config.TargetConfig) (driver, dsn, placeholder string, err error) {
	switch strings.ToLower(t.Type) {
	case config.TargetDuckDB:
		return "duckdb", t.Database, "?", nil
	case config.TargetPostgres:
		return "pgx", t.DSN, "$1", nil
	default:
		return "", "", "", fmt.Errorf("unsupported target type %q", t.Type)
	}
}

func loadWarehouse(ctx context.Context, t *config.TargetConfig, open Opener) ([]Table, error) {
	driver, dsn, placeholder, err := driverFor(t)
	if err != nil {
		return nil, err
	}

	db, err := open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", t.Type, err)
	}
	defer func() { _ = db.Close() }()

	return Introspect(ctx, db, t.Schema, placeholder)
}

// Introspect reads the tables of schema from information_schema.columns.
// Each table is returned under its bare name and qualified by schema.
func Introspect(ctx context.Context, db *sql.DB, schema, placeholder string) ([]Table, error) {
	//nolint:gosec // The placeholder is one of two fixed strings
	rows, err := db.QueryContext(ctx, fmt.Sprintf(columnsQuery, placeholder), schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		tables []Table
		cur    *Table
	)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		if cur == nil || cur.Name != table {
			tables = append(tables, Table{Name: table, Origin: OriginWarehouse})
			cur = &tables[len(tables)-1]
		}
		cur.Columns = append(cur.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	out := make([]Table, 0, 2*len(tables))
	for _, t := range tables {
		out = append(out, t)
		if schema != "" {
			q := t
			q.Name = schema + "." + t.Name
			out = append(out, q)
		}
	}
	return out, nil
}
