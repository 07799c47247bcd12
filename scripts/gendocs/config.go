package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	clicfg "github.com/leapstack-labs/dbt-analyzer/internal/cli/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/config"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Description string
	Category    string // project, target, lint, lineage, cli
}

// getConfigSchema mirrors internal/config.ProjectConfig and the CLI-only
// fields of internal/cli/config.Config.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "models_dir", Type: "string", Description: "Directory scanned for model files", Category: "project"},
		{Name: "seeds_dir", Type: "string", Description: "Directory of CSV seeds; each header row becomes a base table", Category: "project"},
		{Name: "extensions", Type: "[]string", Description: "Model file extensions", Category: "project"},
		{Name: "concurrency", Type: "int", Description: "Files rendered and parsed at once (default: number of CPUs)", Category: "project"},

		{Name: "target.type", Type: "string", Description: "Warehouse to read base tables from: duckdb or postgres", Category: "target"},
		{Name: "target.database", Type: "string", Description: "DuckDB database file", Category: "target"},
		{Name: "target.dsn", Type: "string", Description: "PostgreSQL connection string", Category: "target"},
		{Name: "target.schema", Type: "string", Description: "Schema to introspect (default: main for DuckDB, public for PostgreSQL)", Category: "target"},

		{Name: "lint.enabled", Type: "bool", Description: "Run the linter on every rendered model", Category: "lint"},
		{Name: "lint.command", Type: "string", Description: "Linter executable", Category: "lint"},
		{Name: "lint.dialect", Type: "string", Description: "Dialect passed to the linter", Category: "lint"},
		{Name: "lint.timeout", Type: "duration", Description: "Per-file linter timeout", Category: "lint"},

		{Name: "lineage.enabled", Type: "bool", Description: "Resolve column lineage across models", Category: "lineage"},
		{Name: "lineage.branch_labels", Type: "bool", Description: "Name the UNION branch each disjoint source comes from", Category: "lineage"},
		{Name: "lineage.expression_lineage", Type: "bool", Description: "Record the input columns of computed columns", Category: "lineage"},

		{Name: "state_path", Type: "string", Description: "SQLite database `check` exports lineage to", Category: "cli"},
		{Name: "output", Type: "string", Description: "Output format: auto, text, markdown, json", Category: "cli"},
		{Name: "log_level", Type: "string", Description: "Log level: debug, info, warn, error", Category: "cli"},
		{Name: "verbose", Type: "bool", Description: "Debug logging", Category: "cli"},
		{Name: "no_color", Type: "bool", Description: "Disable colored output", Category: "cli"},
	}
}

// defaultValue renders the built-in default of a key, or "-".
func defaultValue(name string) string {
	switch name {
	case "concurrency":
		return "-"
	case "output":
		return InlineCode(clicfg.DefaultOutput)
	case "log_level":
		return InlineCode(clicfg.DefaultLogLevel)
	}
	v, ok := config.Defaults()[name]
	if !ok {
		return "-"
	}
	return InlineCode(fmt.Sprint(v))
}

var configSections = []struct {
	category string
	title    string
	intro    string
}{
	{"project", "Project Settings", "Where models and seeds live. Relative paths are resolved against the directory holding the config file."},
	{"target", "Warehouse", "Optional. Tables found in the warehouse become base tables that models can select from."},
	{"lint", "Linting", "Optional. Rendered SQL is piped to the linter and its findings are mapped back to template positions."},
	{"lineage", "Lineage", "Column lineage resolution."},
	{"cli", "CLI", "Settings read only by the command line."},
}

// generateConfigDocs generates the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "dbt-analyzer configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("dbt-analyzer is configured via %s in your project root. Every key is optional.",
		InlineCode(config.ConfigFileName)))

	fields := getConfigSchema()
	for _, sec := range configSections {
		w.Header(2, sec.title)
		w.Paragraph(sec.intro)

		var rows [][]string
		for _, f := range fields {
			if f.Category != sec.category {
				continue
			}
			rows = append(rows, []string{InlineCode(f.Name), f.Type, defaultValue(f.Name), f.Description})
		}
		w.Table([]string{"Field", "Type", "Default", "Description"}, rows)
	}

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", `# dbt-analyzer.yaml
models_dir: models
seeds_dir: seeds
extensions: [".sql"]

target:
  type: postgres
  dsn: ${WAREHOUSE_DSN}
  schema: analytics

lint:
  enabled: true
  dialect: postgres
  timeout: 30s

lineage:
  enabled: true
  branch_labels: true

state_path: .dbt-analyzer/lineage.db`)

	w.Header(2, "Environment Variables")
	w.Paragraph("Use `${VAR_NAME}` syntax to reference environment variables in `target.database` and `target.dsn`.")

	filename := filepath.Join(outDir, "configuration.md")
	log.Printf("  Generated configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
