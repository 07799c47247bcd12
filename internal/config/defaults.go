package config

import (
	"runtime"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultModelsDir   = "models"
	DefaultSeedsDir    = "seeds"
	DefaultLintCommand = "sqlfluff"
	DefaultLintDialect = "snowflake"
	DefaultLintTimeout = 10 * time.Second
	DefaultSchema      = "main"
)

// Supported warehouse types.
const (
	TargetDuckDB   = "duckdb"
	TargetPostgres = "postgres"
)

// DefaultExtensions lists the model file extensions picked up by discovery.
var DefaultExtensions = []string{".sql"}

// DefaultConcurrency is the number of files rendered and parsed at once.
func DefaultConcurrency() int {
	return runtime.GOMAXPROCS(0)
}

// DefaultSchemaForType returns the schema introspected when none is set.
func DefaultSchemaForType(dbType string) string {
	if strings.EqualFold(dbType, TargetPostgres) {
		return "public"
	}
	return DefaultSchema
}

// Defaults returns the default values keyed the way config files spell them.
func Defaults() map[string]any {
	return map[string]any{
		"models_dir":                 DefaultModelsDir,
		"seeds_dir":                  DefaultSeedsDir,
		"extensions":                 DefaultExtensions,
		"concurrency":                DefaultConcurrency(),
		"lint.enabled":               false,
		"lint.command":               DefaultLintCommand,
		"lint.dialect":               DefaultLintDialect,
		"lint.timeout":               DefaultLintTimeout.String(),
		"lineage.enabled":            true,
		"lineage.branch_labels":      false,
		"lineage.expression_lineage": false,
	}
}

// ApplyDefaults fills zero values left after decoding.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.SeedsDir == "" {
		c.SeedsDir = DefaultSeedsDir
	}
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency()
	}
	if c.Lint == nil {
		c.Lint = &LintConfig{}
	}
	if c.Lint.Command == "" {
		c.Lint.Command = DefaultLintCommand
	}
	if c.Lint.Dialect == "" {
		c.Lint.Dialect = DefaultLintDialect
	}
	if c.Lint.Timeout == 0 {
		c.Lint.Timeout = DefaultLintTimeout
	}
	if c.Lineage == nil {
		c.Lineage = &LineageConfig{Enabled: true}
	}
	if c.Target == nil {
		c.Target = &TargetConfig{}
	}
	if c.Target.Enabled() && c.Target.Schema == "" {
		c.Target.Schema = DefaultSchemaForType(c.Target.Type)
	}
}
