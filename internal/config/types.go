// Package config provides shared project configuration types.
// This package is decoupled from CLI concerns so the language server and the
// batch driver can load a project the same way.
package config

import (
	"fmt"
	"strings"
	"time"
)

// TargetConfig holds the warehouse used to introspect base tables.
type TargetConfig struct {
	Type     string `koanf:"type"`     // duckdb, postgres, or empty for none
	Database string `koanf:"database"` // DuckDB file path
	DSN      string `koanf:"dsn"`      // Postgres connection string
	Schema   string `koanf:"schema"`
}

// Enabled reports whether a warehouse is configured.
func (t *TargetConfig) Enabled() bool {
	return t != nil && t.Type != ""
}

// Validate checks if the target configuration is valid.
func (t *TargetConfig) Validate() error {
	if !t.Enabled() {
		return nil
	}
	switch strings.ToLower(t.Type) {
	case TargetDuckDB:
		if t.Database == "" {
			return fmt.Errorf("target.database is required for %s", t.Type)
		}
	case TargetPostgres:
		if t.DSN == "" {
			return fmt.Errorf("target.dsn is required for %s", t.Type)
		}
	default:
		return fmt.Errorf("unknown target type %q (available: %s, %s)", t.Type, TargetDuckDB, TargetPostgres)
	}
	return nil
}

// LintConfig controls the external SQL linter.
type LintConfig struct {
	Enabled bool          `koanf:"enabled"`
	Command string        `koanf:"command"`
	Dialect string        `koanf:"dialect"`
	Timeout time.Duration `koanf:"timeout"`
}

// WithoutLint returns a copy of c with the linter disabled. The other
// sections are shared with c.
func (c *ProjectConfig) WithoutLint() *ProjectConfig {
	out := *c
	if c.Lint != nil {
		lint := *c.Lint
		lint.Enabled = false
		out.Lint = &lint
	}
	return &out
}

// LineageConfig controls lineage resolution.
type LineageConfig struct {
	Enabled           bool `koanf:"enabled"`
	BranchLabels      bool `koanf:"branch_labels"`
	ExpressionLineage bool `koanf:"expression_lineage"`
}

// ProjectConfig holds the project configuration shared by every tool.
type ProjectConfig struct {
	ModelsDir   string         `koanf:"models_dir"`
	SeedsDir    string         `koanf:"seeds_dir"`
	Extensions  []string       `koanf:"extensions"`
	Concurrency int            `koanf:"concurrency"`
	Target      *TargetConfig  `koanf:"target"`
	Lint        *LintConfig    `koanf:"lint"`
	Lineage     *LineageConfig `koanf:"lineage"`
}

// Validate checks if the configuration is valid.
func (c *ProjectConfig) Validate() error {
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.Lint != nil && c.Lint.Timeout < 0 {
		return fmt.Errorf("lint.timeout must not be negative, got %s", c.Lint.Timeout)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	return nil
}
