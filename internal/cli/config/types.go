// Package config provides configuration management for the dbt-analyzer CLI.
//
// This package extends the shared project configuration from internal/config
// with CLI-specific fields. The shared types are re-exported here via type
// aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/dbt-analyzer/internal/config"
)

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = sharedcfg.ProjectConfig

// TargetConfig is an alias for the shared warehouse configuration.
type TargetConfig = sharedcfg.TargetConfig

// LintConfig is an alias for the shared lint configuration.
type LintConfig = sharedcfg.LintConfig

// LineageConfig is an alias for the shared lineage configuration.
type LineageConfig = sharedcfg.LineageConfig

// Config holds all CLI configuration options.
type Config struct {
	ProjectConfig `koanf:",squash"`

	StatePath    string `koanf:"state_path"`
	OutputFormat string `koanf:"output"`
	Verbose      bool   `koanf:"verbose"`
	LogLevel     string `koanf:"log_level"`
	NoColor      bool   `koanf:"no_color"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultModelsDir = sharedcfg.DefaultModelsDir
	DefaultSeedsDir  = sharedcfg.DefaultSeedsDir
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "warn"
	EnvPrefix        = "DBT_ANALYZER_"
)
