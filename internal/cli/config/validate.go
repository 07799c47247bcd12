package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.ProjectConfig.Validate(); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output format %q (valid: auto, text, markdown, json)", c.OutputFormat)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ModelsDir); os.IsNotExist(err) {
		return fmt.Errorf("models directory does not exist: %s\nHint: Create the directory or use --models-dir to specify a different path", c.ModelsDir)
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level. Empty means warn.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
}

// Level returns the effective log level: debug under --verbose, otherwise
// the configured level.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	lvl, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return lvl
}
