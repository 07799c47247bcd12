package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	sharedcfg "github.com/leapstack-labs/dbt-analyzer/internal/config"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps flag names whose config key is not the snake_case of the name.
var flagKeys = map[string]string{
	"state":              "state_path",
	"lint":               "lint.enabled",
	"dialect":            "lint.dialect",
	"branch-labels":      "lineage.branch_labels",
	"expression-lineage": "lineage.expression_lineage",
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. The directory of an explicit --config file
//  3. Infer from --models-dir (parent if it holds a config or is named "models")
//  4. Search upward from CWD for dbt-analyzer.yaml
//  5. Current working directory
func inferProjectRoot(cfgFile string, flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("project-dir") {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" {
			return absOrClean(projectDir)
		}
	}

	if cfgFile != "" {
		return filepath.Dir(absOrClean(cfgFile))
	}

	if flags != nil && flags.Changed("models-dir") {
		if modelsDir, _ := flags.GetString("models-dir"); modelsDir != "" {
			absModels := absOrClean(modelsDir)
			parent := filepath.Dir(absModels)
			if sharedcfg.FindConfigFile(parent) != "" || filepath.Base(absModels) == "models" {
				return parent
			}
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := sharedcfg.FindProjectRoot(cwd, maxUpwardSearchLevels); root != "" {
		return root
	}
	return cwd
}

func absOrClean(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	projectRoot := inferProjectRoot(cfgFile, flags)

	// Paths given as flags are relative to the CWD, not the project root.
	flagPaths := make(map[string]string)
	if flags != nil {
		for _, name := range []string{"models-dir", "seeds-dir", "state"} {
			if !flags.Changed(name) {
				continue
			}
			if v, _ := flags.GetString(name); v != "" {
				flagPaths[name] = absOrClean(v)
			}
		}
	}

	// 1. Load defaults
	defaults := sharedcfg.Defaults()
	defaults["output"] = DefaultOutput
	defaults["verbose"] = false
	defaults["log_level"] = DefaultLogLevel
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		cfgFile = sharedcfg.FindConfigFile(projectRoot)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Load environment variables (DBT_ANALYZER_ prefix)
	// Transform: DBT_ANALYZER_LINT__DIALECT -> lint.dialect
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := sharedcfg.Decode(k, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	// 6. Resolve relative paths against the project root, except those
	// given as flags.
	cfg.ProjectRoot = projectRoot
	cfg.ResolvePaths(projectRoot)
	cfg.StatePath = sharedcfg.ResolvePathRelativeTo(cfg.StatePath, projectRoot)
	if v, ok := flagPaths["models-dir"]; ok {
		cfg.ModelsDir = v
	}
	if v, ok := flagPaths["seeds-dir"]; ok {
		cfg.SeedsDir = v
	}
	if v, ok := flagPaths["state"]; ok {
		cfg.StatePath = v
	}
	cfg.ExpandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns a copy of ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context. Without one it
// returns the defaults rooted at the working directory.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg := &Config{OutputFormat: DefaultOutput, LogLevel: DefaultLogLevel}
	cfg.ApplyDefaults()
	if wd, err := os.Getwd(); err == nil {
		cfg.ProjectRoot = wd
		cfg.ResolvePaths(wd)
	}
	return cfg
}
