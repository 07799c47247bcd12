package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-dir", "", "")
	flags.String("models-dir", "", "")
	flags.String("seeds-dir", "", "")
	flags.String("state", "", "")
	flags.String("output", "", "")
	flags.String("dialect", "", "")
	flags.Bool("lint", false, "")
	flags.Bool("verbose", false, "")
	flags.Int("concurrency", 0, "")
	return flags
}

func projectWithConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dbt-analyzer.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	ResetConfig()
	dir := projectWithConfig(t, `
models_dir: transform
state_path: .state/lineage.db
lint:
  enabled: true
  timeout: 2s
`)
	cfgPath := filepath.Join(dir, "dbt-analyzer.yaml")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "transform"), cfg.ModelsDir)
	assert.Equal(t, filepath.Join(dir, "seeds"), cfg.SeedsDir)
	assert.Equal(t, filepath.Join(dir, ".state", "lineage.db"), cfg.StatePath)
	assert.True(t, cfg.Lint.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Lint.Timeout)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
}

func TestLoadConfig_ProjectDirFlag(t *testing.T) {
	ResetConfig()
	dir := projectWithConfig(t, "extensions: [.sql, .jinja]\n")

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--project-dir", dir}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, []string{".sql", ".jinja"}, cfg.Extensions)
	assert.Empty(t, cfg.StatePath, "no export unless asked for")
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	dir := projectWithConfig(t, "output: json\nlint:\n  dialect: bigquery\n")
	t.Setenv("DBT_ANALYZER_OUTPUT", "markdown")

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{
		"--project-dir", dir,
		"--output", "text",
		"--lint",
		"--dialect", "duckdb",
		"--concurrency", "3",
	}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.OutputFormat, "flag beats env and file")
	assert.True(t, cfg.Lint.Enabled, "--lint maps to lint.enabled")
	assert.Equal(t, "duckdb", cfg.Lint.Dialect, "--dialect maps to lint.dialect")
	assert.Equal(t, 3, cfg.Concurrency)
}

func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	dir := projectWithConfig(t, "output: json\nlint:\n  dialect: bigquery\n")
	t.Setenv("DBT_ANALYZER_OUTPUT", "markdown")
	t.Setenv("DBT_ANALYZER_LINT__DIALECT", "postgres")
	t.Setenv("DBT_ANALYZER_EXTENSIONS", ".sql,.dbt")

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--project-dir", dir}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "markdown", cfg.OutputFormat)
	assert.Equal(t, "postgres", cfg.Lint.Dialect)
	assert.Equal(t, []string{".sql", ".dbt"}, cfg.Extensions)
}

func TestLoadConfig_FlagPathsRelativeToCWD(t *testing.T) {
	ResetConfig()
	dir := projectWithConfig(t, "")
	cwd, err := os.Getwd()
	require.NoError(t, err)

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{
		"--project-dir", dir,
		"--state", "out/state.db",
	}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "out", "state.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(dir, "models"), cfg.ModelsDir)
}

func TestLoadConfig_ModelsDirInfersRoot(t *testing.T) {
	ResetConfig()
	dir := projectWithConfig(t, "seeds_dir: data\n")
	models := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--models-dir", models}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, models, cfg.ModelsDir)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.SeedsDir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errSubstr string
	}{
		{name: "output format", body: "output: yaml\n", errSubstr: "invalid output format"},
		{name: "log level", body: "log_level: loud\n", errSubstr: "invalid log level"},
		{name: "target", body: "target:\n  type: postgres\n", errSubstr: "target.dsn is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			dir := projectWithConfig(t, tt.body)

			_, err := LoadConfig(filepath.Join(dir, "dbt-analyzer.yaml"), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_Level(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want slog.Level
	}{
		{"default", Config{}, slog.LevelWarn},
		{"configured", Config{LogLevel: "info"}, slog.LevelInfo},
		{"verbose wins", Config{LogLevel: "error", Verbose: true}, slog.LevelDebug},
		{"invalid falls back", Config{LogLevel: "loud"}, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Level())
		})
	}
}

func TestConfig_ValidateDirectories(t *testing.T) {
	cfg := &Config{}
	cfg.ModelsDir = filepath.Join(t.TempDir(), "missing")
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models directory does not exist")

	cfg.ModelsDir = t.TempDir()
	assert.NoError(t, cfg.ValidateDirectories())
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "falls back to a discard logger")

	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}

func TestGetConfig(t *testing.T) {
	fallback := GetConfig(context.Background())
	require.NotNil(t, fallback)
	assert.Equal(t, DefaultOutput, fallback.OutputFormat)
	assert.Equal(t, []string{".sql"}, fallback.Extensions)
	assert.True(t, filepath.IsAbs(fallback.ModelsDir))

	cfg := &Config{OutputFormat: "json"}
	assert.Same(t, cfg, GetConfig(WithConfig(context.Background(), cfg)))
}
