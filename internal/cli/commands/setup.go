package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/internal/catalog"
	"github.com/leapstack-labs/dbt-analyzer/internal/cli/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/cli/output"
	"github.com/leapstack-labs/dbt-analyzer/internal/project"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer the root
// command stored in cmd's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	r.SetNoColor(cfg.NoColor)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: r,
	}
}

// WithFormat replaces the renderer with one in the given mode. An empty
// format keeps the current renderer.
func (c *CommandContext) WithFormat(cmd *cobra.Command, format string) {
	if format == "" {
		return
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(format))
	r.SetNoColor(c.Cfg.NoColor)
	c.Renderer = r
}

// loadProject analyzes the whole project. With paths, the given files and
// directories are analyzed together with the project's models, so their
// ref() calls resolve, and only their results are reported.
func (c *CommandContext) loadProject(ctx context.Context, paths []string) (*project.Report, error) {
	if len(paths) == 0 {
		report, _, err := project.Load(ctx, &c.Cfg.ProjectConfig, c.Logger)
		return report, err
	}

	selected, err := project.Collect(paths, c.Cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to collect models: %w", err)
	}
	all, err := project.Discover(c.Cfg.ModelsDir, c.Cfg.Extensions)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cat, err := catalog.Load(ctx, &c.Cfg.ProjectConfig, catalog.WithLogger(c.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	want := make(map[string]bool, len(selected))
	for _, f := range selected {
		want[f.Path] = true
	}
	files := selected
	for _, f := range all {
		if !want[f.Path] {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	report, err := project.FromConfig(&c.Cfg.ProjectConfig, c.Logger).Analyze(ctx, files, cat.Context())
	if err != nil {
		return nil, err
	}
	kept := report.Files[:0]
	for _, f := range report.Files {
		if want[f.File.Path] {
			kept = append(kept, f)
		}
	}
	report.Files = kept
	return report, nil
}

// analyzeFile analyzes one model file in the context of its project.
func (c *CommandContext) analyzeFile(ctx context.Context, path string) (*project.FileResult, error) {
	if !project.HasExt(path, c.Cfg.Extensions) {
		return nil, fmt.Errorf("%s is not a model file", path)
	}
	report, err := c.loadProject(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	if len(report.Files) != 1 {
		return nil, fmt.Errorf("%s is not a model file", path)
	}
	return &report.Files[0], nil
}

// relPath shortens path for display when it lies under the project root.
func (c *CommandContext) relPath(path string) string {
	rel, err := filepath.Rel(c.Cfg.ProjectRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
