package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
	"github.com/leapstack-labs/dbt-analyzer/internal/catalog"
	"github.com/leapstack-labs/dbt-analyzer/internal/config"
)

// FromConfig creates a Project whose analyzer follows the lint and lineage
// settings of cfg.
func FromConfig(cfg *config.ProjectConfig, logger *slog.Logger) *Project {
	opts := append([]analyzer.Option{analyzer.WithLogger(logger)}, analyzer.ConfigOptions(cfg)...)
	return New(analyzer.New(opts...), WithConcurrency(cfg.Concurrency), WithLogger(logger))
}

// Analyzer returns the analyzer the project runs files through.
func (p *Project) Analyzer() *analyzer.Analyzer {
	return p.analyzer
}

// Load loads the catalog of cfg and analyzes every model under its models
// directory. A missing models directory yields an empty report.
func Load(ctx context.Context, cfg *config.ProjectConfig, logger *slog.Logger, opts ...catalog.Option) (*Report, *catalog.Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cat, err := catalog.Load(ctx, cfg, append([]catalog.Option{catalog.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	files, err := Discover(cfg.ModelsDir, cfg.Extensions)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("models directory not found", slog.String("path", cfg.ModelsDir))
	case err != nil:
		return nil, nil, err
	}

	report, err := FromConfig(cfg, logger).Analyze(ctx, files, cat.Context())
	if err != nil {
		return nil, nil, err
	}
	return report, cat, nil
}
