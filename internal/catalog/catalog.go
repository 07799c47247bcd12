// Package catalog collects the base tables a project selects from: dbt
// source declarations, seed files and, when a target is configured, the
// warehouse's own tables. They become the leaf models of the outermost
// lineage context.
package catalog

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/leapstack-labs/dbt-analyzer/internal/config"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
)

// Origin says where a table definition came from.
type Origin string

// Table origins, in merge order.
const (
	OriginWarehouse Origin = "warehouse"
	OriginSeed      Origin = "seed"
	OriginSource    Origin = "source"
)

// Table is a base table with its columns in order.
type Table struct {
	Name    string
	Columns []string
	Origin  Origin
	Path    string // defining file, empty for warehouse tables
}

// Catalog is an ordered set of tables. A later table replaces an earlier
// one with the same name.
type Catalog struct {
	tables []Table
}

// Add appends tables to the catalog.
func (c *Catalog) Add(tables ...Table) {
	c.tables = append(c.tables, tables...)
}

// Tables returns every table in the order it was added.
func (c *Catalog) Tables() []Table {
	return c.tables
}

// Len returns the number of tables added.
func (c *Catalog) Len() int {
	return len(c.tables)
}

// Context returns a root lineage context holding one leaf model per table.
func (c *Catalog) Context() *lineage.Context {
	root := lineage.NewContext(nil)
	for _, t := range c.tables {
		root.AddModel(t.Name, lineage.NewLeafModel(t.Name, t.Columns...))
	}
	return root
}

// Opener opens a database handle for a driver name and data source.
type Opener func(driverName, dataSourceName string) (*sql.DB, error)

type options struct {
	logger *slog.Logger
	open   Opener
}

// Option configures Load.
type Option func(*options)

// WithLogger sets the logger used to report skipped inputs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOpener replaces sql.Open for warehouse connections.
func WithOpener(open Opener) Option {
	return func(o *options) {
		if open != nil {
			o.open = open
		}
	}
}

// Load builds the catalog for a project: warehouse tables first, then
// seeds, then source declarations. Unreadable inputs are logged and
// skipped, so Load only fails when ctx is done.
func Load(ctx context.Context, cfg *config.ProjectConfig, opts ...Option) (*Catalog, error) {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		open:   sql.Open,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cat := &Catalog{}

	if cfg.Target.Enabled() {
		tables, err := loadWarehouse(ctx, cfg.Target, o.open)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("warehouse introspection skipped",
				slog.String("type", cfg.Target.Type),
				slog.String("error", err.Error()))
		}
		cat.Add(tables...)
	}

	seeds, err := LoadSeeds(cfg.SeedsDir, o.logger)
	if err != nil {
		o.logger.Warn("seeds skipped", slog.String("dir", cfg.SeedsDir), slog.String("error", err.Error()))
	}
	cat.Add(seeds...)

	sources, err := LoadSources(cfg.ModelsDir, o.logger)
	if err != nil {
		o.logger.Warn("sources skipped", slog.String("dir", cfg.ModelsDir), slog.String("error", err.Error()))
	}
	cat.Add(sources...)

	o.logger.Debug("catalog loaded",
		slog.Int("tables", cat.Len()),
		slog.Int("seeds", len(seeds)),
		slog.Int("sources", len(sources)))
	return cat, nil
}
