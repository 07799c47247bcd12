// Package state exports analysis runs to a SQLite database: one row per
// run, per model file and per output column, plus the column level lineage
// edges between models.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
	"github.com/leapstack-labs/dbt-analyzer/internal/project"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	_ "modernc.org/sqlite" // sqlite driver
)

// Model statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Run is one exported analysis.
type Run struct {
	ID        string
	StartedAt time.Time
	Root      string
	Files     int
	Errors    int
	Warnings  int
}

// Edge is one column level lineage edge.
type Edge struct {
	Model          string
	Column         string
	UpstreamModel  string
	UpstreamColumn string
	Kind           string
}

// Store is a SQLite lineage export.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens the database at path, creating it and its directory when
// missing, and runs pending migrations. Use ":memory:" for an in-memory
// database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("state store opened", slog.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun writes one run in a single transaction and returns its ID.
func (s *Store) SaveRun(ctx context.Context, root string, files []project.FileResult) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	run := Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Root:      root,
		Files:     len(files),
	}
	for _, f := range files {
		for _, d := range f.Result.Diagnostics {
			switch d.Severity {
			case analyzer.SeverityError:
				run.Errors++
			case analyzer.SeverityWarning:
				run.Warnings++
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, root, files, errors, warnings) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Root, run.Files, run.Errors, run.Warnings,
	); err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	for _, f := range files {
		if err := saveModel(ctx, tx, run.ID, f); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("run saved",
		slog.String("id", run.ID),
		slog.Int("files", run.Files),
		slog.Int("errors", run.Errors))
	return run.ID, nil
}

func saveModel(ctx context.Context, tx *sql.Tx, runID string, f project.FileResult) error {
	res := f.Result

	var errMsg sql.NullString
	if res.Err != nil {
		errMsg = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO models (run_id, name, path, status, error) VALUES (?, ?, ?, ?, ?)`,
		runID, f.File.Name, f.File.Path, status(res), errMsg,
	); err != nil {
		return fmt.Errorf("failed to insert model %s: %w", f.File.Name, err)
	}

	if res.Model == nil {
		return nil
	}

	traces := lineage.WalkModel(res.Model)
	for i, col := range res.Model.Columns {
		var termModel, termColumn sql.NullString
		if ref, ok := traces[i].Terminus(); ok {
			termModel = sql.NullString{String: ref.ModelName, Valid: true}
			termColumn = sql.NullString{String: ref.ColumnName, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO columns (run_id, model, position, name, source_kind, terminus_model, terminus_column, end_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, f.File.Name, i, col.Name, col.Source.Kind.String(), termModel, termColumn, traces[i].End.String(),
		); err != nil {
			return fmt.Errorf("failed to insert column %s.%s: %w", f.File.Name, col.Name, err)
		}

		for _, ref := range col.Source.References() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO column_lineage (run_id, model, "column", upstream_model, upstream_column, kind)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				runID, f.File.Name, col.Name, ref.ModelName, ref.ColumnName, col.Source.Kind.String(),
			); err != nil {
				return fmt.Errorf("failed to insert lineage for %s.%s: %w", f.File.Name, col.Name, err)
			}
		}
	}
	return nil
}

func status(res *analyzer.Result) string {
	switch {
	case res.HasErrors():
		return StatusError
	case res.HasWarnings():
		return StatusWarning
	default:
		return StatusOK
	}
}

// Runs returns every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, root, files, errors, warnings FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Root, &r.Files, &r.Errors, &r.Warnings); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Upstream returns the lineage edges leaving model in a run, ordered by
// column and upstream reference.
func (s *Store) Upstream(ctx context.Context, runID, model string) ([]Edge, error) {
	return s.edges(ctx,
		`SELECT model, "column", upstream_model, upstream_column, kind FROM column_lineage
		 WHERE run_id = ? AND model = ?
		 ORDER BY "column", upstream_model, upstream_column`,
		runID, model)
}

// Downstream returns the lineage edges that read model.column in a run.
func (s *Store) Downstream(ctx context.Context, runID, model, column string) ([]Edge, error) {
	return s.edges(ctx,
		`SELECT model, "column", upstream_model, upstream_column, kind FROM column_lineage
		 WHERE run_id = ? AND upstream_model = ? AND upstream_column = ?
		 ORDER BY model, "column"`,
		runID, model, column)
}

func (s *Store) edges(ctx context.Context, query string, args ...any) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Model, &e.Column, &e.UpstreamModel, &e.UpstreamColumn, &e.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan lineage: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
