package lsp

import (
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/dbt-analyzer/internal/catalog"
	"github.com/leapstack-labs/dbt-analyzer/internal/project"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
)

// projectIndex is a snapshot of the project on disk: every model file and
// catalog table, and the lineage context open documents resolve against.
type projectIndex struct {
	report *project.Report
	paths  map[string]string // model name to file path
	names  []string          // sorted model names
	tables []string          // sorted catalog table names
}

func emptyIndex() *projectIndex {
	return &projectIndex{paths: make(map[string]string)}
}

func newIndex(report *project.Report, cat *catalog.Catalog) *projectIndex {
	idx := emptyIndex()
	idx.report = report
	for _, f := range report.Files {
		if _, dup := idx.paths[f.File.Name]; dup {
			continue
		}
		idx.paths[f.File.Name] = f.File.Path
		idx.names = append(idx.names, f.File.Name)
	}
	sort.Strings(idx.names)

	seen := make(map[string]bool)
	for _, t := range cat.Tables() {
		if !seen[t.Name] {
			seen[t.Name] = true
			idx.tables = append(idx.tables, t.Name)
		}
	}
	sort.Strings(idx.tables)
	return idx
}

// model returns the resolved model registered under name, if any.
func (idx *projectIndex) model(name string) (*lineage.Model, bool) {
	if idx.report == nil {
		return nil, false
	}
	return idx.report.Context.GetModel(name)
}

// relPath returns a model path relative to root when possible.
func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

// reindex reloads the catalog and every model under the models directory
// and makes the result the outer context of document analysis. The index
// only needs lineage, so files on disk are never linted.
func (s *Server) reindex() {
	report, cat, err := project.Load(s.ctx, s.cfg.WithoutLint(), s.logger)
	if err != nil {
		s.logger.Warn("project index unavailable", "root", s.projectRoot, "error", err)
		return
	}

	idx := newIndex(report, cat)
	s.indexMu.Lock()
	s.index = idx
	s.indexMu.Unlock()

	s.provider.SetOuter(report.Context)
	s.logger.Info("project indexed",
		"models", len(idx.names),
		"tables", len(idx.tables),
		"duration", report.Duration)
}

func (s *Server) currentIndex() *projectIndex {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return s.index
}
