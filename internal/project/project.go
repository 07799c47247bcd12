package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
	"github.com/leapstack-labs/dbt-analyzer/internal/dag"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	"golang.org/x/sync/errgroup"
)

// FileResult is the analysis of one model file.
type FileResult struct {
	File   File
	Result *analyzer.Result
}

// Report is the analysis of a set of model files.
type Report struct {
	// Files holds one result per file, in path order.
	Files []FileResult
	// Context holds every resolved model, over the catalog it was given.
	Context *lineage.Context
	// Graph has one node per model name and an edge per ref() between
	// project models.
	Graph *dag.Graph
	// Cycles lists the dependency cycles found.
	Cycles   []*dag.CycleError
	Duration time.Duration
}

// Errors counts error diagnostics across all files.
func (r *Report) Errors() int {
	return r.count(analyzer.SeverityError)
}

// Warnings counts warning diagnostics across all files.
func (r *Report) Warnings() int {
	return r.count(analyzer.SeverityWarning)
}

func (r *Report) count(sev analyzer.Severity) int {
	n := 0
	for _, f := range r.Files {
		for _, d := range f.Result.Diagnostics {
			if d.Severity == sev {
				n++
			}
		}
	}
	return n
}

// Lookup returns the result for a model name.
func (r *Report) Lookup(name string) (FileResult, bool) {
	for _, f := range r.Files {
		if f.File.Name == name {
			return f, true
		}
	}
	return FileResult{}, false
}

// Project analyzes model files with one Analyzer.
type Project struct {
	analyzer    *analyzer.Analyzer
	concurrency int
	logger      *slog.Logger
}

// Option configures a Project.
type Option func(*Project)

// WithConcurrency bounds how many files are rendered and parsed at once.
// Values below one mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(p *Project) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Project) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Project.
func New(a *analyzer.Analyzer, opts ...Option) *Project {
	p := &Project{
		analyzer:    a,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze renders and parses files concurrently, then resolves lineage in
// dependency order against catalog, which may be nil.
//
// A ref() to a name that is not one of files is left to the catalog.
// Every member of a dependency cycle is blocked with the cycle, and so is
// any file whose model name is already taken by an earlier path. A model
// that fails to resolve is not registered, so its dependents report it as
// an unresolved table.
func (p *Project) Analyze(ctx context.Context, files []File, catalog *lineage.Context) (*Report, error) {
	start := time.Now()

	results := make([]*analyzer.Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, f := range files {
		g.Go(func() error {
			src, err := os.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("reading model %s: %w", f.Path, err)
			}
			results[i] = p.analyzer.Parse(gctx, f.Name, string(src))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graph := dag.NewGraph()
	owner := make(map[string]int, len(files))
	for i, f := range files {
		if j, taken := owner[f.Name]; taken {
			results[i].Block(fmt.Errorf("duplicate model name %q, also defined in %s", f.Name, files[j].Path), "")
			continue
		}
		owner[f.Name] = i
		graph.AddNode(f.Name, f.Path)
	}
	for _, name := range graph.IDs() {
		for _, ref := range results[owner[name]].Refs() {
			if _, ok := graph.Node(ref); ok {
				if err := graph.AddEdge(ref, name); err != nil {
					return nil, fmt.Errorf("failed to add dependency %s -> %s: %w", ref, name, err)
				}
			}
		}
	}

	cycles := graph.Cycles()
	inCycle := make(map[string]bool)
	for _, c := range cycles {
		members := make(map[string]bool, len(c.Members))
		for _, m := range c.Members {
			members[m] = true
			inCycle[m] = true
		}
		for _, m := range c.Members {
			res := results[owner[m]]
			res.Block(c, firstRefIn(res, members))
		}
		p.logger.Warn("dependency cycle", slog.Any("models", c.Members))
	}

	var acyclic []string
	for _, id := range graph.IDs() {
		if !inCycle[id] {
			acyclic = append(acyclic, id)
		}
	}
	order, err := graph.Subgraph(acyclic).TopologicalSort()
	if err != nil {
		return nil, err
	}

	scope := lineage.NewContext(catalog)
	for _, name := range order {
		res := results[owner[name]]
		p.analyzer.Resolve(res, scope)
		if res.Model != nil {
			scope.AddModel(name, res.Model)
		}
	}

	report := &Report{
		Files:    make([]FileResult, len(files)),
		Context:  scope,
		Graph:    graph,
		Cycles:   cycles,
		Duration: time.Since(start),
	}
	for i, f := range files {
		report.Files[i] = FileResult{File: f, Result: results[i]}
	}

	p.logger.Info("project analyzed",
		slog.Int("files", len(files)),
		slog.Int("models", scope.Len()),
		slog.Int("errors", report.Errors()),
		slog.Int("warnings", report.Warnings()),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// firstRefIn returns the first model res references that is in names.
func firstRefIn(res *analyzer.Result, names map[string]bool) string {
	for _, ref := range res.Refs() {
		if names[ref] {
			return ref
		}
	}
	return ""
}
