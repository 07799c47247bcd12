// Package analyzer runs the per-file pipeline: template rendering, SQL
// parsing, lineage resolution and optional linting. Every stage failure is
// turned into one Diagnostic positioned in the original template source.
package analyzer

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/leapstack-labs/dbt-analyzer/internal/sqlfluff"
	"github.com/leapstack-labs/dbt-analyzer/internal/template"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	"github.com/leapstack-labs/dbt-analyzer/pkg/parser"
	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Linter lints rendered SQL.
type Linter interface {
	Lint(ctx context.Context, sql string) ([]sqlfluff.Violation, error)
}

// Stage identifies how far the pipeline got for a file.
type Stage int

// Pipeline stages, in order.
const (
	StageTemplate Stage = iota
	StageParse
	StageLineage
	StageDone
)

var stageNames = [...]string{"template", "parse", "lineage", "done"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// Result is the outcome of analyzing one file.
type Result struct {
	Name     string
	Source   string
	Rendered *template.Rendered // nil when the template stage failed
	Query    *parser.Query      // nil when rendering or parsing failed
	Model    *lineage.Model     // nil until lineage resolves
	Stage    Stage              // the stage that failed, or StageDone
	Err      error              // the failure that stopped the pipeline

	Diagnostics []Diagnostic

	locator *locator
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any diagnostic is a warning.
func (r *Result) HasWarnings() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Refs returns the models the file references through ref().
func (r *Result) Refs() []string {
	if r.Rendered == nil {
		return nil
	}
	return r.Rendered.Refs()
}

// Analyzer runs the pipeline. It holds no per-file state and is safe for
// concurrent use.
type Analyzer struct {
	resolver  *lineage.Resolver
	linter    Linter
	logger    *slog.Logger
	noLineage bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithResolver replaces the default lineage resolver.
func WithResolver(r *lineage.Resolver) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.resolver = r
		}
	}
}

// WithLinter enables linting of every file that parses.
func WithLinter(l Linter) Option {
	return func(a *Analyzer) {
		a.linter = l
	}
}

// WithLineage turns lineage resolution on or off. When off, files that
// parse finish at StageDone without a model.
func WithLineage(enabled bool) Option {
	return func(a *Analyzer) {
		a.noLineage = !enabled
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		resolver: lineage.NewResolver(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs every stage on one file. outer supplies the models the file
// may select from; nil means none.
func (a *Analyzer) Analyze(ctx context.Context, name, source string, outer *lineage.Context) *Result {
	res := a.Parse(ctx, name, source)
	a.Resolve(res, outer)
	return res
}

// Parse renders and parses one file and lints it when it parses. It stops
// short of lineage, so callers can order resolution across files.
func (a *Analyzer) Parse(ctx context.Context, name, source string) *Result {
	start := time.Now()
	res := &Result{Name: name, Source: source, Stage: StageTemplate}

	rendered, err := template.ScanAndRender(source)
	if err != nil {
		res.Err = err
		res.locator = newLocator(source, nil)
		res.Diagnostics = append(res.Diagnostics, templateDiagnostic(res.locator, err))
		a.logger.Debug("template failed", "file", name, "error", err)
		return res
	}
	res.Rendered = rendered
	res.locator = newLocator(source, rendered.Map)
	res.Stage = StageParse

	query, err := parser.Parse(rendered.Output)
	if err != nil {
		res.Err = err
		res.Diagnostics = append(res.Diagnostics, syntaxDiagnostic(res.locator, err))
		a.logger.Debug("parse failed", "file", name, "error", err)
		return res
	}
	res.Query = query
	res.Stage = StageLineage

	if a.linter != nil {
		res.Diagnostics = append(res.Diagnostics, a.lint(ctx, res)...)
	}

	a.logger.Debug("parsed", "file", name, "refs", len(rendered.Refs()), "duration", time.Since(start))
	return res
}

// Resolve resolves the lineage of a parsed file against outer. It does
// nothing when res did not parse or was blocked.
func (a *Analyzer) Resolve(res *Result, outer *lineage.Context) {
	if res.Query == nil || res.Stage != StageLineage || res.Err != nil {
		return
	}
	if a.noLineage {
		res.Stage = StageDone
		return
	}
	if outer == nil {
		outer = lineage.NewContext(nil)
	}

	model, err := a.resolver.ResolveQuery(res.Query, outer)
	if err != nil {
		res.Err = err
		res.Diagnostics = append(res.Diagnostics, lineageDiagnostic(res.locator, err))
		a.logger.Debug("lineage failed", "file", res.Name, "error", err)
		return
	}
	res.Model = model.Named(res.Name)
	res.Stage = StageDone
}

// Block stops a parsed file short of lineage with err, reported as an
// error at the first ref() of upstream, or at the start of the file when
// the file does not reference upstream. It does nothing when res did not
// parse or already resolved.
func (r *Result) Block(err error, upstream string) {
	if r.Query == nil || r.Stage != StageLineage {
		return
	}
	r.Err = err
	span, _ := r.RefSpan(upstream)
	r.Diagnostics = append(r.Diagnostics, r.locator.source(span, SeverityError, CodeLineage, SourceAnalyzer, err.Error()))
}

// RefSpan returns the source span of the first ref() naming model.
func (r *Result) RefSpan(model string) (token.Span, bool) {
	if r.Rendered == nil || model == "" {
		return token.Span{}, false
	}
	for _, seg := range r.Rendered.Map.Segments() {
		if seg.Kind == template.TemplateExpr && seg.Ref == model {
			return seg.Original, true
		}
	}
	return token.Span{}, false
}

func (a *Analyzer) lint(ctx context.Context, res *Result) []Diagnostic {
	violations, err := a.linter.Lint(ctx, res.Rendered.Output)
	if err != nil {
		a.logger.Debug("lint skipped", "file", res.Name, "error", err)
		return nil
	}

	rendered := token.NewLineIndex(res.Rendered.Output)
	diags := make([]Diagnostic, 0, len(violations))
	for _, v := range violations {
		diags = append(diags, lintDiagnostic(res.locator, rendered, v))
	}
	return diags
}
