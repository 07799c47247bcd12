// Package provider owns per-document analysis for the language server.
// Each document URI has at most one analysis running; a newer version
// cancels the older one, and only results for the latest version are
// published.
package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
)

// PublishFunc receives every analysis that is still current when it
// completes. It is called with the provider's run lock held and must not
// call back into the provider.
type PublishFunc func(a *Analysis)

// run is one in-flight analysis.
type run struct {
	version int
	cancel  context.CancelFunc
	done    chan struct{}
}

// Provider schedules analyses and caches their latest results.
type Provider struct {
	analyzer *analyzer.Analyzer
	publish  PublishFunc
	logger   *slog.Logger

	// Latest published analysis per URI
	documents   map[string]*Analysis
	documentsMu sync.RWMutex

	// Latest submitted analysis per URI
	runs   map[string]*run
	runsMu sync.Mutex

	// Models of the rest of the project and the catalog
	outer   *lineage.Context
	outerMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Provider. publish may be nil.
func New(a *analyzer.Analyzer, publish PublishFunc, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if a == nil {
		a = analyzer.New(analyzer.WithLogger(logger))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		analyzer:  a,
		publish:   publish,
		logger:    logger,
		documents: make(map[string]*Analysis),
		runs:      make(map[string]*run),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit schedules analysis of text as version of uri. Any analysis still
// running for uri is cancelled, and the new one starts only after it has
// stopped.
func (p *Provider) Submit(uri string, version int, text string) {
	p.runsMu.Lock()
	if p.ctx.Err() != nil {
		p.runsMu.Unlock()
		return
	}
	prev := p.runs[uri]
	if prev != nil {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(p.ctx)
	r := &run{version: version, cancel: cancel, done: make(chan struct{})}
	p.runs[uri] = r
	p.wg.Add(1)
	p.runsMu.Unlock()

	go func() {
		defer p.wg.Done()
		defer close(r.done)
		defer cancel()

		if prev != nil {
			<-prev.done
		}
		if ctx.Err() != nil {
			p.logger.Debug("analysis superseded before start", "uri", uri, "version", version)
			return
		}

		start := time.Now()
		res := p.analyzer.Analyze(ctx, ModelName(uri), text, p.Outer())
		a := &Analysis{
			URI:        uri,
			Version:    version,
			Result:     res,
			AnalyzedAt: time.Now(),
			Duration:   time.Since(start),
		}
		p.finish(ctx, uri, r, a)
	}()
}

// finish stores and publishes a if r is still the current run for uri and
// was not cancelled.
func (p *Provider) finish(ctx context.Context, uri string, r *run, a *Analysis) {
	p.runsMu.Lock()
	defer p.runsMu.Unlock()

	if p.runs[uri] != r || ctx.Err() != nil {
		p.logger.Debug("discarding stale analysis", "uri", uri, "version", a.Version)
		return
	}

	p.documentsMu.Lock()
	p.documents[uri] = a
	p.documentsMu.Unlock()

	p.logger.Debug("analysis complete",
		"uri", uri,
		"version", a.Version,
		"diagnostics", len(a.Diagnostics()),
		"duration", a.Duration)

	if p.publish != nil {
		p.publish(a)
	}
}

// Get returns the latest published analysis of uri, or nil.
func (p *Provider) Get(uri string) *Analysis {
	p.documentsMu.RLock()
	defer p.documentsMu.RUnlock()
	return p.documents[uri]
}

// Invalidate cancels any analysis of uri and forgets its result.
func (p *Provider) Invalidate(uri string) {
	p.runsMu.Lock()
	if r := p.runs[uri]; r != nil {
		r.cancel()
		// Keep the done channel so the next Submit still waits for r.
		p.runs[uri] = &run{version: -1, cancel: func() {}, done: r.done}
	}
	p.runsMu.Unlock()

	p.documentsMu.Lock()
	delete(p.documents, uri)
	p.documentsMu.Unlock()
}

// InvalidateAll forgets every cached result.
func (p *Provider) InvalidateAll() {
	p.documentsMu.Lock()
	defer p.documentsMu.Unlock()
	p.documents = make(map[string]*Analysis)
}

// Outer returns the context documents are resolved against.
func (p *Provider) Outer() *lineage.Context {
	p.outerMu.RLock()
	defer p.outerMu.RUnlock()
	return p.outer
}

// SetOuter replaces the context documents are resolved against. Cached
// results are dropped; open documents must be resubmitted to pick it up.
func (p *Provider) SetOuter(outer *lineage.Context) {
	p.outerMu.Lock()
	p.outer = outer
	p.outerMu.Unlock()
	p.InvalidateAll()
}

// Wait blocks until every submitted analysis has finished.
func (p *Provider) Wait() {
	p.wg.Wait()
}

// Close cancels all analyses and waits for them to stop. Submit is a no-op
// afterwards.
func (p *Provider) Close() {
	p.runsMu.Lock()
	p.cancel()
	p.runsMu.Unlock()
	p.wg.Wait()
}
