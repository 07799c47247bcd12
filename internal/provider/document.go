package provider

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
)

// Analysis holds the pipeline result for one version of a document.
type Analysis struct {
	URI     string
	Version int
	Result  *analyzer.Result

	AnalyzedAt time.Time
	Duration   time.Duration
}

// HasErrors reports whether any diagnostic is an error.
func (a *Analysis) HasErrors() bool {
	return a.Result != nil && a.Result.HasErrors()
}

// Diagnostics returns the result's diagnostics, or nil.
func (a *Analysis) Diagnostics() []analyzer.Diagnostic {
	if a.Result == nil {
		return nil
	}
	return a.Result.Diagnostics
}

// ModelName derives a model name from a document URI: the file stem of its
// path. Non-file URIs fall back to the last path element.
func ModelName(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil {
		switch {
		case u.Path != "":
			p = u.Path
		case u.Opaque != "":
			p = u.Opaque
		}
	}
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}
