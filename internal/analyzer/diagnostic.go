package analyzer

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/dbt-analyzer/internal/sqlfluff"
	"github.com/leapstack-labs/dbt-analyzer/internal/template"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	"github.com/leapstack-labs/dbt-analyzer/pkg/parser"
	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Severity of a diagnostic.
type Severity int

// Severity levels, numbered as in the language server protocol.
const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic codes.
const (
	CodeTemplate = "E001"
	CodeSyntax   = "E002"
	CodeLineage  = "E003"
)

// Diagnostic sources.
const (
	SourceAnalyzer = "dbt-analyzer"
	SourceLint     = "sqlfluff"
)

// Diagnostic is one finding positioned in the original template source.
type Diagnostic struct {
	Span     token.Span     // byte range in the source
	Start    token.Position // 1-based
	End      token.Position // 1-based
	Severity Severity
	Code     string
	Source   string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s %s: %s", d.Start.Line, d.Start.Column, d.Severity, d.Code, d.Message)
}

// locator places output-side spans in the original source.
type locator struct {
	index *token.LineIndex
	pmap  *template.PositionMap
}

func newLocator(source string, pmap *template.PositionMap) *locator {
	return &locator{index: token.NewLineIndex(source), pmap: pmap}
}

// source builds a diagnostic from a span that is already in source
// coordinates.
func (l *locator) source(span token.Span, sev Severity, code, src, msg string) Diagnostic {
	return Diagnostic{
		Span:     span,
		Start:    l.index.Position(span.Start),
		End:      l.index.Position(span.End),
		Severity: sev,
		Code:     code,
		Source:   src,
		Message:  msg,
	}
}

// output translates an output span into the source: the whole span when
// both ends map, else the start as a point, else the start of the file.
func (l *locator) output(span token.Span, sev Severity, code, src, msg string) Diagnostic {
	return l.source(l.translate(span), sev, code, src, msg)
}

func (l *locator) translate(span token.Span) token.Span {
	if l.pmap == nil {
		return token.Span{}
	}
	if s, ok := l.pmap.TranslateSpan(span); ok {
		return s
	}
	if start, ok := l.pmap.Translate(span.Start); ok {
		return token.Span{Start: start, End: start}
	}
	return token.Span{}
}

func templateDiagnostic(l *locator, err error) Diagnostic {
	var terr template.Error
	if errors.As(err, &terr) {
		return l.source(terr.Span(), SeverityError, CodeTemplate, SourceAnalyzer, err.Error())
	}
	return l.source(token.Span{}, SeverityError, CodeTemplate, SourceAnalyzer, err.Error())
}

func syntaxDiagnostic(l *locator, err error) Diagnostic {
	var serr *parser.SyntaxError
	if errors.As(err, &serr) {
		return l.output(serr.Span(), SeverityError, CodeSyntax, SourceAnalyzer, serr.Message)
	}
	return l.source(token.Span{}, SeverityError, CodeSyntax, SourceAnalyzer, err.Error())
}

func lineageDiagnostic(l *locator, err error) Diagnostic {
	var lerr *lineage.Error
	if errors.As(err, &lerr) {
		return l.output(lerr.Span, SeverityWarning, CodeLineage, SourceAnalyzer, lerr.Error())
	}
	return l.source(token.Span{}, SeverityWarning, CodeLineage, SourceAnalyzer, err.Error())
}

// lintDiagnostic maps a violation reported against the rendered SQL back to
// the source.
func lintDiagnostic(l *locator, rendered *token.LineIndex, v sqlfluff.Violation) Diagnostic {
	span := token.Span{}
	if off, ok := rendered.Offset(v.Line-1, v.Column-1); ok {
		span = l.translate(token.Span{Start: off, End: off})
	}
	msg := v.Description
	if v.Name != "" {
		msg = fmt.Sprintf("%s (%s)", v.Description, v.Name)
	}
	return l.source(span, SeverityWarning, v.Code, SourceLint, msg)
}
