package lsp

import (
	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
	"github.com/leapstack-labs/dbt-analyzer/internal/provider"
)

// publish sends the diagnostics of a current analysis to the client.
func (s *Server) publish(a *provider.Analysis) {
	var source string
	if a.Result != nil {
		source = a.Result.Source
	}
	doc := s.documents.Snapshot(a.URI, source, a.Version)

	version := a.Version
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         a.URI,
		Version:     &version,
		Diagnostics: toLSPDiagnostics(doc, a.Diagnostics()),
	})
}

// toLSPDiagnostics converts analyzer diagnostics into LSP diagnostics whose
// ranges count characters in doc's position encoding.
func toLSPDiagnostics(doc *Document, diags []analyzer.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, Diagnostic{
			Range: Range{
				Start: doc.OffsetToPosition(d.Start.Offset),
				End:   doc.OffsetToPosition(d.End.Offset),
			},
			Severity: toLSPSeverity(d.Severity),
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}

func toLSPSeverity(s analyzer.Severity) DiagnosticSeverity {
	switch s {
	case analyzer.SeverityError:
		return DiagnosticSeverityError
	case analyzer.SeverityWarning:
		return DiagnosticSeverityWarning
	default:
		return DiagnosticSeverityInformation
	}
}
