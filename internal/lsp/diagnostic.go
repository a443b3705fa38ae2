package lsp

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/sqlassist/internal/provider"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

const diagnosticSource = "sqlassist"

// publishDiagnostics computes and sends diagnostics for a document.
func (s *Server) publishDiagnostics(ctx context.Context, uri string) {
	doc, parsed := s.parsed(uri)
	if doc == nil {
		return
	}

	diagnostics := s.diagnostics(ctx, doc, parsed)
	s.logger.Debug("publishing diagnostics", slog.String("uri", uri), slog.Int("count", len(diagnostics)))

	version := doc.Version
	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Version:     &version,
		Diagnostics: diagnostics,
	})
}

// diagnostics converts the problems of a parsed document.
func (s *Server) diagnostics(ctx context.Context, doc *Document, parsed *provider.ParsedDocument) []Diagnostic {
	diagnostics := []Diagnostic{}
	for _, p := range s.provider.Problems(ctx, parsed.Script) {
		end := p.End
		if end <= p.Start {
			end = wordEnd(doc.Content, p.Start)
		}
		diagnostics = append(diagnostics, Diagnostic{
			Range:    doc.Range(p.Start, end),
			Severity: toLSPSeverity(p.Severity),
			Source:   diagnosticSource,
			Message:  p.Message,
		})
	}
	return diagnostics
}

// wordEnd extends a zero-width problem position over the word at it.
func wordEnd(content string, start int) int {
	end := start
	for end < len(content) && isWordChar(content[end]) {
		end++
	}
	if end == start && end < len(content) && content[end] != '\n' {
		end++
	}
	return end
}

// isWordChar returns true if the character is part of a word.
func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

func toLSPSeverity(s semantic.Severity) DiagnosticSeverity {
	if s == semantic.SeverityWarning {
		return DiagnosticSeverityWarning
	}
	return DiagnosticSeverityError
}
