package lsp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func published(t *testing.T, s *session) []PublishDiagnosticsParams {
	t.Helper()
	var out []PublishDiagnosticsParams
	for _, msg := range s.notifications("textDocument/publishDiagnostics") {
		var params PublishDiagnosticsParams
		require.NoError(t, json.Unmarshal(msg.Params, &params))
		out = append(out, params)
	}
	return out
}

func TestDiagnosticsOnOpen(t *testing.T) {
	s := run(t, shopProvider(t), didOpen("SELECT nope FROM orders"))

	pubs := published(t, s)
	require.Len(t, pubs, 1)
	assert.Equal(t, testURI, pubs[0].URI)
	require.NotNil(t, pubs[0].Version)
	assert.Equal(t, 1, *pubs[0].Version)

	require.Len(t, pubs[0].Diagnostics, 1)
	d := pubs[0].Diagnostics[0]
	assert.Equal(t, `column "nope" not found`, d.Message)
	assert.Equal(t, DiagnosticSeverityError, d.Severity)
	assert.Equal(t, diagnosticSource, d.Source)
	assert.Equal(t, Range{Start: Position{0, 7}, End: Position{0, 11}}, d.Range)
}

func TestDiagnosticsFollowChanges(t *testing.T) {
	s := run(t, shopProvider(t),
		didOpen("SELECT nope FROM orders"),
		notify("textDocument/didChange", DidChangeTextDocumentParams{
			TextDocument: VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: testURI}, Version: 2},
			ContentChanges: []TextDocumentContentChangeEvent{{
				Range: &Range{Start: Position{0, 7}, End: Position{0, 11}},
				Text:  "total",
			}},
		}),
		notify("textDocument/didClose", DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: testURI}}),
	)

	pubs := published(t, s)
	require.Len(t, pubs, 3)
	assert.Len(t, pubs[0].Diagnostics, 1)
	assert.Empty(t, pubs[1].Diagnostics, "fixed by the change")
	assert.Equal(t, 2, *pubs[1].Version)
	assert.Empty(t, pubs[2].Diagnostics, "cleared on close")
	assert.Nil(t, pubs[2].Version)
}

func TestDiagnosticsForSyntaxErrors(t *testing.T) {
	s := run(t, shopProvider(t), didOpen("SELECT id FROM orders;\nSELECT FROM WHERE"))

	pubs := published(t, s)
	require.Len(t, pubs, 1)
	require.NotEmpty(t, pubs[0].Diagnostics)
	for _, d := range pubs[0].Diagnostics {
		assert.Equal(t, uint32(1), d.Range.Start.Line, d.Message)
		assert.Equal(t, DiagnosticSeverityError, d.Severity)
	}
}

func TestWordEnd(t *testing.T) {
	tests := []struct {
		content string
		start   int
		want    int
	}{
		{"SELECT abc", 7, 10},
		{"SELECT (", 7, 8},
		{"SELECT", 6, 6},
		{"a\nb", 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wordEnd(tt.content, tt.start), "%q at %d", tt.content, tt.start)
	}
}
