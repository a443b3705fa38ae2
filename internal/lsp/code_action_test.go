package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeAction(id int, line, character uint32, only ...CodeActionKind) string {
	pos := Position{Line: line, Character: character}
	return request(id, "textDocument/codeAction", CodeActionParams{
		TextDocument: TextDocumentIdentifier{URI: testURI},
		Range:        Range{Start: pos, End: pos},
		Context:      CodeActionContext{Diagnostics: []Diagnostic{}, Only: only},
	})
}

func TestExpandStarAction(t *testing.T) {
	text := "SELECT o.* FROM orders o"
	s := run(t, shopProvider(t),
		didOpen(text),
		codeAction(1, 0, 9),
		codeAction(2, 0, 10),
		codeAction(3, 0, 2),
		codeAction(4, 0, 9, CodeActionKindQuickFix),
	)

	for _, id := range []int{1, 2} {
		actions := decodeResult[[]CodeAction](t, s.response(t, id))
		require.Len(t, actions, 1, "request %d", id)
		action := actions[0]
		assert.Equal(t, "Expand to id, total, customer_id", action.Title)
		assert.Equal(t, CodeActionKindRefactorInline, action.Kind)
		require.NotNil(t, action.Edit)
		edits := action.Edit.Changes[testURI]
		require.Len(t, edits, 1)
		assert.Equal(t, "o.id, o.total, o.customer_id", edits[0].NewText)
		assert.Equal(t, Range{Start: Position{0, 7}, End: Position{0, 10}}, edits[0].Range)
	}

	assert.Empty(t, decodeResult[[]CodeAction](t, s.response(t, 3)))
	assert.Empty(t, decodeResult[[]CodeAction](t, s.response(t, 4)), "only quick fixes requested")
}

func TestStarEnd(t *testing.T) {
	tests := []struct {
		content string
		offset  int
		want    int
		ok      bool
	}{
		{"SELECT *", 7, 8, true},
		{"SELECT *", 8, 8, true},
		{"SELECT *", 3, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := starEnd(tt.content, tt.offset)
		assert.Equal(t, tt.ok, ok, "%q at %d", tt.content, tt.offset)
		assert.Equal(t, tt.want, got)
	}
}
