package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStore_OpenGetClose(t *testing.T) {
	store := NewDocumentStore()

	uri := "file:///queries/report.sql"
	store.Open(uri, "SELECT * FROM orders", 1)

	doc := store.Get(uri)
	require.NotNil(t, doc)
	assert.Equal(t, uri, doc.URI)
	assert.Equal(t, "SELECT * FROM orders", doc.Content)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, []string{uri}, store.List())

	store.Close(uri)
	assert.Nil(t, store.Get(uri))
}

func TestDocumentStore_Apply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		changes []TextDocumentContentChangeEvent
		want    string
	}{
		{
			name:    "full replacement",
			content: "SELECT 1",
			changes: []TextDocumentContentChangeEvent{{Text: "SELECT 2"}},
			want:    "SELECT 2",
		},
		{
			name:    "insert",
			content: "SELECT  FROM orders",
			changes: []TextDocumentContentChangeEvent{{
				Range: &Range{Start: Position{0, 7}, End: Position{0, 7}},
				Text:  "id",
			}},
			want: "SELECT id FROM orders",
		},
		{
			name:    "replace across lines",
			content: "SELECT a\nFROM t\nWHERE x",
			changes: []TextDocumentContentChangeEvent{{
				Range: &Range{Start: Position{0, 7}, End: Position{1, 6}},
				Text:  "b FROM u",
			}},
			want: "SELECT b FROM u\nWHERE x",
		},
		{
			name:    "changes apply in order",
			content: "SELECT",
			changes: []TextDocumentContentChangeEvent{
				{Range: &Range{Start: Position{0, 6}, End: Position{0, 6}}, Text: " 1"},
				{Range: &Range{Start: Position{0, 7}, End: Position{0, 8}}, Text: "2"},
			},
			want: "SELECT 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewDocumentStore()
			store.Open("file:///a.sql", tt.content, 1)

			doc := store.Apply("file:///a.sql", tt.changes, 2)
			require.NotNil(t, doc)
			assert.Equal(t, tt.want, doc.Content)
			assert.Equal(t, 2, doc.Version)
			assert.Same(t, doc, store.Get("file:///a.sql"))
		})
	}

	t.Run("unopened", func(t *testing.T) {
		store := NewDocumentStore()
		assert.Nil(t, store.Apply("file:///b.sql", []TextDocumentContentChangeEvent{{Text: "x"}}, 1))
	})
}

func TestComputeLineOffsets(t *testing.T) {
	tests := []struct {
		content  string
		expected []int
	}{
		{"", []int{0}},
		{"abc", []int{0}},
		{"a\nb", []int{0, 2}},
		{"a\nb\nc", []int{0, 2, 4}},
		{"\n\n\n", []int{0, 1, 2, 3}},
		{"line1\nline2\nline3", []int{0, 6, 12}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, computeLineOffsets(tt.content), "content %q", tt.content)
	}
}

func TestPositionOffsetConversion(t *testing.T) {
	// "é" is two bytes and one UTF-16 unit, "😀" four bytes and two units.
	content := "SELECT 'é'\nFROM t -- 😀 x\r\nWHERE"
	doc := newDocument("file:///a.sql", content, 1)

	tests := []struct {
		name   string
		pos    Position
		offset int
	}{
		{"start", Position{0, 0}, 0},
		{"before multibyte", Position{0, 8}, 8},
		{"after multibyte", Position{0, 9}, 10},
		{"line end", Position{0, 11}, 11},
		{"second line", Position{1, 5}, 17},
		{"after surrogate pair", Position{1, 12}, len("SELECT 'é'\nFROM t -- 😀")},
		{"past line end clamps before CRLF", Position{1, 99}, len("SELECT 'é'\nFROM t -- 😀 x")},
		{"third line", Position{2, 5}, len(content)},
		{"past last line", Position{9, 0}, len(content)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.offset, doc.PositionToOffset(tt.pos))
		})
	}

	roundTrip := []Position{{0, 0}, {0, 9}, {1, 0}, {1, 12}, {2, 3}}
	for _, pos := range roundTrip {
		assert.Equal(t, pos, doc.OffsetToPosition(doc.PositionToOffset(pos)))
	}

	assert.Equal(t, Position{0, 0}, doc.OffsetToPosition(-5))
	assert.Equal(t, Position{2, 5}, doc.OffsetToPosition(len(content)+10))
}

func TestURIConversion(t *testing.T) {
	assert.Equal(t, "/tmp/my queries/a.sql", URIToPath("file:///tmp/my%20queries/a.sql"))
	assert.Equal(t, "untitled:1", URIToPath("untitled:1"))
	assert.Equal(t, "file:///tmp/my%20queries/a.sql", PathToURI("/tmp/my queries/a.sql"))
	assert.Equal(t, "file:///x.sql", PathToURI("file:///x.sql"))
}
