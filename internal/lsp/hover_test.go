package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHover(t *testing.T) {
	text := "SELECT o.id AS oid FROM orders o"
	s := run(t, shopProvider(t),
		didOpen(text),
		position("textDocument/hover", 1, 0, 9),
		position("textDocument/hover", 2, 0, 7),
		position("textDocument/hover", 3, 0, 2),
	)

	column := decodeResult[*Hover](t, s.response(t, 1))
	require.NotNil(t, column)
	assert.Equal(t, MarkupKindMarkdown, column.Contents.Kind)
	assert.Contains(t, column.Contents.Value, "**id** (column)")
	assert.Contains(t, column.Contents.Value, "`shop.public.orders.id` integer")
	require.NotNil(t, column.Range)
	assert.Equal(t, Range{Start: Position{0, 9}, End: Position{0, 11}}, *column.Range)

	alias := decodeResult[*Hover](t, s.response(t, 2))
	require.NotNil(t, alias)
	assert.Contains(t, alias.Contents.Value, "refers to `o`")
	assert.Contains(t, alias.Contents.Value, "`shop.public.orders`")

	keyword := decodeResult[*Hover](t, s.response(t, 3))
	assert.Nil(t, keyword)
}

func TestHoverInferredTypes(t *testing.T) {
	text := "SELECT total * 2 AS doubled, CAST(id AS text) FROM orders"
	s := run(t, shopProvider(t),
		didOpen(text),
		position("textDocument/hover", 1, 0, 20),
		position("textDocument/hover", 2, 0, 13),
		position("textDocument/hover", 3, 0, 29),
	)

	alias := decodeResult[*Hover](t, s.response(t, 1))
	require.NotNil(t, alias)
	assert.Contains(t, alias.Contents.Value, "**doubled** (column-derived)")
	assert.Contains(t, alias.Contents.Value, "type `numeric`")
	assert.NotContains(t, alias.Contents.Value, "not resolved")

	product := decodeResult[*Hover](t, s.response(t, 2))
	require.NotNil(t, product)
	assert.Equal(t, "expression of type `numeric`", product.Contents.Value)
	require.NotNil(t, product.Range)
	assert.Equal(t, Position{0, 7}, product.Range.Start)

	cast := decodeResult[*Hover](t, s.response(t, 3))
	require.NotNil(t, cast)
	assert.Equal(t, "expression of type `text`", cast.Contents.Value)
}

func TestDefinition(t *testing.T) {
	text := "SELECT o.id AS oid FROM orders o"
	s := run(t, shopProvider(t),
		didOpen(text),
		position("textDocument/definition", 1, 0, 7),
		position("textDocument/definition", 2, 0, 9),
	)

	loc := decodeResult[*Location](t, s.response(t, 1))
	require.NotNil(t, loc)
	assert.Equal(t, testURI, loc.URI)
	assert.Equal(t, Range{Start: Position{0, 31}, End: Position{0, 32}}, loc.Range)

	assert.Nil(t, decodeResult[*Location](t, s.response(t, 2)), "catalog columns have no location")
}
