package lsp

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/sqlassist/pkg/completion"
)

// getCompletions returns the completion items at the requested position.
// Every set becomes items whose text edit replaces the set's range.
func (s *Server) getCompletions(ctx context.Context, params CompletionParams) []CompletionItem {
	doc, parsed := s.parsed(params.TextDocument.URI)
	if doc == nil {
		return []CompletionItem{}
	}
	offset := doc.PositionToOffset(params.Position)

	sets := s.provider.Complete(ctx, parsed.Script, offset)
	items := []CompletionItem{}
	for _, set := range sets {
		editRange := doc.Range(set.Offset, set.Offset+set.Length)
		for _, p := range completion.Materialize(set, s.provider.Dialect()) {
			items = append(items, CompletionItem{
				Label:      p.DisplayText,
				Kind:       completionKind(p.Kind),
				Detail:     p.Description,
				SortText:   fmt.Sprintf("%05d", len(items)),
				FilterText: doc.Content[set.Offset:set.Offset+set.Length] + filterSuffix(p),
				TextEdit:   &TextEdit{Range: editRange, NewText: p.ReplacementText},
			})
		}
	}
	return items
}

// filterSuffix keeps clients from filtering out items whose text does not
// start with what was typed, such as fuzzy and inside-word matches.
func filterSuffix(p completion.Proposal) string {
	if p.Kind == completion.KindSpecial {
		return ""
	}
	return p.ReplacementText
}

// completionKind maps an item kind to the closest LSP kind.
func completionKind(k completion.Kind) CompletionItemKind {
	switch k {
	case completion.KindColumn:
		return CompletionItemKindField
	case completion.KindCompositeField:
		return CompletionItemKindProperty
	case completion.KindSubqueryAlias:
		return CompletionItemKindVariable
	case completion.KindNewTable, completion.KindUsedTable:
		return CompletionItemKindClass
	case completion.KindSchema:
		return CompletionItemKindModule
	case completion.KindCatalog:
		return CompletionItemKindFolder
	case completion.KindProcedure, completion.KindBuiltin:
		return CompletionItemKindFunction
	case completion.KindReserved:
		return CompletionItemKindKeyword
	case completion.KindJoinCondition:
		return CompletionItemKindReference
	case completion.KindSpecial:
		return CompletionItemKindSnippet
	default:
		return CompletionItemKindText
	}
}
