package lsp

import (
	"context"
	"slices"

	"github.com/leapstack-labs/sqlassist/pkg/completion"
)

// getCodeActions offers to expand a "t.*" or "*" under the start of the
// requested range into the column list it stands for.
func (s *Server) getCodeActions(ctx context.Context, params CodeActionParams) []CodeAction {
	if len(params.Context.Only) > 0 &&
		!slices.Contains(params.Context.Only, CodeActionKindRefactorInline) &&
		!slices.Contains(params.Context.Only, CodeActionKindRefactor) {
		return nil
	}

	doc, parsed := s.parsed(params.TextDocument.URI)
	if doc == nil {
		return nil
	}
	cursor, ok := starEnd(doc.Content, doc.PositionToOffset(params.Range.Start))
	if !ok {
		return nil
	}

	var actions []CodeAction
	for _, set := range s.provider.Complete(ctx, parsed.Script, cursor) {
		for _, p := range completion.Materialize(set, s.provider.Dialect()) {
			if p.Kind != completion.KindSpecial {
				continue
			}
			actions = append(actions, CodeAction{
				Title:       "Expand to " + p.DisplayText,
				Kind:        CodeActionKindRefactorInline,
				IsPreferred: true,
				Edit: &WorkspaceEdit{
					Changes: map[string][]TextEdit{
						params.TextDocument.URI: {{
							Range:   doc.Range(set.Offset, set.Offset+set.Length),
							NewText: p.ReplacementText,
						}},
					},
				},
			})
		}
	}
	return actions
}

// starEnd returns the offset just after a '*' at or right before offset.
func starEnd(content string, offset int) (int, bool) {
	switch {
	case offset < len(content) && content[offset] == '*':
		return offset + 1, true
	case offset > 0 && offset <= len(content) && content[offset-1] == '*':
		return offset, true
	}
	return 0, false
}
