package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

// symbolAt analyzes the statement under the position and returns the
// symbol whose name covers it.
func (s *Server) symbolAt(ctx context.Context, uri string, pos Position) (*Document, *semantic.Symbol) {
	doc, _, sym, _ := s.lookup(ctx, uri, pos, false)
	return doc, sym
}

// lookup analyzes the statement under the position. With types set the
// second pass runs as well.
func (s *Server) lookup(ctx context.Context, uri string, pos Position, types bool) (*Document, int, *semantic.Symbol, *semantic.TypeInfo) {
	doc, parsed := s.parsed(uri)
	if doc == nil {
		return nil, 0, nil, nil
	}
	offset := doc.PositionToOffset(pos)

	item := parsed.Script.ItemAt(offset)
	if item == nil {
		return doc, offset, nil, nil
	}
	var (
		model *semantic.Model
		ti    *semantic.TypeInfo
	)
	if types {
		model, ti = s.provider.AnalyzeTypes(ctx, item)
	} else {
		model = s.provider.Analyze(ctx, item)
	}
	if model == nil {
		return doc, offset, nil, nil
	}
	var sym *semantic.Symbol
	if lexical := model.LexicalItemAt(offset); lexical != nil {
		sym = lexical.SymbolAt(offset)
	}
	return doc, offset, sym, ti
}

// getHover describes the symbol under the cursor, or else the type of the
// innermost expression there.
func (s *Server) getHover(ctx context.Context, params HoverParams) *Hover {
	doc, offset, sym, ti := s.lookup(ctx, params.TextDocument.URI, params.Position, true)
	if sym != nil {
		span := sym.Span()
		r := doc.Range(span.Start.Offset, span.End.Offset)
		return &Hover{
			Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: describeSymbol(sym, ti)},
			Range:    &r,
		}
	}
	if ti == nil {
		return nil
	}
	expr, typ := ti.ExprAt(offset)
	if expr == nil {
		return nil
	}
	span := expr.Span()
	r := doc.Range(span.Start.Offset, span.End.Offset)
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: fmt.Sprintf("expression of type `%s`", typ.Name)},
		Range:    &r,
	}
}

func describeSymbol(sym *semantic.Symbol, ti *semantic.TypeInfo) string {
	class := sym.Classification()
	if ti != nil {
		class = ti.ClassificationOf(sym.Name())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)", sym.Text(), class)

	switch d := sym.Definition().(type) {
	case *semantic.BySymbol:
		fmt.Fprintf(&b, "\n\nrefers to `%s`", d.Symbol.Text())
	case *semantic.Unresolved:
		if class != semantic.ClassColumnDerived {
			b.WriteString("\n\nnot resolved")
		}
	}

	obj := sym.Object()
	if obj == nil {
		if ti != nil {
			if col := ti.ColumnOf(sym); col != nil && col.Type.Name != "" {
				fmt.Fprintf(&b, "\n\ntype `%s`", col.Type.Name)
			}
		}
		return b.String()
	}
	fmt.Fprintf(&b, "\n\n`%s`", strings.Join(metadata.QualifiedName(obj), "."))
	if attr, ok := obj.(metadata.Attribute); ok && attr.DataType().Name != "" {
		fmt.Fprintf(&b, " %s", attr.DataType().Name)
	}
	if proc, ok := obj.(metadata.Procedure); ok && proc.Signature() != "" {
		fmt.Fprintf(&b, "\n\n```sql\n%s\n```", proc.Signature())
	}
	if desc := obj.Description(); desc != "" {
		b.WriteString("\n\n" + desc)
	}
	return b.String()
}

// getDefinition returns where an alias, CTE or derived column under the
// cursor is declared in the same document.
func (s *Server) getDefinition(ctx context.Context, params DefinitionParams) *Location {
	doc, sym := s.symbolAt(ctx, params.TextDocument.URI, params.Position)
	if sym == nil {
		return nil
	}
	def, ok := sym.Definition().(*semantic.BySymbol)
	if !ok || def.Symbol == nil || def.Symbol == sym {
		return nil
	}
	span := def.Symbol.Span()
	return &Location{
		URI:   params.TextDocument.URI,
		Range: doc.Range(span.Start.Offset, span.End.Offset),
	}
}
