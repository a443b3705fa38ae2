// Package semantic resolves the names of a parsed query against its scopes
// and the metadata catalog.
//
// Analysis runs in two passes. Analyze propagates data contexts top-down,
// classifies every name and records diagnostics. Model.ResolveTypes replays
// the same name resolution over the finished row shapes to compute the
// value type of every expression.
package semantic

import (
	"fmt"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Classification tells what a name turned out to be.
type Classification int

// Classifications.
const (
	ClassUnknown Classification = iota
	ClassError
	ClassReserved
	ClassString
	ClassColumnDerived
	ClassColumnReal
	ClassPseudoColumn
	ClassCompositeField
	ClassTable
	ClassView
	ClassTableAlias
	ClassCTE
	ClassSchema
	ClassCatalog
	ClassFunction
	ClassProcedure
	ClassTuple
)

var classificationNames = [...]string{
	ClassUnknown:        "unknown",
	ClassError:          "error",
	ClassReserved:       "reserved",
	ClassString:         "string",
	ClassColumnDerived:  "column-derived",
	ClassColumnReal:     "column",
	ClassPseudoColumn:   "pseudo-column",
	ClassCompositeField: "field",
	ClassTable:          "table",
	ClassView:           "view",
	ClassTableAlias:     "alias",
	ClassCTE:            "cte",
	ClassSchema:         "schema",
	ClassCatalog:        "catalog",
	ClassFunction:       "function",
	ClassProcedure:      "procedure",
	ClassTuple:          "tuple",
}

func (c Classification) String() string {
	if int(c) < len(classificationNames) {
		return classificationNames[c]
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

// classOfObject maps a catalog object kind to a classification.
func classOfObject(o metadata.Object) Classification {
	switch o.Kind() {
	case metadata.KindCatalog:
		return ClassCatalog
	case metadata.KindSchema:
		return ClassSchema
	case metadata.KindTable:
		return ClassTable
	case metadata.KindView:
		return ClassView
	case metadata.KindColumn:
		return ClassColumnReal
	case metadata.KindProcedure:
		return ClassProcedure
	default:
		return ClassUnknown
	}
}

// Definition is what a symbol resolves to. It is one of *ByDbObject,
// *BySymbol, *ByPseudoColumn or *Unresolved.
type Definition interface {
	isDefinition()
}

// ByDbObject points at a catalog object.
type ByDbObject struct {
	Object metadata.Object
}

// BySymbol points at another symbol, e.g. an alias at its declaration.
type BySymbol struct {
	Symbol *Symbol
}

// ByPseudoColumn points at a dialect pseudo-column.
type ByPseudoColumn struct {
	Column dialect.PseudoColumn
}

// Unresolved is the definition of a name nothing was found for.
type Unresolved struct{}

func (*ByDbObject) isDefinition()     {}
func (*BySymbol) isDefinition()       {}
func (*ByPseudoColumn) isDefinition() {}
func (*Unresolved) isDefinition()     {}

// Symbol is one classified name occurrence. Symbols are immutable; they are
// assembled with a SymbolBuilder.
type Symbol struct {
	name           *parser.Name
	classification Classification
	definition     Definition
	origin         Origin
}

// Name returns the syntax node the symbol was created for.
func (s *Symbol) Name() *parser.Name { return s.name }

// Text returns the unquoted name.
func (s *Symbol) Text() string { return s.name.Value }

// Span returns the source range of the name.
func (s *Symbol) Span() token.Span { return s.name.Pos }

// Classification returns what the name was classified as.
func (s *Symbol) Classification() Classification { return s.classification }

// Definition returns what the name resolves to, never nil.
func (s *Symbol) Definition() Definition { return s.definition }

// Origin returns how completion candidates are gathered at the name, or nil.
func (s *Symbol) Origin() Origin { return s.origin }

// Object returns the catalog object the symbol is defined by, following
// alias chains.
func (s *Symbol) Object() metadata.Object {
	seen := 0
	for cur := s; cur != nil && seen < 16; seen++ {
		switch d := cur.definition.(type) {
		case *ByDbObject:
			return d.Object
		case *BySymbol:
			cur = d.Symbol
		default:
			return nil
		}
	}
	return nil
}

func (s *Symbol) String() string {
	return fmt.Sprintf("%s(%s)", s.name.Value, s.classification)
}

// SymbolBuilder collects the once-settable parts of a symbol. Setting a
// part twice panics.
type SymbolBuilder struct {
	name           *parser.Name
	classification *Classification
	definition     Definition
	origin         Origin
	built          *Symbol
}

// NewSymbolBuilder starts a symbol for name.
func NewSymbolBuilder(name *parser.Name) *SymbolBuilder {
	if name == nil {
		panic("semantic: symbol builder for nil name")
	}
	return &SymbolBuilder{name: name}
}

// Classify sets the classification.
func (b *SymbolBuilder) Classify(c Classification) *SymbolBuilder {
	b.checkOpen()
	if b.classification != nil {
		panic(fmt.Sprintf("semantic: %q classified twice (%s, then %s)", b.name.Value, *b.classification, c))
	}
	b.classification = &c
	return b
}

// Define sets the definition.
func (b *SymbolBuilder) Define(d Definition) *SymbolBuilder {
	b.checkOpen()
	if d == nil {
		panic(fmt.Sprintf("semantic: nil definition for %q", b.name.Value))
	}
	if b.definition != nil {
		panic(fmt.Sprintf("semantic: %q defined twice", b.name.Value))
	}
	b.definition = d
	return b
}

// SetOrigin sets the completion origin.
func (b *SymbolBuilder) SetOrigin(o Origin) *SymbolBuilder {
	b.checkOpen()
	if o == nil {
		return b
	}
	if b.origin != nil {
		panic(fmt.Sprintf("semantic: origin of %q set twice", b.name.Value))
	}
	b.origin = o
	return b
}

// Classified reports whether Classify was called.
func (b *SymbolBuilder) Classified() bool { return b.classification != nil }

// Build finalizes the symbol. Unset parts default to ClassUnknown, an
// Unresolved definition and no origin. Later calls return the same symbol.
func (b *SymbolBuilder) Build() *Symbol {
	if b.built != nil {
		return b.built
	}
	s := &Symbol{name: b.name, classification: ClassUnknown, definition: &Unresolved{}, origin: b.origin}
	if b.classification != nil {
		s.classification = *b.classification
	}
	if b.definition != nil {
		s.definition = b.definition
	}
	b.built = s
	return s
}

func (b *SymbolBuilder) checkOpen() {
	if b.built != nil {
		panic(fmt.Sprintf("semantic: symbol %q modified after Build", b.name.Value))
	}
}
