package completion

import (
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

// Kind identifies the variant of a completion item.
type Kind int

// Item kinds.
const (
	KindUnknown Kind = iota
	KindJoinCondition
	KindSpecial
	KindColumn
	KindCompositeField
	KindSubqueryAlias
	KindNewTable
	KindUsedTable
	KindSchema
	KindCatalog
	KindProcedure
	KindBuiltin
	KindReserved
	KindObject
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindJoinCondition:  "join",
	KindSpecial:        "special",
	KindColumn:         "column",
	KindCompositeField: "field",
	KindSubqueryAlias:  "alias",
	KindNewTable:       "table",
	KindUsedTable:      "used-table",
	KindSchema:         "schema",
	KindCatalog:        "catalog",
	KindProcedure:      "procedure",
	KindBuiltin:        "function",
	KindReserved:       "keyword",
	KindObject:         "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// SortOrder is the rank of a kind among items of equal score; lower comes
// first.
func (k Kind) SortOrder() int {
	switch k {
	case KindJoinCondition, KindSpecial:
		return 0
	case KindColumn, KindCompositeField:
		return 1
	case KindSubqueryAlias, KindNewTable, KindUsedTable:
		return 2
	case KindSchema:
		return 3
	case KindCatalog:
		return 4
	case KindProcedure, KindBuiltin:
		return 5
	case KindReserved:
		return 6
	default:
		return 7
	}
}

// Item is one completion candidate. Its concrete type is one of the *Item
// structs of this package; use Accept to handle every variant.
type Item interface {
	Kind() Kind
	// Name is the text the filter is matched against and items are sorted by.
	Name() string
	Score() int
	Filter() WordEntry
	// Object returns the catalog object behind the item, or nil.
	Object() metadata.Object
	Accept(v ItemVisitor)

	base() *itemBase
	key() string
}

// ItemVisitor handles every item variant.
type ItemVisitor interface {
	VisitSubqueryAlias(*SubqueryAliasItem)
	VisitColumnName(*ColumnNameItem)
	VisitRealTable(*RealTableItem)
	VisitDbObject(*DbObjectItem)
	VisitCompositeField(*CompositeFieldItem)
	VisitJoinCondition(*JoinConditionItem)
	VisitReservedWord(*ReservedWordItem)
	VisitBuiltinFunction(*BuiltinFunctionItem)
	VisitSpecialText(*SpecialTextItem)
}

type itemBase struct {
	score  int
	filter WordEntry
}

func (b *itemBase) Score() int        { return b.score }
func (b *itemBase) Filter() WordEntry { return b.filter }
func (b *itemBase) base() *itemBase   { return b }

// SubqueryAliasItem is a row source named by an alias, a CTE or a derived
// table.
type SubqueryAliasItem struct {
	itemBase
	Alias  string
	Source *semantic.SourceResolutionResult // nil for a CTE not yet in FROM
	CTE    *semantic.CTEDefinition
}

func (i *SubqueryAliasItem) Kind() Kind              { return KindSubqueryAlias }
func (i *SubqueryAliasItem) Name() string            { return i.Alias }
func (i *SubqueryAliasItem) Accept(v ItemVisitor)    { v.VisitSubqueryAlias(i) }
func (i *SubqueryAliasItem) key() string             { return "alias:" + dialect.Fold(i.Alias) }
func (i *SubqueryAliasItem) Object() metadata.Object { return sourceTable(i.Source) }

// ColumnNameItem is a column of a row shape. Qualifier holds the name
// segments rendered in front of the column, if any.
type ColumnNameItem struct {
	itemBase
	Column    *semantic.ResultColumn
	Qualifier []string
}

func (i *ColumnNameItem) Kind() Kind           { return KindColumn }
func (i *ColumnNameItem) Name() string         { return i.Column.Name }
func (i *ColumnNameItem) Accept(v ItemVisitor) { v.VisitColumnName(i) }

// Qualified reports whether the column renders with its source qualifier.
func (i *ColumnNameItem) Qualified() bool { return len(i.Qualifier) > 0 }

func (i *ColumnNameItem) key() string {
	return "column:" + dialect.Fold(strings.Join(append(append([]string(nil), i.Qualifier...), i.Column.Name), "."))
}

func (i *ColumnNameItem) Object() metadata.Object {
	if i.Column.Attribute == nil {
		return nil
	}
	return i.Column.Attribute
}

// RealTableItem is a catalog table or view. Used marks tables already
// named in the FROM clause.
type RealTableItem struct {
	itemBase
	Table     metadata.Table
	Used      bool
	Qualifier []string
}

func (i *RealTableItem) Name() string            { return i.Table.Name() }
func (i *RealTableItem) Accept(v ItemVisitor)    { v.VisitRealTable(i) }
func (i *RealTableItem) Object() metadata.Object { return i.Table }

func (i *RealTableItem) Kind() Kind {
	if i.Used {
		return KindUsedTable
	}
	return KindNewTable
}

func (i *RealTableItem) key() string {
	return "table:" + strings.Join(metadata.QualifiedName(i.Table), ".")
}

// DbObjectItem is any other catalog object: a catalog, a schema or a
// procedure.
type DbObjectItem struct {
	itemBase
	Target metadata.Object
}

func (i *DbObjectItem) Name() string            { return i.Target.Name() }
func (i *DbObjectItem) Accept(v ItemVisitor)    { v.VisitDbObject(i) }
func (i *DbObjectItem) Object() metadata.Object { return i.Target }

func (i *DbObjectItem) Kind() Kind {
	switch i.Target.Kind() {
	case metadata.KindCatalog:
		return KindCatalog
	case metadata.KindSchema:
		return KindSchema
	case metadata.KindProcedure:
		return KindProcedure
	case metadata.KindTable, metadata.KindView:
		return KindNewTable
	}
	return KindObject
}

func (i *DbObjectItem) key() string {
	return i.Target.Kind().String() + ":" + strings.Join(metadata.QualifiedName(i.Target), ".")
}

// CompositeFieldItem is a member of a composite type.
type CompositeFieldItem struct {
	itemBase
	Field metadata.Field
	Owner metadata.DataType
}

func (i *CompositeFieldItem) Kind() Kind              { return KindCompositeField }
func (i *CompositeFieldItem) Name() string            { return i.Field.Name }
func (i *CompositeFieldItem) Accept(v ItemVisitor)    { v.VisitCompositeField(i) }
func (i *CompositeFieldItem) Object() metadata.Object { return nil }
func (i *CompositeFieldItem) key() string             { return "field:" + dialect.Fold(i.Field.Name) }

// JoinConditionItem pairs two columns linked by a single-column foreign key.
type JoinConditionItem struct {
	itemBase
	Left, Right *ColumnNameItem
}

func (i *JoinConditionItem) Kind() Kind              { return KindJoinCondition }
func (i *JoinConditionItem) Accept(v ItemVisitor)    { v.VisitJoinCondition(i) }
func (i *JoinConditionItem) Object() metadata.Object { return i.Left.Object() }
func (i *JoinConditionItem) key() string             { return "join:" + i.Left.key() + "=" + i.Right.key() }

func (i *JoinConditionItem) Name() string {
	return columnText(i.Left) + " = " + columnText(i.Right)
}

// ReservedWordItem is a keyword of the dialect.
type ReservedWordItem struct {
	itemBase
	Word string
}

func (i *ReservedWordItem) Kind() Kind              { return KindReserved }
func (i *ReservedWordItem) Name() string            { return i.Word }
func (i *ReservedWordItem) Accept(v ItemVisitor)    { v.VisitReservedWord(i) }
func (i *ReservedWordItem) Object() metadata.Object { return nil }
func (i *ReservedWordItem) key() string             { return "keyword:" + strings.ToUpper(i.Word) }

// BuiltinFunctionItem is a builtin function of the dialect.
type BuiltinFunctionItem struct {
	itemBase
	Function dialect.Function
}

func (i *BuiltinFunctionItem) Kind() Kind              { return KindBuiltin }
func (i *BuiltinFunctionItem) Name() string            { return i.Function.Name }
func (i *BuiltinFunctionItem) Accept(v ItemVisitor)    { v.VisitBuiltinFunction(i) }
func (i *BuiltinFunctionItem) Object() metadata.Object { return nil }
func (i *BuiltinFunctionItem) key() string             { return "function:" + dialect.Fold(i.Function.Name) }

// SpecialTextItem is synthetic text such as the expansion of "t.*".
type SpecialTextItem struct {
	itemBase
	Text        string // the generated text, e.g. "x, y"
	Replacement string // what replaces the range of the set
	Description string
}

func (i *SpecialTextItem) Kind() Kind              { return KindSpecial }
func (i *SpecialTextItem) Name() string            { return i.Text }
func (i *SpecialTextItem) Accept(v ItemVisitor)    { v.VisitSpecialText(i) }
func (i *SpecialTextItem) Object() metadata.Object { return nil }
func (i *SpecialTextItem) key() string             { return "special:" + i.Replacement }

// matchNames returns the names the typed text of an item is matched
// against when the item is validated.
func matchNames(item Item) []string {
	if j, ok := item.(*JoinConditionItem); ok {
		return []string{j.Left.Name(), j.Right.Name()}
	}
	return []string{item.Name()}
}

// columnText is the unquoted dotted text of a column item.
func columnText(c *ColumnNameItem) string {
	if !c.Qualified() {
		return c.Column.Name
	}
	return strings.Join(c.Qualifier, ".") + "." + c.Column.Name
}

func sourceTable(src *semantic.SourceResolutionResult) metadata.Object {
	if src == nil || src.Table == nil {
		return nil
	}
	return src.Table
}
