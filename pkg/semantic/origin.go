package semantic

import (
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
)

// Origin records how completion candidates are gathered at a name.
// Consumers dispatch on it with an OriginVisitor, which has to handle
// every variant.
type Origin interface {
	Accept(v OriginVisitor)
}

// OriginVisitor handles each Origin variant.
type OriginVisitor interface {
	VisitValueRef(o *ValueRefFromContext)
	VisitColumnRefFromSource(o *ColumnRefFromReferencedContext)
	VisitColumnName(o *ColumnNameFromContext)
	VisitRowsSourceRef(o *RowsSourceRef)
	VisitRowsDataRef(o *RowsDataRef)
	VisitMemberOfType(o *MemberOfType)
	VisitDbObjectFromDbObject(o *DbObjectFromDbObject)
	VisitDbObjectFromContext(o *DbObjectFromContext)
	VisitExpandableTupleRef(o *ExpandableTupleRef)
}

// ValueRefFromContext is a plain unqualified name in a value position.
type ValueRefFromContext struct {
	Context *QueryDataContext
}

// ColumnRefFromReferencedContext is the column part of "source.column".
type ColumnRefFromReferencedContext struct {
	Context *QueryDataContext
	Source  *SourceResolutionResult
}

// ColumnNameFromContext is a bare column name, e.g. inside USING (...).
type ColumnNameFromContext struct {
	Context *QueryDataContext
}

// RowsSourceRef is a name that refers to a row source: the qualifier of a
// column reference.
type RowsSourceRef struct {
	Context *QueryDataContext
}

// RowsDataRef is a name resolved against a finished row shape, e.g. the
// ORDER BY of a set operation.
type RowsDataRef struct {
	Data *RowsDataContext
}

// MemberOfType is a field access on a composite value.
type MemberOfType struct {
	Type metadata.DataType
}

// DbObjectFromDbObject is a child of a known catalog object: "schema.table".
type DbObjectFromDbObject struct {
	Object metadata.Object
	Kinds  []metadata.Kind // expected child kinds; empty means any
}

// DbObjectFromContext is a catalog object looked up in the default
// containers, e.g. a table name in FROM. Context supplies visible CTEs.
type DbObjectFromContext struct {
	Context *QueryDataContext
	Kinds   []metadata.Kind
}

// ExpandableTupleRef is a "t.*" placeholder that can be expanded into the
// column list of Source.
type ExpandableTupleRef struct {
	Tuple  *parser.TupleRef
	Source *SourceResolutionResult
}

// Accept implements Origin.
func (o *ValueRefFromContext) Accept(v OriginVisitor) { v.VisitValueRef(o) }

// Accept implements Origin.
func (o *ColumnRefFromReferencedContext) Accept(v OriginVisitor) { v.VisitColumnRefFromSource(o) }

// Accept implements Origin.
func (o *ColumnNameFromContext) Accept(v OriginVisitor) { v.VisitColumnName(o) }

// Accept implements Origin.
func (o *RowsSourceRef) Accept(v OriginVisitor) { v.VisitRowsSourceRef(o) }

// Accept implements Origin.
func (o *RowsDataRef) Accept(v OriginVisitor) { v.VisitRowsDataRef(o) }

// Accept implements Origin.
func (o *MemberOfType) Accept(v OriginVisitor) { v.VisitMemberOfType(o) }

// Accept implements Origin.
func (o *DbObjectFromDbObject) Accept(v OriginVisitor) { v.VisitDbObjectFromDbObject(o) }

// Accept implements Origin.
func (o *DbObjectFromContext) Accept(v OriginVisitor) { v.VisitDbObjectFromContext(o) }

// Accept implements Origin.
func (o *ExpandableTupleRef) Accept(v OriginVisitor) { v.VisitExpandableTupleRef(o) }

// OriginName returns a short label for an origin, for logs and CLI output.
func OriginName(o Origin) string {
	switch o.(type) {
	case nil:
		return ""
	case *ValueRefFromContext:
		return "value-ref"
	case *ColumnRefFromReferencedContext:
		return "column-ref-from-source"
	case *ColumnNameFromContext:
		return "column-name"
	case *RowsSourceRef:
		return "rows-source-ref"
	case *RowsDataRef:
		return "rows-data-ref"
	case *MemberOfType:
		return "member-of-type"
	case *DbObjectFromDbObject:
		return "object-from-object"
	case *DbObjectFromContext:
		return "object-from-context"
	case *ExpandableTupleRef:
		return "expandable-tuple"
	default:
		return "unknown"
	}
}

var (
	tableKinds     = []metadata.Kind{metadata.KindTable, metadata.KindView}
	containerKinds = []metadata.Kind{metadata.KindSchema, metadata.KindCatalog}
)
