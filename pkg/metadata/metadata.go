// Package metadata defines the read-only database catalog consumed by the
// completion engine, plus in-memory, yaml backed and caching providers.
//
// A provider is a tree of Objects rooted at a Container. Every call that may
// reach a database takes a context and returns early with ErrCancelled once
// the context is done.
package metadata

import (
	"context"
	"strings"
)

// Kind classifies catalog objects.
type Kind int

// Object kinds.
const (
	KindRoot Kind = iota
	KindCatalog
	KindSchema
	KindTable
	KindView
	KindColumn
	KindProcedure

	// KindUnknown is an expected kind that could not be narrowed down.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCatalog:
		return "catalog"
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindColumn:
		return "column"
	case KindProcedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// Object is any named catalog object.
type Object interface {
	Name() string
	Kind() Kind
	Parent() Object // nil for the root
	Description() string
}

// Container is an object with children: the root, catalogs and schemas.
type Container interface {
	Object
	Children(ctx context.Context) ([]Object, error)
	// Child returns an *ObjectNotFoundError when no child is called name.
	Child(ctx context.Context, name string) (Object, error)
}

// Table is a table or view.
type Table interface {
	Object
	Attributes(ctx context.Context) ([]Attribute, error)
	ForeignKeys(ctx context.Context) ([]*ForeignKey, error)
}

// Attribute is a table column.
type Attribute interface {
	Object
	Table() Table
	DataType() DataType
	Ordinal() int // 1-based
}

// Procedure is a stored procedure or user defined function.
type Procedure interface {
	Object
	Signature() string
}

// DataType describes a column type. Composite types list their fields.
type DataType struct {
	Name   string
	Fields []Field
}

// Field is one member of a composite type.
type Field struct {
	Name string
	Type DataType
}

// IsComposite returns true if the type has named members.
func (t DataType) IsComposite() bool {
	return len(t.Fields) > 0
}

// Field looks up a member by name, exact match first, then ignoring case.
func (t DataType) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// ForeignKey is a reference from columns of Table to columns of
// ReferencedTable. Columns and ReferencedColumns are aligned by position.
type ForeignKey struct {
	Name              string
	Table             Table
	Columns           []Attribute
	ReferencedTable   Table
	ReferencedColumns []Attribute
}

// SingleColumnReference returns the column pair of a one-column key.
// Compound keys report ok == false.
func (fk *ForeignKey) SingleColumnReference() (column, referenced Attribute, ok bool) {
	if len(fk.Columns) != 1 || len(fk.ReferencedColumns) != 1 {
		return nil, nil, false
	}
	return fk.Columns[0], fk.ReferencedColumns[0], true
}

// ExecutionContext holds the containers unqualified names are looked up in.
type ExecutionContext struct {
	Root           Container
	DefaultCatalog Container
	DefaultSchema  Container
}

// Exposed returns the default containers in lookup order: schema, catalog,
// then root. Missing levels are skipped.
func (e *ExecutionContext) Exposed() []Container {
	if e == nil {
		return nil
	}
	var out []Container
	for _, c := range []Container{e.DefaultSchema, e.DefaultCatalog, e.Root} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// NewExecutionContext resolves the default catalog and schema by name.
// An empty catalog name picks the only catalog of root, if there is exactly
// one. An empty schema name leaves the default schema unset.
func NewExecutionContext(ctx context.Context, root Container, catalog, schema string) (*ExecutionContext, error) {
	ec := &ExecutionContext{Root: root}
	if root == nil {
		return ec, nil
	}

	if catalog != "" {
		obj, err := root.Child(ctx, catalog)
		if err != nil {
			return nil, err
		}
		c, ok := obj.(Container)
		if !ok {
			return nil, &ObjectNotFoundError{Parent: QualifiedName(root), Name: catalog}
		}
		ec.DefaultCatalog = c
	} else {
		children, err := root.Children(ctx)
		if err != nil {
			return nil, err
		}
		var catalogs []Container
		for _, child := range children {
			if c, ok := child.(Container); ok && child.Kind() == KindCatalog {
				catalogs = append(catalogs, c)
			}
		}
		if len(catalogs) == 1 {
			ec.DefaultCatalog = catalogs[0]
		}
	}

	if schema != "" {
		parent := root
		if ec.DefaultCatalog != nil {
			parent = ec.DefaultCatalog
		}
		obj, err := parent.Child(ctx, schema)
		if err != nil {
			return nil, err
		}
		c, ok := obj.(Container)
		if !ok {
			return nil, &ObjectNotFoundError{Parent: QualifiedName(parent), Name: schema}
		}
		ec.DefaultSchema = c
	}
	return ec, nil
}

// QualifiedName returns the names from the top-most catalog object down to o.
// The root has an empty qualified name.
func QualifiedName(o Object) []string {
	var names []string
	for cur := o; cur != nil && cur.Kind() != KindRoot; cur = cur.Parent() {
		names = append(names, cur.Name())
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// SameObject reports whether a and b denote the same catalog object.
// Providers may hand out different values for one object, so identity is
// decided by kind and qualified name.
func SameObject(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	qa, qb := QualifiedName(a), QualifiedName(b)
	if len(qa) != len(qb) {
		return false
	}
	for i := range qa {
		if qa[i] != qb[i] {
			return false
		}
	}
	return true
}
