package metadata

import (
	"context"
	"slices"
	"strings"
)

// MemoryContainer is an in-memory root, catalog or schema. Children are
// created on first use through the builder methods and kept in insertion
// order.
type MemoryContainer struct {
	name        string
	kind        Kind
	description string
	parent      *MemoryContainer
	children    []Object
	types       map[string]DataType
}

// NewMemory creates an empty in-memory catalog root.
func NewMemory() *MemoryContainer {
	return &MemoryContainer{kind: KindRoot}
}

// Name implements Object.
func (c *MemoryContainer) Name() string { return c.name }

// Kind implements Object.
func (c *MemoryContainer) Kind() Kind { return c.kind }

// Description implements Object.
func (c *MemoryContainer) Description() string { return c.description }

// Parent implements Object.
func (c *MemoryContainer) Parent() Object {
	if c.parent == nil {
		return nil
	}
	return c.parent
}

// Children implements Container.
func (c *MemoryContainer) Children(ctx context.Context) ([]Object, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(c.children), nil
}

// Child implements Container.
func (c *MemoryContainer) Child(ctx context.Context, name string) (Object, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	return ChildByName(c, c.children, name)
}

// Describe sets the description.
func (c *MemoryContainer) Describe(description string) *MemoryContainer {
	c.description = description
	return c
}

// Catalog returns the child catalog called name, creating it if needed.
func (c *MemoryContainer) Catalog(name string) *MemoryContainer {
	return c.container(name, KindCatalog)
}

// Schema returns the child schema called name, creating it if needed.
func (c *MemoryContainer) Schema(name string) *MemoryContainer {
	return c.container(name, KindSchema)
}

func (c *MemoryContainer) container(name string, kind Kind) *MemoryContainer {
	for _, child := range c.children {
		if mc, ok := child.(*MemoryContainer); ok && mc.name == name && mc.kind == kind {
			return mc
		}
	}
	mc := &MemoryContainer{name: name, kind: kind, parent: c}
	c.children = append(c.children, mc)
	return mc
}

// Table returns the child table called name, creating it if needed.
func (c *MemoryContainer) Table(name string) *MemoryTable {
	return c.table(name, KindTable)
}

// View returns the child view called name, creating it if needed.
func (c *MemoryContainer) View(name string) *MemoryTable {
	return c.table(name, KindView)
}

func (c *MemoryContainer) table(name string, kind Kind) *MemoryTable {
	for _, child := range c.children {
		if t, ok := child.(*MemoryTable); ok && t.name == name {
			return t
		}
	}
	t := &MemoryTable{name: name, kind: kind, parent: c}
	c.children = append(c.children, t)
	return t
}

// Procedure adds a procedure.
func (c *MemoryContainer) Procedure(name, signature string) *MemoryProcedure {
	p := &MemoryProcedure{name: name, signature: signature, parent: c}
	c.children = append(c.children, p)
	return p
}

// DefineType registers a composite type. Columns declared with this type
// name in this container or below expose its fields.
func (c *MemoryContainer) DefineType(name string, fields ...Field) *MemoryContainer {
	if c.types == nil {
		c.types = make(map[string]DataType)
	}
	c.types[strings.ToLower(name)] = DataType{Name: name, Fields: fields}
	return c
}

func (c *MemoryContainer) lookupType(name string) (DataType, bool) {
	key := strings.ToLower(name)
	for cur := c; cur != nil; cur = cur.parent {
		if t, ok := cur.types[key]; ok {
			return t, true
		}
	}
	return DataType{}, false
}

// MemoryTable is an in-memory table or view.
type MemoryTable struct {
	name        string
	kind        Kind
	description string
	parent      *MemoryContainer
	columns     []*MemoryAttribute
	keys        []foreignKeySpec
}

type foreignKeySpec struct {
	name       string
	columns    []string
	refTable   []string
	refColumns []string
}

// Name implements Object.
func (t *MemoryTable) Name() string { return t.name }

// Kind implements Object.
func (t *MemoryTable) Kind() Kind { return t.kind }

// Description implements Object.
func (t *MemoryTable) Description() string { return t.description }

// Parent implements Object.
func (t *MemoryTable) Parent() Object { return t.parent }

// Describe sets the description.
func (t *MemoryTable) Describe(description string) *MemoryTable {
	t.description = description
	return t
}

// Column appends a column.
func (t *MemoryTable) Column(name, typeName string) *MemoryTable {
	t.columns = append(t.columns, &MemoryAttribute{
		name:     name,
		typeName: typeName,
		table:    t,
		ordinal:  len(t.columns) + 1,
	})
	return t
}

// ColumnWithDescription appends a described column.
func (t *MemoryTable) ColumnWithDescription(name, typeName, description string) *MemoryTable {
	t.Column(name, typeName)
	t.columns[len(t.columns)-1].description = description
	return t
}

// References declares a foreign key. refTable is resolved when the key is
// read, relative to this table's schema and then its ancestors.
func (t *MemoryTable) References(name string, columns []string, refTable []string, refColumns []string) *MemoryTable {
	t.keys = append(t.keys, foreignKeySpec{
		name:       name,
		columns:    columns,
		refTable:   refTable,
		refColumns: refColumns,
	})
	return t
}

// Attributes implements Table.
func (t *MemoryTable) Attributes(ctx context.Context) ([]Attribute, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	out := make([]Attribute, len(t.columns))
	for i, c := range t.columns {
		out[i] = c
	}
	return out, nil
}

// ForeignKeys implements Table. Keys whose referenced table or columns do
// not exist are skipped.
func (t *MemoryTable) ForeignKeys(ctx context.Context) ([]*ForeignKey, error) {
	if err := CheckContext(ctx); err != nil {
		return nil, err
	}
	var out []*ForeignKey
	for _, spec := range t.keys {
		obj, err := FindFrom(ctx, t.parent, spec.refTable)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		ref, ok := obj.(Table)
		if !ok {
			continue
		}
		cols, ok := t.attributesNamed(spec.columns)
		if !ok {
			continue
		}
		refAttrs, err := ref.Attributes(ctx)
		if err != nil {
			return nil, err
		}
		refCols, ok := pickAttributes(refAttrs, spec.refColumns)
		if !ok {
			continue
		}
		out = append(out, &ForeignKey{
			Name:              spec.name,
			Table:             t,
			Columns:           cols,
			ReferencedTable:   ref,
			ReferencedColumns: refCols,
		})
	}
	return out, nil
}

func (t *MemoryTable) attributesNamed(names []string) ([]Attribute, bool) {
	attrs := make([]Attribute, len(t.columns))
	for i, c := range t.columns {
		attrs[i] = c
	}
	return pickAttributes(attrs, names)
}

func pickAttributes(attrs []Attribute, names []string) ([]Attribute, bool) {
	out := make([]Attribute, 0, len(names))
	for _, name := range names {
		idx := slices.IndexFunc(attrs, func(a Attribute) bool {
			return strings.EqualFold(a.Name(), name)
		})
		if idx < 0 {
			return nil, false
		}
		out = append(out, attrs[idx])
	}
	return out, len(out) > 0
}

// MemoryAttribute is an in-memory column.
type MemoryAttribute struct {
	name        string
	typeName    string
	description string
	table       *MemoryTable
	ordinal     int
}

// Name implements Object.
func (a *MemoryAttribute) Name() string { return a.name }

// Kind implements Object.
func (a *MemoryAttribute) Kind() Kind { return KindColumn }

// Description implements Object.
func (a *MemoryAttribute) Description() string { return a.description }

// Parent implements Object.
func (a *MemoryAttribute) Parent() Object { return a.table }

// Table implements Attribute.
func (a *MemoryAttribute) Table() Table { return a.table }

// Ordinal implements Attribute.
func (a *MemoryAttribute) Ordinal() int { return a.ordinal }

// DataType implements Attribute. Composite types defined with DefineType
// are expanded.
func (a *MemoryAttribute) DataType() DataType {
	if t, ok := a.table.parent.lookupType(a.typeName); ok {
		return t
	}
	return DataType{Name: a.typeName}
}

// MemoryProcedure is an in-memory procedure.
type MemoryProcedure struct {
	name        string
	signature   string
	description string
	parent      *MemoryContainer
}

// Name implements Object.
func (p *MemoryProcedure) Name() string { return p.name }

// Kind implements Object.
func (p *MemoryProcedure) Kind() Kind { return KindProcedure }

// Description implements Object.
func (p *MemoryProcedure) Description() string { return p.description }

// Parent implements Object.
func (p *MemoryProcedure) Parent() Object { return p.parent }

// Signature implements Procedure.
func (p *MemoryProcedure) Signature() string { return p.signature }

// Describe sets the description.
func (p *MemoryProcedure) Describe(description string) *MemoryProcedure {
	p.description = description
	return p
}
