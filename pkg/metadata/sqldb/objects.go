package sqldb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
)

type schemaObject struct {
	catalog *Catalog
	name    string
}

func (s *schemaObject) Name() string { return s.name }
func (s *schemaObject) Kind() metadata.Kind { return metadata.KindSchema }
func (s *schemaObject) Parent() metadata.Object { return s.catalog }
func (s *schemaObject) Description() string { return "" }

func (s *schemaObject) Children(ctx context.Context) ([]metadata.Object, error) {
	if err := metadata.CheckContext(ctx); err != nil {
		return nil, err
	}
	c := s.catalog
	tables, err := c.flavor.tables(ctx, c.db, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", s.name, err)
	}

	out := make([]metadata.Object, 0, len(tables))
	for _, t := range tables {
		out = append(out, &tableObject{schema: s, name: t.name, kind: t.kind})
	}

	if err := metadata.CheckContext(ctx); err != nil {
		return out, err
	}
	procs, err := c.flavor.procedures(ctx, c.db, s.name)
	if err != nil {
		// routines are optional: keep the tables
		c.logger.Warn("failed to list procedures",
			slog.String("schema", s.name), slog.String("error", err.Error()))
		return out, nil
	}
	for _, p := range procs {
		out = append(out, &procedureObject{schema: s, name: p.name, returnType: p.returnType})
	}

	c.logger.Debug("listed schema", slog.String("schema", s.name),
		slog.Int("tables", len(tables)), slog.Int("procedures", len(procs)))
	return out, nil
}

func (s *schemaObject) Child(ctx context.Context, name string) (metadata.Object, error) {
	children, err := s.Children(ctx)
	if err != nil {
		return nil, err
	}
	return metadata.ChildByName(s, children, name)
}

type tableObject struct {
	schema *schemaObject
	name   string
	kind   metadata.Kind
}

func (t *tableObject) Name() string { return t.name }
func (t *tableObject) Kind() metadata.Kind { return t.kind }
func (t *tableObject) Parent() metadata.Object { return t.schema }
func (t *tableObject) Description() string { return "" }

func (t *tableObject) Attributes(ctx context.Context) ([]metadata.Attribute, error) {
	if err := metadata.CheckContext(ctx); err != nil {
		return nil, err
	}
	c := t.schema.catalog
	cols, err := c.flavor.columns(ctx, c.db, t.schema.name, t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s.%s: %w", t.schema.name, t.name, err)
	}
	out := make([]metadata.Attribute, len(cols))
	for i, col := range cols {
		out[i] = &columnObject{table: t, name: col.name, typ: col.typ, ordinal: col.ordinal}
	}
	return out, nil
}

func (t *tableObject) ForeignKeys(ctx context.Context) ([]*metadata.ForeignKey, error) {
	if err := metadata.CheckContext(ctx); err != nil {
		return nil, err
	}
	c := t.schema.catalog
	rows, err := c.flavor.foreignKeys(ctx, c.db, t.schema.name, t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys of %s.%s: %w", t.schema.name, t.name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	own, err := t.Attributes(ctx)
	if err != nil {
		return nil, err
	}

	// rows arrive ordered by constraint, then column position
	var out []*metadata.ForeignKey
	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].name == rows[start].name {
			end++
		}
		fk, err := t.buildForeignKey(ctx, own, rows[start:end])
		if err != nil {
			return out, err
		}
		if fk != nil {
			out = append(out, fk)
		}
		start = end
	}
	return out, nil
}

func (t *tableObject) buildForeignKey(ctx context.Context, own []metadata.Attribute, rows []foreignKeyRow) (*metadata.ForeignKey, error) {
	first := rows[0]
	ref := &tableObject{
		schema: &schemaObject{catalog: t.schema.catalog, name: first.refSchema},
		name:   first.refTable,
		kind:   metadata.KindTable,
	}
	refAttrs, err := ref.Attributes(ctx)
	if err != nil {
		return nil, err
	}

	fk := &metadata.ForeignKey{Name: first.name, Table: t, ReferencedTable: ref}
	for _, row := range rows {
		col := attributeNamed(own, row.column)
		refCol := attributeNamed(refAttrs, row.refColumn)
		if col == nil || refCol == nil {
			return nil, nil
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	return fk, nil
}

func attributeNamed(attrs []metadata.Attribute, name string) metadata.Attribute {
	for _, a := range attrs {
		if strings.EqualFold(a.Name(), name) {
			return a
		}
	}
	return nil
}

type columnObject struct {
	table   *tableObject
	name    string
	typ     string
	ordinal int
}

func (c *columnObject) Name() string { return c.name }
func (c *columnObject) Kind() metadata.Kind { return metadata.KindColumn }
func (c *columnObject) Parent() metadata.Object { return c.table }
func (c *columnObject) Description() string { return "" }
func (c *columnObject) Table() metadata.Table { return c.table }
func (c *columnObject) DataType() metadata.DataType { return metadata.DataType{Name: c.typ} }
func (c *columnObject) Ordinal() int { return c.ordinal }

type procedureObject struct {
	schema     *schemaObject
	name       string
	returnType string
}

func (p *procedureObject) Name() string { return p.name }
func (p *procedureObject) Kind() metadata.Kind { return metadata.KindProcedure }
func (p *procedureObject) Parent() metadata.Object { return p.schema }

func (p *procedureObject) Description() string {
	if p.returnType == "" {
		return ""
	}
	return "returns " + p.returnType
}

func (p *procedureObject) Signature() string { return p.name + "()" }
