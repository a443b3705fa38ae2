package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogFile is the yaml layout read by LoadYAML:
//
//	catalogs:
//	  - name: shop
//	    schemas:
//	      - name: public
//	        tables:
//	          - name: orders
//	            columns:
//	              - {name: id, type: integer}
//	              - {name: customer_id, type: integer}
//	            foreign_keys:
//	              - {columns: [customer_id], references: customers, referenced_columns: [id]}
//
// Catalog-less databases list schemas at the top level instead.
type catalogFile struct {
	Catalogs []catalogSpec `yaml:"catalogs"`
	Schemas  []schemaSpec  `yaml:"schemas"`
	Types    []typeSpec    `yaml:"types"`
}

type catalogSpec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Schemas     []schemaSpec `yaml:"schemas"`
	Types       []typeSpec   `yaml:"types"`
}

type schemaSpec struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Tables      []tableSpec     `yaml:"tables"`
	Views       []tableSpec     `yaml:"views"`
	Procedures  []procedureSpec `yaml:"procedures"`
	Types       []typeSpec      `yaml:"types"`
}

type tableSpec struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Columns     []columnSpec     `yaml:"columns"`
	ForeignKeys []foreignKeyYAML `yaml:"foreign_keys"`
}

type columnSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type foreignKeyYAML struct {
	Name              string   `yaml:"name"`
	Columns           []string `yaml:"columns"`
	References        string   `yaml:"references"` // dotted table path
	ReferencedColumns []string `yaml:"referenced_columns"`
}

type procedureSpec struct {
	Name        string `yaml:"name"`
	Signature   string `yaml:"signature"`
	Description string `yaml:"description"`
}

type typeSpec struct {
	Name   string       `yaml:"name"`
	Fields []columnSpec `yaml:"fields"`
}

// CatalogFileError reports an invalid catalog yaml document.
type CatalogFileError struct {
	Path    string
	Message string
}

func (e *CatalogFileError) Error() string {
	if e.Path == "" {
		return "invalid catalog: " + e.Message
	}
	return fmt.Sprintf("invalid catalog %s: %s", e.Path, e.Message)
}

// LoadYAML builds an in-memory catalog from a yaml document.
func LoadYAML(r io.Reader) (*MemoryContainer, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &CatalogFileError{Message: err.Error()}
	}

	root := NewMemory()
	defineTypes(root, file.Types)
	for _, cs := range file.Catalogs {
		if cs.Name == "" {
			return nil, &CatalogFileError{Message: "catalog without name"}
		}
		catalog := root.Catalog(cs.Name).Describe(cs.Description)
		defineTypes(catalog, cs.Types)
		for _, ss := range cs.Schemas {
			if err := buildSchema(catalog, ss); err != nil {
				return nil, err
			}
		}
	}
	for _, ss := range file.Schemas {
		if err := buildSchema(root, ss); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// LoadYAMLFile reads a catalog yaml file.
func LoadYAMLFile(path string) (*MemoryContainer, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() { _ = f.Close() }()

	root, err := LoadYAML(f)
	if err != nil {
		var cfe *CatalogFileError
		if errors.As(err, &cfe) {
			cfe.Path = path
		}
		return nil, err
	}
	return root, nil
}

func buildSchema(parent *MemoryContainer, ss schemaSpec) error {
	if ss.Name == "" {
		return &CatalogFileError{Message: "schema without name"}
	}
	schema := parent.Schema(ss.Name).Describe(ss.Description)
	defineTypes(schema, ss.Types)

	add := func(specs []tableSpec, view bool) error {
		for _, ts := range specs {
			if ts.Name == "" {
				return &CatalogFileError{Message: fmt.Sprintf("table without name in schema %s", ss.Name)}
			}
			var table *MemoryTable
			if view {
				table = schema.View(ts.Name)
			} else {
				table = schema.Table(ts.Name)
			}
			table.Describe(ts.Description)
			for _, col := range ts.Columns {
				table.ColumnWithDescription(col.Name, col.Type, col.Description)
			}
			for _, fk := range ts.ForeignKeys {
				if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferencedColumns) {
					return &CatalogFileError{Message: fmt.Sprintf("foreign key %q of %s: column lists differ in length", fk.Name, ts.Name)}
				}
				table.References(fk.Name, fk.Columns, strings.Split(fk.References, "."), fk.ReferencedColumns)
			}
		}
		return nil
	}
	if err := add(ss.Tables, false); err != nil {
		return err
	}
	if err := add(ss.Views, true); err != nil {
		return err
	}

	for _, ps := range ss.Procedures {
		schema.Procedure(ps.Name, ps.Signature).Describe(ps.Description)
	}
	return nil
}

func defineTypes(c *MemoryContainer, specs []typeSpec) {
	for _, ts := range specs {
		fields := make([]Field, len(ts.Fields))
		for i, f := range ts.Fields {
			fields[i] = Field{Name: f.Name, Type: DataType{Name: f.Type}}
		}
		c.DefineType(ts.Name, fields...)
	}
}
