package provider

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/internal/testutil"
	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

const shopYAML = `
catalogs:
  - name: shop
    schemas:
      - name: public
        tables:
          - name: customers
            columns:
              - {name: id, type: integer}
              - {name: name, type: text}
          - name: orders
            columns:
              - {name: id, type: integer}
              - {name: customer_id, type: integer}
            foreign_keys:
              - {columns: [customer_id], references: customers, referenced_columns: [id]}
`

func yamlConfig(t *testing.T, content string) (*config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg := config.Default()
	cfg.Dialect = "postgres"
	cfg.Metadata.Driver = config.DriverYAML
	cfg.Metadata.CatalogFile = path
	cfg.Metadata.DefaultCatalog = "shop"
	cfg.Metadata.DefaultSchema = "public"
	return cfg, path
}

func itemNames(sets []*completion.CompletionSet) []string {
	var names []string
	for _, s := range sets {
		for _, item := range s.Items {
			names = append(names, item.Name())
		}
	}
	return names
}

func TestOpenYAML(t *testing.T) {
	ctx := context.Background()
	cfg, _ := yamlConfig(t, shopYAML)

	p, err := Open(ctx, cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, "postgres", p.Dialect().Name)
	require.NotNil(t, p.Exec())
	require.NotNil(t, p.Exec().DefaultSchema)
	assert.Equal(t, "public", p.Exec().DefaultSchema.Name())

	doc := p.GetOrParse("file:///q.sql", "SELECT * FROM ", 1)
	sets := p.Complete(ctx, doc.Script, len(doc.Content))
	assert.Subset(t, itemNames(sets), []string{"customers", "orders"})
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Dialect = "nope"
	_, err := Open(ctx, cfg, nil)
	assert.Error(t, err)

	cfg, _ = yamlConfig(t, shopYAML)
	cfg.Metadata.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Open(ctx, cfg, nil)
	assert.Error(t, err)

	cfg, _ = yamlConfig(t, shopYAML)
	cfg.Metadata.DefaultSchema = "sales"
	_, err = Open(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestReloadReadsCatalogAgain(t *testing.T) {
	ctx := context.Background()
	cfg, path := yamlConfig(t, shopYAML)
	p, err := Open(ctx, cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)

	doc := p.GetOrParse("file:///q.sql", "SELECT * FROM ", 1)
	assert.NotContains(t, itemNames(p.Complete(ctx, doc.Script, len(doc.Content))), "invoices")

	updated := shopYAML + `          - name: invoices
            columns:
              - {name: id, type: integer}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, p.Reload(ctx))

	assert.Contains(t, itemNames(p.Complete(ctx, doc.Script, len(doc.Content))), "invoices")
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id))`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	cfg := config.Default()
	cfg.Dialect = "sqlite"
	cfg.Metadata.Driver = "sqlite"
	cfg.Metadata.DSN = path
	p, err := Open(ctx, cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NotNil(t, p.Exec().DefaultSchema, "dialect default schema")
	assert.Equal(t, "main", p.Exec().DefaultSchema.Name())

	doc := p.GetOrParse("file:///q.sql", "SELECT * FROM orders o JOIN customers c ON ", 1)
	sets := p.Complete(ctx, doc.Script, len(doc.Content))
	assert.Contains(t, itemNames(sets), "o.customer_id = c.id")

	// invalidates the cache and keeps the connection
	require.NoError(t, p.Reload(ctx))
	assert.Contains(t, itemNames(p.Complete(ctx, doc.Script, len(doc.Content))), "o.customer_id = c.id")
}

func TestGetOrParse(t *testing.T) {
	p := New(nil, nil, completion.DefaultSettings(), nil)

	doc := p.GetOrParse("file:///a.sql", "SELECT 1", 1)
	require.NotNil(t, doc.Script)
	assert.Same(t, doc, p.GetOrParse("file:///a.sql", "SELECT 1", 1), "cached")
	assert.Same(t, doc, p.Get("file:///a.sql"))

	newer := p.GetOrParse("file:///a.sql", "SELECT 2", 2)
	assert.NotSame(t, doc, newer)
	assert.Equal(t, 2, newer.Version)

	p.Invalidate("file:///a.sql")
	assert.Nil(t, p.Get("file:///a.sql"))
}

func TestProblems(t *testing.T) {
	ctx := context.Background()
	cfg, _ := yamlConfig(t, shopYAML)
	p, err := Open(ctx, cfg, nil)
	require.NoError(t, err)

	doc := p.GetOrParse("file:///q.sql", "SELECT nope FROM orders; SELECT * FROM missing; SELECT FROM WHERE", 1)
	problems := p.Problems(ctx, doc.Script)
	require.NotEmpty(t, problems)

	var messages []string
	for _, pr := range problems {
		messages = append(messages, pr.Message)
		assert.LessOrEqual(t, pr.Start, pr.End)
	}
	assert.Contains(t, messages, `column "nope" not found`)
	assert.Contains(t, messages, `table "missing" not found`)
	assert.Equal(t, semantic.SeverityError, problems[0].Severity)
}

func TestAnalyzeTypes(t *testing.T) {
	ctx := context.Background()
	cfg, _ := yamlConfig(t, shopYAML)
	p, err := Open(ctx, cfg, nil)
	require.NoError(t, err)

	text := "SELECT id * 2 AS twice, 'x' || name FROM customers; DROP TABLE t"
	doc := p.GetOrParse("file:///q.sql", text, 1)
	require.Len(t, doc.Script.Items, 2)

	model, types := p.AnalyzeTypes(ctx, doc.Script.Items[0])
	require.NotNil(t, model)
	require.NotNil(t, types)
	require.Len(t, types.Columns(), 2)
	assert.Equal(t, "integer", types.Columns()[0].Type.Name)
	assert.Equal(t, "text", types.Columns()[1].Type.Name)

	_, typ := types.ExprAt(10)
	assert.Equal(t, "integer", typ.Name)

	model, types = p.AnalyzeTypes(ctx, doc.Script.Items[1])
	assert.Nil(t, model)
	assert.Nil(t, types)
}
