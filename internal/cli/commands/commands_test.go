package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/internal/provider"
	"github.com/leapstack-labs/sqlassist/internal/testutil"
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

// shopConfig returns a postgres configuration backed by a catalog file.
func shopConfig(t *testing.T, output string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shopYAML), 0o600))

	cfg := config.Default()
	cfg.Dialect = "postgres"
	cfg.Output = output
	cfg.Metadata.Driver = config.DriverYAML
	cfg.Metadata.CatalogFile = path
	cfg.Metadata.DefaultCatalog = "shop"
	cfg.Metadata.DefaultSchema = "public"
	return cfg
}

func runCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))

	if args == nil {
		args = []string{}
	}
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCompleteJSON(t *testing.T) {
	out, err := runCommand(t, NewCompleteCommand(), shopConfig(t, config.OutputJSON), "",
		"--sql", "SELECT * FROM |")
	require.NoError(t, err)

	var sets []completionSetJSON
	require.NoError(t, json.Unmarshal([]byte(out), &sets))
	require.NotEmpty(t, sets)
	assert.Equal(t, 14, sets[0].Offset)
	assert.Equal(t, 0, sets[0].Length)

	var orders *completionItemJSON
	for i, item := range sets[0].Items {
		if item.Display == "orders" {
			orders = &sets[0].Items[i]
		}
	}
	require.NotNil(t, orders, "orders proposed")
	assert.Equal(t, "table", orders.Kind)
	assert.Equal(t, "orders", orders.Replacement)
	assert.Equal(t, "shop.public.orders", orders.Object)
}

func TestCompleteText(t *testing.T) {
	out, err := runCommand(t, NewCompleteCommand(), shopConfig(t, config.OutputText), "",
		"--sql", "SELECT o. FROM orders o", "--offset", "9")
	require.NoError(t, err)

	assert.Contains(t, out, `replace "" at 9`)
	assert.Contains(t, out, "customer_id")
	assert.Contains(t, out, "column")
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no input", args: []string{}, wantErr: errNoInput.Error()},
		{name: "no cursor", args: []string{"--sql", "SELECT 1"}, wantErr: "no cursor"},
		{name: "offset past end", args: []string{"--sql", "SELECT 1", "--offset", "50"}, wantErr: "past the end"},
		{name: "both inputs", args: []string{"--sql", "SELECT |", "--file", "q.sql"}, wantErr: "none of the others"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, NewCompleteCommand(), shopConfig(t, config.OutputJSON), "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAnalyzeJSON(t *testing.T) {
	out, err := runCommand(t, NewAnalyzeCommand(), shopConfig(t, config.OutputJSON), "",
		"--sql", "SELECT o.id, nope FROM orders o")
	require.NoError(t, err)

	var result analysisJSON
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Statements, 1)

	var id *symbolJSON
	for i, sym := range result.Statements[0].Symbols {
		if sym.Name == "id" {
			id = &result.Statements[0].Symbols[i]
		}
	}
	require.NotNil(t, id)
	assert.Equal(t, "column", id.Classification)
	assert.Equal(t, "shop.public.orders.id", id.Object)
	assert.Equal(t, "integer", id.Type)

	require.Len(t, result.Problems, 1)
	pr := result.Problems[0]
	assert.Equal(t, `column "nope" not found`, pr.Message)
	assert.Equal(t, "error", pr.Severity)
	assert.Equal(t, 1, pr.Line)
	assert.Equal(t, 14, pr.Column)
}

func TestAnalyzeInferredTypes(t *testing.T) {
	out, err := runCommand(t, NewAnalyzeCommand(), shopConfig(t, config.OutputJSON), "",
		"--sql", "SELECT id + 1 AS next, CAST(customer_id AS text), o.id FROM orders o")
	require.NoError(t, err)

	var result analysisJSON
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Statements, 1)
	stmt := result.Statements[0]

	assert.Equal(t, []columnJSON{
		{Name: "next", Type: "integer"},
		{Name: "customer_id", Type: "text"},
		{Name: "id", Type: "integer"},
	}, stmt.Columns)

	var next *symbolJSON
	for i, sym := range stmt.Symbols {
		if sym.Name == "next" {
			next = &stmt.Symbols[i]
		}
	}
	require.NotNil(t, next)
	assert.Equal(t, "column-derived", next.Classification)
	assert.Equal(t, "integer", next.Type)
}

func TestAnalyzeStrict(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr error
	}{
		{name: "clean", sql: "SELECT id FROM customers", wantErr: nil},
		{name: "unknown column", sql: "SELECT nope FROM customers", wantErr: ErrProblemsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, NewAnalyzeCommand(), shopConfig(t, config.OutputJSON), "",
				"--sql", tt.sql, "--strict")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnalyzeTextFromStdin(t *testing.T) {
	out, err := runCommand(t, NewAnalyzeCommand(), shopConfig(t, config.OutputText),
		"SELECT id FROM customers;\nSELECT x FROM missing;", "-f", "-")
	require.NoError(t, err)

	assert.Contains(t, out, "statement at 0")
	assert.Contains(t, out, "statement at 26")
	assert.Contains(t, out, `2:15: error: table "missing" not found`)
}

func TestCatalogJSON(t *testing.T) {
	out, err := runCommand(t, NewCatalogCommand(), shopConfig(t, config.OutputJSON), "", "--columns")
	require.NoError(t, err)

	var entries []catalogEntryJSON
	require.NoError(t, json.Unmarshal([]byte(out), &entries))

	assert.Contains(t, entries, catalogEntryJSON{Path: "shop", Kind: "catalog"})
	assert.Contains(t, entries, catalogEntryJSON{Path: "shop.public", Kind: "schema"})
	assert.Contains(t, entries, catalogEntryJSON{Path: "shop.public.orders", Kind: "table"})
	assert.Contains(t, entries, catalogEntryJSON{Path: "shop.public.orders.customer_id", Kind: "column", Type: "integer"})
}

func TestCatalogPath(t *testing.T) {
	cfg := shopConfig(t, config.OutputText)

	out, err := runCommand(t, NewCatalogCommand(), cfg, "", "shop.public")
	require.NoError(t, err)
	assert.Contains(t, out, "customers table")
	assert.Contains(t, out, "orders table")
	assert.NotContains(t, out, "customer_id")

	_, err = runCommand(t, NewCatalogCommand(), cfg, "", "shop.public.orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a container")

	_, err = runCommand(t, NewCatalogCommand(), cfg, "", "shop.sales")
	assert.Error(t, err)
}

func TestSplitCursor(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		offset     int
		wantText   string
		wantCursor int
		wantErr    bool
	}{
		{name: "marker", text: "SELECT | FROM t", offset: -1, wantText: "SELECT  FROM t", wantCursor: 7},
		{name: "offset keeps text", text: "SELECT a|b", offset: 3, wantText: "SELECT a|b", wantCursor: 3},
		{name: "offset at end", text: "SELECT", offset: 6, wantText: "SELECT", wantCursor: 6},
		{name: "no marker", text: "SELECT", offset: -1, wantErr: true},
		{name: "offset past end", text: "SELECT", offset: 7, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, cursor, err := splitCursor(tt.text, tt.offset)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantCursor, cursor)
		})
	}
}

func TestLineIndex(t *testing.T) {
	lines := newLineIndex("ab\ncd\n\nef")

	tests := []struct {
		offset   int
		wantLine int
		wantCol  int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{6, 3, 1},
		{8, 4, 2},
	}
	for _, tt := range tests {
		line, col := lines.position(tt.offset)
		assert.Equal(t, tt.wantLine, line, "line of %d", tt.offset)
		assert.Equal(t, tt.wantCol, col, "column of %d", tt.offset)
	}
}

func newSession(t *testing.T) (*replSession, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	p, err := provider.Open(ctx, shopConfig(t, config.OutputText), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	var out, errOut bytes.Buffer
	return &replSession{ctx: ctx, provider: p, out: &out, errOut: &errOut}, &out, &errOut
}

func candidates(c [][]rune) []string {
	var out []string
	for _, r := range c {
		out = append(out, string(r))
	}
	return out
}

func TestREPLAutoComplete(t *testing.T) {
	s, _, _ := newSession(t)

	line := []rune("SELECT * FROM ord")
	got, length := s.Do(line, len(line))
	assert.Equal(t, 3, length)
	assert.Contains(t, candidates(got), "ers")

	// The statement so far spans earlier lines.
	s.feed("SELECT *")
	line = []rune("FROM CUST")
	got, length = s.Do(line, len(line))
	assert.Equal(t, 4, length)
	assert.Contains(t, candidates(got), "omers")
}

func TestREPLRescoresWhileTyping(t *testing.T) {
	s, _, _ := newSession(t)

	line := []rune("SELECT * FROM o")
	got, length := s.Do(line, len(line))
	assert.Equal(t, 1, length)
	assert.Contains(t, candidates(got), "rders")
	assert.NotContains(t, candidates(got), "ustomers")
	require.NotNil(t, s.last)
	first := s.last

	line = []rune("SELECT * FROM ord")
	got, length = s.Do(line, len(line))
	assert.Equal(t, 3, length)
	assert.Contains(t, candidates(got), "ers")
	assert.Same(t, first, s.last, "typing on validates the last proposal")

	line = []rune("SELECT * FROM ox")
	got, _ = s.Do(line, len(line))
	assert.Empty(t, got)
	assert.Same(t, first, s.last)

	line = []rune("SELECT * FROM orders o WHERE o.")
	s.Do(line, len(line))
	assert.NotSame(t, first, s.last, "a separator completes again")
}

func TestREPLFeed(t *testing.T) {
	s, out, _ := newSession(t)

	assert.True(t, s.feed(""), "blank line outside a statement")
	assert.False(t, s.feed("SELECT nope"))
	assert.True(t, s.feed("FROM orders;"))
	assert.Contains(t, out.String(), `1:8: error: column "nope" not found`)
	assert.Zero(t, s.buffer.Len())

	out.Reset()
	assert.True(t, s.feed("SELECT id FROM orders;"))
	assert.Equal(t, "ok\n", out.String())
}

func TestREPLDotCommands(t *testing.T) {
	s, out, errOut := newSession(t)

	assert.False(t, s.dotCommand(".tables"))
	assert.Equal(t, "customers\norders\n", out.String())

	out.Reset()
	assert.False(t, s.dotCommand(".reload"))
	assert.Contains(t, out.String(), "catalog reloaded")

	out.Reset()
	assert.False(t, s.dotCommand(".help"))
	assert.Contains(t, out.String(), ".tables")

	assert.False(t, s.dotCommand(".bogus"))
	assert.Contains(t, errOut.String(), "Unknown command: .bogus")

	assert.True(t, s.dotCommand(".quit"))
	assert.True(t, s.dotCommand(".EXIT"))
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewCompleteCommand(), "complete", []string{"sql", "file", "offset"}},
		{NewAnalyzeCommand(), "analyze", []string{"sql", "file", "strict"}},
		{NewCatalogCommand(), "catalog [path]", []string{"columns"}},
		{NewREPLCommand(), "repl", []string{"history"}},
		{NewLSPCommand("test"), "lsp", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}
