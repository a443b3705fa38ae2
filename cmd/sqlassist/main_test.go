package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlassist/internal/cli"
)

func TestAnalyzeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(`
catalogs:
  - name: shop
    schemas:
      - name: public
        tables:
          - name: orders
            columns:
              - {name: id, type: integer}
`), 0o600))
	query := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(query, []byte("SELECT id, amount FROM orders"), 0o600))

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"--dialect", "postgres", "--driver", "yaml", "--catalog-file", "catalog.yaml",
		"--default-catalog", "shop", "--default-schema", "public",
		"-o", "text",
		"analyze", "-f", query, "--strict",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), `column "amount" not found`)
}
