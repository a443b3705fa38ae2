package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/internal/provider"
)

// CursorMarker marks the cursor position in SQL given to the complete
// command when --offset is not set.
const CursorMarker = "|"

var errNoInput = errors.New("no SQL given: use --sql or --file")

// sourceFlags are the input flags shared by complete and analyze.
type sourceFlags struct {
	sql  string
	file string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sql, "sql", "", "SQL text")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read SQL from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("sql", "file")
}

// read returns the SQL text from --sql, --file or piped stdin.
func (f *sourceFlags) read(cmd *cobra.Command) (string, error) {
	switch {
	case f.sql != "":
		return f.sql, nil
	case f.file == "-":
		return readAll(cmd.InOrStdin())
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", f.file, err)
		}
		return string(data), nil
	}
	return "", errNoInput
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

// splitCursor resolves the cursor: offset when it is not negative,
// otherwise the position of the first cursor marker, which is removed.
func splitCursor(text string, offset int) (string, int, error) {
	if offset >= 0 {
		if offset > len(text) {
			return "", 0, fmt.Errorf("offset %d is past the end of the text (%d bytes)", offset, len(text))
		}
		return text, offset, nil
	}
	i := strings.Index(text, CursorMarker)
	if i < 0 {
		return "", 0, fmt.Errorf("no cursor: use --offset or mark the cursor with %q", CursorMarker)
	}
	return text[:i] + text[i+len(CursorMarker):], i, nil
}

// openProvider connects the catalog configured for cmd.
func openProvider(cmd *cobra.Command) (*provider.Provider, error) {
	ctx := cmd.Context()
	p, err := provider.Open(ctx, config.FromContext(ctx), config.GetLogger(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata catalog: %w", err)
	}
	return p, nil
}
