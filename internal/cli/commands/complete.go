package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
)

// completionSetJSON is the json shape of one completion set.
type completionSetJSON struct {
	Offset int                  `json:"offset"`
	Length int                  `json:"length"`
	Typed  string               `json:"typed"`
	Items  []completionItemJSON `json:"items"`
}

type completionItemJSON struct {
	Kind        string `json:"kind"`
	Display     string `json:"display"`
	Replacement string `json:"replacement"`
	Score       int    `json:"score"`
	Description string `json:"description,omitempty"`
	Object      string `json:"object,omitempty"`
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	var (
		src    sourceFlags
		offset int
	)

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Propose completions at a cursor position",
		Long: `Compute the completion proposals at a cursor position in a SQL script.

The cursor is given with --offset (a byte offset) or by placing a "|"
marker in the text. Proposals are grouped in sets; each set replaces the
text from its offset up to the cursor.`,
		Example: `  sqlassist complete --sql "SELECT o.| FROM orders o"
  sqlassist complete --file report.sql --offset 120 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := src.read(cmd)
			if err != nil {
				return err
			}
			text, cursor, err := splitCursor(text, offset)
			if err != nil {
				return err
			}

			p, err := openProvider(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			sets := p.Complete(cmd.Context(), parser.ParseScript(text), cursor)
			out := make([]completionSetJSON, 0, len(sets))
			for _, set := range sets {
				js := completionSetJSON{
					Offset: set.Offset,
					Length: set.Length,
					Typed:  text[set.Offset : set.Offset+set.Length],
				}
				for _, prop := range completion.Materialize(set, p.Dialect()) {
					item := completionItemJSON{
						Kind:        prop.Kind.String(),
						Display:     prop.DisplayText,
						Replacement: prop.ReplacementText,
						Score:       prop.Score,
						Description: prop.Description,
					}
					if prop.Object != nil {
						item.Object = strings.Join(metadata.QualifiedName(prop.Object), ".")
					}
					js.Items = append(js.Items, item)
				}
				out = append(out, js)
			}

			return printCompletions(newPrinter(cmd), out)
		},
	}

	src.register(cmd)
	cmd.Flags().IntVar(&offset, "offset", -1, "cursor byte offset (default: position of the | marker)")
	return cmd
}

func printCompletions(p *printer, sets []completionSetJSON) error {
	if p.json {
		return p.encode(sets)
	}
	if len(sets) == 0 {
		_, _ = fmt.Fprintln(p.w, p.styles.muted.Render("no completions"))
		return nil
	}
	for i, set := range sets {
		if i > 0 {
			_, _ = fmt.Fprintln(p.w)
		}
		_, _ = fmt.Fprintln(p.w, p.styles.heading.Render(
			fmt.Sprintf("replace %q at %d", set.Typed, set.Offset)))
		t := p.table("KIND", "TEXT", "REPLACEMENT", "SCORE", "DESCRIPTION")
		for _, item := range set.Items {
			t.AppendRow([]any{item.Kind, item.Display, item.Replacement, item.Score, item.Description})
		}
		t.Render()
	}
	return nil
}
