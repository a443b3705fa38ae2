package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/internal/provider"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

// ErrProblemsFound is returned by analyze --strict when errors were found.
var ErrProblemsFound = errors.New("problems found")

type analysisJSON struct {
	Statements []statementJSON `json:"statements"`
	Problems   []problemJSON   `json:"problems"`
}

type statementJSON struct {
	Start   int          `json:"start"`
	Text    string       `json:"text"`
	Symbols []symbolJSON `json:"symbols"`
	Columns []columnJSON `json:"columns"`
}

type columnJSON struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type symbolJSON struct {
	Name           string `json:"name"`
	Offset         int    `json:"offset"`
	Classification string `json:"classification"`
	Origin         string `json:"origin,omitempty"`
	Object         string `json:"object,omitempty"`
	Type           string `json:"type,omitempty"`
}

type problemJSON struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	var (
		src    sourceFlags
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Resolve the names of a SQL script",
		Long: `Resolve every name of a SQL script against the metadata catalog and
print the classified symbols together with syntax and resolution problems.`,
		Example: `  sqlassist analyze --sql "SELECT o.id, x FROM orders o"
  cat report.sql | sqlassist analyze -f - --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := src.read(cmd)
			if err != nil {
				return err
			}

			p, err := openProvider(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			result := analyzeScript(cmd, p, parser.ParseScript(text))
			if err := printAnalysis(newPrinter(cmd), result); err != nil {
				return err
			}
			if strict {
				for _, pr := range result.Problems {
					if pr.Severity == semantic.SeverityError.String() {
						return ErrProblemsFound
					}
				}
			}
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when problems of error severity are found")
	return cmd
}

func analyzeScript(cmd *cobra.Command, p *provider.Provider, script *parser.Script) analysisJSON {
	ctx := cmd.Context()
	result := analysisJSON{Statements: []statementJSON{}, Problems: []problemJSON{}}

	for _, item := range script.Items {
		stmt := statementJSON{Start: item.Start, Text: item.Text, Symbols: []symbolJSON{}, Columns: []columnJSON{}}
		if model, types := p.AnalyzeTypes(ctx, item); model != nil {
			for _, sym := range model.Symbols() {
				stmt.Symbols = append(stmt.Symbols, describe(sym, types))
			}
			for _, col := range types.Columns() {
				stmt.Columns = append(stmt.Columns, columnJSON{Name: col.Name, Type: col.Type.Name})
			}
		}
		result.Statements = append(result.Statements, stmt)
	}

	lines := newLineIndex(script.Text)
	for _, pr := range p.Problems(ctx, script) {
		line, col := lines.position(pr.Start)
		result.Problems = append(result.Problems, problemJSON{
			Start:    pr.Start,
			End:      pr.End,
			Line:     line,
			Column:   col,
			Severity: pr.Severity.String(),
			Message:  pr.Message,
		})
	}
	return result
}

func describe(sym *semantic.Symbol, types *semantic.TypeInfo) symbolJSON {
	js := symbolJSON{
		Name:           sym.Text(),
		Offset:         sym.Span().Start.Offset,
		Classification: sym.Classification().String(),
		Origin:         semantic.OriginName(sym.Origin()),
	}
	if obj := sym.Object(); obj != nil {
		js.Object = strings.Join(metadata.QualifiedName(obj), ".")
		if attr, ok := obj.(metadata.Attribute); ok {
			js.Type = attr.DataType().Name
		}
	}
	if js.Type == "" {
		if col := types.ColumnOf(sym); col != nil {
			js.Type = col.Type.Name
		}
	}
	return js
}

func printAnalysis(p *printer, result analysisJSON) error {
	if p.json {
		return p.encode(result)
	}

	for i, stmt := range result.Statements {
		if i > 0 {
			_, _ = fmt.Fprintln(p.w)
		}
		_, _ = fmt.Fprintln(p.w, p.styles.heading.Render(fmt.Sprintf("statement at %d", stmt.Start)))
		if len(stmt.Symbols) == 0 {
			_, _ = fmt.Fprintln(p.w, p.styles.muted.Render("no symbols"))
			continue
		}
		t := p.table("NAME", "OFFSET", "CLASS", "ORIGIN", "OBJECT", "TYPE")
		for _, s := range stmt.Symbols {
			t.AppendRow([]any{s.Name, s.Offset, s.Classification, s.Origin, s.Object, s.Type})
		}
		t.Render()
		if len(stmt.Columns) > 0 {
			cols := make([]string, len(stmt.Columns))
			for i, c := range stmt.Columns {
				cols[i] = strings.TrimSpace(c.Name + " " + c.Type)
			}
			_, _ = fmt.Fprintln(p.w, p.styles.muted.Render("columns: "+strings.Join(cols, ", ")))
		}
	}

	_, _ = fmt.Fprintln(p.w)
	if len(result.Problems) == 0 {
		_, _ = fmt.Fprintln(p.w, p.styles.ok.Render("no problems"))
		return nil
	}
	for _, pr := range result.Problems {
		sev := semantic.SeverityError
		if pr.Severity == semantic.SeverityWarning.String() {
			sev = semantic.SeverityWarning
		}
		_, _ = fmt.Fprintf(p.w, "%d:%d: %s: %s\n", pr.Line, pr.Column, p.severity(sev), pr.Message)
	}
	return nil
}

// lineIndex converts byte offsets to 1-based line and column numbers.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (l lineIndex) position(offset int) (line, column int) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i] <= offset {
			return i + 1, offset - l[i] + 1
		}
	}
	return 1, offset + 1
}
