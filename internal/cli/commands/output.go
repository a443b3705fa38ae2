package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/sqlassist/internal/config"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
)

// printer writes command results as styled text or json.
type printer struct {
	w      io.Writer
	json   bool
	styles styles
}

type styles struct {
	heading lipgloss.Style
	muted   lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	ok      lipgloss.Style
}

// newPrinter resolves the output mode of cmd. "auto" prints text on a
// terminal and json otherwise; colour is only used on a terminal.
func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	tty := isTerminal(w)

	mode := config.FromContext(cmd.Context()).Output
	asJSON := mode == config.OutputJSON || (mode == config.OutputAuto && !tty)

	r := lipgloss.NewRenderer(w)
	if !tty {
		r.SetColorProfile(termenv.Ascii)
	}
	return &printer{
		w:    w,
		json: asJSON,
		styles: styles{
			heading: r.NewStyle().Bold(true),
			muted:   r.NewStyle().Faint(true),
			err:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
			ok:      r.NewStyle().Foreground(lipgloss.Color("10")),
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table returns a go-pretty writer mirroring to the printer's output.
func (p *printer) table(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

func (p *printer) severity(s semantic.Severity) string {
	if s == semantic.SeverityWarning {
		return p.styles.warn.Render(s.String())
	}
	return p.styles.err.Render(s.String())
}
