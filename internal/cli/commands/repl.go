package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/internal/provider"
	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
)

const (
	replPrompt         = "sqlassist> "
	replContinuePrompt = "     ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Edit SQL interactively with completion",
		Long: `Start an interactive SQL editor. TAB completes at the cursor using the
configured dialect and metadata catalog. Statements ending with ";" are
analyzed and their problems printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := openProvider(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			if historyFile == "" {
				historyFile = defaultHistoryFile()
			}
			return runREPL(cmd, p, historyFile)
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", "", "history file (default: user cache directory)")
	return cmd
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sqlassist")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// replSession holds the statement being edited across lines.
type replSession struct {
	ctx      context.Context
	provider *provider.Provider
	buffer   strings.Builder
	out      io.Writer
	errOut   io.Writer

	// last is the most recent proposal; typing more of a word re-scores it
	// instead of completing again.
	last *replProposal
}

type replProposal struct {
	before string // text up to the cursor the sets were computed at
	after  string // text behind the cursor
	sets   []*completion.CompletionSet
}

func runREPL(cmd *cobra.Command, p *provider.Provider, historyFile string) error {
	session := &replSession{
		ctx:      cmd.Context(),
		provider: p,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    session,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(session.out, "sqlassist REPL (dialect: %s)\n", p.Dialect().Name)
	_, _ = fmt.Fprintln(session.out, "Type .help for commands, .quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			session.buffer.Reset()
			session.last = nil
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if session.buffer.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ".") {
			if quit := session.dotCommand(strings.TrimSpace(line)); quit {
				return nil
			}
			continue
		}

		if session.feed(line) {
			rl.SetPrompt(replPrompt)
		} else {
			rl.SetPrompt(replContinuePrompt)
		}
	}
}

// feed appends a line to the statement. When the statement is complete it
// is analyzed, the buffer is cleared and feed reports true.
func (s *replSession) feed(line string) bool {
	if strings.TrimSpace(line) == "" && s.buffer.Len() == 0 {
		return true
	}
	s.buffer.WriteString(line)
	if !strings.HasSuffix(strings.TrimSpace(line), ";") {
		s.buffer.WriteString("\n")
		return false
	}

	text := s.buffer.String()
	s.buffer.Reset()
	s.last = nil
	s.report(text)
	return true
}

// report prints the problems of text.
func (s *replSession) report(text string) {
	script := parser.ParseScript(text)
	problems := s.provider.Problems(s.ctx, script)
	if len(problems) == 0 {
		_, _ = fmt.Fprintln(s.out, "ok")
		return
	}
	lines := newLineIndex(text)
	for _, pr := range problems {
		line, col := lines.position(pr.Start)
		_, _ = fmt.Fprintf(s.out, "%d:%d: %s: %s\n", line, col, pr.Severity, pr.Message)
	}
}

// Do implements readline.AutoCompleter. Candidates are the parts of the
// replacements that follow the typed text; proposals that do not extend
// the typed text are left out since readline can only append.
func (s *replSession) Do(line []rune, pos int) ([][]rune, int) {
	prefix := s.buffer.String()
	text := prefix + string(line)
	cursor := len(prefix) + len(string(line[:pos]))

	for _, set := range s.proposals(text, cursor) {
		if set.Offset > cursor {
			continue
		}
		typed := text[set.Offset:cursor]
		var candidates [][]rune
		for _, prop := range completion.Materialize(set, s.provider.Dialect()) {
			rep := prop.ReplacementText
			if len(rep) < len(typed) || !strings.EqualFold(rep[:len(typed)], typed) {
				continue
			}
			candidates = append(candidates, []rune(rep[len(typed):]))
		}
		if len(candidates) > 0 {
			return candidates, utf8.RuneCountInString(typed)
		}
	}
	return nil, 0
}

// proposals returns the completion sets at cursor. When only word
// characters were typed since the last proposal its items are validated
// against the new text; otherwise completion runs again.
func (s *replSession) proposals(text string, cursor int) []*completion.CompletionSet {
	if last := s.last; last != nil && text[cursor:] == last.after &&
		len(text[:cursor]) >= len(last.before) && strings.HasPrefix(text[:cursor], last.before) &&
		isWordText(text[len(last.before):cursor]) {
		settings := s.provider.Settings()
		var out []*completion.CompletionSet
		for _, set := range last.sets {
			kept := &completion.CompletionSet{Offset: set.Offset, Length: cursor - set.Offset}
			for _, item := range set.Items {
				if completion.ValidateProposal(item, text, cursor, settings) > completion.ScoreNone {
					kept.Items = append(kept.Items, item)
				}
			}
			if len(kept.Items) > 0 {
				completion.SortItems(kept.Items)
				out = append(out, kept)
			}
		}
		return out
	}

	sets := s.provider.Complete(s.ctx, parser.ParseScript(text), cursor)
	s.last = &replProposal{before: text[:cursor], after: text[cursor:], sets: sets}
	return sets
}

func isWordText(s string) bool {
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// dotCommand runs a REPL command and reports whether to quit.
func (s *replSession) dotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.out)
	case ".tables":
		s.listTables()
	case ".reload":
		s.last = nil
		if err := s.provider.Reload(s.ctx); err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			break
		}
		_, _ = fmt.Fprintln(s.out, "catalog reloaded")
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func (s *replSession) listTables() {
	exec := s.provider.Exec()
	if exec == nil || exec.DefaultSchema == nil {
		_, _ = fmt.Fprintln(s.errOut, "no default schema")
		return
	}
	tables, err := metadata.Tables(s.ctx, exec.DefaultSchema)
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	for _, t := range tables {
		_, _ = fmt.Fprintln(s.out, t.Name())
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List the tables of the default schema
  .reload         Reload the metadata catalog
  .quit / .exit   Exit the REPL

Tips:
  - Statements end with a semicolon (;) and are then checked
  - TAB completes tables, columns, keywords and join conditions
`
	_, _ = fmt.Fprintln(w, help)
}
