package semantic

import (
	"context"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Options configure an analysis.
type Options struct {
	Dialect *dialect.Dialect           // defaults to dialect.Default()
	Exec    *metadata.ExecutionContext // nil when no metadata is available

	// CaseSensitive compares column and source names exactly.
	CaseSensitive bool

	Logger *slog.Logger
}

// Severity of a diagnostic.
type Severity int

// Severities.
const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a problem found while resolving names.
type Diagnostic struct {
	Span     token.Span
	Severity Severity
	Message  string
}

// Scope is a source range together with the data context valid inside it.
type Scope struct {
	Span    token.Span
	Context *QueryDataContext
}

// LexicalKind classifies lexical items.
type LexicalKind int

// Lexical item kinds.
const (
	LexicalSymbol LexicalKind = iota
	LexicalQualifiedName
	LexicalTupleRef
	LexicalMemberAccess
)

// LexicalItem is a classified name, name path, tuple reference or member
// access of the tree.
type LexicalItem struct {
	Kind    LexicalKind
	Node    parser.Node
	Symbols []*Symbol // one per name, in source order

	// Pending is the origin of a name typed after a trailing period.
	Pending Origin
}

// SymbolAt returns the symbol whose name covers offset.
func (li *LexicalItem) SymbolAt(offset int) *Symbol {
	for i := len(li.Symbols) - 1; i >= 0; i-- {
		if li.Symbols[i].Span().Covers(offset) {
			return li.Symbols[i]
		}
	}
	return nil
}

// Model is the result of analyzing one statement.
type Model struct {
	Statement *parser.SelectStmt

	// Result is the row shape the statement produces.
	Result []*ResultColumn

	opts        Options
	symbols     map[*parser.Name]*Symbol
	ordered     []*Symbol
	diagnostics []Diagnostic
	scopes      []*Scope
	lexical     []*LexicalItem
	queries     map[*parser.SelectStmt][]*ResultColumn
	exprs       []scopedExpr
}

// scopedExpr is an expression together with the scope it was resolved in,
// kept for the second pass.
type scopedExpr struct {
	expr    parser.Expr
	ctx     *QueryDataContext
	flags   resolveFlags
	aliases []*ResultColumn
}

func newModel(stmt *parser.SelectStmt, opts Options) *Model {
	return &Model{
		Statement: stmt,
		opts:      opts,
		symbols:   make(map[*parser.Name]*Symbol),
		queries:   make(map[*parser.SelectStmt][]*ResultColumn),
	}
}

// Dialect returns the dialect the statement was analyzed with.
func (m *Model) Dialect() *dialect.Dialect { return m.opts.Dialect }

// Exec returns the execution context, possibly nil.
func (m *Model) Exec() *metadata.ExecutionContext { return m.opts.Exec }

// CaseSensitive reports whether names were compared exactly.
func (m *Model) CaseSensitive() bool { return m.opts.CaseSensitive }

// Symbol returns the symbol of a name node, or nil.
func (m *Model) Symbol(n *parser.Name) *Symbol { return m.symbols[n] }

// Symbols returns all symbols in source order.
func (m *Model) Symbols() []*Symbol { return m.ordered }

// Diagnostics returns the recorded problems in source order.
func (m *Model) Diagnostics() []Diagnostic { return m.diagnostics }

// Scopes returns every recorded scope.
func (m *Model) Scopes() []*Scope { return m.scopes }

// QueryColumns returns the row shape of a (sub)query of the statement.
func (m *Model) QueryColumns(q *parser.SelectStmt) []*ResultColumn { return m.queries[q] }

// ContextAt returns the data context of the innermost scope covering
// offset, or nil when the offset is outside the statement.
func (m *Model) ContextAt(offset int) *QueryDataContext {
	var best *Scope
	for _, s := range m.scopes {
		if !s.Span.Covers(offset) {
			continue
		}
		if best == nil || s.Span.Len() <= best.Span.Len() {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return best.Context
}

// LexicalItemAt returns the innermost lexical item covering offset.
func (m *Model) LexicalItemAt(offset int) *LexicalItem {
	var best *LexicalItem
	for _, li := range m.lexical {
		span := li.Node.Span()
		if !span.Covers(offset) {
			continue
		}
		if best == nil || span.Len() < best.Node.Span().Len() {
			best = li
		}
	}
	return best
}

func (m *Model) resolver(ctx context.Context) *nameResolver {
	return &nameResolver{ctx: ctx, dialect: m.opts.Dialect, exec: m.opts.Exec, logger: m.opts.Logger}
}

func (m *Model) addSymbol(s *Symbol) {
	if _, dup := m.symbols[s.Name()]; dup {
		panic("semantic: name " + s.Text() + " classified twice")
	}
	m.symbols[s.Name()] = s
	m.ordered = append(m.ordered, s)
}

func (m *Model) addDiagnostic(span token.Span, sev Severity, msg string) {
	m.diagnostics = append(m.diagnostics, Diagnostic{Span: span, Severity: sev, Message: msg})
}

func (m *Model) addScope(span token.Span, ctx *QueryDataContext) {
	if span.IsValid() {
		m.scopes = append(m.scopes, &Scope{Span: span, Context: ctx})
	}
}

func (m *Model) addLexical(kind LexicalKind, node parser.Node, symbols []*Symbol, pending Origin) {
	m.lexical = append(m.lexical, &LexicalItem{Kind: kind, Node: node, Symbols: symbols, Pending: pending})
}

func (m *Model) finish() {
	sort.SliceStable(m.ordered, func(i, j int) bool {
		return m.ordered[i].Span().Start.Offset < m.ordered[j].Span().Start.Offset
	})
	sort.SliceStable(m.diagnostics, func(i, j int) bool {
		return m.diagnostics[i].Span.Start.Offset < m.diagnostics[j].Span.Start.Offset
	})
}
