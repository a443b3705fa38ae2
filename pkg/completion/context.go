package completion

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// State is the kind of position a completion was requested at.
type State int

// Completion states.
const (
	// StateOffQuery is outside any query: only statement-start keywords
	// are proposed.
	StateOffQuery State = iota
	// StateEmpty is a query without a body; nothing is proposed.
	StateEmpty
	StateInQuery
)

func (s State) String() string {
	switch s {
	case StateOffQuery:
		return "off-query"
	case StateEmpty:
		return "empty"
	case StateInQuery:
		return "in-query"
	}
	return "unknown"
}

// Column qualification modes.
const (
	QualifyAuto   = "auto"
	QualifyAlways = "always"
	QualifyNever  = "never"
)

// Settings tune candidate gathering.
type Settings struct {
	SearchInsideWords bool   `koanf:"search_inside_words"`
	CaseSensitive     bool   `koanf:"case_sensitive"`
	SearchGlobally    bool   `koanf:"search_globally"`
	MaxItems          int    `koanf:"max_items"`
	ProposeJoins      bool   `koanf:"propose_joins"`
	QualifyColumns    string `koanf:"qualify_columns"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxItems:       200,
		ProposeJoins:   true,
		QualifyColumns: QualifyAuto,
	}
}

// Request carries the per-request options of PrepareProposal.
type Request struct {
	Settings Settings
	Logger   *slog.Logger
}

// CompletionContext is a classified cursor position in a script item.
type CompletionContext struct {
	State   State
	Item    *parser.ScriptItem
	Offset  int
	Exec    *metadata.ExecutionContext
	Dialect *dialect.Dialect
}

// PrepareCompletionContext classifies offset within item. A nil item is
// an off-query position. exec may be nil when no metadata is available; a
// nil dialect means dialect.Default().
func PrepareCompletionContext(item *parser.ScriptItem, offset int, exec *metadata.ExecutionContext, d *dialect.Dialect) *CompletionContext {
	if d == nil {
		d = dialect.Default()
	}
	c := &CompletionContext{Item: item, Offset: offset, Exec: exec, Dialect: d}
	switch q := queryOf(item); {
	case q == nil:
		c.State = StateOffQuery
	case !hasCore(q):
		c.State = StateEmpty
	default:
		c.State = StateInQuery
	}
	return c
}

func queryOf(item *parser.ScriptItem) *parser.SelectStmt {
	if item == nil {
		return nil
	}
	return item.Query()
}

// hasCore reports whether q has at least one parsed SELECT core, as
// opposed to a WITH clause with nothing after it.
func hasCore(q *parser.SelectStmt) bool {
	if q.Body == nil {
		return false
	}
	for _, core := range q.Body.Cores() {
		if core != nil && core.Pos.Len() > 0 {
			return true
		}
	}
	return false
}

// PrepareProposal gathers the completion sets at the position. It never
// fails: provider failures drop the affected candidates, and a cancelled
// ctx returns what was gathered up to that point. The result is never nil.
func (c *CompletionContext) PrepareProposal(ctx context.Context, req Request) []*CompletionSet {
	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("request", uuid.NewString()))

	s := &requestState{
		ctx:      ctx,
		logger:   logger,
		settings: req.Settings,
		dialect:  c.Dialect,
		exec:     c.Exec,
		item:     c.Item,
		offset:   c.Offset,
		sets:     newSetBuilder(c.Offset),
	}
	if s.dialect == nil {
		s.dialect = dialect.Default()
	}

	switch c.State {
	case StateOffQuery:
		s.offQuery()
	case StateInQuery:
		s.inQuery()
	}

	sets := s.sets.build(s.settings.MaxItems)
	logger.Debug("completion prepared",
		slog.Int("offset", c.Offset),
		slog.String("state", c.State.String()),
		slog.Int("sets", len(sets)))
	return sets
}

// requestState is everything one completion request works with. It is
// created per request and implements semantic.OriginVisitor.
type requestState struct {
	ctx      context.Context
	logger   *slog.Logger
	settings Settings
	dialect  *dialect.Dialect
	exec     *metadata.ExecutionContext
	item     *parser.ScriptItem
	offset   int

	in     *parser.Inspection
	model  *semantic.Model
	scope  *semantic.QueryDataContext
	filter WordEntry

	// referenced is the row source named in front of the cursor, e.g. "t"
	// in "t.|". Join proposals are restricted to it.
	referenced *semantic.SourceResolutionResult

	sets *setBuilder
}

func (s *requestState) offQuery() {
	in := parser.Inspect(s.item, s.offset)
	if in.InLiteral || !isAlphanumeric(in.Filter) {
		return
	}
	s.in = in
	s.filter = NewWordEntry(in.FilterOffset(), in.Filter)
	s.addKeywords(s.dialect.StatementStartKeywords())
}

func (s *requestState) inQuery() {
	in := parser.Inspect(s.item, s.offset)
	if in.InLiteral {
		return
	}
	s.in = in
	s.filter = NewWordEntry(in.FilterOffset(), in.Filter)

	s.model = semantic.AnalyzeItem(s.ctx, s.item, semantic.Options{
		Dialect:       s.dialect,
		Exec:          s.exec,
		CaseSensitive: s.settings.CaseSensitive,
		Logger:        s.logger,
	})
	if s.model == nil || len(s.model.Scopes()) == 0 {
		return
	}
	s.scope = s.contextNear()

	var sym *semantic.Symbol
	handled := false
	if in.Term != nil || in.PeriodTyped || s.dotBeforeCursor() {
		if li := s.model.LexicalItemAt(s.offset); li != nil {
			var origin semantic.Origin
			if in.Term == nil {
				origin = li.Pending
			} else if sym = li.SymbolAt(s.offset); sym != nil {
				origin = sym.Origin()
			}
			if origin != nil {
				s.logger.Debug("completing from origin", slog.String("origin", semantic.OriginName(origin)))
				origin.Accept(s)
				handled = true
			}
		}
	}

	if !handled {
		if in.PeriodTyped || len(in.Path) > 1 {
			s.gatherFromFragments()
		} else {
			s.gatherFree()
		}
	}

	if in.Expect == parser.ExpectJoinCondition && s.settings.ProposeJoins {
		s.gatherJoins()
	}

	if in.KeywordsAllowed && isAlphanumeric(in.Filter) && keywordPosition(sym) {
		s.addKeywords(s.dialect.Keywords())
	}
}

// keywordPosition reports whether the word at the cursor may be a keyword:
// it has no symbol or one that did not bind to anything.
func keywordPosition(sym *semantic.Symbol) bool {
	if sym == nil {
		return true
	}
	switch sym.Classification() {
	case semantic.ClassUnknown, semantic.ClassError, semantic.ClassReserved:
		return true
	}
	return false
}

// contextNear returns the data context at the cursor, or the context of
// the closest scope ending before it when the cursor is past the last
// parsed clause.
func (s *requestState) contextNear() *semantic.QueryDataContext {
	if c := s.model.ContextAt(s.offset); c != nil {
		return c
	}
	scopes := s.model.Scopes()
	var best *semantic.Scope
	for _, sc := range scopes {
		if sc.Span.End.Offset > s.offset {
			continue
		}
		if best == nil || sc.Span.End.Offset > best.Span.End.Offset {
			best = sc
		}
	}
	if best == nil {
		best = scopes[len(scopes)-1]
	}
	return best.Context
}

// dotBeforeCursor reports whether a period ends right at the cursor, as
// in "(c.home).".
func (s *requestState) dotBeforeCursor() bool {
	for i := len(s.item.Tokens) - 1; i >= 0; i-- {
		tok := s.item.Tokens[i]
		if tok.Type == token.EOF || tok.Pos.Offset >= s.offset {
			continue
		}
		return tok.Type == token.DOT && tok.End.Offset == s.offset
	}
	return false
}

// gatherFree proposes what the expected grammar category allows when
// nothing in front of the cursor narrows it down.
func (s *requestState) gatherFree() {
	if s.scope == nil {
		return
	}
	switch s.in.Expect {
	case parser.ExpectColumnReference, parser.ExpectJoinCondition:
		s.VisitValueRef(&semantic.ValueRefFromContext{Context: s.scope})
	case parser.ExpectColumnName:
		s.VisitColumnName(&semantic.ColumnNameFromContext{Context: s.scope})
	case parser.ExpectTableReference:
		s.VisitDbObjectFromContext(&semantic.DbObjectFromContext{Context: s.scope, Kinds: tableKinds})
	}
}

// gatherFromFragments completes a dotted path the analyzer did not record:
// the qualifier names a row source, else a catalog object.
func (s *requestState) gatherFromFragments() {
	parts := parser.Names(s.in.Qualifier())
	if len(parts) == 0 {
		return
	}
	if s.in.Expect != parser.ExpectTableReference && s.scope != nil {
		byAlias, byName := s.scope.MatchSources(parts)
		if len(byAlias)+len(byName) > 0 {
			s.addMatchedSources(byAlias, byName)
			return
		}
	}
	if obj := s.findObject(parts); obj != nil {
		var kinds []metadata.Kind
		if s.in.Expect == parser.ExpectTableReference {
			kinds = []metadata.Kind{metadata.KindUnknown}
		}
		s.VisitDbObjectFromDbObject(&semantic.DbObjectFromDbObject{Object: obj, Kinds: kinds})
	}
}

// findObject resolves path in the exposed containers, innermost first.
func (s *requestState) findObject(path []string) metadata.Object {
	for _, c := range s.exec.Exposed() {
		obj, err := metadata.Find(s.ctx, c, path)
		if err == nil {
			return obj
		}
		if !metadata.IsNotFound(err) {
			s.metadataError(parser.JoinNames(s.in.Qualifier()), err)
			return nil
		}
	}
	return nil
}
