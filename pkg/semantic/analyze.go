package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Analyze runs the first pass over stmt: it builds the data context of
// every scope, classifies every name and records diagnostics. Metadata is
// read through opts.Exec; provider failures leave the affected sources
// unresolved. A nil stmt yields an empty model.
func Analyze(ctx context.Context, stmt *parser.SelectStmt, opts Options) *Model {
	if opts.Dialect == nil {
		opts.Dialect = dialect.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	m := newModel(stmt, opts)
	if stmt == nil {
		return m
	}

	a := &analyzer{m: m, r: m.resolver(ctx), t: newTyper(m.queries), logger: opts.Logger}
	root := NewQueryDataContext(opts.Dialect, opts.CaseSensitive)
	m.Result = a.analyzeQuery(stmt, root)
	m.finish()

	opts.Logger.Debug("analyzed statement",
		slog.Int("symbols", len(m.ordered)),
		slog.Int("diagnostics", len(m.diagnostics)),
		slog.Int("scopes", len(m.scopes)))
	return m
}

// AnalyzeItem analyzes the query of a script item. Items without a query
// yield nil.
func AnalyzeItem(ctx context.Context, item *parser.ScriptItem, opts Options) *Model {
	if item == nil {
		return nil
	}
	q := item.Query()
	if q == nil {
		return nil
	}
	return Analyze(ctx, q, opts)
}

type analyzer struct {
	m      *Model
	r      *nameResolver
	t      *typer
	logger *slog.Logger
}

// exprMode tells how names of an expression are resolved.
type exprMode struct {
	rowsData bool            // against the finished rows of ctx only
	aliases  []*ResultColumn // select-list aliases visible to ORDER BY / GROUP BY
}

// define turns a resolution into the symbol of name.
func (a *analyzer) define(name *parser.Name, res resolution, origin Origin) *Symbol {
	if res.def == nil {
		res.def = &Unresolved{}
	}
	sym := NewSymbolBuilder(name).Classify(res.class).Define(res.def).SetOrigin(origin).Build()
	a.m.addSymbol(sym)
	a.t.names[name] = res
	if res.class == ClassError && res.message != "" {
		a.m.addDiagnostic(name.Pos, SeverityError, res.message)
	}
	return sym
}

func (a *analyzer) analyzeQuery(q *parser.SelectStmt, base *QueryDataContext) []*ResultColumn {
	if q == nil {
		return nil
	}
	scope := base
	if q.With != nil {
		scope = a.analyzeWith(q.With, scope)
	}
	cols := a.analyzeBody(q.Body, scope)
	a.m.queries[q] = cols
	return cols
}

func (a *analyzer) analyzeWith(w *parser.WithClause, scope *QueryDataContext) *QueryDataContext {
	for _, cte := range w.CTEs {
		if cte == nil || cte.Name == nil {
			continue
		}
		def := &CTEDefinition{Node: cte, Unresolved: true}
		def.Symbol = a.define(cte.Name, resolution{class: ClassCTE}, nil)
		a.m.addLexical(LexicalSymbol, cte.Name, []*Symbol{def.Symbol}, nil)

		bodyScope := scope
		if w.Recursive {
			bodyScope = scope.WithCTE(def)
		}
		cols := a.analyzeQuery(cte.Select, bodyScope)
		def.Columns = a.renameColumns(cte, cols)
		def.Unresolved = cte.Select == nil
		scope = scope.WithCTE(def)
	}
	return scope
}

// renameColumns applies the column list of a CTE to its projection.
func (a *analyzer) renameColumns(cte *parser.CTE, cols []*ResultColumn) []*ResultColumn {
	if len(cte.Columns) == 0 {
		return cols
	}
	if cte.Select != nil && len(cte.Columns) > len(cols) {
		a.m.addDiagnostic(cte.Name.Pos, SeverityError, fmt.Sprintf(
			"WITH query %q has %d columns available but %d columns specified",
			cte.Name.Value, len(cols), len(cte.Columns)))
	}

	out := make([]*ResultColumn, 0, len(cols))
	for i, col := range cols {
		c := *col
		if i < len(cte.Columns) {
			name := cte.Columns[i]
			var def Definition = &Unresolved{}
			switch {
			case col.Symbol != nil:
				def = &BySymbol{Symbol: col.Symbol}
			case col.Attribute != nil:
				def = &ByDbObject{Object: col.Attribute}
			}
			c.Name = name.Value
			c.Symbol = a.define(name, resolution{class: ClassColumnDerived, def: def, typ: col.Type}, nil)
			a.m.addLexical(LexicalSymbol, name, []*Symbol{c.Symbol}, nil)
		}
		out = append(out, &c)
	}
	for _, name := range cte.Columns[min(len(cols), len(cte.Columns)):] {
		res := unknown()
		if cte.Select != nil {
			res = resolution{class: ClassError}
		}
		a.define(name, res, nil)
	}
	return out
}

func (a *analyzer) analyzeBody(b *parser.SelectBody, scope *QueryDataContext) []*ResultColumn {
	if b == nil {
		return nil
	}
	var proj *QueryDataContext
	for _, core := range b.Cores() {
		if core == nil {
			continue
		}
		cols := a.analyzeCore(core, scope)
		p := scope.Projection(cols)
		if proj == nil {
			proj = p
			continue
		}
		if len(proj.Columns()) != len(cols) {
			a.m.addDiagnostic(core.Pos, SeverityError,
				"each query of a set operation must have the same number of columns")
		}
		proj = SetOperation(proj, p)
	}
	if proj == nil {
		return nil
	}

	if len(b.Ops) > 0 {
		a.m.addScope(b.Pos, proj)
		for _, o := range b.OrderBy {
			if o != nil {
				a.resolveExpr(proj, o.Expr, exprMode{rowsData: true})
			}
		}
		a.resolveExpr(proj, b.Limit, exprMode{rowsData: true})
		a.resolveExpr(proj, b.Offset, exprMode{rowsData: true})
	}
	return proj.Columns()
}

func (a *analyzer) analyzeCore(core *parser.SelectCore, scope *QueryDataContext) []*ResultColumn {
	base := scope.Empty()
	from := base
	if core.From != nil {
		for i, item := range core.From.Items {
			if item == nil {
				continue
			}
			itemCtx := a.analyzeTableRef(item.Source, base, from)
			if i == 0 {
				from = itemCtx
			} else {
				from = Join(from, itemCtx)
			}
			for _, j := range item.Joins {
				if j == nil {
					continue
				}
				right := a.analyzeTableRef(j.Right, base, from)
				var shared []string
				if j.Natural {
					shared = CommonColumnNames(from, right)
				} else {
					shared = parser.Names(j.Using)
				}
				joined := JoinUsing(from, right, shared)
				a.m.addScope(j.OnSpan, joined)
				a.resolveExpr(joined, j.On, exprMode{})
				for _, name := range j.Using {
					a.resolveUsing(from, right, joined, name)
				}
				from = joined
			}
		}
	}
	a.m.addScope(core.Pos, from)

	cols := a.analyzeSelectList(core, from)
	a.resolveExpr(from, core.Where, exprMode{})
	for _, g := range core.GroupBy {
		a.resolveExpr(from, g, exprMode{aliases: cols})
	}
	a.resolveExpr(from, core.Having, exprMode{})
	for _, o := range core.OrderBy {
		if o != nil {
			a.resolveExpr(from, o.Expr, exprMode{aliases: cols})
		}
	}
	a.resolveExpr(from, core.Limit, exprMode{})
	a.resolveExpr(from, core.Offset, exprMode{})
	return cols
}

// analyzeTableRef resolves one FROM item. base is the empty context of the
// query, left the context of the items in front of it.
func (a *analyzer) analyzeTableRef(ref parser.TableRef, base, left *QueryDataContext) *QueryDataContext {
	switch t := ref.(type) {
	case *parser.TableName:
		return base.ForSource(a.analyzeTableName(t, base))

	case *parser.DerivedTable:
		inner := base
		if t.Lateral {
			inner = left.Nested()
		}
		cols := a.analyzeQuery(t.Select, inner)
		src := &SourceResolutionResult{Node: t, Kind: SourceSubquery, Unresolved: t.Select == nil}
		src.Columns = adoptColumns(cols, src)
		if t.Alias != nil {
			src.Path = []string{t.Alias.Value}
			a.defineAlias(t.Alias, src, nil)
		}
		return base.ForSource(src)

	case *parser.TableFunction:
		a.resolveExpr(left, t.Call, exprMode{})
		src := &SourceResolutionResult{Node: t, Kind: SourceFunction, Unresolved: true}
		switch {
		case t.Alias != nil:
			src.Path = []string{t.Alias.Value}
			a.defineAlias(t.Alias, src, nil)
		case t.Call != nil && len(t.Call.Name) > 0:
			src.Path = []string{t.Call.Name[len(t.Call.Name)-1].Value}
		}
		return base.ForSource(src)
	}
	return base
}

func (a *analyzer) analyzeTableName(t *parser.TableName, base *QueryDataContext) *SourceResolutionResult {
	src := &SourceResolutionResult{Node: t, Kind: SourceTable, Path: parser.Names(t.Path)}
	path := t.Path
	if len(path) == 0 {
		src.Unresolved = true
		a.defineAlias(t.Alias, src, nil)
		return src
	}

	if len(path) == 1 && !t.TrailingDot {
		if def := base.LookupCTE(path[0].Value); def != nil {
			sym := a.define(path[0], resolution{class: ClassCTE, def: &BySymbol{Symbol: def.Symbol}},
				&DbObjectFromContext{Context: base, Kinds: tableKinds})
			a.m.addLexical(LexicalSymbol, t, []*Symbol{sym}, nil)
			src.Kind = SourceCTE
			src.IsCTESubquery = true
			src.Unresolved = def.Unresolved
			src.Columns = adoptColumns(def.Columns, src)
			a.defineAlias(t.Alias, src, sym)
			return src
		}
	}

	chain, err := a.r.objectChain(src.Path)
	if err != nil {
		a.metadataFailure(t.Pos, parser.JoinNames(path), err)
	}
	checked := err == nil && len(a.r.exec.Exposed()) > 0

	n := len(path)
	segs := make([]resolution, n)
	for i := range path {
		switch {
		case i < len(chain):
			segs[i] = objectResolution(chain[i])
		case i == len(chain) && checked:
			if i == n-1 && !t.TrailingDot {
				segs[i] = failed("table %q not found", parser.JoinNames(path))
			} else {
				segs[i] = failed("%q not found", path[i].Value)
			}
		default:
			segs[i] = unknown()
		}
	}

	var table metadata.Table
	if !t.TrailingDot && len(chain) == n {
		if tbl, ok := chain[n-1].(metadata.Table); ok {
			table = tbl
		} else {
			segs[n-1] = failed("%q is not a table", path[n-1].Value)
		}
	}

	syms := make([]*Symbol, n)
	for i, name := range path {
		kinds := containerKinds
		if i == n-1 && !t.TrailingDot {
			kinds = tableKinds
		}
		var origin Origin
		switch {
		case i == 0:
			origin = &DbObjectFromContext{Context: base, Kinds: kinds}
		case i-1 < len(chain):
			origin = &DbObjectFromDbObject{Object: chain[i-1], Kinds: kinds}
		}
		syms[i] = a.define(name, segs[i], origin)
	}

	kind := LexicalSymbol
	var pending Origin
	if n > 1 || t.TrailingDot {
		kind = LexicalQualifiedName
	}
	if t.TrailingDot && len(chain) == n {
		pending = &DbObjectFromDbObject{Object: chain[n-1], Kinds: childKinds(chain[n-1])}
	}
	a.m.addLexical(kind, t, syms, pending)

	if table == nil {
		src.Unresolved = true
		a.defineAlias(t.Alias, src, nil)
		return src
	}
	src.Table = table
	src.Path = metadata.QualifiedName(table)
	attrs, err := table.Attributes(a.r.ctx)
	if err != nil {
		a.metadataFailure(t.Pos, parser.JoinNames(path), err)
		src.Unresolved = true
	} else {
		for _, attr := range attrs {
			src.Columns = append(src.Columns, &ResultColumn{
				Name:      attr.Name(),
				Type:      attr.DataType(),
				Attribute: attr,
				Table:     table,
				Source:    src,
			})
		}
	}
	a.defineAlias(t.Alias, src, syms[n-1])
	return src
}

// defineAlias classifies the alias of a row source and attaches it.
func (a *analyzer) defineAlias(alias *parser.Name, src *SourceResolutionResult, target *Symbol) {
	if alias == nil {
		return
	}
	var def Definition = &Unresolved{}
	if target != nil {
		def = &BySymbol{Symbol: target}
	}
	src.Alias = a.define(alias, resolution{class: ClassTableAlias, def: def}, nil)
	a.m.addLexical(LexicalSymbol, alias, []*Symbol{src.Alias}, nil)
}

func (a *analyzer) resolveUsing(left, right, joined *QueryDataContext, name *parser.Name) {
	lcol := left.ResolveColumn(name.Value)
	rcol := right.ResolveColumn(name.Value)
	var res resolution
	switch {
	case lcol != nil && rcol != nil:
		res = columnResolution(lcol, false)
	case lcol == nil && !left.HasUnresolvedSource():
		res = failed("column %q specified in USING clause does not exist in left table", name.Value)
	case rcol == nil && !right.HasUnresolvedSource():
		res = failed("column %q specified in USING clause does not exist in right table", name.Value)
	default:
		res = unknown()
	}
	sym := a.define(name, res, &ColumnNameFromContext{Context: joined})
	a.m.addLexical(LexicalSymbol, name, []*Symbol{sym}, nil)
}

func (a *analyzer) analyzeSelectList(core *parser.SelectCore, from *QueryDataContext) []*ResultColumn {
	var cols []*ResultColumn
	for _, item := range core.Columns {
		if item == nil {
			continue
		}
		switch {
		case item.Star:
			cols = append(cols, cloneColumns(from.Columns())...)

		case item.TableStar != nil:
			a.resolveExpr(from, item.TableStar, exprMode{})
			if star := item.TableStar.Star; star != nil {
				if src := a.t.names[star].source; src != nil {
					cols = append(cols, cloneColumns(src.Columns)...)
				}
			}

		case item.Expr != nil:
			a.resolveExpr(from, item.Expr, exprMode{})
			col := &ResultColumn{Name: outputName(item.Expr), Type: a.t.typeOf(item.Expr), Expr: item.Expr}
			if ref, ok := item.Expr.(*parser.ColumnRef); ok && ref.Column() != nil {
				if rc := a.t.names[ref.Column()].column; rc != nil {
					col.Attribute, col.Table, col.Source = rc.Attribute, rc.Table, rc.Source
				}
				col.Symbol = a.m.symbols[ref.Column()]
			}
			if item.Alias != nil {
				var def Definition = &Unresolved{}
				if col.Symbol != nil {
					def = &BySymbol{Symbol: col.Symbol}
				}
				col.Name = item.Alias.Value
				col.Symbol = a.define(item.Alias, resolution{class: ClassColumnDerived, def: def, typ: col.Type}, nil)
				a.m.addLexical(LexicalSymbol, item.Alias, []*Symbol{col.Symbol}, nil)
			}
			cols = append(cols, col)
		}
	}
	return cols
}

// resolveExpr classifies the names of e in ctx and records e for the
// second pass. Subqueries are analyzed with ctx as their outer scope.
func (a *analyzer) resolveExpr(ctx *QueryDataContext, e parser.Expr, mode exprMode) {
	if e == nil {
		return
	}
	flags := resolveFlags{rowRefs: true}
	a.m.exprs = append(a.m.exprs, scopedExpr{expr: e, ctx: ctx, flags: flags, aliases: mode.aliases})

	var scope DataScope = ctx
	var valueOrigin Origin = &ValueRefFromContext{Context: ctx}
	if mode.rowsData {
		data := NewRowsDataContext(ctx)
		scope = data
		valueOrigin = &RowsDataRef{Data: data}
	}
	if mode.aliases != nil {
		scope = aliasScope{DataScope: scope, aliases: mode.aliases}
	}

	walkExpr(e, func(node parser.Expr) {
		a.resolveNode(ctx, scope, node, flags, valueOrigin)
		a.t.record(node)
	}, func(q *parser.SelectStmt) {
		a.analyzeQuery(q, ctx.Nested())
	})
}

func (a *analyzer) resolveNode(ctx *QueryDataContext, scope DataScope, node parser.Expr, flags resolveFlags, valueOrigin Origin) {
	switch e := node.(type) {
	case *parser.ColumnRef:
		segs := a.r.resolveColumnRef(scope, e.Path, e.TrailingDot, flags)
		syms := a.definePath(ctx, e.Path, segs, valueOrigin, len(e.Path) == 1 && !e.TrailingDot)
		kind := LexicalSymbol
		var pending Origin
		if len(e.Path) > 1 || e.TrailingDot {
			kind = LexicalQualifiedName
		}
		if e.TrailingDot && len(segs) > 0 {
			pending = segs[len(segs)-1].next(ctx)
		}
		a.m.addLexical(kind, e, syms, pending)

	case *parser.TupleRef:
		qual, star := a.r.resolveTuple(scope, e)
		syms := a.definePath(ctx, e.Qualifier, qual, valueOrigin, false)
		if e.Star != nil {
			var origin Origin
			if star.source != nil {
				origin = &ExpandableTupleRef{Tuple: e, Source: star.source}
			}
			syms = append(syms, a.define(e.Star, star, origin))
		}
		a.m.addLexical(LexicalTupleRef, e, syms, nil)

	case *parser.MemberAccess:
		base := a.t.typeOf(e.Base)
		var syms []*Symbol
		if e.Member != nil {
			syms = append(syms, a.define(e.Member, a.r.resolveMember(base, e.Member), &MemberOfType{Type: base}))
		}
		var pending Origin
		if e.TrailingDot && base.IsComposite() {
			pending = &MemberOfType{Type: base}
		}
		a.m.addLexical(LexicalMemberAccess, e, syms, pending)

	case *parser.FuncCall:
		if len(e.Name) == 0 {
			return
		}
		segs := a.r.resolveFunction(e.Name)
		syms := a.definePath(ctx, e.Name, segs, valueOrigin, true)
		kind := LexicalSymbol
		if len(e.Name) > 1 {
			kind = LexicalQualifiedName
		}
		a.m.addLexical(kind, namePath(e.Name), syms, nil)
	}
}

// definePath defines the symbols of a dotted name. The first segment gets
// valueOrigin when it stands alone, a row source origin otherwise; every
// later segment gets the origin implied by the segment in front of it.
func (a *analyzer) definePath(ctx *QueryDataContext, path []*parser.Name, segs []resolution, valueOrigin Origin, single bool) []*Symbol {
	syms := make([]*Symbol, len(path))
	for i, name := range path {
		var origin Origin
		switch {
		case i > 0:
			origin = segs[i-1].next(ctx)
		case single:
			origin = valueOrigin
		default:
			origin = &RowsSourceRef{Context: ctx}
		}
		syms[i] = a.define(name, segs[i], origin)
	}
	return syms
}

func (a *analyzer) metadataFailure(span token.Span, what string, err error) {
	if errors.Is(err, metadata.ErrCancelled) {
		a.logger.Debug("metadata lookup cancelled", slog.String("object", what))
		return
	}
	if !isProviderFailure(err) {
		return
	}
	a.logger.Warn("metadata lookup failed",
		slog.String("object", what),
		slog.String("error", err.Error()))
	a.m.addDiagnostic(span, SeverityWarning, fmt.Sprintf("metadata for %s is not available: %v", what, err))
}

// childKinds returns the kinds expected after "object." in FROM.
func childKinds(o metadata.Object) []metadata.Kind {
	switch o.Kind() {
	case metadata.KindRoot:
		return []metadata.Kind{metadata.KindCatalog, metadata.KindSchema}
	case metadata.KindCatalog:
		return []metadata.Kind{metadata.KindSchema}
	default:
		return tableKinds
	}
}

// adoptColumns copies the columns of a query so that src is their source.
func adoptColumns(cols []*ResultColumn, src *SourceResolutionResult) []*ResultColumn {
	out := make([]*ResultColumn, len(cols))
	for i, col := range cols {
		c := *col
		c.Source = src
		out[i] = &c
	}
	return out
}

func cloneColumns(cols []*ResultColumn) []*ResultColumn {
	out := make([]*ResultColumn, len(cols))
	for i, col := range cols {
		c := *col
		out[i] = &c
	}
	return out
}

// namePath is the node of a dotted name that has no node of its own, such
// as the name of a function call.
type namePath []*parser.Name

func (p namePath) Span() token.Span {
	var s token.Span
	for _, n := range p {
		s = s.Join(n.Pos)
	}
	return s
}
