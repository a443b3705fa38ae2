package semantic

import (
	"context"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Type names given to literals and predicates.
const (
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumeric = "numeric"
	TypeText    = "text"
	TypeRecord  = "record"
)

// typer computes expression types bottom-up. Names must be resolved, and
// children typed, before their parent is typed.
type typer struct {
	names   map[*parser.Name]resolution
	types   map[parser.Expr]metadata.DataType
	queries map[*parser.SelectStmt][]*ResultColumn
}

func newTyper(queries map[*parser.SelectStmt][]*ResultColumn) *typer {
	return &typer{
		names:   make(map[*parser.Name]resolution),
		types:   make(map[parser.Expr]metadata.DataType),
		queries: queries,
	}
}

func (t *typer) typeOf(e parser.Expr) metadata.DataType {
	if e == nil {
		return metadata.DataType{}
	}
	return t.types[e]
}

func (t *typer) nameType(n *parser.Name) metadata.DataType {
	if n == nil {
		return metadata.DataType{}
	}
	return t.names[n].typ
}

// record types e and stores the result.
func (t *typer) record(e parser.Expr) metadata.DataType {
	typ := t.compute(e)
	t.types[e] = typ
	return typ
}

func (t *typer) compute(e parser.Expr) metadata.DataType {
	named := func(name string) metadata.DataType { return metadata.DataType{Name: name} }

	switch e := e.(type) {
	case *parser.ColumnRef:
		if e.TrailingDot || len(e.Path) == 0 {
			return metadata.DataType{}
		}
		return t.nameType(e.Path[len(e.Path)-1])
	case *parser.TupleRef:
		return t.nameType(e.Star)
	case *parser.MemberAccess:
		return t.nameType(e.Member)
	case *parser.Literal:
		switch e.Kind {
		case parser.LiteralNumber:
			if strings.ContainsAny(e.Value, ".eE") {
				return named(TypeNumeric)
			}
			return named(TypeInteger)
		case parser.LiteralString:
			return named(TypeText)
		case parser.LiteralBool:
			return named(TypeBoolean)
		}
		return metadata.DataType{}
	case *parser.BinaryExpr:
		switch e.Op {
		case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT:
			if l := t.typeOf(e.Left); l.Name != "" {
				return l
			}
			return t.typeOf(e.Right)
		case token.DPIPE:
			return named(TypeText)
		}
		return named(TypeBoolean)
	case *parser.UnaryExpr:
		if e.Op == token.NOT {
			return named(TypeBoolean)
		}
		return t.typeOf(e.Expr)
	case *parser.FuncCall:
		if len(e.Name) == 0 {
			row := named(TypeRecord)
			for i, arg := range e.Args {
				row.Fields = append(row.Fields, metadata.Field{Name: "f" + strconv.Itoa(i+1), Type: t.typeOf(arg)})
			}
			return row
		}
		return t.nameType(e.Name[len(e.Name)-1])
	case *parser.CaseExpr:
		for _, when := range e.Whens {
			if typ := t.typeOf(when.Result); typ.Name != "" {
				return typ
			}
		}
		return t.typeOf(e.Else)
	case *parser.CastExpr:
		return named(strings.ToLower(e.TypeName))
	case *parser.InExpr, *parser.BetweenExpr, *parser.IsExpr, *parser.ExistsExpr:
		return named(TypeBoolean)
	case *parser.SubqueryExpr:
		if cols := t.queries[e.Query]; len(cols) > 0 {
			return cols[0].Type
		}
		return metadata.DataType{}
	case *parser.ParenExpr:
		return t.typeOf(e.Expr)
	}
	return metadata.DataType{}
}

// TypeInfo is the result of the second pass.
type TypeInfo struct {
	types   map[parser.Expr]metadata.DataType
	classes map[*parser.Name]Classification
	columns []*ResultColumn
}

// TypeOf returns the value type of an expression of the statement. The
// zero DataType means unknown.
func (ti *TypeInfo) TypeOf(e parser.Expr) metadata.DataType {
	return ti.types[e]
}

// ClassificationOf returns the classification a name resolved to in the
// second pass.
func (ti *TypeInfo) ClassificationOf(n *parser.Name) Classification {
	if c, ok := ti.classes[n]; ok {
		return c
	}
	return ClassUnknown
}

// Columns returns the result columns of the statement with their types.
func (ti *TypeInfo) Columns() []*ResultColumn { return ti.columns }

// ExprAt returns the innermost typed expression whose span contains offset,
// or nil. Expressions of unknown type are skipped.
func (ti *TypeInfo) ExprAt(offset int) (parser.Expr, metadata.DataType) {
	var best parser.Expr
	var typ metadata.DataType
	for e, t := range ti.types {
		if t.Name == "" {
			continue
		}
		span := e.Span()
		if !span.Contains(offset) {
			continue
		}
		if best == nil || span.Len() < best.Span().Len() ||
			(span.Len() == best.Span().Len() && span.Start.Offset > best.Span().Start.Offset) {
			best, typ = e, t
		}
	}
	return best, typ
}

// ColumnOf returns the result column declared by sym, e.g. a select-list
// alias, or nil.
func (ti *TypeInfo) ColumnOf(sym *Symbol) *ResultColumn {
	for _, col := range ti.columns {
		if col.Symbol == sym {
			return col
		}
	}
	return nil
}

// ResolveTypes runs the second pass: every expression recorded by Analyze
// is replayed over the finished row shape of its scope, resolving names
// with the same rules as the first pass and typing each node.
func (m *Model) ResolveTypes(ctx context.Context) *TypeInfo {
	ti := &TypeInfo{
		types:   make(map[parser.Expr]metadata.DataType),
		classes: make(map[*parser.Name]Classification),
	}
	for _, sym := range m.ordered {
		ti.classes[sym.Name()] = sym.Classification()
	}

	r := m.resolver(ctx)
	t := newTyper(m.queries)
	t.types = ti.types
	rows := make(map[*QueryDataContext]*RowsDataContext)

	for _, se := range m.exprs {
		if ctx.Err() != nil {
			break
		}
		data, ok := rows[se.ctx]
		if !ok {
			data = NewRowsDataContext(se.ctx)
			rows[se.ctx] = data
		}
		var scope DataScope = data
		if se.aliases != nil {
			scope = aliasScope{DataScope: data, aliases: se.aliases}
		}

		walkExpr(se.expr, func(e parser.Expr) {
			for name, res := range resolveNode(r, t, scope, e, se.flags) {
				t.names[name] = res
				ti.classes[name] = res.class
			}
			t.record(e)
		}, nil)
	}

	for _, col := range m.Result {
		c := *col
		if col.Expr != nil {
			if typ := ti.types[col.Expr]; typ.Name != "" {
				c.Type = typ
			}
		}
		ti.columns = append(ti.columns, &c)
	}
	return ti
}

// resolveNode resolves the names carried by one expression node.
func resolveNode(r *nameResolver, t *typer, scope DataScope, e parser.Expr, flags resolveFlags) map[*parser.Name]resolution {
	out := make(map[*parser.Name]resolution)
	switch e := e.(type) {
	case *parser.ColumnRef:
		for i, res := range r.resolveColumnRef(scope, e.Path, e.TrailingDot, flags) {
			out[e.Path[i]] = res
		}
	case *parser.TupleRef:
		qual, star := r.resolveTuple(scope, e)
		for i, res := range qual {
			out[e.Qualifier[i]] = res
		}
		if e.Star != nil {
			out[e.Star] = star
		}
	case *parser.MemberAccess:
		if e.Member != nil {
			out[e.Member] = r.resolveMember(t.typeOf(e.Base), e.Member)
		}
	case *parser.FuncCall:
		for i, res := range r.resolveFunction(e.Name) {
			out[e.Name[i]] = res
		}
	}
	return out
}
