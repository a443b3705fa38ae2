package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
)

// resolution is the outcome of resolving one name segment. Both passes
// produce it with the same code; pass 1 turns it into symbols and
// diagnostics, pass 2 into types.
type resolution struct {
	class Classification
	def   Definition
	typ   metadata.DataType

	column *ResultColumn           // resolved column, also the soft pick of an ambiguous name
	source *SourceResolutionResult // resolved row source
	object metadata.Object         // resolved catalog object

	message string // diagnostic for ClassError
}

func unknown() resolution {
	return resolution{class: ClassUnknown, def: &Unresolved{}}
}

func failed(format string, args ...any) resolution {
	return resolution{class: ClassError, def: &Unresolved{}, message: fmt.Sprintf(format, args...)}
}

// next returns the origin for a name typed after this segment and a period.
func (res resolution) next(ctx *QueryDataContext) Origin {
	switch {
	case res.source != nil && res.column == nil && res.class != ClassError:
		return &ColumnRefFromReferencedContext{Context: ctx, Source: res.source}
	case res.typ.IsComposite() && res.class != ClassError:
		return &MemberOfType{Type: res.typ}
	case res.object != nil:
		if _, ok := res.object.(metadata.Container); ok {
			return &DbObjectFromDbObject{Object: res.object}
		}
	}
	return nil
}

type resolveFlags struct {
	rowRefs bool // a row source name may stand for its whole row
}

// nameResolver implements name resolution over any DataScope.
type nameResolver struct {
	ctx     context.Context
	dialect *dialect.Dialect
	exec    *metadata.ExecutionContext
	logger  *slog.Logger
}

// resolveName resolves an unqualified name in a value position:
// global pseudo-columns, then per scope (innermost first) context
// pseudo-columns, columns and row sources, then string literals and
// reserved words. Unmatched names are errors unless some source has an
// unknown shape.
func (r *nameResolver) resolveName(scope DataScope, name *parser.Name, flags resolveFlags) resolution {
	if !name.Quoted {
		if pc, ok := r.dialect.GlobalPseudoColumn(name.Value); ok {
			return pseudoResolution(pc)
		}
	}

	incomplete := false
	for s := scope; s != nil; s = s.Outer() {
		if pc, ok := s.ResolvePseudoColumn(name.Value); ok && !name.Quoted {
			return pseudoResolution(pc)
		}
		if col := s.ResolveColumn(name.Value); col != nil {
			return columnResolution(col, s.IsColumnNameConflicting(name.Value))
		}
		if flags.rowRefs {
			if src := s.ResolveSource([]string{name.Value}); src != nil {
				return sourceResolution(src)
			}
		}
		incomplete = incomplete || s.HasUnresolvedSource()
	}

	if r.dialect.IsStringLiteralToken(name.Raw) {
		return resolution{class: ClassString, def: &Unresolved{}, typ: metadata.DataType{Name: "text"}}
	}
	if !name.Quoted && r.dialect.IsReservedWord(name.Value) {
		return resolution{class: ClassReserved, def: &Unresolved{}}
	}
	if incomplete {
		return unknown()
	}
	return failed("column %q not found", name.Value)
}

// resolveColumnRef resolves every segment of a possibly qualified column
// reference. The longest qualifier naming a row source wins; the segment
// after it is the column and the rest are composite members. Without a
// source the path is a composite column followed by members, or a path of
// catalog objects.
func (r *nameResolver) resolveColumnRef(scope DataScope, path []*parser.Name, trailingDot bool, flags resolveFlags) []resolution {
	n := len(path)
	out := make([]resolution, n)
	if n == 0 {
		return out
	}
	if n == 1 && !trailingDot {
		out[0] = r.resolveName(scope, path[0], flags)
		return out
	}

	qualLen := n - 1
	if trailingDot {
		qualLen = n
	}
	names := parser.Names(path)
	for k := qualLen; k >= 1; k-- {
		for s := scope; s != nil; s = s.Outer() {
			src := s.ResolveSource(names[:k])
			if src == nil {
				continue
			}
			r.classifySourcePath(out[:k], src)
			if k < n {
				out[k] = sourceColumnResolution(s, src, path[k])
				r.resolveMembers(out, path, k+1)
			}
			return out
		}
	}

	first := r.resolveName(scope, path[0], resolveFlags{})
	if first.column != nil || first.class == ClassPseudoColumn {
		out[0] = first
		r.resolveMembers(out, path, 1)
		return out
	}
	return r.resolveObjectPath(scope, path, out)
}

// resolveTuple resolves the qualifier of "t.*" and the star itself.
func (r *nameResolver) resolveTuple(scope DataScope, t *parser.TupleRef) (qualifier []resolution, star resolution) {
	qualifier = make([]resolution, len(t.Qualifier))
	if len(t.Qualifier) == 0 {
		return qualifier, unknown()
	}
	names := parser.Names(t.Qualifier)
	incomplete := false
	for s := scope; s != nil; s = s.Outer() {
		if src := s.ResolveSource(names); src != nil {
			r.classifySourcePath(qualifier, src)
			return qualifier, resolution{class: ClassTuple, def: &Unresolved{}, source: src, typ: recordType(src)}
		}
		incomplete = incomplete || s.HasUnresolvedSource()
	}
	for i := range qualifier {
		qualifier[i] = unknown()
	}
	if !incomplete {
		qualifier[0] = failed("%q not found", names[0])
	}
	return qualifier, unknown()
}

// resolveMember resolves a field of a composite value of type typ.
func (r *nameResolver) resolveMember(typ metadata.DataType, name *parser.Name) resolution {
	if f, ok := typ.Field(name.Value); ok {
		return resolution{class: ClassCompositeField, def: &Unresolved{}, typ: f.Type}
	}
	if typ.Name == "" {
		return unknown()
	}
	return failed("field %q not found in type %s", name.Value, typ.Name)
}

// resolveFunction resolves the name path of a function call: builtins of
// the dialect, then procedures of the catalog. Unknown functions are not
// errors.
func (r *nameResolver) resolveFunction(path []*parser.Name) []resolution {
	out := make([]resolution, len(path))
	for i := range out {
		out[i] = unknown()
	}
	if len(path) == 0 {
		return out
	}
	if len(path) == 1 {
		if fn, ok := r.dialect.Function(path[0].Value); ok {
			out[0] = resolution{class: ClassFunction, def: &Unresolved{}, typ: metadata.DataType{Name: fn.ReturnType}}
			return out
		}
	}
	chain, err := r.objectChain(parser.Names(path))
	if err != nil {
		return out
	}
	for i, obj := range chain {
		if i == len(path)-1 && obj.Kind() != metadata.KindProcedure {
			break
		}
		out[i] = objectResolution(obj)
	}
	return out
}

func (r *nameResolver) resolveMembers(out []resolution, path []*parser.Name, from int) {
	for i := from; i < len(path); i++ {
		prev := out[i-1]
		if prev.class == ClassError || (prev.class == ClassUnknown && prev.typ.Name == "") {
			out[i] = unknown()
			continue
		}
		out[i] = r.resolveMember(prev.typ, path[i])
	}
}

// resolveObjectPath classifies a path that names no row source against the
// catalog. Only the first segment can be an error; everything behind an
// unresolved segment stays unknown.
func (r *nameResolver) resolveObjectPath(scope DataScope, path []*parser.Name, out []resolution) []resolution {
	chain, err := r.objectChain(parser.Names(path))
	for i := range out {
		if i < len(chain) {
			out[i] = objectResolution(chain[i])
		} else {
			out[i] = unknown()
		}
	}
	if len(chain) > 0 || err != nil {
		return out
	}
	for s := scope; s != nil; s = s.Outer() {
		if s.HasUnresolvedSource() {
			return out
		}
	}
	out[0] = failed("%q not found", path[0].Value)
	return out
}

// classifySourcePath classifies the qualifier segments naming src. The last
// segment is the source; the ones before it are the catalog ancestors of
// its table.
func (r *nameResolver) classifySourcePath(segs []resolution, src *SourceResolutionResult) {
	last := len(segs) - 1
	switch {
	case src.Alias != nil:
		segs[last] = resolution{class: ClassTableAlias, def: &BySymbol{Symbol: src.Alias}}
	case src.IsCTESubquery:
		segs[last] = resolution{class: ClassCTE, def: &Unresolved{}}
	case src.Table != nil:
		segs[last] = resolution{class: classOfObject(src.Table), def: &ByDbObject{Object: src.Table}, object: src.Table}
	default:
		segs[last] = unknown()
	}
	segs[last].source = src
	segs[last].typ = recordType(src)

	var parent metadata.Object
	if src.Table != nil && src.Alias == nil {
		parent = src.Table.Parent()
	}
	for i := last - 1; i >= 0; i-- {
		if parent == nil || parent.Kind() == metadata.KindRoot {
			segs[i] = unknown()
			continue
		}
		segs[i] = objectResolution(parent)
		parent = parent.Parent()
	}
}

// objectChain looks up a path of catalog names in the exposed containers of
// the execution context and returns the longest chain of objects found.
func (r *nameResolver) objectChain(names []string) ([]metadata.Object, error) {
	var best []metadata.Object
	for _, c := range r.exec.Exposed() {
		var chain []metadata.Object
		cur := c
		for _, name := range names {
			child, err := cur.Child(r.ctx, name)
			if err != nil {
				if metadata.IsNotFound(err) {
					break
				}
				return best, err
			}
			chain = append(chain, child)
			next, ok := child.(metadata.Container)
			if !ok {
				break
			}
			cur = next
		}
		if len(chain) > len(best) {
			best = chain
		}
		if len(best) == len(names) {
			break
		}
	}
	return best, nil
}

func pseudoResolution(pc dialect.PseudoColumn) resolution {
	return resolution{class: ClassPseudoColumn, def: &ByPseudoColumn{Column: pc}, typ: metadata.DataType{Name: pc.Type}}
}

func columnResolution(col *ResultColumn, conflicting bool) resolution {
	if conflicting {
		res := failed("column reference %q is ambiguous", col.Name)
		res.column = col
		res.typ = col.Type
		return res
	}
	res := resolution{column: col, typ: col.Type, def: &Unresolved{}}
	switch {
	case col.Attribute != nil && col.Expr == nil:
		res.class = ClassColumnReal
		res.def = &ByDbObject{Object: col.Attribute}
	case col.Symbol != nil:
		res.class = ClassColumnDerived
		res.def = &BySymbol{Symbol: col.Symbol}
	case col.Attribute != nil:
		res.class = ClassColumnDerived
		res.def = &ByDbObject{Object: col.Attribute}
	default:
		res.class = ClassColumnDerived
	}
	return res
}

func sourceColumnResolution(scope DataScope, src *SourceResolutionResult, name *parser.Name) resolution {
	if col := scope.SourceColumn(src, name.Value); col != nil {
		return columnResolution(col, false)
	}
	if src.Unresolved {
		return unknown()
	}
	return failed("column %q not found in %s", name.Value, src.Name())
}

func sourceResolution(src *SourceResolutionResult) resolution {
	res := resolution{source: src, typ: recordType(src), def: &Unresolved{}}
	switch {
	case src.Alias != nil:
		res.class = ClassTableAlias
		res.def = &BySymbol{Symbol: src.Alias}
	case src.IsCTESubquery:
		res.class = ClassCTE
	case src.Table != nil:
		res.class = classOfObject(src.Table)
		res.def = &ByDbObject{Object: src.Table}
	default:
		res.class = ClassUnknown
	}
	return res
}

func objectResolution(o metadata.Object) resolution {
	res := resolution{class: classOfObject(o), def: &ByDbObject{Object: o}, object: o}
	if a, ok := o.(metadata.Attribute); ok {
		res.typ = a.DataType()
	}
	return res
}

// recordType describes the row of a source as a composite type.
func recordType(src *SourceResolutionResult) metadata.DataType {
	t := metadata.DataType{Name: "record"}
	for _, col := range src.Columns {
		t.Fields = append(t.Fields, metadata.Field{Name: col.Name, Type: col.Type})
	}
	return t
}

// isProviderFailure reports whether err is worth a warning: anything but a
// missing object or a cancelled request.
func isProviderFailure(err error) bool {
	return err != nil && !metadata.IsNotFound(err) && !errors.Is(err, metadata.ErrCancelled)
}

// aliasScope lets ORDER BY name select-list aliases before the columns of
// the FROM clause.
type aliasScope struct {
	DataScope
	aliases []*ResultColumn
}

func (a aliasScope) alias(name string) *ResultColumn {
	for _, col := range a.aliases {
		if col.Symbol != nil && col.Symbol.Classification() == ClassColumnDerived &&
			a.NamesEqual(col.Name, name) {
			return col
		}
	}
	return nil
}

func (a aliasScope) ResolveColumn(name string) *ResultColumn {
	if col := a.alias(name); col != nil {
		return col
	}
	return a.DataScope.ResolveColumn(name)
}

func (a aliasScope) IsColumnNameConflicting(name string) bool {
	if a.alias(name) != nil {
		return false
	}
	return a.DataScope.IsColumnNameConflicting(name)
}

// outputName is the column name a projection expression produces.
func outputName(e parser.Expr) string {
	switch e := e.(type) {
	case *parser.ColumnRef:
		if c := e.Column(); c != nil {
			return c.Value
		}
	case *parser.MemberAccess:
		if e.Member != nil {
			return e.Member.Value
		}
	case *parser.FuncCall:
		if len(e.Name) > 0 {
			return strings.ToLower(e.Name[len(e.Name)-1].Value)
		}
		return "row"
	case *parser.CastExpr:
		return outputName(e.Expr)
	case *parser.ParenExpr:
		return outputName(e.Expr)
	case *parser.CaseExpr:
		return "case"
	}
	return "?column?"
}
