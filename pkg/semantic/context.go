package semantic

import (
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
)

// ResultColumn is one column of a row shape.
type ResultColumn struct {
	Name string
	Type metadata.DataType

	// Symbol declares the column: the alias or the referenced column name
	// of a projection. Nil for columns read from the catalog.
	Symbol *Symbol

	// Attribute and Table point at the catalog column behind the value,
	// also through projections of plain column references.
	Attribute metadata.Attribute
	Table     metadata.Table

	// Source is the row source that produced the column, if any.
	Source *SourceResolutionResult

	// Expr is the projection expression; nil for catalog columns.
	Expr parser.Expr
}

// SourceKind classifies row sources.
type SourceKind int

// Source kinds.
const (
	SourceTable SourceKind = iota
	SourceCTE
	SourceSubquery
	SourceFunction
)

// SourceResolutionResult is one FROM-clause contributor.
type SourceResolutionResult struct {
	Node  parser.TableRef
	Kind  SourceKind
	Alias *Symbol
	Table metadata.Table // nil unless the source is a catalog table

	// IsCTESubquery is set when the source refers to a common table
	// expression of the statement.
	IsCTESubquery bool

	// Path is the qualified name of the source: the catalog path of a table,
	// or the CTE name. Empty for subqueries.
	Path []string

	// Columns is the row shape of the source, in column order.
	Columns []*ResultColumn

	// Unresolved is set when the shape of the source is not known, e.g. the
	// table was not found or its metadata could not be read.
	Unresolved bool
}

// Name returns the name the source is referred to by: its alias, else the
// last segment of its path.
func (s *SourceResolutionResult) Name() string {
	if s.Alias != nil {
		return s.Alias.Text()
	}
	if len(s.Path) > 0 {
		return s.Path[len(s.Path)-1]
	}
	return ""
}

// CTEDefinition is a common table expression visible in a scope.
type CTEDefinition struct {
	Node       *parser.CTE
	Symbol     *Symbol
	Columns    []*ResultColumn
	Unresolved bool
}

// Name returns the CTE name.
func (c *CTEDefinition) Name() string { return c.Node.Name.Value }

// DataScope is what the name resolver needs from a scope. QueryDataContext
// serves the first pass, RowsDataContext the second.
type DataScope interface {
	ResolveColumn(name string) *ResultColumn
	ResolveSource(parts []string) *SourceResolutionResult
	ResolvePseudoColumn(name string) (dialect.PseudoColumn, bool)
	SourceColumn(src *SourceResolutionResult, name string) *ResultColumn
	IsColumnNameConflicting(name string) bool
	HasUnresolvedSource() bool
	// NamesEqual compares two identifiers under the scope's case rule.
	NamesEqual(a, b string) bool
	// Outer returns the enclosing scope for correlated lookups, or nil.
	Outer() DataScope
}

// rowShape holds sources and columns and answers lookups over them. Both
// context kinds embed it, so they resolve names identically.
type rowShape struct {
	dialect       *dialect.Dialect
	caseSensitive bool
	sources       []*SourceResolutionResult
	columns       []*ResultColumn
}

func (r *rowShape) namesEqual(a, b string) bool {
	if r.caseSensitive {
		return a == b
	}
	if r.dialect == nil {
		return strings.EqualFold(a, b)
	}
	return dialect.Fold(a) == dialect.Fold(b)
}

// Columns returns the visible columns in order. The slice must not be
// modified.
func (r *rowShape) Columns() []*ResultColumn { return r.columns }

// Sources returns the visible row sources in FROM-clause order. The slice
// must not be modified.
func (r *rowShape) Sources() []*SourceResolutionResult { return r.sources }

// Dialect returns the dialect names are compared with.
func (r *rowShape) Dialect() *dialect.Dialect { return r.dialect }

// ResolveColumn returns the first visible column called name. Ambiguous
// names pick the first match; use IsColumnNameConflicting to detect them.
func (r *rowShape) ResolveColumn(name string) *ResultColumn {
	for _, col := range r.columns {
		if r.namesEqual(col.Name, name) {
			return col
		}
	}
	return nil
}

// ColumnsNamed returns every visible column called name.
func (r *rowShape) ColumnsNamed(name string) []*ResultColumn {
	var out []*ResultColumn
	for _, col := range r.columns {
		if r.namesEqual(col.Name, name) {
			out = append(out, col)
		}
	}
	return out
}

// NamesEqual implements DataScope.
func (r *rowShape) NamesEqual(a, b string) bool { return r.namesEqual(a, b) }

func (r *rowShape) containsName(names []string, name string) bool {
	for _, n := range names {
		if r.namesEqual(n, name) {
			return true
		}
	}
	return false
}

// IsColumnNameConflicting reports whether two or more visible columns share
// name, ignoring case.
func (r *rowShape) IsColumnNameConflicting(name string) bool {
	folded := dialect.Fold(name)
	n := 0
	for _, col := range r.columns {
		if dialect.Fold(col.Name) == folded {
			n++
			if n > 1 {
				return true
			}
		}
	}
	return false
}

// ResolveSource returns the source referred to by a qualifier. Alias matches
// win over qualified-name matches.
func (r *rowShape) ResolveSource(parts []string) *SourceResolutionResult {
	byAlias, byName := r.MatchSources(parts)
	if len(byAlias) > 0 {
		return byAlias[0]
	}
	if len(byName) > 0 {
		return byName[0]
	}
	return nil
}

// MatchSources returns the sources whose alias equals the single part
// qualifier, and separately the sources whose qualified name ends with parts.
func (r *rowShape) MatchSources(parts []string) (byAlias, byName []*SourceResolutionResult) {
	if len(parts) == 0 {
		return nil, nil
	}
	for _, src := range r.sources {
		if len(parts) == 1 && src.Alias != nil && r.namesEqual(src.Alias.Text(), parts[0]) {
			byAlias = append(byAlias, src)
		}
		if r.suffixMatch(src.Path, parts) {
			byName = append(byName, src)
		}
	}
	return byAlias, byName
}

func (r *rowShape) suffixMatch(path, parts []string) bool {
	if len(parts) > len(path) {
		return false
	}
	for i := 1; i <= len(parts); i++ {
		if !r.namesEqual(path[len(path)-i], parts[len(parts)-i]) {
			return false
		}
	}
	return true
}

// SourceColumn looks up name among the columns of src.
func (r *rowShape) SourceColumn(src *SourceResolutionResult, name string) *ResultColumn {
	for _, col := range src.Columns {
		if r.namesEqual(col.Name, name) {
			return col
		}
	}
	return nil
}

// ResolvePseudoColumn looks up a row-set dependent pseudo-column. There are
// none without a row source.
func (r *rowShape) ResolvePseudoColumn(name string) (dialect.PseudoColumn, bool) {
	if r.dialect == nil || len(r.sources) == 0 {
		return dialect.PseudoColumn{}, false
	}
	for _, pc := range r.dialect.ContextPseudoColumns() {
		if r.namesEqual(pc.Name, name) {
			return pc, true
		}
	}
	return dialect.PseudoColumn{}, false
}

// HasUnresolvedSource reports whether the shape of any source is unknown.
func (r *rowShape) HasUnresolvedSource() bool {
	for _, src := range r.sources {
		if src.Unresolved {
			return true
		}
	}
	return false
}

// QueryDataContext is an immutable scope: the row sources and columns
// visible at one point of a query. Composition methods return new contexts.
type QueryDataContext struct {
	rowShape
	outer *QueryDataContext
	ctes  []*CTEDefinition
}

// NewQueryDataContext returns an empty context.
func NewQueryDataContext(d *dialect.Dialect, caseSensitive bool) *QueryDataContext {
	return &QueryDataContext{rowShape: rowShape{dialect: d, caseSensitive: caseSensitive}}
}

func (c *QueryDataContext) derive() *QueryDataContext {
	return &QueryDataContext{
		rowShape: rowShape{dialect: c.dialect, caseSensitive: c.caseSensitive},
		outer:    c.outer,
		ctes:     c.ctes,
	}
}

// Empty returns a context with no sources that keeps the outer scope and
// the visible CTEs of c.
func (c *QueryDataContext) Empty() *QueryDataContext {
	return c.derive()
}

// Nested returns an empty context whose correlated lookups go to c.
func (c *QueryDataContext) Nested() *QueryDataContext {
	out := c.derive()
	out.outer = c
	return out
}

// WithCTE returns a copy of c in which def is visible.
func (c *QueryDataContext) WithCTE(def *CTEDefinition) *QueryDataContext {
	out := *c
	out.ctes = append(append([]*CTEDefinition(nil), c.ctes...), def)
	return &out
}

// ForSource returns a context exposing only src.
func (c *QueryDataContext) ForSource(src *SourceResolutionResult) *QueryDataContext {
	out := c.derive()
	out.sources = []*SourceResolutionResult{src}
	out.columns = src.Columns
	return out
}

// Join combines two contexts: sources and columns of left, then of right.
func Join(left, right *QueryDataContext) *QueryDataContext {
	out := left.derive()
	out.sources = append(append([]*SourceResolutionResult(nil), left.sources...), right.sources...)
	out.columns = append(append([]*ResultColumn(nil), left.columns...), right.columns...)
	return out
}

// JoinUsing combines two contexts like Join, except that each column of
// right named in shared is dropped when left has a column of that name: the
// pair is visible once, as the left column. Both sources keep their full
// row shape for qualified lookups.
func JoinUsing(left, right *QueryDataContext, shared []string) *QueryDataContext {
	out := Join(left, right)
	if len(shared) == 0 {
		return out
	}
	cols := append([]*ResultColumn(nil), left.columns...)
	for _, col := range right.columns {
		if out.containsName(shared, col.Name) && left.ResolveColumn(col.Name) != nil {
			continue
		}
		cols = append(cols, col)
	}
	out.columns = cols
	return out
}

// CommonColumnNames returns the names of left columns that right also has,
// in left order: the columns a NATURAL join matches on.
func CommonColumnNames(left, right *QueryDataContext) []string {
	var names []string
	for _, col := range left.columns {
		if right.ResolveColumn(col.Name) != nil && !left.containsName(names, col.Name) {
			names = append(names, col.Name)
		}
	}
	return names
}

// Projection returns a context exposing only columns, e.g. the output of a
// select list.
func (c *QueryDataContext) Projection(columns []*ResultColumn) *QueryDataContext {
	out := c.derive()
	out.columns = columns
	return out
}

// SetOperation aligns the columns of two projections by position. Names
// come from left; types are unified. Extra columns on either side are
// dropped.
func SetOperation(left, right *QueryDataContext) *QueryDataContext {
	n := min(len(left.columns), len(right.columns))
	cols := make([]*ResultColumn, n)
	for i := range n {
		l, r := left.columns[i], right.columns[i]
		col := *l
		col.Type = unifyTypes(l.Type, r.Type)
		if col.Attribute != nil && (r.Attribute == nil || !metadata.SameObject(col.Attribute, r.Attribute)) {
			col.Attribute, col.Table = nil, nil
		}
		cols[i] = &col
	}
	return left.Projection(cols)
}

// unifyTypes keeps the left type unless it is unknown.
func unifyTypes(a, b metadata.DataType) metadata.DataType {
	if a.Name == "" {
		return b
	}
	return a
}

// Outer implements DataScope.
func (c *QueryDataContext) Outer() DataScope {
	if c.outer == nil {
		return nil
	}
	return c.outer
}

// OuterContext returns the enclosing query context, or nil.
func (c *QueryDataContext) OuterContext() *QueryDataContext { return c.outer }

// LookupCTE finds a visible CTE by name, innermost first.
func (c *QueryDataContext) LookupCTE(name string) *CTEDefinition {
	for cur := c; cur != nil; cur = cur.outer {
		for i := len(cur.ctes) - 1; i >= 0; i-- {
			if cur.namesEqual(cur.ctes[i].Name(), name) {
				return cur.ctes[i]
			}
		}
	}
	return nil
}

// CTEs returns the visible CTEs; inner definitions shadow outer ones.
func (c *QueryDataContext) CTEs() []*CTEDefinition {
	var out []*CTEDefinition
	seen := make(map[string]bool)
	for cur := c; cur != nil; cur = cur.outer {
		for i := len(cur.ctes) - 1; i >= 0; i-- {
			key := dialect.Fold(cur.ctes[i].Name())
			if !seen[key] {
				seen[key] = true
				out = append(out, cur.ctes[i])
			}
		}
	}
	return out
}

// RowsDataContext is a finished row shape: the sources and columns of a
// scope after the whole statement was assembled.
type RowsDataContext struct {
	rowShape
	outer *RowsDataContext
}

// NewRowsDataContext snapshots c and its enclosing scopes.
func NewRowsDataContext(c *QueryDataContext) *RowsDataContext {
	if c == nil {
		return nil
	}
	return &RowsDataContext{
		rowShape: rowShape{
			dialect:       c.dialect,
			caseSensitive: c.caseSensitive,
			sources:       c.sources,
			columns:       c.columns,
		},
		outer: NewRowsDataContext(c.outer),
	}
}

// Outer implements DataScope.
func (r *RowsDataContext) Outer() DataScope {
	if r.outer == nil {
		return nil
	}
	return r.outer
}
