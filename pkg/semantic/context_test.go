package semantic_test

import (
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"
	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aliasSymbol(name string) *semantic.Symbol {
	return semantic.NewSymbolBuilder(&parser.Name{Value: name}).Classify(semantic.ClassTableAlias).Build()
}

func source(path []string, alias string, columns ...string) *semantic.SourceResolutionResult {
	src := &semantic.SourceResolutionResult{Kind: semantic.SourceTable, Path: path}
	if alias != "" {
		src.Alias = aliasSymbol(alias)
	}
	for _, c := range columns {
		src.Columns = append(src.Columns, &semantic.ResultColumn{
			Name:   c,
			Type:   metadata.DataType{Name: "integer"},
			Source: src,
		})
	}
	return src
}

func columnNames(cols []*semantic.ResultColumn) []string {
	var out []string
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

func TestQueryDataContextJoin(t *testing.T) {
	base := semantic.NewQueryDataContext(dialect.Default(), false)
	a := source([]string{"s", "a"}, "x", "id", "name")
	b := source([]string{"s", "b"}, "", "id", "a_id")

	joined := semantic.Join(base.ForSource(a), base.ForSource(b))

	assert.Equal(t, []string{"id", "name", "id", "a_id"}, columnNames(joined.Columns()))
	require.Len(t, joined.Sources(), 2)
	assert.Same(t, a, joined.Sources()[0])
	assert.True(t, joined.IsColumnNameConflicting("ID"))
	assert.False(t, joined.IsColumnNameConflicting("name"))
	assert.Len(t, joined.ColumnsNamed("id"), 2)

	pick := joined.ResolveColumn("id")
	assert.Same(t, pick, joined.ResolveColumn("id"))
	assert.Same(t, a, pick.Source)
	assert.Nil(t, joined.ResolveColumn("missing"))
}

func TestQueryDataContextJoinUsing(t *testing.T) {
	base := semantic.NewQueryDataContext(dialect.Default(), false)
	a := source([]string{"s", "a"}, "x", "id", "name", "kind")
	b := source([]string{"s", "b"}, "", "ID", "a_id", "kind")
	left, right := base.ForSource(a), base.ForSource(b)

	tests := []struct {
		name   string
		shared []string
		want   []string
	}{
		{"no shared columns", nil, []string{"id", "name", "kind", "ID", "a_id", "kind"}},
		{"using", []string{"id"}, []string{"id", "name", "kind", "a_id", "kind"}},
		{"natural", semantic.CommonColumnNames(left, right), []string{"id", "name", "kind", "a_id"}},
		{"missing on left", []string{"a_id"}, []string{"id", "name", "kind", "ID", "a_id", "kind"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joined := semantic.JoinUsing(left, right, tt.shared)
			assert.Equal(t, tt.want, columnNames(joined.Columns()))
			require.Len(t, joined.Sources(), 2)
			assert.NotNil(t, joined.SourceColumn(b, "id"))
		})
	}

	joined := semantic.JoinUsing(left, right, []string{"id"})
	assert.False(t, joined.IsColumnNameConflicting("id"))
	assert.Same(t, a, joined.ResolveColumn("id").Source)
	assert.Equal(t, []string{"id", "kind"}, semantic.CommonColumnNames(left, right))
}

func TestQueryDataContextResolveSource(t *testing.T) {
	base := semantic.NewQueryDataContext(dialect.Default(), false)
	// "b" is the alias of one source and the table name of another.
	aliased := source([]string{"s", "a"}, "b", "id")
	named := source([]string{"s", "b"}, "", "id")
	ctx := semantic.Join(base.ForSource(named), base.ForSource(aliased))

	tests := []struct {
		name  string
		parts []string
		want  *semantic.SourceResolutionResult
	}{
		{"alias wins", []string{"b"}, aliased},
		{"qualified name", []string{"s", "b"}, named},
		{"case insensitive", []string{"S", "B"}, named},
		{"table name behind alias", []string{"a"}, aliased},
		{"unknown", []string{"c"}, nil},
		{"too long", []string{"x", "s", "b"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, ctx.ResolveSource(tt.parts))
		})
	}
}

func TestQueryDataContextCaseSensitive(t *testing.T) {
	ctx := semantic.NewQueryDataContext(dialect.Default(), true).
		ForSource(source([]string{"T"}, "", "Id"))

	assert.NotNil(t, ctx.ResolveColumn("Id"))
	assert.Nil(t, ctx.ResolveColumn("id"))
	assert.True(t, ctx.NamesEqual("Id", "Id"))
	assert.False(t, ctx.NamesEqual("Id", "id"))
	assert.Nil(t, ctx.ResolveSource([]string{"t"}))
}

func TestQueryDataContextNesting(t *testing.T) {
	base := semantic.NewQueryDataContext(dialect.Default(), false)
	outer := base.ForSource(source([]string{"o"}, "", "id"))
	inner := outer.Nested().ForSource(source([]string{"i"}, "", "x"))

	assert.Same(t, outer, inner.OuterContext())
	assert.Nil(t, inner.ResolveColumn("id"))
	require.NotNil(t, inner.Outer())
	assert.NotNil(t, inner.Outer().ResolveColumn("id"))
	assert.Nil(t, outer.Outer())
}

func TestQueryDataContextCTEs(t *testing.T) {
	cte := func(name string) *semantic.CTEDefinition {
		return &semantic.CTEDefinition{Node: &parser.CTE{Name: &parser.Name{Value: name}}}
	}
	outerR, innerR, s := cte("r"), cte("R"), cte("s")

	top := semantic.NewQueryDataContext(dialect.Default(), false).WithCTE(outerR).WithCTE(s)
	nested := top.Nested().WithCTE(innerR)

	assert.Same(t, innerR, nested.LookupCTE("r"))
	assert.Same(t, s, nested.LookupCTE("S"))
	assert.Same(t, outerR, top.LookupCTE("r"))
	assert.Nil(t, top.LookupCTE("missing"))
	assert.Equal(t, []*semantic.CTEDefinition{innerR, s}, nested.CTEs())

	// Empty keeps CTEs visible to the next query core.
	assert.Same(t, s, nested.Empty().LookupCTE("s"))
}

func TestSetOperation(t *testing.T) {
	base := semantic.NewQueryDataContext(dialect.Default(), false)
	left := base.Projection([]*semantic.ResultColumn{
		{Name: "a", Type: metadata.DataType{}},
		{Name: "b", Type: metadata.DataType{Name: "text"}},
	})
	right := base.Projection([]*semantic.ResultColumn{
		{Name: "x", Type: metadata.DataType{Name: "integer"}},
		{Name: "y", Type: metadata.DataType{Name: "integer"}},
		{Name: "z"},
	})

	out := semantic.SetOperation(left, right)
	require.Len(t, out.Columns(), 2)
	assert.Equal(t, []string{"a", "b"}, columnNames(out.Columns()))
	assert.Equal(t, "integer", out.Columns()[0].Type.Name)
	assert.Equal(t, "text", out.Columns()[1].Type.Name)
}

func TestRowsDataContext(t *testing.T) {
	pg, ok := dialect.Get("postgres")
	require.True(t, ok)

	base := semantic.NewQueryDataContext(pg, false)
	outer := base.ForSource(source([]string{"o"}, "", "id"))
	inner := outer.Nested().ForSource(source([]string{"i"}, "", "x"))

	rows := semantic.NewRowsDataContext(inner)
	assert.NotNil(t, rows.ResolveColumn("x"))
	require.NotNil(t, rows.Outer())
	assert.NotNil(t, rows.Outer().ResolveColumn("id"))
	assert.Nil(t, rows.Outer().Outer())

	_, ok = rows.ResolvePseudoColumn("ctid")
	assert.True(t, ok)
	_, ok = semantic.NewRowsDataContext(base).ResolvePseudoColumn("ctid")
	assert.False(t, ok, "no pseudo columns without a row source")
}
