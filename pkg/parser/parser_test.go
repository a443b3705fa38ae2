package parser_test

import (
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/parser"
	"github.com/leapstack-labs/sqlassist/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSelect(t *testing.T, sql string) (*parser.SelectStmt, []error) {
	t.Helper()
	script := parser.ParseScript(sql)
	require.Len(t, script.Items, 1)
	stmt, ok := script.Items[0].Statement.(*parser.SelectStmt)
	require.True(t, ok, "expected a SELECT statement, got %T", script.Items[0].Statement)
	return stmt, script.Items[0].Errors
}

func mustParse(t *testing.T, sql string) *parser.SelectCore {
	t.Helper()
	stmt, errs := parseSelect(t, sql)
	require.Empty(t, errs)
	require.NotNil(t, stmt.Body)
	return stmt.Body.Left
}

// ---------- Statement Tests ----------

func TestSelectList(t *testing.T) {
	core := mustParse(t, "SELECT a, b AS c, t.*, count(*) n FROM t")
	require.Len(t, core.Columns, 4)

	ref, ok := core.Columns[0].Expr.(*parser.ColumnRef)
	require.True(t, ok)
	assert.Equal(t, "a", ref.Column().Value)
	assert.Nil(t, core.Columns[0].Alias)

	assert.Equal(t, "c", core.Columns[1].Alias.Value)

	require.NotNil(t, core.Columns[2].TableStar)
	assert.Equal(t, []string{"t"}, parser.Names(core.Columns[2].TableStar.Qualifier))
	assert.Equal(t, "*", core.Columns[2].TableStar.Star.Value)

	call, ok := core.Columns[3].Expr.(*parser.FuncCall)
	require.True(t, ok)
	assert.True(t, call.Star)
	assert.Equal(t, "n", core.Columns[3].Alias.Value)
}

func TestSelectStar(t *testing.T) {
	core := mustParse(t, "SELECT DISTINCT * FROM t")
	assert.True(t, core.Distinct)
	require.Len(t, core.Columns, 1)
	assert.True(t, core.Columns[0].Star)
}

func TestClauses(t *testing.T) {
	core := mustParse(t, "SELECT a FROM t WHERE a > 1 GROUP BY a, b HAVING count(*) > 2 ORDER BY a DESC NULLS LAST LIMIT 10 OFFSET 5")
	assert.NotNil(t, core.Where)
	assert.Len(t, core.GroupBy, 2)
	assert.NotNil(t, core.Having)
	require.Len(t, core.OrderBy, 1)
	assert.True(t, core.OrderBy[0].Desc)
	assert.NotNil(t, core.Limit)
	assert.NotNil(t, core.Offset)
}

func TestWithClause(t *testing.T) {
	stmt, errs := parseSelect(t, "WITH RECURSIVE x (a, b) AS (SELECT 1, 2), y AS (SELECT a FROM x) SELECT a FROM y")
	require.Empty(t, errs)
	require.NotNil(t, stmt.With)
	assert.True(t, stmt.With.Recursive)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "x", stmt.With.CTEs[0].Name.Value)
	assert.Equal(t, []string{"a", "b"}, parser.Names(stmt.With.CTEs[0].Columns))
	assert.Empty(t, stmt.With.CTEs[1].Columns)
	require.NotNil(t, stmt.With.CTEs[1].Select)
}

func TestSetOperations(t *testing.T) {
	stmt, errs := parseSelect(t, "SELECT a FROM t UNION ALL SELECT b FROM u EXCEPT SELECT c FROM v ORDER BY 1 LIMIT 3")
	require.Empty(t, errs)

	body := stmt.Body
	require.Len(t, body.Ops, 2)
	assert.Equal(t, parser.SetOpUnion, body.Ops[0].Op)
	assert.True(t, body.Ops[0].All)
	assert.Equal(t, parser.SetOpExcept, body.Ops[1].Op)
	assert.Len(t, body.Cores(), 3)

	// trailing ORDER BY / LIMIT belong to the whole body
	assert.Len(t, body.OrderBy, 1)
	assert.NotNil(t, body.Limit)
	assert.Nil(t, body.Ops[1].Right.OrderBy)
	assert.Nil(t, body.Ops[1].Right.Limit)
}

func TestOtherStatement(t *testing.T) {
	script := parser.ParseScript("INSERT INTO t (a) SELECT a FROM u")
	require.Len(t, script.Items, 1)

	other, ok := script.Items[0].Statement.(*parser.OtherStatement)
	require.True(t, ok)
	assert.Equal(t, "INSERT", other.Keyword)
	require.NotNil(t, other.Query)
	assert.Equal(t, other.Query, script.Items[0].Query())

	script = parser.ParseScript("DROP TABLE t")
	assert.Nil(t, script.Items[0].Query())
}

func TestParenthesizedQuery(t *testing.T) {
	stmt, errs := parseSelect(t, "(SELECT a FROM t)")
	require.Empty(t, errs)
	assert.Equal(t, 0, stmt.Pos.Start.Offset)
	assert.Equal(t, 17, stmt.Pos.End.Offset)
}

// ---------- FROM Tests ----------

func TestTableReferences(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		wantPath  []string
		wantAlias string
	}{
		{"bare", "SELECT * FROM orders", []string{"orders"}, ""},
		{"alias", "SELECT * FROM orders o", []string{"orders"}, "o"},
		{"as alias", "SELECT * FROM orders AS o", []string{"orders"}, "o"},
		{"qualified", "SELECT * FROM shop.public.orders o", []string{"shop", "public", "orders"}, "o"},
		{"quoted", `SELECT * FROM "Order Items" oi`, []string{"Order Items"}, "oi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := mustParse(t, tt.sql)
			require.NotNil(t, core.From)
			require.Len(t, core.From.Items, 1)

			table, ok := core.From.Items[0].Source.(*parser.TableName)
			require.True(t, ok)
			assert.Equal(t, tt.wantPath, parser.Names(table.Path))
			if tt.wantAlias == "" {
				assert.Nil(t, table.Alias)
			} else {
				require.NotNil(t, table.Alias)
				assert.Equal(t, tt.wantAlias, table.Alias.Value)
			}
		})
	}
}

func TestJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantType parser.JoinType
		natural  bool
		hasOn    bool
		using    []string
	}{
		{"inner", "SELECT * FROM a JOIN b ON a.id = b.a_id", parser.JoinInner, false, true, nil},
		{"left outer", "SELECT * FROM a LEFT OUTER JOIN b ON a.id = b.a_id", parser.JoinLeft, false, true, nil},
		{"right", "SELECT * FROM a RIGHT JOIN b ON true", parser.JoinRight, false, true, nil},
		{"full", "SELECT * FROM a FULL JOIN b USING (id, k)", parser.JoinFull, false, false, []string{"id", "k"}},
		{"cross", "SELECT * FROM a CROSS JOIN b", parser.JoinCross, false, false, nil},
		{"natural", "SELECT * FROM a NATURAL LEFT JOIN b", parser.JoinLeft, true, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := mustParse(t, tt.sql)
			require.Len(t, core.From.Items, 1)
			require.Len(t, core.From.Items[0].Joins, 1)

			join := core.From.Items[0].Joins[0]
			assert.Equal(t, tt.wantType, join.Type)
			assert.Equal(t, tt.natural, join.Natural)
			assert.Equal(t, tt.hasOn, join.On != nil)
			assert.Equal(t, tt.hasOn, join.OnSpan.IsValid())
			if tt.using == nil {
				assert.Empty(t, join.Using)
			} else {
				assert.Equal(t, tt.using, parser.Names(join.Using))
			}
		})
	}
}

func TestDerivedTableAndFunction(t *testing.T) {
	core := mustParse(t, "SELECT * FROM (SELECT x FROM t) AS d, LATERAL (SELECT 1) l, read_csv('f.csv') r")
	require.Len(t, core.From.Items, 3)

	derived, ok := core.From.Items[0].Source.(*parser.DerivedTable)
	require.True(t, ok)
	assert.Equal(t, "d", derived.Alias.Value)
	assert.False(t, derived.Lateral)
	require.NotNil(t, derived.Select)

	lateral, ok := core.From.Items[1].Source.(*parser.DerivedTable)
	require.True(t, ok)
	assert.True(t, lateral.Lateral)

	fn, ok := core.From.Items[2].Source.(*parser.TableFunction)
	require.True(t, ok)
	assert.Equal(t, "read_csv", parser.JoinNames(fn.Call.Name))
	assert.Equal(t, "r", fn.Alias.Value)
}

// ---------- Expression Tests ----------

func TestPrecedence(t *testing.T) {
	core := mustParse(t, "SELECT a + b * c")
	bin, ok := core.Columns[0].Expr.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, bin.Op)

	right, ok := bin.Right.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, right.Op)
}

func TestPredicates(t *testing.T) {
	core := mustParse(t, "SELECT x FROM t WHERE a NOT IN (1, 2) AND b BETWEEN 1 AND 3 AND c IS NOT NULL")

	top, ok := core.Where.(*parser.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.AND, top.Op)

	is, ok := top.Right.(*parser.IsExpr)
	require.True(t, ok)
	assert.True(t, is.Not)
	assert.Equal(t, "NULL", is.Value)

	left, ok := top.Left.(*parser.BinaryExpr)
	require.True(t, ok)

	in, ok := left.Left.(*parser.InExpr)
	require.True(t, ok)
	assert.True(t, in.Not)
	assert.Len(t, in.Values, 2)

	between, ok := left.Right.(*parser.BetweenExpr)
	require.True(t, ok)
	assert.NotNil(t, between.Low)
	assert.NotNil(t, between.High)
}

func TestExpressionForms(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want any
	}{
		{"case", "SELECT CASE WHEN a THEN 1 ELSE 2 END", &parser.CaseExpr{}},
		{"cast", "SELECT CAST(a AS varchar(10))", &parser.CastExpr{}},
		{"double colon", "SELECT a::int", &parser.CastExpr{}},
		{"typed literal", "SELECT DATE '2024-01-01'", &parser.CastExpr{}},
		{"exists", "SELECT EXISTS (SELECT 1)", &parser.ExistsExpr{}},
		{"scalar subquery", "SELECT (SELECT 1)", &parser.SubqueryExpr{}},
		{"paren", "SELECT (a + 1)", &parser.ParenExpr{}},
		{"member access", "SELECT (addr).city", &parser.MemberAccess{}},
		{"like", "SELECT a LIKE 'x%'", &parser.BinaryExpr{}},
		{"not like", "SELECT a NOT LIKE 'x%'", &parser.UnaryExpr{}},
		{"unary minus", "SELECT -a", &parser.UnaryExpr{}},
		{"param", "SELECT $1", &parser.Literal{}},
		{"left function", "SELECT left(a, 2)", &parser.FuncCall{}},
		{"row constructor", "SELECT (a, b)", &parser.FuncCall{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core := mustParse(t, tt.sql)
			require.Len(t, core.Columns, 1)
			assert.IsType(t, tt.want, core.Columns[0].Expr)
		})
	}
}

func TestCastTypeName(t *testing.T) {
	core := mustParse(t, "SELECT a::varchar(10), CAST(b AS double precision)")
	assert.Equal(t, "VARCHAR(10)", core.Columns[0].Expr.(*parser.CastExpr).TypeName)
	assert.Equal(t, "DOUBLE PRECISION", core.Columns[1].Expr.(*parser.CastExpr).TypeName)
}

func TestWindowFunction(t *testing.T) {
	core := mustParse(t, "SELECT sum(DISTINCT x) OVER (PARTITION BY y ORDER BY z) FROM t")
	call, ok := core.Columns[0].Expr.(*parser.FuncCall)
	require.True(t, ok)
	assert.True(t, call.Distinct)
	assert.Len(t, call.Args, 1)
	assert.Len(t, call.Over, 2)
}

// ---------- Error Tolerance Tests ----------

func TestIncompleteQueries(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		wantError bool
		check     func(t *testing.T, core *parser.SelectCore)
	}{
		{
			name: "trailing period in where",
			sql:  "SELECT * FROM orders o WHERE o.",
			check: func(t *testing.T, core *parser.SelectCore) {
				ref, ok := core.Where.(*parser.ColumnRef)
				require.True(t, ok)
				assert.True(t, ref.TrailingDot)
				assert.Nil(t, ref.Column())
				assert.Equal(t, []string{"o"}, parser.Names(ref.Qualifier()))
			},
		},
		{
			name:      "missing select item",
			sql:       "SELECT  FROM t",
			wantError: true,
			check: func(t *testing.T, core *parser.SelectCore) {
				require.Len(t, core.Columns, 1)
				assert.IsType(t, &parser.ErrorExpr{}, core.Columns[0].Expr)
				require.NotNil(t, core.From)
			},
		},
		{
			name:      "missing table",
			sql:       "SELECT a FROM ",
			wantError: true,
			check: func(t *testing.T, core *parser.SelectCore) {
				require.NotNil(t, core.From)
				assert.IsType(t, &parser.BadTableRef{}, core.From.Items[0].Source)
			},
		},
		{
			name: "trailing period in from",
			sql:  "SELECT a FROM public.",
			check: func(t *testing.T, core *parser.SelectCore) {
				table, ok := core.From.Items[0].Source.(*parser.TableName)
				require.True(t, ok)
				assert.True(t, table.TrailingDot)
				assert.Equal(t, []string{"public"}, parser.Names(table.Path))
			},
		},
		{
			name:      "empty on condition",
			sql:       "SELECT * FROM a JOIN b ON ",
			wantError: true,
			check: func(t *testing.T, core *parser.SelectCore) {
				join := core.From.Items[0].Joins[0]
				assert.IsType(t, &parser.ErrorExpr{}, join.On)
				assert.True(t, join.OnSpan.Covers(26))
			},
		},
		{
			name:      "missing operand keeps where",
			sql:       "SELECT * FROM t WHERE a = ",
			wantError: true,
			check: func(t *testing.T, core *parser.SelectCore) {
				bin, ok := core.Where.(*parser.BinaryExpr)
				require.True(t, ok)
				assert.IsType(t, &parser.ErrorExpr{}, bin.Right)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, errs := parseSelect(t, tt.sql)
			if tt.wantError {
				require.NotEmpty(t, errs)
				var perr *parser.ParseError
				assert.ErrorAs(t, errs[0], &perr)
			} else {
				require.Empty(t, errs)
			}
			tt.check(t, stmt.Body.Left)
		})
	}
}

func TestSpansCoverTrailingGap(t *testing.T) {
	sql := "SELECT a FROM t WHERE "
	stmt, _ := parseSelect(t, sql)
	core := stmt.Body.Left
	assert.True(t, core.Pos.Covers(len(sql)))
	assert.False(t, core.SelectSpan.Covers(len(sql)))
}

// ---------- Walk Tests ----------

func TestWalkVisitsNames(t *testing.T) {
	stmt, _ := parseSelect(t, "SELECT o.id, sum(total) FROM orders o WHERE o.customer_id IN (SELECT id FROM customers)")

	var names []string
	parser.Walk(stmt, func(n parser.Node) bool {
		if name, ok := n.(*parser.Name); ok {
			names = append(names, name.Value)
		}
		return true
	})
	assert.Equal(t, []string{"o", "id", "sum", "total", "orders", "o", "o", "customer_id", "id", "customers"}, names)
}

func TestWalkSkipsChildren(t *testing.T) {
	stmt, _ := parseSelect(t, "SELECT a FROM t WHERE b IN (SELECT c FROM u)")

	var cores int
	parser.Walk(stmt, func(n parser.Node) bool {
		if _, ok := n.(*parser.SelectCore); ok {
			cores++
		}
		_, isIn := n.(*parser.InExpr)
		return !isIn
	})
	assert.Equal(t, 1, cores)
}
