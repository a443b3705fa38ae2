package parser

import (
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Span() token.Span
}

// Expr is a value expression.
type Expr interface {
	Node
	exprNode()
}

// TableRef is a FROM-clause item.
type TableRef interface {
	Node
	tableRefNode()
}

// Statement is a parsed script item.
type Statement interface {
	Node
	stmtNode()
}

// ---------- Names ----------

// Name is one identifier occurrence. Names are the unit the semantic layer
// attaches symbols to, so every identifier in the tree is a *Name.
type Name struct {
	Raw    string // source text including quotes
	Value  string // unquoted text
	Quoted bool
	Pos    token.Span
}

// Span implements Node.
func (n *Name) Span() token.Span { return n.Pos }

// Names returns the values of a name path.
func Names(path []*Name) []string {
	out := make([]string, len(path))
	for i, n := range path {
		out[i] = n.Value
	}
	return out
}

// JoinNames renders a name path as dotted text.
func JoinNames(path []*Name) string {
	return strings.Join(Names(path), ".")
}

func pathSpan(path []*Name) token.Span {
	var s token.Span
	for _, n := range path {
		s = s.Join(n.Pos)
	}
	return s
}

// ---------- Statements ----------

// SelectStmt is a complete query: [WITH ...] body.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
	Pos  token.Span
}

func (s *SelectStmt) stmtNode() {}

// Span implements Node.
func (s *SelectStmt) Span() token.Span { return s.Pos }

// OtherStatement is any statement that is not a query. It is kept only so
// that the completion engine can tell "off-query" positions apart.
type OtherStatement struct {
	Keyword string
	Query   *SelectStmt // top-level query embedded in the statement, if any
	Pos     token.Span
}

func (s *OtherStatement) stmtNode() {}

// Span implements Node.
func (s *OtherStatement) Span() token.Span { return s.Pos }

// WithClause holds common table expressions.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
	Pos       token.Span
}

// Span implements Node.
func (w *WithClause) Span() token.Span { return w.Pos }

// CTE is one common table expression.
type CTE struct {
	Name    *Name
	Columns []*Name
	Select  *SelectStmt
	Pos     token.Span
}

// Span implements Node.
func (c *CTE) Span() token.Span { return c.Pos }

// SetOp is a set operation keyword.
type SetOp string

// Set operations.
const (
	SetOpUnion     SetOp = "UNION"
	SetOpIntersect SetOp = "INTERSECT"
	SetOpExcept    SetOp = "EXCEPT"
)

// SelectBody is a select core optionally combined with set operations.
type SelectBody struct {
	Left    *SelectCore
	Ops     []*SetOperation
	OrderBy []*OrderByItem // ORDER BY applying to the whole set operation
	Limit   Expr
	Offset  Expr
	Pos     token.Span
}

// Span implements Node.
func (b *SelectBody) Span() token.Span { return b.Pos }

// Cores returns all select cores of the body, left to right.
func (b *SelectBody) Cores() []*SelectCore {
	cores := []*SelectCore{b.Left}
	for _, op := range b.Ops {
		cores = append(cores, op.Right)
	}
	return cores
}

// SetOperation combines the preceding core with Right.
type SetOperation struct {
	Op    SetOp
	All   bool
	Right *SelectCore
}

// SelectCore is one SELECT ... FROM ... block.
type SelectCore struct {
	Distinct bool
	Columns  []*SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderByItem
	Limit    Expr
	Offset   Expr

	Pos        token.Span
	SelectSpan token.Span // SELECT keyword through end of select list
	FromSpan   token.Span // FROM keyword through end of join list
}

// Span implements Node.
func (c *SelectCore) Span() token.Span { return c.Pos }

// SelectItem is one element of the select list.
type SelectItem struct {
	Star      bool      // SELECT *
	TableStar *TupleRef // SELECT t.*
	Expr      Expr
	Alias     *Name
	Pos       token.Span
}

// Span implements Node.
func (s *SelectItem) Span() token.Span { return s.Pos }

// OrderByItem is one ORDER BY element.
type OrderByItem struct {
	Expr Expr
	Desc bool
	Pos  token.Span
}

// Span implements Node.
func (o *OrderByItem) Span() token.Span { return o.Pos }

// ---------- FROM ----------

// FromClause holds comma separated FROM items, each with its joins.
type FromClause struct {
	Items []*FromItem
	Pos   token.Span
}

// Span implements Node.
func (f *FromClause) Span() token.Span { return f.Pos }

// FromItem is a table reference followed by zero or more joins.
type FromItem struct {
	Source TableRef
	Joins  []*Join
}

// JoinType names the kind of join.
type JoinType string

// Join types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
)

// Join is one JOIN clause.
type Join struct {
	Type    JoinType
	Natural bool
	Right   TableRef
	On      Expr
	Using   []*Name
	Pos     token.Span
	OnSpan  token.Span // ON keyword through end of condition; invalid when absent
}

// Span implements Node.
func (j *Join) Span() token.Span { return j.Pos }

// TableName is a (possibly qualified) table reference: [catalog.][schema.]name.
type TableName struct {
	Path  []*Name
	Alias *Name
	// TrailingDot is set for an incomplete path such as "public." .
	TrailingDot bool
	Pos         token.Span
}

func (t *TableName) tableRefNode() {}

// Span implements Node.
func (t *TableName) Span() token.Span { return t.Pos }

// Name returns the last path segment, or nil for an empty path.
func (t *TableName) Name() *Name {
	if len(t.Path) == 0 {
		return nil
	}
	return t.Path[len(t.Path)-1]
}

// DerivedTable is a subquery in FROM.
type DerivedTable struct {
	Select  *SelectStmt
	Alias   *Name
	Lateral bool
	Pos     token.Span
}

func (d *DerivedTable) tableRefNode() {}

// Span implements Node.
func (d *DerivedTable) Span() token.Span { return d.Pos }

// TableFunction is a table-valued function call in FROM.
type TableFunction struct {
	Call  *FuncCall
	Alias *Name
	Pos   token.Span
}

func (t *TableFunction) tableRefNode() {}

// Span implements Node.
func (t *TableFunction) Span() token.Span { return t.Pos }

// BadTableRef marks a FROM position that could not be parsed.
type BadTableRef struct {
	Pos token.Span
}

func (b *BadTableRef) tableRefNode() {}

// Span implements Node.
func (b *BadTableRef) Span() token.Span { return b.Pos }

// ---------- Expressions ----------

// ColumnRef is a (possibly qualified) reference: [[schema.]table.]column.
// Incomplete references such as "o." keep their qualifier and set TrailingDot.
type ColumnRef struct {
	Path        []*Name
	TrailingDot bool
	Pos         token.Span
}

func (c *ColumnRef) exprNode() {}

// Span implements Node.
func (c *ColumnRef) Span() token.Span { return c.Pos }

// Column returns the column segment, or nil when only "qualifier." was typed.
func (c *ColumnRef) Column() *Name {
	if len(c.Path) == 0 || c.TrailingDot {
		return nil
	}
	return c.Path[len(c.Path)-1]
}

// Qualifier returns the segments in front of the column segment.
func (c *ColumnRef) Qualifier() []*Name {
	if c.TrailingDot {
		return c.Path
	}
	if len(c.Path) <= 1 {
		return nil
	}
	return c.Path[:len(c.Path)-1]
}

// TupleRef is a "t.*" placeholder. Star is a synthetic name covering "*".
type TupleRef struct {
	Qualifier []*Name
	Star      *Name
	Pos       token.Span
}

func (t *TupleRef) exprNode() {}

// Span implements Node.
func (t *TupleRef) Span() token.Span { return t.Pos }

// MemberAccess is a field access on a composite value: (expr).field.
type MemberAccess struct {
	Base        Expr
	Member      *Name // nil when only the period was typed
	TrailingDot bool
	Pos         token.Span
}

func (m *MemberAccess) exprNode() {}

// Span implements Node.
func (m *MemberAccess) Span() token.Span { return m.Pos }

// LiteralKind classifies literals.
type LiteralKind int

// Literal kinds.
const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralNull
	LiteralParam
)

// Literal is a constant value.
type Literal struct {
	Kind  LiteralKind
	Value string
	Pos   token.Span
}

func (l *Literal) exprNode() {}

// Span implements Node.
func (l *Literal) Span() token.Span { return l.Pos }

// BinaryExpr is "left op right".
type BinaryExpr struct {
	Left  Expr
	Op    token.TokenType
	Right Expr
	Pos   token.Span
}

func (b *BinaryExpr) exprNode() {}

// Span implements Node.
func (b *BinaryExpr) Span() token.Span { return b.Pos }

// UnaryExpr is "op expr".
type UnaryExpr struct {
	Op   token.TokenType
	Expr Expr
	Pos  token.Span
}

func (u *UnaryExpr) exprNode() {}

// Span implements Node.
func (u *UnaryExpr) Span() token.Span { return u.Pos }

// FuncCall is a function invocation.
type FuncCall struct {
	Name     []*Name // nil for a row constructor: (a, b)
	Args     []Expr
	Over     []Expr // FILTER condition and window PARTITION BY / ORDER BY expressions
	Star     bool   // count(*)
	Distinct bool
	Pos      token.Span
}

func (f *FuncCall) exprNode() {}

// Span implements Node.
func (f *FuncCall) Span() token.Span { return f.Pos }

// CaseExpr is a CASE expression.
type CaseExpr struct {
	Operand Expr
	Whens   []*WhenClause
	Else    Expr
	Pos     token.Span
}

func (c *CaseExpr) exprNode() {}

// Span implements Node.
func (c *CaseExpr) Span() token.Span { return c.Pos }

// WhenClause is WHEN cond THEN result.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr is CAST(expr AS type) or expr::type.
type CastExpr struct {
	Expr     Expr
	TypeName string
	Pos      token.Span
}

func (c *CastExpr) exprNode() {}

// Span implements Node.
func (c *CastExpr) Span() token.Span { return c.Pos }

// InExpr is expr [NOT] IN (list | subquery).
type InExpr struct {
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
	Pos    token.Span
}

func (i *InExpr) exprNode() {}

// Span implements Node.
func (i *InExpr) Span() token.Span { return i.Pos }

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
	Pos  token.Span
}

func (b *BetweenExpr) exprNode() {}

// Span implements Node.
func (b *BetweenExpr) Span() token.Span { return b.Pos }

// IsExpr is expr IS [NOT] (NULL | TRUE | FALSE).
type IsExpr struct {
	Expr  Expr
	Not   bool
	Value string
	Pos   token.Span
}

func (i *IsExpr) exprNode() {}

// Span implements Node.
func (i *IsExpr) Span() token.Span { return i.Pos }

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not   bool
	Query *SelectStmt
	Pos   token.Span
}

func (e *ExistsExpr) exprNode() {}

// Span implements Node.
func (e *ExistsExpr) Span() token.Span { return e.Pos }

// SubqueryExpr is a scalar subquery.
type SubqueryExpr struct {
	Query *SelectStmt
	Pos   token.Span
}

func (s *SubqueryExpr) exprNode() {}

// Span implements Node.
func (s *SubqueryExpr) Span() token.Span { return s.Pos }

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	Expr Expr
	Pos  token.Span
}

func (p *ParenExpr) exprNode() {}

// Span implements Node.
func (p *ParenExpr) Span() token.Span { return p.Pos }

// ErrorExpr marks an expression position that could not be parsed.
type ErrorExpr struct {
	Pos token.Span
}

func (e *ErrorExpr) exprNode() {}

// Span implements Node.
func (e *ErrorExpr) Span() token.Span { return e.Pos }
