package semantic

import "github.com/leapstack-labs/sqlassist/pkg/parser"

// walkExpr visits e bottom-up: children before their parent. Subqueries are
// handed to sub instead of being entered.
func walkExpr(e parser.Expr, visit func(parser.Expr), sub func(*parser.SelectStmt)) {
	if e == nil {
		return
	}
	w := func(x parser.Expr) { walkExpr(x, visit, sub) }
	query := func(q *parser.SelectStmt) {
		if q != nil && sub != nil {
			sub(q)
		}
	}

	switch e := e.(type) {
	case *parser.MemberAccess:
		w(e.Base)
	case *parser.BinaryExpr:
		w(e.Left)
		w(e.Right)
	case *parser.UnaryExpr:
		w(e.Expr)
	case *parser.FuncCall:
		for _, a := range e.Args {
			w(a)
		}
		for _, o := range e.Over {
			w(o)
		}
	case *parser.CaseExpr:
		w(e.Operand)
		for _, when := range e.Whens {
			w(when.Condition)
			w(when.Result)
		}
		w(e.Else)
	case *parser.CastExpr:
		w(e.Expr)
	case *parser.InExpr:
		w(e.Expr)
		for _, v := range e.Values {
			w(v)
		}
		query(e.Query)
	case *parser.BetweenExpr:
		w(e.Expr)
		w(e.Low)
		w(e.High)
	case *parser.IsExpr:
		w(e.Expr)
	case *parser.ExistsExpr:
		query(e.Query)
	case *parser.SubqueryExpr:
		query(e.Query)
	case *parser.ParenExpr:
		w(e.Expr)
	}
	visit(e)
}
