package parser

// Walk traverses the tree rooted at node in pre-order. When fn returns
// false the children of that node are skipped. Nil children are not visited.
func Walk(node Node, fn func(Node) bool) {
	if isNilNode(node) || !fn(node) {
		return
	}
	for _, child := range children(node) {
		Walk(child, fn)
	}
}

func isNilNode(node Node) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *Name:
		return n == nil
	case *SelectStmt:
		return n == nil
	case *SelectBody:
		return n == nil
	case *SelectCore:
		return n == nil
	case *WithClause:
		return n == nil
	case *FromClause:
		return n == nil
	case *SelectItem:
		return n == nil
	case *TupleRef:
		return n == nil
	}
	return false
}

// children lists the direct children of node in source order.
func children(node Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, n := range nodes {
			if !isNilNode(n) {
				out = append(out, n)
			}
		}
	}
	addExpr := func(e Expr) {
		if e != nil {
			out = append(out, e)
		}
	}
	addNames := func(names []*Name) {
		for _, n := range names {
			add(n)
		}
	}

	switch n := node.(type) {
	case *SelectStmt:
		add(n.With, n.Body)
	case *OtherStatement:
		add(n.Query)
	case *WithClause:
		for _, cte := range n.CTEs {
			out = append(out, cte)
		}
	case *CTE:
		add(n.Name)
		addNames(n.Columns)
		add(n.Select)
	case *SelectBody:
		for _, core := range n.Cores() {
			add(core)
		}
		for _, o := range n.OrderBy {
			out = append(out, o)
		}
		addExpr(n.Limit)
		addExpr(n.Offset)
	case *SelectCore:
		for _, item := range n.Columns {
			add(item)
		}
		add(n.From)
		addExpr(n.Where)
		for _, e := range n.GroupBy {
			addExpr(e)
		}
		addExpr(n.Having)
		for _, o := range n.OrderBy {
			out = append(out, o)
		}
		addExpr(n.Limit)
		addExpr(n.Offset)
	case *SelectItem:
		addExpr(n.Expr)
		add(n.Alias)
	case *OrderByItem:
		addExpr(n.Expr)
	case *FromClause:
		for _, item := range n.Items {
			if item.Source != nil {
				out = append(out, item.Source)
			}
			for _, j := range item.Joins {
				out = append(out, j)
			}
		}
	case *Join:
		if n.Right != nil {
			out = append(out, n.Right)
		}
		addExpr(n.On)
		addNames(n.Using)
	case *TableName:
		addNames(n.Path)
		add(n.Alias)
	case *DerivedTable:
		add(n.Select, n.Alias)
	case *TableFunction:
		if n.Call != nil {
			out = append(out, n.Call)
		}
		add(n.Alias)
	case *ColumnRef:
		addNames(n.Path)
	case *TupleRef:
		addNames(n.Qualifier)
		add(n.Star)
	case *MemberAccess:
		addExpr(n.Base)
		add(n.Member)
	case *BinaryExpr:
		addExpr(n.Left)
		addExpr(n.Right)
	case *UnaryExpr:
		addExpr(n.Expr)
	case *FuncCall:
		addNames(n.Name)
		for _, a := range n.Args {
			addExpr(a)
		}
		for _, e := range n.Over {
			addExpr(e)
		}
	case *CaseExpr:
		addExpr(n.Operand)
		for _, w := range n.Whens {
			addExpr(w.Condition)
			addExpr(w.Result)
		}
		addExpr(n.Else)
	case *CastExpr:
		addExpr(n.Expr)
	case *InExpr:
		addExpr(n.Expr)
		for _, v := range n.Values {
			addExpr(v)
		}
		add(n.Query)
	case *BetweenExpr:
		addExpr(n.Expr)
		addExpr(n.Low)
		addExpr(n.High)
	case *IsExpr:
		addExpr(n.Expr)
	case *ExistsExpr:
		add(n.Query)
	case *SubqueryExpr:
		add(n.Query)
	case *ParenExpr:
		addExpr(n.Expr)
	}
	return out
}
