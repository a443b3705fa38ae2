package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Statement parsing: WITH clause, CTEs, SELECT body, SELECT list, ORDER BY.
//
// Grammar:
//
//	statement     → [WITH cte_list] select_body
//	cte_list      → cte ("," cte)*
//	cte           → identifier ["(" name_list ")"] AS "(" statement ")"
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL|DISTINCT] select_core]*
//	select_list   → select_item ("," select_item)*
//	select_item   → "*" | table "." "*" | expr [[AS] identifier]
//	order_item    → expr [ASC|DESC]

// ParseStatement parses one statement from the current position.
func (p *Parser) ParseStatement() Statement {
	switch p.token.Type {
	case token.EOF, token.SEMI:
		return nil
	case token.SELECT, token.WITH:
		stmt := p.parseSelectStmt()
		if !p.check(token.EOF) && !p.check(token.SEMI) {
			p.addError(fmt.Sprintf(ErrTrailingInput, describe(p.token)))
		}
		return stmt
	case token.LPAREN:
		if p.checkPeek(token.SELECT) || p.checkPeek(token.WITH) {
			start := p.token.Pos
			p.nextToken()
			stmt := p.parseSelectStmt()
			p.expect(token.RPAREN)
			stmt.Pos = p.span(start)
			return stmt
		}
	}
	return p.parseOtherStatement()
}

// parseOtherStatement keeps a non-query statement. A query embedded at the
// top level (INSERT ... SELECT, CREATE VIEW ... AS SELECT) is parsed too.
func (p *Parser) parseOtherStatement() *OtherStatement {
	start := p.token.Pos
	stmt := &OtherStatement{Keyword: strings.ToUpper(p.token.Literal)}
	for !p.check(token.EOF) && !p.check(token.SEMI) {
		if p.depth == 0 && (p.check(token.SELECT) || p.check(token.WITH)) {
			stmt.Query = p.parseSelectStmt()
			continue
		}
		p.nextToken()
	}
	stmt.Pos = p.span(start)
	return stmt
}

// parseSelectStmt parses [WITH ...] select_body.
func (p *Parser) parseSelectStmt() *SelectStmt {
	start := p.token.Pos
	stmt := &SelectStmt{}

	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
	}

	stmt.Body = p.parseSelectBody()
	stmt.Pos = p.span(start)
	return stmt
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *WithClause {
	start := p.token.Pos
	p.expect(token.WITH)
	with := &WithClause{}

	if p.match(token.RECURSIVE) {
		with.Recursive = true
	}

	for {
		cte := p.parseCTE()
		if cte == nil {
			break
		}
		with.CTEs = append(with.CTEs, cte)
		if !p.match(token.COMMA) {
			break
		}
	}

	with.Pos = p.span(start)
	return with
}

// parseCTE parses: name [(col, ...)] AS ( statement ).
func (p *Parser) parseCTE() *CTE {
	start := p.token.Pos
	name := p.parseName()
	if name == nil {
		p.addError(fmt.Sprintf(ErrExpectedName, describe(p.token)))
		return nil
	}
	cte := &CTE{Name: name}

	if p.check(token.LPAREN) {
		p.nextToken()
		cte.Columns = p.parseNameList()
		p.expect(token.RPAREN)
	}

	p.expect(token.AS)
	if p.expect(token.LPAREN) {
		cte.Select = p.parseSelectStmt()
		p.expect(token.RPAREN)
	}

	cte.Pos = p.span(start)
	return cte
}

// parseNameList parses identifier ("," identifier)*.
func (p *Parser) parseNameList() []*Name {
	var names []*Name
	for {
		n := p.parseName()
		if n == nil {
			p.addError(fmt.Sprintf(ErrExpectedName, describe(p.token)))
			break
		}
		names = append(names, n)
		if !p.match(token.COMMA) {
			break
		}
	}
	return names
}

// parseSelectBody parses select cores joined by set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	start := p.token.Pos
	body := &SelectBody{Left: p.parseSelectCore()}

	for {
		var op SetOp
		switch p.token.Type {
		case token.UNION:
			op = SetOpUnion
		case token.INTERSECT:
			op = SetOpIntersect
		case token.EXCEPT:
			op = SetOpExcept
		default:
			op = ""
		}
		if op == "" {
			break
		}
		p.nextToken()

		setOp := &SetOperation{Op: op}
		if p.match(token.ALL) {
			setOp.All = true
		} else {
			p.match(token.DISTINCT)
		}
		setOp.Right = p.parseSelectCore()
		body.Ops = append(body.Ops, setOp)
	}

	// With set operations, trailing ORDER BY / LIMIT bind to the whole body.
	if len(body.Ops) > 0 {
		last := body.Ops[len(body.Ops)-1].Right
		body.OrderBy, last.OrderBy = last.OrderBy, nil
		body.Limit, last.Limit = last.Limit, nil
		body.Offset, last.Offset = last.Offset, nil
	}

	body.Pos = p.span(start)
	return body
}

// parseSelectCore parses a single SELECT block.
func (p *Parser) parseSelectCore() *SelectCore {
	start := p.token.Pos
	core := &SelectCore{}

	if !p.expect(token.SELECT) {
		p.skipTo(func(t token.TokenType) bool { return t == token.SELECT || t == token.SEMI })
		if !p.match(token.SELECT) {
			core.Pos = p.span(start)
			return core
		}
	}

	if p.match(token.DISTINCT) {
		core.Distinct = true
	} else {
		p.match(token.ALL)
	}

	core.Columns = p.parseSelectList()
	core.SelectSpan = p.span(start)
	p.extendToCursorGap(&core.SelectSpan)

	if p.check(token.FROM) {
		fromStart := p.token.Pos
		p.nextToken()
		core.From = p.parseFromClause()
		core.From.Pos = p.span(fromStart)
		core.FromSpan = core.From.Pos
		p.extendToCursorGap(&core.FromSpan)
	}

	if p.match(token.WHERE) {
		core.Where = p.parseExpression()
	}

	if p.check(token.GROUP) {
		p.nextToken()
		p.expect(token.BY)
		core.GroupBy = p.parseExprList()
	}

	if p.match(token.HAVING) {
		core.Having = p.parseExpression()
	}

	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		core.OrderBy = p.parseOrderList()
	}

	if p.match(token.LIMIT) {
		core.Limit = p.parseExpression()
	}
	if p.match(token.OFFSET) {
		core.Offset = p.parseExpression()
	}

	// Unknown trailing input inside the core: report once and skip to
	// something a caller understands.
	if !p.atCoreEnd() {
		p.addError(fmt.Sprintf(ErrTrailingInput, describe(p.token)))
		p.skipTo(func(t token.TokenType) bool {
			return t == token.SEMI || t == token.UNION || t == token.INTERSECT || t == token.EXCEPT
		})
	}

	core.Pos = p.span(start)
	p.extendToCursorGap(&core.Pos)
	return core
}

func (p *Parser) atCoreEnd() bool {
	switch p.token.Type {
	case token.EOF, token.SEMI, token.RPAREN, token.UNION, token.INTERSECT, token.EXCEPT:
		return true
	}
	return false
}

// extendToCursorGap stretches s over trailing whitespace when the next
// token ends the statement, so that a cursor typed after the last token
// still sits inside the clause.
func (p *Parser) extendToCursorGap(s *token.Span) {
	if p.check(token.EOF) || p.check(token.SEMI) {
		if p.token.Pos.Offset > s.End.Offset {
			s.End = p.token.Pos
		}
	}
}

// parseSelectList parses the select list.
func (p *Parser) parseSelectList() []*SelectItem {
	var items []*SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}

// parseSelectItem parses "*" | t.* | expr [AS alias].
func (p *Parser) parseSelectItem() *SelectItem {
	start := p.token.Pos
	item := &SelectItem{}

	if p.check(token.STAR) {
		p.nextToken()
		item.Star = true
		item.Pos = p.span(start)
		return item
	}

	expr := p.parseExpression()
	if tuple, ok := expr.(*TupleRef); ok {
		item.TableStar = tuple
	}
	item.Expr = expr

	if p.match(token.AS) {
		item.Alias = p.parseName()
		if item.Alias == nil {
			p.addError(fmt.Sprintf(ErrExpectedName, describe(p.token)))
		}
	} else if p.isName() {
		item.Alias = p.parseName()
	}

	item.Pos = p.span(start)
	return item
}

// parseExprList parses expr ("," expr)*.
func (p *Parser) parseExprList() []Expr {
	var exprs []Expr
	for {
		exprs = append(exprs, p.parseExpression())
		if !p.match(token.COMMA) {
			break
		}
	}
	return exprs
}

// parseOrderList parses order_item ("," order_item)*.
func (p *Parser) parseOrderList() []*OrderByItem {
	var items []*OrderByItem
	for {
		start := p.token.Pos
		item := &OrderByItem{Expr: p.parseExpression()}
		if p.match(token.DESC) {
			item.Desc = true
		} else {
			p.match(token.ASC)
		}
		// NULLS FIRST|LAST are plain words to the lexer.
		if p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "nulls") {
			p.nextToken()
			if p.check(token.IDENT) {
				p.nextToken()
			}
		}
		item.Pos = p.span(start)
		items = append(items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return items
}
