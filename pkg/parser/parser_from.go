package parser

import (
	"fmt"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// FROM clause parsing: table references, derived tables, lateral subqueries, JOINs.
//
// Grammar:
//
//	from_clause   → from_item ("," from_item)*
//	from_item     → table_ref (join)*
//	table_ref     → table_name | derived_table | table_function
//	table_name    → [catalog "."] [schema "."] identifier [[AS] identifier]
//	derived_table → [LATERAL] "(" statement ")" [AS] identifier
//	join          → [NATURAL] join_type JOIN table_ref [ON expr | USING "(" name_list ")"]
//	join_type     → [INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS

// parseFromClause parses the FROM clause (after the FROM keyword).
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{}
	for {
		item := &FromItem{Source: p.parseTableRef()}
		for {
			join := p.parseJoin()
			if join == nil {
				break
			}
			item.Joins = append(item.Joins, join)
		}
		from.Items = append(from.Items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	return from
}

// parseTableRef parses a table reference.
func (p *Parser) parseTableRef() TableRef {
	start := p.token.Pos

	if p.match(token.LATERAL) {
		ref := p.parseDerivedTable(start)
		ref.Lateral = true
		return ref
	}

	if p.check(token.LPAREN) {
		return p.parseDerivedTable(start)
	}

	if !p.isName() {
		p.addError(fmt.Sprintf(ErrExpectedTable, describe(p.token)))
		return &BadTableRef{Pos: p.emptySpan()}
	}

	path, trailingDot := p.parseNamePath()

	// Table-valued function: read_csv('x.csv') AS t
	if p.check(token.LPAREN) && !trailingDot {
		call := p.parseFuncCall(path, start)
		ref := &TableFunction{Call: call}
		ref.Alias = p.parseAlias()
		ref.Pos = p.span(start)
		return ref
	}

	ref := &TableName{Path: path, TrailingDot: trailingDot}
	if !trailingDot {
		ref.Alias = p.parseAlias()
	}
	ref.Pos = p.span(start)
	return ref
}

// parseNamePath parses identifier ("." identifier)* and reports whether the
// path ended with a dangling period.
func (p *Parser) parseNamePath() ([]*Name, bool) {
	var path []*Name
	path = append(path, p.parseName())
	for p.check(token.DOT) {
		if p.checkPeek(token.IDENT) || p.checkPeek(token.QIDENT) {
			p.nextToken()
			path = append(path, p.parseName())
			continue
		}
		if p.checkPeek(token.STAR) {
			// Caller decides what "x.*" means.
			return path, false
		}
		p.nextToken() // dangling "."
		return path, true
	}
	return path, false
}

// parseAlias parses [AS] identifier.
func (p *Parser) parseAlias() *Name {
	if p.match(token.AS) {
		alias := p.parseName()
		if alias == nil {
			p.addError(fmt.Sprintf(ErrExpectedName, describe(p.token)))
		}
		return alias
	}
	if p.isName() {
		return p.parseName()
	}
	return nil
}

// parseDerivedTable parses ( statement ) [AS] alias.
func (p *Parser) parseDerivedTable(start token.Position) *DerivedTable {
	ref := &DerivedTable{}
	if p.expect(token.LPAREN) {
		if p.check(token.SELECT) || p.check(token.WITH) {
			ref.Select = p.parseSelectStmt()
		} else {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), token.SELECT))
			p.skipTo(func(token.TokenType) bool { return false })
		}
		p.expect(token.RPAREN)
	}
	ref.Alias = p.parseAlias()
	ref.Pos = p.span(start)
	return ref
}

// parseJoin parses one JOIN clause, or returns nil when none follows.
func (p *Parser) parseJoin() *Join {
	if !isJoinKeyword(p.token.Type) {
		return nil
	}
	start := p.token.Pos
	join := &Join{Type: JoinInner}

	if p.match(token.NATURAL) {
		join.Natural = true
	}

	switch {
	case p.match(token.INNER):
	case p.match(token.LEFT):
		join.Type = JoinLeft
		p.match(token.OUTER)
	case p.match(token.RIGHT):
		join.Type = JoinRight
		p.match(token.OUTER)
	case p.match(token.FULL):
		join.Type = JoinFull
		p.match(token.OUTER)
	case p.match(token.CROSS):
		join.Type = JoinCross
	}

	p.expect(token.JOIN)
	join.Right = p.parseTableRef()

	switch {
	case p.check(token.ON):
		onStart := p.token.Pos
		p.nextToken()
		join.On = p.parseExpression()
		join.OnSpan = p.span(onStart)
		p.extendToCursorGap(&join.OnSpan)
	case p.match(token.USING):
		if p.expect(token.LPAREN) {
			join.Using = p.parseNameList()
			p.expect(token.RPAREN)
		}
	}

	join.Pos = p.span(start)
	return join
}
