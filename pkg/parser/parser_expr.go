package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Expression parsing using precedence climbing.
//
// Precedence levels:
//
//	precOr         = 1
//	precAnd        = 2
//	precNot        = 3
//	precComparison = 4  (=, !=, <, >, <=, >=, IS, IN, BETWEEN, LIKE, ILIKE)
//	precAddition   = 5  (+, -, ||)
//	precMultiply   = 6  (*, /, %)
//	precUnary      = 7  (-, +)
//	precPostfix    = 8  (::)
//
// Missing operands become ErrorExpr nodes positioned at the token that
// could not start an expression, which is where a cursor usually is.
const (
	precNone = iota
	precOr
	precAnd
	precNot
	precComparison
	precAddition
	precMultiply
	precUnary
	precPostfix
)

// parseExpression parses an expression.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precNone + 1)
}

func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()

	for {
		prec := infixPrecedence(p.token.Type)
		if prec < minPrecedence || prec == precNone {
			break
		}
		left = p.parseInfixExpr(left, prec)
	}

	return left
}

func (p *Parser) parsePrefixExpr() Expr {
	start := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		if p.checkPeek(token.EXISTS) {
			p.nextToken()
			e := p.parseExists(start)
			e.Not = true
			return e
		}
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precNot)
		return &UnaryExpr{Op: token.NOT, Expr: expr, Pos: p.span(start)}

	case token.MINUS, token.PLUS:
		op := p.token.Type
		p.nextToken()
		expr := p.parseExpressionWithPrecedence(precUnary)
		return &UnaryExpr{Op: op, Expr: expr, Pos: p.span(start)}

	default:
		return p.parsePrimary()
	}
}

func infixPrecedence(t token.TokenType) int {
	switch t {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IS, token.IN, token.BETWEEN, token.LIKE, token.ILIKE, token.NOT:
		return precComparison
	case token.PLUS, token.MINUS, token.DPIPE:
		return precAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiply
	case token.DCOLON:
		return precPostfix
	default:
		return precNone
	}
}

func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	start := left.Span().Start
	op := p.token.Type

	switch op {
	case token.NOT:
		// NOT IN, NOT BETWEEN, NOT LIKE, NOT ILIKE
		switch p.peek.Type {
		case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
			p.nextToken()
			return p.parseNegatable(left, start, true)
		}
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "IN, BETWEEN or LIKE"))
		p.nextToken()
		return left

	case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return p.parseNegatable(left, start, false)

	case token.IS:
		p.nextToken()
		e := &IsExpr{Expr: left}
		if p.match(token.NOT) {
			e.Not = true
		}
		switch p.token.Type {
		case token.NULL, token.TRUE, token.FALSE:
			e.Value = strings.ToUpper(p.token.Literal)
			p.nextToken()
		case token.DISTINCT:
			// IS [NOT] DISTINCT FROM expr
			p.nextToken()
			p.expect(token.FROM)
			right := p.parseExpressionWithPrecedence(precComparison + 1)
			return &BinaryExpr{Left: left, Op: token.IS, Right: right, Pos: p.span(start)}
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "NULL, TRUE or FALSE"))
		}
		e.Pos = p.span(start)
		return e

	case token.DCOLON:
		p.nextToken()
		return &CastExpr{Expr: left, TypeName: p.parseTypeName(), Pos: p.span(start)}
	}

	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	return &BinaryExpr{Left: left, Op: op, Right: right, Pos: p.span(start)}
}

// parseNegatable parses IN / BETWEEN / LIKE with the operator as current token.
func (p *Parser) parseNegatable(left Expr, start token.Position, not bool) Expr {
	switch p.token.Type {
	case token.IN:
		p.nextToken()
		e := &InExpr{Expr: left, Not: not}
		if p.expect(token.LPAREN) {
			if p.check(token.SELECT) || p.check(token.WITH) {
				e.Query = p.parseSelectStmt()
			} else if !p.check(token.RPAREN) {
				e.Values = p.parseExprList()
			}
			p.expect(token.RPAREN)
		}
		e.Pos = p.span(start)
		return e

	case token.BETWEEN:
		p.nextToken()
		e := &BetweenExpr{Expr: left, Not: not}
		e.Low = p.parseExpressionWithPrecedence(precAddition)
		p.expect(token.AND)
		e.High = p.parseExpressionWithPrecedence(precAddition)
		e.Pos = p.span(start)
		return e

	default: // LIKE, ILIKE
		op := p.token.Type
		p.nextToken()
		right := p.parseExpressionWithPrecedence(precComparison + 1)
		var expr Expr = &BinaryExpr{Left: left, Op: op, Right: right, Pos: p.span(start)}
		if not {
			expr = &UnaryExpr{Op: token.NOT, Expr: expr, Pos: p.span(start)}
		}
		return expr
	}
}

// parsePrimary parses literals, references, calls and parenthesized forms.
func (p *Parser) parsePrimary() Expr {
	start := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		return &Literal{Kind: LiteralNumber, Value: tok.Literal, Pos: tok.Span()}
	case token.STRING:
		p.nextToken()
		return &Literal{Kind: LiteralString, Value: tok.Literal, Pos: tok.Span()}
	case token.PARAM:
		p.nextToken()
		return &Literal{Kind: LiteralParam, Value: tok.Literal, Pos: tok.Span()}
	case token.TRUE, token.FALSE:
		p.nextToken()
		return &Literal{Kind: LiteralBool, Value: strings.ToUpper(tok.Literal), Pos: tok.Span()}
	case token.NULL:
		p.nextToken()
		return &Literal{Kind: LiteralNull, Value: "NULL", Pos: tok.Span()}
	case token.CASE:
		return p.parseCase()
	case token.CAST:
		return p.parseCast()
	case token.EXISTS:
		return p.parseExists(start)
	case token.LEFT, token.RIGHT:
		// left(s, n) / right(s, n) are functions
		if p.checkPeek(token.LPAREN) {
			name := &Name{Raw: tok.Literal, Value: tok.Literal, Pos: tok.Span()}
			p.nextToken()
			return p.parseFuncCall([]*Name{name}, start)
		}
	case token.LPAREN:
		return p.parsePostfixMember(p.parseParenthesized())
	case token.IDENT, token.QIDENT:
		return p.parseReference()
	case token.ILLEGAL:
		p.addError(fmt.Sprintf(ErrExpectedExpr, describe(tok)))
		p.nextToken()
		return &ErrorExpr{Pos: tok.Span()}
	}

	p.addError(fmt.Sprintf(ErrExpectedExpr, describe(tok)))
	return &ErrorExpr{Pos: p.emptySpan()}
}

// parseReference parses column refs, t.*, qualified function calls and
// typed literals such as DATE '2024-01-01'.
func (p *Parser) parseReference() Expr {
	start := p.token.Pos
	path := []*Name{p.parseName()}

	for p.check(token.DOT) {
		switch {
		case p.checkPeek(token.IDENT) || p.checkPeek(token.QIDENT):
			p.nextToken()
			path = append(path, p.parseName())
		case p.checkPeek(token.STAR):
			p.nextToken()
			star := &Name{Raw: "*", Value: "*", Pos: p.token.Span()}
			p.nextToken()
			return &TupleRef{Qualifier: path, Star: star, Pos: p.span(start)}
		default:
			p.nextToken() // dangling "."
			return &ColumnRef{Path: path, TrailingDot: true, Pos: p.span(start)}
		}
	}

	if p.check(token.LPAREN) {
		return p.parseFuncCall(path, start)
	}

	if len(path) == 1 && p.check(token.STRING) {
		lit := p.token
		p.nextToken()
		return &CastExpr{
			Expr:     &Literal{Kind: LiteralString, Value: lit.Literal, Pos: lit.Span()},
			TypeName: strings.ToUpper(path[0].Value),
			Pos:      p.span(start),
		}
	}

	return &ColumnRef{Path: path, Pos: p.span(start)}
}

// parseFuncCall parses the argument list of a call whose name was consumed.
func (p *Parser) parseFuncCall(name []*Name, start token.Position) *FuncCall {
	call := &FuncCall{Name: name}
	p.expect(token.LPAREN)

	switch {
	case p.check(token.STAR):
		p.nextToken()
		call.Star = true
	case p.check(token.RPAREN):
	default:
		if p.match(token.DISTINCT) {
			call.Distinct = true
		}
		call.Args = p.parseExprList()
	}
	p.expect(token.RPAREN)

	// FILTER (WHERE ...) and OVER (...) are plain words to the lexer.
	for p.check(token.IDENT) {
		switch strings.ToLower(p.token.Literal) {
		case "filter":
			if !p.checkPeek(token.LPAREN) {
				call.Pos = p.span(start)
				return call
			}
			p.nextToken()
			p.nextToken()
			if p.match(token.WHERE) {
				call.Over = append(call.Over, p.parseExpression())
			}
			p.expect(token.RPAREN)
		case "over":
			p.nextToken()
			if p.isName() {
				p.nextToken() // named window
				continue
			}
			if p.expect(token.LPAREN) {
				call.Over = append(call.Over, p.parseWindowSpec()...)
				p.expect(token.RPAREN)
			}
		default:
			call.Pos = p.span(start)
			return call
		}
	}

	call.Pos = p.span(start)
	return call
}

// parseWindowSpec parses [PARTITION BY exprs] [ORDER BY items] [frame] and
// returns the expressions it references. Frame clauses are skipped.
func (p *Parser) parseWindowSpec() []Expr {
	var exprs []Expr
	if p.check(token.IDENT) && strings.EqualFold(p.token.Literal, "partition") {
		p.nextToken()
		p.expect(token.BY)
		exprs = append(exprs, p.parseExprList()...)
	}
	if p.check(token.ORDER) {
		p.nextToken()
		p.expect(token.BY)
		for _, item := range p.parseOrderList() {
			exprs = append(exprs, item.Expr)
		}
	}
	p.skipTo(func(token.TokenType) bool { return false })
	return exprs
}

// parseParenthesized parses "(" ... ")" as a subquery, a parenthesized
// expression, or a row constructor.
func (p *Parser) parseParenthesized() Expr {
	start := p.token.Pos
	p.expect(token.LPAREN)

	if p.check(token.SELECT) || p.check(token.WITH) {
		q := p.parseSelectStmt()
		p.expect(token.RPAREN)
		return &SubqueryExpr{Query: q, Pos: p.span(start)}
	}

	first := p.parseExpression()
	if p.check(token.COMMA) {
		p.nextToken()
		row := &FuncCall{Args: append([]Expr{first}, p.parseExprList()...)}
		p.expect(token.RPAREN)
		row.Pos = p.span(start)
		return row
	}
	p.expect(token.RPAREN)
	return &ParenExpr{Expr: first, Pos: p.span(start)}
}

// parsePostfixMember parses (expr).field chains.
func (p *Parser) parsePostfixMember(base Expr) Expr {
	for p.check(token.DOT) {
		start := base.Span().Start
		p.nextToken()
		access := &MemberAccess{Base: base}
		if p.isName() {
			access.Member = p.parseName()
		} else {
			access.TrailingDot = true
		}
		access.Pos = p.span(start)
		base = access
		if access.TrailingDot {
			break
		}
	}
	return base
}

func (p *Parser) parseCase() Expr {
	start := p.token.Pos
	p.expect(token.CASE)
	e := &CaseExpr{}

	if !p.check(token.WHEN) {
		e.Operand = p.parseExpression()
	}
	for p.match(token.WHEN) {
		w := &WhenClause{Condition: p.parseExpression()}
		p.expect(token.THEN)
		w.Result = p.parseExpression()
		e.Whens = append(e.Whens, w)
	}
	if p.match(token.ELSE) {
		e.Else = p.parseExpression()
	}
	p.expect(token.END)
	e.Pos = p.span(start)
	return e
}

func (p *Parser) parseCast() Expr {
	start := p.token.Pos
	p.expect(token.CAST)
	e := &CastExpr{}
	if p.expect(token.LPAREN) {
		e.Expr = p.parseExpression()
		p.expect(token.AS)
		e.TypeName = p.parseTypeName()
		p.expect(token.RPAREN)
	}
	e.Pos = p.span(start)
	return e
}

func (p *Parser) parseExists(start token.Position) *ExistsExpr {
	p.expect(token.EXISTS)
	e := &ExistsExpr{}
	if p.expect(token.LPAREN) {
		e.Query = p.parseSelectStmt()
		p.expect(token.RPAREN)
	}
	e.Pos = p.span(start)
	return e
}

// parseTypeName consumes a type name such as "varchar(10)" or
// "double precision" and returns it upper-cased.
func (p *Parser) parseTypeName() string {
	var parts []string
	for p.isName() {
		parts = append(parts, strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	name := strings.Join(parts, " ")
	if name == "" {
		p.addError(fmt.Sprintf(ErrExpectedName, describe(p.token)))
		return ""
	}
	if p.check(token.LPAREN) {
		var b strings.Builder
		b.WriteString(name)
		for !p.check(token.EOF) {
			b.WriteString(p.token.Literal)
			done := p.check(token.RPAREN)
			p.nextToken()
			if done {
				break
			}
		}
		name = b.String()
	}
	for p.check(token.LBRACKET) && p.checkPeek(token.RBRACKET) {
		p.nextToken()
		p.nextToken()
		name += "[]"
	}
	return name
}
