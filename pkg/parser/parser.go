// Package parser provides an error-tolerant SQL parser producing a
// positioned syntax tree, plus syntax inspection at a cursor offset.
//
// # Usage
//
//	script := parser.ParseScript(text)
//	item := script.ItemAt(offset)
//	insp := parser.Inspect(item, offset)
//
// Parsing never fails. Syntax errors are collected on the script item and
// the tree contains ErrorExpr / BadTableRef nodes where input was missing,
// so a half typed query still yields scopes to complete against.
//
// # Grammar Overview
//
//	statement     → [WITH cte_list] select_body
//	select_body   → select_core [(UNION|INTERSECT|EXCEPT) [ALL] select_core]*
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//	select_core   → SELECT [DISTINCT|ALL] select_list
//	                [FROM from_clause] [WHERE expr]
//	                [GROUP BY expr_list] [HAVING expr]
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Parser parses the tokens of one script item.
type Parser struct {
	tokens  []token.Token
	i       int
	token   token.Token // current token
	peek    token.Token // lookahead token
	peek2   token.Token // second lookahead token
	prevEnd token.Position
	errors  []error
	depth   int // parenthesis depth relative to the statement
}

// NewParser creates a parser over tokens. The slice must end with EOF.
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens}
	p.i = -1
	p.nextToken()
	if len(tokens) > 0 {
		p.prevEnd = tokens[0].Pos
	}
	return p
}

// Errors returns the collected syntax errors.
func (p *Parser) Errors() []error {
	return p.errors
}

// ---------- Token Helpers ----------

func (p *Parser) at(i int) token.Token {
	if i < len(p.tokens) {
		return p.tokens[i]
	}
	if len(p.tokens) == 0 {
		return token.Token{Type: token.EOF}
	}
	last := p.tokens[len(p.tokens)-1]
	return token.Token{Type: token.EOF, Pos: last.End, End: last.End}
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.i >= 0 && p.token.Type != token.EOF {
		p.prevEnd = p.token.End
		switch p.token.Type {
		case token.LPAREN:
			p.depth++
		case token.RPAREN:
			p.depth--
		}
	}
	if p.i < len(p.tokens) {
		p.i++
	}
	p.token = p.at(p.i)
	p.peek = p.at(p.i + 1)
	p.peek2 = p.at(p.i + 2)
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// checkPeek2 returns true if the peek2 token is of the given type.
func (p *Parser) checkPeek2(t token.TokenType) bool {
	return p.peek2.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

// addError adds a parse error at the current token.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", tok.Literal)
}

// span returns the span from start to the end of the last consumed token.
// When nothing was consumed the span is empty and sits at start.
func (p *Parser) span(start token.Position) token.Span {
	end := p.prevEnd
	if end.Offset < start.Offset {
		end = start
	}
	return token.Span{Start: start, End: end}
}

// emptySpan is a zero width span at the current token.
func (p *Parser) emptySpan() token.Span {
	return token.Span{Start: p.token.Pos, End: p.token.Pos}
}

// ---------- Keyword Helpers ----------

// isName returns true if the current token can be used as an identifier.
func (p *Parser) isName() bool {
	return p.check(token.IDENT) || p.check(token.QIDENT)
}

// parseName consumes an identifier token.
func (p *Parser) parseName() *Name {
	if !p.isName() {
		return nil
	}
	n := nameFromToken(p.token)
	p.nextToken()
	return n
}

func nameFromToken(tok token.Token) *Name {
	n := &Name{Raw: tok.Literal, Value: tok.Literal, Pos: tok.Span()}
	if tok.Type == token.QIDENT {
		n.Quoted = true
		n.Value = Unquote(tok.Literal)
	}
	return n
}

// isClauseKeyword returns true for tokens that terminate an expression list.
func isClauseKeyword(t token.TokenType) bool {
	switch t {
	case token.FROM, token.WHERE, token.GROUP, token.HAVING, token.ORDER,
		token.LIMIT, token.OFFSET, token.UNION, token.INTERSECT, token.EXCEPT,
		token.ON, token.USING, token.SEMI, token.EOF, token.RPAREN:
		return true
	}
	return isJoinKeyword(t)
}

// isJoinKeyword returns true if the token starts a JOIN clause.
func isJoinKeyword(t token.TokenType) bool {
	switch t {
	case token.JOIN, token.INNER, token.LEFT, token.RIGHT, token.FULL,
		token.CROSS, token.NATURAL:
		return true
	}
	return false
}

// skipTo discards tokens until one satisfies stop at the current depth.
func (p *Parser) skipTo(stop func(token.TokenType) bool) {
	depth := p.depth
	for !p.check(token.EOF) {
		if p.depth == depth && stop(p.token.Type) {
			return
		}
		if p.depth < depth {
			return
		}
		if p.check(token.RPAREN) && p.depth == depth {
			return
		}
		p.nextToken()
	}
}
