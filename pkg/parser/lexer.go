package parser

import (
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Lexer tokenizes SQL input.
//
// The lexer never fails: unterminated strings and quoted identifiers run to
// the end of input, and unknown characters become ILLEGAL tokens. Offsets
// are absolute when the lexer is created with a base position, so tokens of
// a script item line up with the enclosing script.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
	base    token.Position

	// Comments collected during lexing
	Comments []*token.Comment
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return NewLexerAt(input, token.Position{Line: 1, Column: 1})
}

// NewLexerAt creates a Lexer whose first byte sits at base.
func NewLexerAt(input string, base token.Position) *Lexer {
	if base.Line == 0 {
		base.Line = 1
	}
	if base.Column == 0 {
		base.Column = 1
	}
	l := &Lexer{
		input: input,
		line:  base.Line,
		col:   base.Column - 1,
		base:  base,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the position of the current character.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.base.Offset + l.pos,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	start := l.currentPos()
	startOffset := l.pos
	finish := func(t token.TokenType) token.Token {
		return token.Token{
			Type:    t,
			Literal: l.input[startOffset:l.pos],
			Pos:     start,
			End:     l.currentPos(),
		}
	}
	single := func(t token.TokenType) token.Token {
		l.readChar()
		return finish(t)
	}
	double := func(t token.TokenType) token.Token {
		l.readChar()
		l.readChar()
		return finish(t)
	}

	if l.atEOF() {
		return token.Token{Type: token.EOF, Pos: start, End: start}
	}

	switch l.ch {
	case '+':
		return single(token.PLUS)
	case '-':
		return single(token.MINUS)
	case '*':
		return single(token.STAR)
	case '/':
		return single(token.SLASH)
	case '%':
		return single(token.PERCENT)
	case '=':
		if l.peekChar() == '=' {
			return double(token.EQ)
		}
		return single(token.EQ)
	case '<':
		switch l.peekChar() {
		case '=':
			return double(token.LE)
		case '>':
			return double(token.NE)
		}
		return single(token.LT)
	case '>':
		if l.peekChar() == '=' {
			return double(token.GE)
		}
		return single(token.GT)
	case '!':
		if l.peekChar() == '=' {
			return double(token.NE)
		}
		return single(token.ILLEGAL)
	case '|':
		if l.peekChar() == '|' {
			return double(token.DPIPE)
		}
		return single(token.ILLEGAL)
	case ':':
		if l.peekChar() == ':' {
			return double(token.DCOLON)
		}
		if isLetter(l.peekChar()) {
			l.readChar()
			l.readIdentifier()
			return finish(token.PARAM)
		}
		return single(token.ILLEGAL)
	case '?':
		return single(token.PARAM)
	case '$':
		if isDigit(l.peekChar()) {
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
			return finish(token.PARAM)
		}
		return single(token.ILLEGAL)
	case '.':
		if isDigit(l.peekChar()) {
			l.readNumber()
			return finish(token.NUMBER)
		}
		return single(token.DOT)
	case ',':
		return single(token.COMMA)
	case ';':
		return single(token.SEMI)
	case '(':
		return single(token.LPAREN)
	case ')':
		return single(token.RPAREN)
	case '[':
		return single(token.LBRACKET)
	case ']':
		return single(token.RBRACKET)
	case '\'':
		l.readQuoted('\'')
		return finish(token.STRING)
	case '"':
		l.readQuoted('"')
		return finish(token.QIDENT)
	case '`':
		l.readQuoted('`')
		return finish(token.QIDENT)
	}

	switch {
	case isLetter(l.ch) || l.ch == '_':
		word := l.readIdentifier()
		tok := finish(token.LookupIdent(strings.ToLower(word)))
		return tok
	case isDigit(l.ch):
		l.readNumber()
		return finish(token.NUMBER)
	default:
		return single(token.ILLEGAL)
	}
}

// Tokenize returns all tokens up to and including EOF.
func (l *Lexer) Tokenize() []token.Token {
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

// skipWhitespaceAndComments skips whitespace and collects comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			l.collectLineComment()
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.collectBlockComment()
			continue
		}

		break
	}
}

func (l *Lexer) collectLineComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	for l.ch != '\n' && !l.atEOF() {
		l.readChar()
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.LineComment,
		Text: l.input[startOffset:l.pos],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

func (l *Lexer) collectBlockComment() {
	startPos := l.currentPos()
	startOffset := l.pos

	l.readChar() // skip '/'
	l.readChar() // skip '*'

	for !l.atEOF() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			break
		}
		l.readChar()
	}

	l.Comments = append(l.Comments, &token.Comment{
		Kind: token.BlockComment,
		Text: l.input[startOffset:l.pos],
		Span: token.Span{Start: startPos, End: l.currentPos()},
	})
}

// readQuoted consumes a quoted run. A doubled quote is an escape.
// An unterminated run stops at end of input.
func (l *Lexer) readQuoted(q byte) {
	l.readChar() // opening quote
	for !l.atEOF() {
		if l.ch == q {
			if l.peekChar() == q {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			return
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) || l.ch == '.' && !isLetter(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
}

// isLetter accepts ASCII letters and any byte of a multi-byte UTF-8 sequence,
// so non-ASCII identifiers lex as a single word.
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Unquote returns the identifier text with surrounding quotes removed and
// doubled quotes collapsed. Unterminated quoted text is tolerated.
func Unquote(raw string) string {
	if raw == "" {
		return raw
	}
	q := raw[0]
	if q != '"' && q != '`' && q != '\'' {
		return raw
	}
	body := raw[1:]
	if len(body) > 0 && body[len(body)-1] == q {
		body = body[:len(body)-1]
	}
	d := string([]byte{q, q})
	return strings.ReplaceAll(body, d, string(q))
}
