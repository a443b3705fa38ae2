package parser

import (
	"testing"

	"github.com/leapstack-labs/sqlassist/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.TokenType
	}{
		{
			name:  "qualified select",
			input: "SELECT a.b, c FROM t",
			want: []token.TokenType{
				token.SELECT, token.IDENT, token.DOT, token.IDENT, token.COMMA,
				token.IDENT, token.FROM, token.IDENT, token.EOF,
			},
		},
		{
			name:  "operators",
			input: "a <> b != c <= d >= e || f :: g",
			want: []token.TokenType{
				token.IDENT, token.NE, token.IDENT, token.NE, token.IDENT, token.LE,
				token.IDENT, token.GE, token.IDENT, token.DPIPE, token.IDENT,
				token.DCOLON, token.IDENT, token.EOF,
			},
		},
		{
			name:  "parameters",
			input: "? $1 :name",
			want:  []token.TokenType{token.PARAM, token.PARAM, token.PARAM, token.EOF},
		},
		{
			name:  "numbers",
			input: "1 2.5 .5 1e10",
			want:  []token.TokenType{token.NUMBER, token.NUMBER, token.NUMBER, token.NUMBER, token.EOF},
		},
		{
			name:  "quoted",
			input: `'it''s' "My Col" ` + "`x`",
			want:  []token.TokenType{token.STRING, token.QIDENT, token.QIDENT, token.EOF},
		},
		{
			name:  "unterminated string runs to end",
			input: "SELECT 'abc",
			want:  []token.TokenType{token.SELECT, token.STRING, token.EOF},
		},
		{
			name:  "comments skipped",
			input: "SELECT -- note\n a /* block */ FROM t",
			want:  []token.TokenType{token.SELECT, token.IDENT, token.FROM, token.IDENT, token.EOF},
		},
		{
			name:  "illegal character",
			input: "a # b",
			want:  []token.TokenType{token.IDENT, token.ILLEGAL, token.IDENT, token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := NewLexer(tt.input).Tokenize()
			got := make([]token.TokenType, len(toks))
			for i, tok := range toks {
				got[i] = tok.Type
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexerPositions(t *testing.T) {
	toks := NewLexer("SELECT a\n  FROM t").Tokenize()
	require.Len(t, toks, 5)

	from := toks[2]
	assert.Equal(t, token.FROM, from.Type)
	assert.Equal(t, 2, from.Pos.Line)
	assert.Equal(t, 3, from.Pos.Column)
	assert.Equal(t, 11, from.Pos.Offset)
	assert.Equal(t, 15, from.End.Offset)
	assert.Equal(t, "FROM", from.Literal)
}

func TestLexerBaseOffset(t *testing.T) {
	toks := NewLexerAt("a", token.Position{Line: 3, Column: 5, Offset: 40}).Tokenize()
	require.Len(t, toks, 2)
	assert.Equal(t, 40, toks[0].Pos.Offset)
	assert.Equal(t, 41, toks[0].End.Offset)
	assert.Equal(t, 3, toks[0].Pos.Line)
	assert.Equal(t, 5, toks[0].Pos.Column)
}

func TestLexerComments(t *testing.T) {
	l := NewLexer("SELECT 1 -- trailing\n/* block */")
	l.Tokenize()
	require.Len(t, l.Comments, 2)
	assert.Equal(t, token.LineComment, l.Comments[0].Kind)
	assert.Equal(t, "-- trailing", l.Comments[0].Text)
	assert.Equal(t, token.BlockComment, l.Comments[1].Kind)
	assert.Equal(t, "/* block */", l.Comments[1].Text)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"My Col"`, "My Col"},
		{`"a""b"`, `a"b`},
		{"`x`", "x"},
		{`"open`, "open"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Unquote(tt.raw))
		})
	}
}
