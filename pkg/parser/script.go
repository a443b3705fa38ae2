package parser

import (
	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Script is a parsed SQL script split into semicolon-delimited items.
type Script struct {
	Text  string
	Items []*ScriptItem
}

// ScriptItem is one statement of a script. All offsets are absolute
// offsets into Script.Text.
type ScriptItem struct {
	Text  string // item text, from Start to Limit
	Start int    // offset of the first token
	Limit int    // offset of the terminating ";" or the end of the script

	// Tokens of the item. The last token is always EOF positioned at Limit.
	Tokens    []token.Token
	Comments  []*token.Comment
	Statement Statement // nil when the item holds no tokens
	Errors    []error
}

// ParseScript lexes text once and parses every statement in it.
func ParseScript(text string) *Script {
	lexer := NewLexer(text)
	tokens := lexer.Tokenize()
	script := &Script{Text: text}

	begin := 0
	for i, tok := range tokens {
		if tok.Type != token.SEMI && tok.Type != token.EOF {
			continue
		}
		if i > begin {
			script.Items = append(script.Items, newScriptItem(text, tokens[begin:i], tok.Pos))
		}
		begin = i + 1
	}

	for _, c := range lexer.Comments {
		if item := script.itemCovering(c.Span.Start.Offset); item != nil {
			item.Comments = append(item.Comments, c)
		}
	}
	return script
}

func newScriptItem(text string, tokens []token.Token, limit token.Position) *ScriptItem {
	item := &ScriptItem{
		Start: tokens[0].Pos.Offset,
		Limit: limit.Offset,
	}
	item.Text = text[item.Start:item.Limit]
	item.Tokens = make([]token.Token, 0, len(tokens)+1)
	item.Tokens = append(item.Tokens, tokens...)
	item.Tokens = append(item.Tokens, token.Token{Type: token.EOF, Pos: limit, End: limit})

	p := NewParser(item.Tokens)
	item.Statement = p.ParseStatement()
	item.Errors = p.Errors()
	return item
}

// ItemAt returns the item whose text range holds offset. The offset just
// before the terminating semicolon belongs to the item. It returns nil when
// offset is between items, which is an off-query position.
func (s *Script) ItemAt(offset int) *ScriptItem {
	for _, item := range s.Items {
		if offset >= item.Start && offset <= item.Limit {
			return item
		}
	}
	return nil
}

// itemCovering is like ItemAt but also accepts the gap before an item.
func (s *Script) itemCovering(offset int) *ScriptItem {
	prevLimit := 0
	for _, item := range s.Items {
		if offset >= prevLimit && offset <= item.Limit {
			return item
		}
		prevLimit = item.Limit
	}
	return nil
}

// Query returns the query of the item: the SELECT statement itself or the
// query embedded in another statement. It returns nil for off-query items.
func (item *ScriptItem) Query() *SelectStmt {
	switch stmt := item.Statement.(type) {
	case *SelectStmt:
		return stmt
	case *OtherStatement:
		return stmt.Query
	}
	return nil
}
