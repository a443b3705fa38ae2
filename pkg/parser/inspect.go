package parser

import (
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/token"
)

// Expectation is the grammar category expected at a cursor.
type Expectation int

// Expectations.
const (
	ExpectNone            Expectation = iota // no name expected; keywords only
	ExpectIdentifier                         // a new name such as an alias
	ExpectColumnReference                    // a value expression
	ExpectColumnName                         // a bare column name, e.g. USING (...)
	ExpectTableReference                     // a FROM / JOIN item
	ExpectJoinCondition                      // the condition of a JOIN ... ON
)

var expectationNames = [...]string{
	ExpectNone:            "none",
	ExpectIdentifier:      "identifier",
	ExpectColumnReference: "column-reference",
	ExpectColumnName:      "column-name",
	ExpectTableReference:  "table-reference",
	ExpectJoinCondition:   "join-condition",
}

func (e Expectation) String() string {
	if int(e) < len(expectationNames) {
		return expectationNames[e]
	}
	return "unknown"
}

// Inspection describes the syntax around a cursor offset.
type Inspection struct {
	Offset int
	Expect Expectation

	// Clause is the keyword governing the cursor position (SELECT, FROM,
	// JOIN, ON, WHERE, ...), or EOF at the start of a statement.
	Clause token.TokenType

	// Enclosing holds the tree nodes covering the cursor, innermost first.
	Enclosing []Node

	// Path is the identifier path under the cursor: qualifier names followed
	// by Term when one is present. Names come from the tree when the parser
	// kept them.
	Path []*Name

	// Term is the word the cursor is in or right after, nil when the cursor
	// starts a new word.
	Term *Name

	// Filter is the part of Term in front of the cursor, unquoted.
	Filter string

	PeriodTyped     bool // the path ends with "." right before the cursor
	KeywordsAllowed bool
	InLiteral       bool // the cursor is inside a string literal or comment
}

// Qualifier returns the path segments in front of the term.
func (in *Inspection) Qualifier() []*Name {
	if in.Term == nil {
		return in.Path
	}
	return in.Path[:len(in.Path)-1]
}

// FilterOffset returns where the text being completed starts.
func (in *Inspection) FilterOffset() int {
	if in.Term == nil {
		return in.Offset
	}
	return in.Term.Pos.Start.Offset
}

// Inspect examines item at offset.
func Inspect(item *ScriptItem, offset int) *Inspection {
	in := &Inspection{Offset: offset, Clause: token.EOF}
	if item == nil {
		in.KeywordsAllowed = true
		return in
	}

	for _, c := range item.Comments {
		if c.CoversCursor(offset) {
			in.InLiteral = true
			return in
		}
	}

	toks := item.Tokens[:len(item.Tokens)-1] // drop EOF
	names := nameIndex(item.Statement)
	nameAt := func(tok token.Token) *Name {
		if n, ok := names[tok.Pos.Offset]; ok {
			return n
		}
		return nameFromToken(tok)
	}

	// k is the last token starting before the cursor.
	k := -1
	for i, tok := range toks {
		if tok.Pos.Offset >= offset {
			break
		}
		k = i
	}

	if item.Statement != nil {
		var enclosing []Node
		Walk(item.Statement, func(n Node) bool {
			if n.Span().Covers(offset) {
				enclosing = append(enclosing, n)
			}
			return true
		})
		for i := len(enclosing) - 1; i >= 0; i-- {
			in.Enclosing = append(in.Enclosing, enclosing[i])
		}
	}

	j := k
	if k >= 0 {
		last := toks[k]
		switch {
		case last.Type == token.STRING && last.End.Offset >= offset && !closedAt(last, offset):
			in.InLiteral = true
			return in
		case token.IsWord(last.Type) && last.End.Offset >= offset:
			in.Term = nameAt(last)
			j = k - 1
		case last.Type == token.STAR && last.End.Offset == offset && k > 0 && toks[k-1].Type == token.DOT:
			in.Term = nameAt(last)
			j = k - 1
		case (last.Type == token.NUMBER || last.Type == token.STRING || last.Type == token.PARAM) &&
			last.End.Offset == offset:
			// completing right after a literal
			return in
		}
	}

	// Qualifiers: word "." word "." ...
	var qualifiers []*Name
	for j >= 1 && toks[j].Type == token.DOT && token.IsWord(toks[j-1].Type) {
		qualifiers = append([]*Name{nameAt(toks[j-1])}, qualifiers...)
		j -= 2
	}
	in.Path = qualifiers
	if in.Term != nil {
		in.Path = append(in.Path, in.Term)
		in.Filter = termFilter(in.Term, offset)
	}
	in.PeriodTyped = in.Term == nil && len(qualifiers) > 0

	afterAS := j >= 0 && toks[j].Type == token.AS
	in.Expect, in.Clause = expectationBefore(toks, j)
	in.KeywordsAllowed = !in.PeriodTyped && !afterAS && len(in.Path) <= 1 &&
		(in.Term == nil || in.Term.Raw != "*")
	return in
}

// closedAt reports whether a string token is terminated before offset.
// Doubled quotes are escapes, so a terminated literal holds an even number
// of quote characters.
func closedAt(tok token.Token, offset int) bool {
	if tok.End.Offset > offset || tok.Literal == "" {
		return false
	}
	return strings.Count(tok.Literal, tok.Literal[:1])%2 == 0
}

func termFilter(term *Name, offset int) string {
	n := offset - term.Pos.Start.Offset
	if n > len(term.Raw) {
		n = len(term.Raw)
	}
	if n < 0 {
		n = 0
	}
	text := term.Raw[:n]
	if term.Quoted && text != "" {
		text = text[1:]
	}
	return text
}

// nameIndex maps the start offset of every name in the tree to its node.
func nameIndex(stmt Statement) map[int]*Name {
	index := make(map[int]*Name)
	if stmt == nil {
		return index
	}
	Walk(stmt, func(n Node) bool {
		if name, ok := n.(*Name); ok {
			index[name.Pos.Start.Offset] = name
		}
		return true
	})
	return index
}

// expectationBefore decides what may follow toks[j].
func expectationBefore(toks []token.Token, j int) (Expectation, token.TokenType) {
	if j < 0 {
		return ExpectNone, token.EOF
	}
	prev := toks[j]

	if prev.Type == token.AS {
		return ExpectIdentifier, clauseOf(toks, j-1)
	}

	if endsOperand(toks, j) {
		clause := clauseOf(toks, j)
		switch clause {
		case token.SELECT, token.FROM, token.JOIN:
			return ExpectIdentifier, clause
		}
		return ExpectNone, clause
	}

	switch prev.Type {
	case token.SEMI, token.UNION, token.INTERSECT, token.EXCEPT, token.ALL, token.WITH, token.RECURSIVE:
		return ExpectNone, prev.Type
	case token.LATERAL:
		return ExpectNone, token.FROM
	case token.LPAREN:
		return afterOpenParen(toks, j)
	}

	clause := clauseOf(toks, j)
	return expectationIn(clause), clause
}

// endsOperand reports whether toks[j] completes an operand or table reference.
func endsOperand(toks []token.Token, j int) bool {
	switch toks[j].Type {
	case token.IDENT, token.QIDENT, token.NUMBER, token.STRING, token.PARAM,
		token.RPAREN, token.TRUE, token.FALSE, token.NULL, token.END:
		return true
	case token.STAR:
		// SELECT * and t.* complete an item; a * between operands does not.
		return j > 0 && (toks[j-1].Type == token.SELECT || toks[j-1].Type == token.DOT ||
			toks[j-1].Type == token.COMMA || toks[j-1].Type == token.DISTINCT)
	}
	return false
}

// expectationIn maps a governing clause to the expected category.
func expectationIn(clause token.TokenType) Expectation {
	switch clause {
	case token.FROM, token.JOIN:
		return ExpectTableReference
	case token.ON:
		return ExpectJoinCondition
	case token.SELECT, token.WHERE, token.HAVING, token.BY, token.LIMIT, token.OFFSET,
		token.CASE, token.WHEN, token.THEN, token.ELSE:
		return ExpectColumnReference
	case token.USING:
		return ExpectColumnName
	}
	return ExpectNone
}

// afterOpenParen handles a cursor directly inside "(".
func afterOpenParen(toks []token.Token, j int) (Expectation, token.TokenType) {
	if j == 0 {
		return ExpectNone, token.EOF
	}
	switch toks[j-1].Type {
	case token.USING:
		return ExpectColumnName, token.USING
	case token.FROM, token.JOIN, token.LATERAL, token.AS, token.EXISTS, token.IN,
		token.LPAREN, token.UNION, token.INTERSECT, token.EXCEPT:
		// subquery start; IN also takes a value list
		if toks[j-1].Type == token.IN {
			return ExpectColumnReference, clauseOf(toks, j)
		}
		return ExpectNone, toks[j-1].Type
	case token.COMMA:
		if clauseOf(toks, j-1) == token.FROM {
			return ExpectNone, token.FROM
		}
	}
	clause := clauseOf(toks, j)
	if clause == token.ON {
		return ExpectJoinCondition, clause
	}
	return ExpectColumnReference, clause
}

// clauseOf scans backward from toks[j] for the clause keyword at the same
// parenthesis level. An unmatched "(" ends the scan: the enclosing clause
// of a function call is the clause of the call itself.
func clauseOf(toks []token.Token, j int) token.TokenType {
	depth := 0
	for i := j; i >= 0; i-- {
		switch t := toks[i].Type; t {
		case token.RPAREN:
			depth++
		case token.LPAREN:
			if depth > 0 {
				depth--
				continue
			}
			if i > 0 {
				switch toks[i-1].Type {
				case token.USING:
					return token.USING
				case token.FROM, token.JOIN, token.LATERAL, token.AS, token.EXISTS, token.IN, token.LPAREN, token.COMMA:
					// a subquery boundary
					return token.EOF
				}
			}
			// function call or parenthesized expression: keep going
		case token.SELECT, token.FROM, token.WHERE, token.HAVING, token.BY, token.ON,
			token.LIMIT, token.OFFSET, token.USING, token.SEMI,
			token.UNION, token.INTERSECT, token.EXCEPT, token.WITH:
			if depth == 0 {
				return t
			}
		case token.JOIN:
			if depth == 0 {
				return token.JOIN
			}
		case token.CASE, token.WHEN, token.THEN, token.ELSE:
			if depth == 0 {
				return clauseOfCase(toks, i)
			}
		}
	}
	return token.EOF
}

// clauseOfCase returns the clause enclosing a CASE expression, which is the
// clause a value inside the CASE belongs to.
func clauseOfCase(toks []token.Token, i int) token.TokenType {
	for ; i >= 0; i-- {
		if toks[i].Type == token.CASE {
			break
		}
	}
	if i <= 0 {
		return token.SELECT
	}
	outer := clauseOf(toks, i-1)
	if outer == token.EOF {
		return token.SELECT
	}
	return outer
}
