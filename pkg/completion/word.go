// Package completion turns a cursor position in a SQL script into ranked
// sets of completion items.
//
// PrepareCompletionContext classifies the cursor position; PrepareProposal
// analyzes the enclosing query with the semantic package, gathers
// candidates for the origin recorded at the cursor and scores them against
// the typed fragment. Materialize renders the items of a set for display.
package completion

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/sqlassist/pkg/dialect"
)

// Match scores.
const (
	ScoreNone         = 0
	ScoreAny          = 1 // empty filter
	ScoreSubsequence  = 10
	ScoreInfix        = 25
	ScoreWordBoundary = 50
	ScorePrefix       = 75
	ScoreExact        = 100
)

// WordEntry is a filter key: where a word starts in the script and its
// case-folded text. The typed fragment and every candidate name are
// represented the same way.
type WordEntry struct {
	Offset int
	Text   string
}

// NewWordEntry folds text and anchors it at offset.
func NewWordEntry(offset int, text string) WordEntry {
	return WordEntry{Offset: offset, Text: dialect.Fold(text)}
}

// IsEmpty reports whether nothing was typed.
func (w WordEntry) IsEmpty() bool { return w.Text == "" }

// Match scores candidate against the filter text. Without insideWords only
// candidates starting with the filter score above zero.
func (w WordEntry) Match(candidate string, insideWords bool) int {
	if w.Text == "" {
		return ScoreAny
	}
	c := dialect.Fold(candidate)
	switch {
	case c == w.Text:
		return ScoreExact
	case strings.HasPrefix(c, w.Text):
		return ScorePrefix
	case !insideWords:
		return ScoreNone
	}

	found := false
	for i := strings.Index(c, w.Text); i >= 0; {
		found = true
		if isBoundary(c, i) {
			return ScoreWordBoundary
		}
		next := strings.Index(c[i+1:], w.Text)
		if next < 0 {
			break
		}
		i += next + 1
	}
	if found {
		return ScoreInfix
	}
	if isSubsequence(w.Text, c) {
		return ScoreSubsequence
	}
	return ScoreNone
}

// isBoundary reports whether a word starts at byte i of s.
func isBoundary(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isSubsequence(sub, s string) bool {
	rest := s
	for _, r := range sub {
		i := strings.IndexRune(rest, r)
		if i < 0 {
			return false
		}
		rest = rest[i+utf8.RuneLen(r):]
	}
	return true
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
