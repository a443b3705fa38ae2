// Package dialect provides SQL dialect descriptions consumed as static data
// by the parser, the semantic resolver and the completion engine.
//
// A dialect is described by a yaml document (see the descriptions
// directory). Descriptions are parsed once at init and the resulting
// *Dialect values are never mutated afterwards, so they can be shared by
// concurrent completion requests.
package dialect

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase folds unquoted identifiers to lowercase (Postgres).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase folds unquoted identifiers to uppercase (ANSI, Snowflake).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly.
	NormCaseSensitive
	// NormCaseInsensitive compares without case but preserves it (DuckDB, SQLite).
	NormCaseInsensitive
)

// String returns the yaml spelling of the strategy.
func (n NormalizationStrategy) String() string {
	switch n {
	case NormLowercase:
		return "lowercase"
	case NormUppercase:
		return "uppercase"
	case NormCaseSensitive:
		return "case_sensitive"
	case NormCaseInsensitive:
		return "case_insensitive"
	default:
		return "unknown"
	}
}

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string // Quote character: ", `, [
	QuoteEnd      string // End quote character (usually same as Quote, ] for [)
	Escape        string // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy
}

// Function describes a builtin function offered in value positions.
type Function struct {
	Name        string
	Signature   string
	Description string
	ReturnType  string
	Aggregate   bool
}

// PseudoColumn is a virtual column not backed by a catalog attribute.
//
// Global pseudo-columns (CURRENT_DATE) resolve anywhere. Context
// pseudo-columns (ROWID, CTID) only resolve when the query has row sources.
type PseudoColumn struct {
	Name        string
	Type        string
	Description string
	RowSet      bool // true for context (row-set dependent) pseudo-columns
}

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers IdentifierConfig

	// Database-specific settings
	StringQuotes   []string // quote characters that open string literals
	DefaultCatalog string
	DefaultSchema  string // "main" for DuckDB, "public" for Postgres

	keywords       map[string]struct{}
	keywordList    []string
	reservedWords  map[string]struct{}
	statementStart map[string]struct{}
	startList      []string
	dataTypes      []string

	functions    map[string]Function
	functionList []Function

	globalPseudo  map[string]PseudoColumn
	contextPseudo []PseudoColumn
}

// Fold returns the case-folded form of s used for case-insensitive matching.
func Fold(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return strings.ToLower(s)
	}
	// Casers are stateful and not safe to share between goroutines.
	return cases.Fold().String(s)
}

// NormalizeName normalizes an unquoted identifier according to the dialect.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormLowercase:
		return strings.ToLower(name)
	case NormCaseInsensitive:
		return Fold(name)
	default: // NormCaseSensitive
		return name
	}
}

// NamesEqual compares two identifiers the way the dialect resolves them.
func (d *Dialect) NamesEqual(a, b string) bool {
	if d.Identifiers.Normalization == NormCaseSensitive {
		return a == b
	}
	return Fold(a) == Fold(b)
}

// IsKeyword returns true if word is a keyword of the dialect.
func (d *Dialect) IsKeyword(word string) bool {
	_, ok := d.keywords[strings.ToUpper(word)]
	return ok
}

// Keywords returns all keywords, sorted.
func (d *Dialect) Keywords() []string {
	return d.keywordList
}

// IsReservedWord returns true if word must be quoted to be used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToUpper(word)]
	return ok
}

// IsStatementStart returns true if word can begin a statement.
func (d *Dialect) IsStatementStart(word string) bool {
	_, ok := d.statementStart[strings.ToUpper(word)]
	return ok
}

// StatementStartKeywords returns the keywords that may begin a statement, sorted.
func (d *Dialect) StatementStartKeywords() []string {
	return d.startList
}

// DataTypes returns the type names known to the dialect.
func (d *Dialect) DataTypes() []string {
	return d.dataTypes
}

// QuoteIdentifier wraps name in the dialect's identifier quotes.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes name when it is reserved, is not a plain
// identifier, or would not survive normalization unchanged.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if name == "" {
		return name
	}
	if d.IsReservedWord(name) || !isPlainIdentifier(name) {
		return d.QuoteIdentifier(name)
	}
	switch d.Identifiers.Normalization {
	case NormLowercase, NormUppercase:
		if d.NormalizeName(name) != name {
			return d.QuoteIdentifier(name)
		}
	}
	return name
}

func isPlainIdentifier(name string) bool {
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && (unicode.IsDigit(r) || r == '$')) {
			continue
		}
		return false
	}
	return true
}

// IsStringLiteralToken reports whether raw token text is a string literal
// in this dialect (for example 'abc', or "abc" in dialects that allow it).
func (d *Dialect) IsStringLiteralToken(raw string) bool {
	if len(raw) < 2 {
		return false
	}
	for _, q := range d.StringQuotes {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) {
			return true
		}
	}
	return false
}

// Function looks up a builtin function by name.
func (d *Dialect) Function(name string) (Function, bool) {
	f, ok := d.functions[strings.ToLower(name)]
	return f, ok
}

// Functions returns all builtin functions sorted by name.
func (d *Dialect) Functions() []Function {
	return d.functionList
}

// GlobalPseudoColumn looks up a row-independent pseudo-column.
func (d *Dialect) GlobalPseudoColumn(name string) (PseudoColumn, bool) {
	p, ok := d.globalPseudo[strings.ToLower(name)]
	return p, ok
}

// ContextPseudoColumns returns the row-set dependent pseudo-columns.
func (d *Dialect) ContextPseudoColumns() []PseudoColumn {
	return d.contextPseudo
}

func setOf(words []string) (map[string]struct{}, []string) {
	set := make(map[string]struct{}, len(words))
	list := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := set[w]; dup {
			continue
		}
		set[w] = struct{}{}
		list = append(list, w)
	}
	sort.Strings(list)
	return set, list
}
