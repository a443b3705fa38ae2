package dialect

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// description is the yaml form of a dialect.
type description struct {
	Name        string `yaml:"name"`
	Identifiers struct {
		Quote         string `yaml:"quote"`
		QuoteEnd      string `yaml:"quote_end"`
		Escape        string `yaml:"escape"`
		Normalization string `yaml:"normalization"`
	} `yaml:"identifiers"`
	StringQuotes   []string `yaml:"string_quotes"`
	DefaultCatalog string   `yaml:"default_catalog"`
	DefaultSchema  string   `yaml:"default_schema"`
	StatementStart []string `yaml:"statement_start"`
	Keywords       []string `yaml:"keywords"`
	Reserved       []string `yaml:"reserved"`
	DataTypes      []string `yaml:"data_types"`
	Functions      []struct {
		Name        string `yaml:"name"`
		Signature   string `yaml:"signature"`
		Description string `yaml:"description"`
		Returns     string `yaml:"returns"`
		Aggregate   bool   `yaml:"aggregate"`
	} `yaml:"functions"`
	PseudoColumns struct {
		Global  []pseudoDescription `yaml:"global"`
		Context []pseudoDescription `yaml:"context"`
	} `yaml:"pseudo_columns"`
}

type pseudoDescription struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// DescriptionError reports an invalid dialect description.
type DescriptionError struct {
	Dialect string
	Reason  string
}

func (e *DescriptionError) Error() string {
	if e.Dialect == "" {
		return "invalid dialect description: " + e.Reason
	}
	return fmt.Sprintf("invalid dialect description %q: %s", e.Dialect, e.Reason)
}

// Load parses a yaml dialect description.
func Load(r io.Reader) (*Dialect, error) {
	var desc description
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		return nil, fmt.Errorf("failed to decode dialect description: %w", err)
	}
	return build(&desc)
}

func parseNormalization(s string) (NormalizationStrategy, bool) {
	switch strings.ToLower(s) {
	case "", "lowercase":
		return NormLowercase, true
	case "uppercase":
		return NormUppercase, true
	case "case_sensitive":
		return NormCaseSensitive, true
	case "case_insensitive":
		return NormCaseInsensitive, true
	default:
		return 0, false
	}
}

func build(desc *description) (*Dialect, error) {
	if desc.Name == "" {
		return nil, &DescriptionError{Reason: "name is required"}
	}
	norm, ok := parseNormalization(desc.Identifiers.Normalization)
	if !ok {
		return nil, &DescriptionError{Dialect: desc.Name, Reason: "unknown normalization " + desc.Identifiers.Normalization}
	}

	d := &Dialect{
		Name: strings.ToLower(desc.Name),
		Identifiers: IdentifierConfig{
			Quote:         desc.Identifiers.Quote,
			QuoteEnd:      desc.Identifiers.QuoteEnd,
			Escape:        desc.Identifiers.Escape,
			Normalization: norm,
		},
		StringQuotes:   desc.StringQuotes,
		DefaultCatalog: desc.DefaultCatalog,
		DefaultSchema:  desc.DefaultSchema,
		dataTypes:      desc.DataTypes,
		functions:      make(map[string]Function, len(desc.Functions)),
		globalPseudo:   make(map[string]PseudoColumn, len(desc.PseudoColumns.Global)),
	}
	if d.Identifiers.Quote == "" {
		d.Identifiers.Quote = `"`
	}
	if d.Identifiers.QuoteEnd == "" {
		d.Identifiers.QuoteEnd = d.Identifiers.Quote
	}
	if d.Identifiers.Escape == "" {
		d.Identifiers.Escape = d.Identifiers.QuoteEnd + d.Identifiers.QuoteEnd
	}
	if len(d.StringQuotes) == 0 {
		d.StringQuotes = []string{"'"}
	}

	d.reservedWords, _ = setOf(desc.Reserved)
	d.statementStart, d.startList = setOf(desc.StatementStart)
	// Reserved words and statement starters are keywords too.
	all := append(append(append([]string{}, desc.Keywords...), desc.Reserved...), desc.StatementStart...)
	d.keywords, d.keywordList = setOf(all)

	for _, f := range desc.Functions {
		if f.Name == "" {
			return nil, &DescriptionError{Dialect: desc.Name, Reason: "function without name"}
		}
		fn := Function{
			Name:        strings.ToLower(f.Name),
			Signature:   f.Signature,
			Description: f.Description,
			ReturnType:  f.Returns,
			Aggregate:   f.Aggregate,
		}
		d.functions[fn.Name] = fn
		d.functionList = append(d.functionList, fn)
	}
	sort.Slice(d.functionList, func(i, j int) bool {
		return d.functionList[i].Name < d.functionList[j].Name
	})

	for _, p := range desc.PseudoColumns.Global {
		d.globalPseudo[strings.ToLower(p.Name)] = PseudoColumn{
			Name: p.Name, Type: p.Type, Description: p.Description,
		}
	}
	for _, p := range desc.PseudoColumns.Context {
		d.contextPseudo = append(d.contextPseudo, PseudoColumn{
			Name: p.Name, Type: p.Type, Description: p.Description, RowSet: true,
		})
	}
	return d, nil
}
