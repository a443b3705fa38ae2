package config

import "github.com/leapstack-labs/sqlassist/pkg/completion"

// Default configuration values.
const (
	DefaultDialect   = "ansi"
	DefaultDriver    = DriverMemory
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultOutput    = OutputAuto
)

// defaultValues is the lowest configuration layer.
func defaultValues() map[string]any {
	s := completion.DefaultSettings()
	return map[string]any{
		"dialect":                        DefaultDialect,
		"completion.search_inside_words": s.SearchInsideWords,
		"completion.case_sensitive":      s.CaseSensitive,
		"completion.search_globally":     s.SearchGlobally,
		"completion.max_items":           s.MaxItems,
		"completion.propose_joins":       s.ProposeJoins,
		"completion.qualify_columns":     s.QualifyColumns,
		"metadata.driver":                DefaultDriver,
		"metadata.watch":                 false,
		"log.level":                      DefaultLogLevel,
		"log.format":                     DefaultLogFormat,
		"output":                         DefaultOutput,
	}
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Dialect:    DefaultDialect,
		Completion: completion.DefaultSettings(),
		Metadata:   MetadataConfig{Driver: DefaultDriver},
		Log:        LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Output:     DefaultOutput,
	}
}
