// Package config loads the sqlassist configuration. It is shared by the CLI
// commands and the language server.
package config

import "github.com/leapstack-labs/sqlassist/pkg/completion"

// Metadata drivers besides the database drivers of pkg/metadata/sqldb.
const (
	DriverMemory = "memory" // empty catalog
	DriverYAML   = "yaml"   // catalog file
)

// Output formats.
const (
	OutputAuto = "auto" // text on a terminal, json otherwise
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds all configuration options.
type Config struct {
	Dialect    string              `koanf:"dialect"`
	Completion completion.Settings `koanf:"completion"`
	Metadata   MetadataConfig      `koanf:"metadata"`
	Log        LogConfig           `koanf:"log"`
	Output     string              `koanf:"output"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// MetadataConfig selects the catalog the engine resolves names against.
type MetadataConfig struct {
	Driver         string `koanf:"driver"`
	DSN            string `koanf:"dsn"`
	CatalogFile    string `koanf:"catalog_file"`
	DefaultCatalog string `koanf:"default_catalog"`
	DefaultSchema  string `koanf:"default_schema"`

	// Params holds driver specific options, see sqldb.Params.
	Params map[string]any `koanf:"params"`

	// Watch reloads the catalog file when it changes (language server only).
	Watch bool `koanf:"watch"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}
