package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "sqlassist.yaml"
	ConfigFileNameAlt = "sqlassist.yml"
)

// EnvPrefix prefixes configuration environment variables. A double
// underscore separates nested keys: SQLASSIST_COMPLETION__MAX_ITEMS.
const EnvPrefix = "SQLASSIST_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps flag names that do not follow the kebab-case to snake_case
// rule onto config keys.
var flagKeys = map[string]string{
	"driver":              "metadata.driver",
	"dsn":                 "metadata.dsn",
	"catalog-file":        "metadata.catalog_file",
	"default-catalog":     "metadata.default_catalog",
	"default-schema":      "metadata.default_schema",
	"watch":               "metadata.watch",
	"log-level":           "log.level",
	"log-format":          "log.format",
	"search-inside-words": "completion.search_inside_words",
	"case-sensitive":      "completion.case_sensitive",
	"search-globally":     "completion.search_globally",
	"max-items":           "completion.max_items",
	"propose-joins":       "completion.propose_joins",
	"qualify-columns":     "completion.qualify_columns",
}

// configKeys are the top-level keys a flag may set directly.
var configKeys = map[string]bool{"dialect": true, "output": true}

// Load reads the configuration. Precedence (highest to lowest): changed
// flags, SQLASSIST_ environment variables, the config file, defaults.
// cfgFile may be empty, in which case sqlassist.yaml is searched upward
// from the working directory. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfgFile = FindConfigFile(cwd)
		}
	} else if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := flagKey(f.Name)
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = cfgFile

	// Paths in the config file are relative to the file.
	if cfgFile != "" && cfg.Metadata.CatalogFile != "" && !filepath.IsAbs(cfg.Metadata.CatalogFile) &&
		!(flags != nil && flags.Changed("catalog-file")) {
		cfg.Metadata.CatalogFile = filepath.Join(filepath.Dir(cfgFile), cfg.Metadata.CatalogFile)
	}
	cfg.Metadata.DSN = expandEnvVars(cfg.Metadata.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns SQLASSIST_COMPLETION__MAX_ITEMS into completion.max_items.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// flagKey returns the config key set by a flag, or "" for flags that are
// not configuration (e.g. --sql or --offset).
func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	if configKeys[name] {
		return name
	}
	return ""
}

// FindConfigFile searches dir and its parents for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindConfigFile(dir string) string {
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as they are.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}
