package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/completion"
	"github.com/leapstack-labs/sqlassist/pkg/dialect"
	"github.com/leapstack-labs/sqlassist/pkg/metadata/sqldb"
)

// InvalidValueError reports a configuration key with an unsupported value.
type InvalidValueError struct {
	Key     string
	Value   string
	Allowed []string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s %q (allowed: %s)\nHint: Check %s in %s", e.Key, e.Value, strings.Join(e.Allowed, ", "), e.Key, ConfigFileName)
}

// Drivers returns every accepted metadata.driver value.
func Drivers() []string {
	return append([]string{DriverMemory, DriverYAML}, sqldb.Drivers()...)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := dialect.Lookup(c.Dialect); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := oneOf("metadata.driver", c.Metadata.Driver, Drivers()); err != nil {
		return err
	}
	switch c.Metadata.Driver {
	case DriverYAML:
		if c.Metadata.CatalogFile == "" {
			return fmt.Errorf("metadata.catalog_file is required for the %s driver", DriverYAML)
		}
	case sqldb.DriverPostgres, sqldb.DriverSQLite:
		if c.Metadata.DSN == "" {
			return fmt.Errorf("metadata.dsn is required for the %s driver", c.Metadata.Driver)
		}
	}
	if _, err := sqldb.DecodeParams(c.Metadata.Params); err != nil {
		return err
	}

	if err := oneOf("completion.qualify_columns", c.Completion.QualifyColumns,
		[]string{completion.QualifyAuto, completion.QualifyAlways, completion.QualifyNever}); err != nil {
		return err
	}
	if c.Completion.MaxItems < 0 {
		return fmt.Errorf("completion.max_items must not be negative, got %d", c.Completion.MaxItems)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, []string{"text", "json"}); err != nil {
		return err
	}
	return oneOf("output", c.Output, []string{OutputAuto, OutputText, OutputJSON})
}

func oneOf(key, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return &InvalidValueError{Key: key, Value: value, Allowed: allowed}
}
