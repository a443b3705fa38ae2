// Package sqldb provides a metadata provider backed by a live database.
//
// Postgres (via pgx) and DuckDB are described through information_schema,
// SQLite through sqlite_master and its table-valued pragmas. Nothing is
// cached here: wrap the catalog with metadata.NewCache for interactive use.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/sqlassist/pkg/metadata"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver ("pgx")
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
	DriverSQLite   = "sqlite"
)

// sqlDriverNames maps driver names to database/sql driver names.
var sqlDriverNames = map[string]string{
	DriverPostgres: "pgx",
	DriverDuckDB:   "duckdb",
	DriverSQLite:   "sqlite",
}

// Drivers returns the supported driver names (sorted).
func Drivers() []string {
	names := make([]string, 0, len(sqlDriverNames))
	for name := range sqlDriverNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsDriver reports whether name is a supported driver.
func IsDriver(name string) bool {
	_, ok := sqlDriverNames[name]
	return ok
}

// UnknownDriverError is returned for an unsupported driver name.
type UnknownDriverError struct {
	Driver    string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown metadata driver %q\nAvailable drivers: %v\nHint: Check metadata.driver in sqlassist.yaml", e.Driver, e.Available)
}

// Params holds driver specific options.
// Parsed from the metadata.params configuration map using mapstructure.
type Params struct {
	// Schemas restricts the listed schemas. Empty lists all of them.
	Schemas []string `mapstructure:"schemas"`

	// Settings are applied once after connecting (SET for postgres and
	// duckdb, PRAGMA for sqlite).
	Settings map[string]string `mapstructure:"settings"`

	// MaxOpenConns limits the connection pool. Zero keeps the driver default.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// DecodeParams decodes a configuration map into Params.
func DecodeParams(raw map[string]any) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return p, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("invalid metadata params: %w", err)
	}
	return p, nil
}

// Catalog is the root of a database backed metadata tree. Its children are
// the schemas of the connected database.
type Catalog struct {
	db     *sql.DB
	driver string
	flavor flavor
	params Params
	logger *slog.Logger
}

// Open connects to a database and returns its catalog.
func Open(ctx context.Context, driver, dsn string, params map[string]any, logger *slog.Logger) (*Catalog, error) {
	sqlName, ok := sqlDriverNames[driver]
	if !ok {
		return nil, &UnknownDriverError{Driver: driver, Available: Drivers()}
	}
	p, err := DecodeParams(params)
	if err != nil {
		return nil, err
	}
	if driver == DriverDuckDB && dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open(sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if p.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.MaxOpenConns)
	} else if strings.Contains(dsn, ":memory:") {
		// every connection to an in-memory database is a new database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	c, err := New(db, driver, p, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := c.applySettings(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver string, params Params, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f, ok := flavors[driver]
	if !ok {
		return nil, &UnknownDriverError{Driver: driver, Available: Drivers()}
	}
	return &Catalog{
		db:     db,
		driver: driver,
		flavor: f,
		params: params,
		logger: logger.With(slog.String("driver", driver)),
	}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Debug("closing metadata connection")
	return c.db.Close()
}

func (c *Catalog) applySettings(ctx context.Context) error {
	keys := make([]string, 0, len(c.params.Settings))
	for k := range c.params.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmt := c.flavor.setting(k, c.params.Settings[k])
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

// Name implements metadata.Object.
func (c *Catalog) Name() string { return "" }

// Kind implements metadata.Object.
func (c *Catalog) Kind() metadata.Kind { return metadata.KindRoot }

// Parent implements metadata.Object.
func (c *Catalog) Parent() metadata.Object { return nil }

// Description implements metadata.Object.
func (c *Catalog) Description() string { return c.driver + " database" }

// Children implements metadata.Container.
func (c *Catalog) Children(ctx context.Context) ([]metadata.Object, error) {
	if c.db == nil {
		return nil, metadata.ErrNotConnected
	}
	if err := metadata.CheckContext(ctx); err != nil {
		return nil, err
	}
	names, err := c.flavor.schemas(ctx, c.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	c.logger.Debug("listed schemas", slog.Int("count", len(names)))

	var out []metadata.Object
	for _, name := range names {
		if len(c.params.Schemas) > 0 && !slices.Contains(c.params.Schemas, name) {
			continue
		}
		out = append(out, &schemaObject{catalog: c, name: name})
	}
	return out, nil
}

// Child implements metadata.Container.
func (c *Catalog) Child(ctx context.Context, name string) (metadata.Object, error) {
	children, err := c.Children(ctx)
	if err != nil {
		return nil, err
	}
	return metadata.ChildByName(c, children, name)
}
