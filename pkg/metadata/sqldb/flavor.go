package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
)

type tableRow struct {
	name string
	kind metadata.Kind
}

type columnRow struct {
	name    string
	typ     string
	ordinal int
}

type foreignKeyRow struct {
	name      string
	column    string
	refSchema string
	refTable  string
	refColumn string
}

type procedureRow struct {
	name       string
	returnType string
}

// flavor runs the catalog queries of one database engine.
type flavor interface {
	schemas(ctx context.Context, db *sql.DB) ([]string, error)
	tables(ctx context.Context, db *sql.DB, schema string) ([]tableRow, error)
	columns(ctx context.Context, db *sql.DB, schema, table string) ([]columnRow, error)
	foreignKeys(ctx context.Context, db *sql.DB, schema, table string) ([]foreignKeyRow, error)
	procedures(ctx context.Context, db *sql.DB, schema string) ([]procedureRow, error)
	setting(key, value string) string
}

var flavors = map[string]flavor{
	DriverPostgres: &informationSchema{
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		procedureQuery: `
		SELECT routine_name, COALESCE(data_type, '')
		FROM information_schema.routines
		WHERE routine_schema = $1
		ORDER BY routine_name`,
	},
	DriverDuckDB: &informationSchema{
		placeholder: func(int) string { return "?" },
		procedureQuery: `
		SELECT DISTINCT function_name, COALESCE(return_type, '')
		FROM duckdb_functions()
		WHERE schema_name = ? AND NOT internal
		ORDER BY function_name`,
	},
	DriverSQLite: sqliteFlavor{},
}

// informationSchema reads the standard information_schema views.
type informationSchema struct {
	placeholder    func(n int) string
	procedureQuery string
}

func (f *informationSchema) schemas(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (f *informationSchema) tables(ctx context.Context, db *sql.DB, schema string) ([]tableRow, error) {
	//nolint:gosec // placeholders are "?" or "$N"
	query := fmt.Sprintf(`
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = %s
		ORDER BY table_name`, f.placeholder(1))

	rows, err := db.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []tableRow
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		out = append(out, tableRow{name: name, kind: tableKind(typ)})
	}
	return out, rows.Err()
}

func (f *informationSchema) columns(ctx context.Context, db *sql.DB, schema, table string) ([]columnRow, error) {
	//nolint:gosec // placeholders are "?" or "$N"
	query := fmt.Sprintf(`
		SELECT column_name, data_type, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position`, f.placeholder(1), f.placeholder(2))

	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []columnRow
	for rows.Next() {
		var col columnRow
		if err := rows.Scan(&col.name, &col.typ, &col.ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

func (f *informationSchema) foreignKeys(ctx context.Context, db *sql.DB, schema, table string) ([]foreignKeyRow, error) {
	//nolint:gosec // placeholders are "?" or "$N"
	query := fmt.Sprintf(`
		SELECT kcu.constraint_name, kcu.column_name,
		       rk.table_schema, rk.table_name, rk.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = rc.constraint_schema
		 AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage rk
		  ON rk.constraint_schema = rc.unique_constraint_schema
		 AND rk.constraint_name = rc.unique_constraint_name
		 AND rk.ordinal_position = kcu.position_in_unique_constraint
		WHERE kcu.table_schema = %s AND kcu.table_name = %s
		ORDER BY kcu.constraint_name, kcu.ordinal_position`, f.placeholder(1), f.placeholder(2))

	rows, err := db.QueryContext(ctx, query, schema, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []foreignKeyRow
	for rows.Next() {
		var fk foreignKeyRow
		if err := rows.Scan(&fk.name, &fk.column, &fk.refSchema, &fk.refTable, &fk.refColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		out = append(out, fk)
	}
	return out, rows.Err()
}

func (f *informationSchema) procedures(ctx context.Context, db *sql.DB, schema string) ([]procedureRow, error) {
	rows, err := db.QueryContext(ctx, f.procedureQuery, schema)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []procedureRow
	for rows.Next() {
		var p procedureRow
		if err := rows.Scan(&p.name, &p.returnType); err != nil {
			return nil, fmt.Errorf("failed to scan procedure: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (f *informationSchema) setting(key, value string) string {
	return fmt.Sprintf("SET %s = '%s'", key, strings.ReplaceAll(value, "'", "''"))
}

func tableKind(tableType string) metadata.Kind {
	if strings.Contains(strings.ToUpper(tableType), "VIEW") {
		return metadata.KindView
	}
	return metadata.KindTable
}

// sqliteFlavor reads sqlite_master and the pragma table functions.
type sqliteFlavor struct{}

func (sqliteFlavor) schemas(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_database_list ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sqliteFlavor) tables(ctx context.Context, db *sql.DB, schema string) ([]tableRow, error) {
	//nolint:gosec // schema is quoted
	query := fmt.Sprintf(`
		SELECT name, type
		FROM %s.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%'
		ORDER BY name`, quoteSQLite(schema))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []tableRow
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		out = append(out, tableRow{name: name, kind: tableKind(typ)})
	}
	return out, rows.Err()
}

func (sqliteFlavor) columns(ctx context.Context, db *sql.DB, schema, table string) ([]columnRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, type, cid + 1 FROM pragma_table_info(?, ?) ORDER BY cid`, table, schema)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []columnRow
	for rows.Next() {
		var col columnRow
		if err := rows.Scan(&col.name, &col.typ, &col.ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

func (sqliteFlavor) foreignKeys(ctx context.Context, db *sql.DB, schema, table string) ([]foreignKeyRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, "table", "from", "to" FROM pragma_foreign_key_list(?, ?) ORDER BY id, seq`, table, schema)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []foreignKeyRow
	for rows.Next() {
		var (
			id       int
			refTable string
			from     string
			to       sql.NullString
		)
		if err := rows.Scan(&id, &refTable, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if !to.Valid {
			// references the primary key implicitly; not resolvable by name
			continue
		}
		out = append(out, foreignKeyRow{
			name:      fmt.Sprintf("%s_fk_%d", table, id),
			column:    from,
			refSchema: schema,
			refTable:  refTable,
			refColumn: to.String,
		})
	}
	return out, rows.Err()
}

func (sqliteFlavor) procedures(context.Context, *sql.DB, string) ([]procedureRow, error) {
	return nil, nil
}

func (sqliteFlavor) setting(key, value string) string {
	return fmt.Sprintf("PRAGMA %s = %s", key, value)
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
