package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverNameConstant       = "sqlite"
	sqliteOpenTemplateConstant     = "open sqlite: %w"
	sqlitePingTemplateConstant     = "ping sqlite: %w"
	sqlitePragmaParametersConstant = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	sqliteSchemaDirectoryConstant  = "schema"
	sqliteRecordMigrationConstant  = "INSERT INTO _migrations (version) VALUES (?)"
	sqliteInMemoryConstant         = ":memory:"
)

const sqliteMigrationsTableConstant = `CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT DEFAULT (datetime('now'))
)`

// SQLiteDriver runs statements against a modernc SQLite database.
type SQLiteDriver struct {
	database *sql.DB
}

// NewSQLite creates an unopened SQLite driver.
func NewSQLite() *SQLiteDriver {
	return &SQLiteDriver{}
}

// Open opens the database file. Every pooled connection enables foreign keys,
// WAL journaling, and a busy timeout so parallel workers wait instead of failing.
func (sqliteDriver *SQLiteDriver) Open(dataSourceName string) error {
	database, openError := sql.Open(sqliteDriverNameConstant, withPragmas(dataSourceName))
	if openError != nil {
		return fmt.Errorf(sqliteOpenTemplateConstant, openError)
	}
	if pingError := database.Ping(); pingError != nil {
		_ = database.Close()
		return fmt.Errorf(sqlitePingTemplateConstant, pingError)
	}
	if strings.HasPrefix(dataSourceName, sqliteInMemoryConstant) {
		// every connection to :memory: opens a separate database
		database.SetMaxOpenConns(1)
	}
	sqliteDriver.database = database
	return nil
}

// Close releases the connection pool.
func (sqliteDriver *SQLiteDriver) Close() error {
	if sqliteDriver.database == nil {
		return nil
	}
	return sqliteDriver.database.Close()
}

// Exec executes a statement without returning rows.
func (sqliteDriver *SQLiteDriver) Exec(executionContext context.Context, query string, arguments ...any) (sql.Result, error) {
	return sqliteDriver.database.ExecContext(executionContext, query, arguments...)
}

// Query executes a statement returning rows.
func (sqliteDriver *SQLiteDriver) Query(executionContext context.Context, query string, arguments ...any) (*sql.Rows, error) {
	return sqliteDriver.database.QueryContext(executionContext, query, arguments...)
}

// QueryRow executes a statement returning at most one row.
func (sqliteDriver *SQLiteDriver) QueryRow(executionContext context.Context, query string, arguments ...any) *sql.Row {
	return sqliteDriver.database.QueryRowContext(executionContext, query, arguments...)
}

// BeginTx starts a transaction.
func (sqliteDriver *SQLiteDriver) BeginTx(executionContext context.Context, options *sql.TxOptions) (Tx, error) {
	return beginTransaction(executionContext, sqliteDriver.database, options)
}

// Migrate applies schema/{schemaType}_NNN.sql files that were not applied yet.
func (sqliteDriver *SQLiteDriver) Migrate(executionContext context.Context, schemaFS fs.FS, schemaType string) error {
	return applyMigrations(executionContext, sqliteDriver.database, schemaFS, schemaType, migrationPlan{
		directory:              sqliteSchemaDirectoryConstant,
		createTableStatement:   sqliteMigrationsTableConstant,
		recordVersionStatement: sqliteRecordMigrationConstant,
	})
}

// Dialect reports DialectSQLite.
func (sqliteDriver *SQLiteDriver) Dialect() Dialect {
	return DialectSQLite
}

// Placeholder always renders ?.
func (sqliteDriver *SQLiteDriver) Placeholder(int) string {
	return "?"
}

// Rebind returns the query unchanged.
func (sqliteDriver *SQLiteDriver) Rebind(query string) string {
	return query
}

// DB exposes the connection pool.
func (sqliteDriver *SQLiteDriver) DB() *sql.DB {
	return sqliteDriver.database
}

func withPragmas(dataSourceName string) string {
	if strings.Contains(dataSourceName, "_pragma=") {
		return dataSourceName
	}
	separator := "?"
	if strings.Contains(dataSourceName, "?") {
		separator = "&"
	}
	return dataSourceName + separator + sqlitePragmaParametersConstant
}
