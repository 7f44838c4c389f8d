package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	postgresDriverNameConstant          = "pgx"
	postgresOpenTemplateConstant        = "open postgres: %w"
	postgresPingTemplateConstant        = "ping postgres: %w"
	postgresSchemaDirectoryConstant     = "schema/postgres"
	postgresRecordMigrationConstant     = "INSERT INTO _migrations (version) VALUES ($1)"
	postgresPlaceholderTemplateConstant = "$%d"
)

const postgresMigrationsTableConstant = `CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
)`

// PostgresDriver runs statements against PostgreSQL through the pgx database/sql adapter.
type PostgresDriver struct {
	database *sql.DB
}

// NewPostgres creates an unopened PostgreSQL driver.
func NewPostgres() *PostgresDriver {
	return &PostgresDriver{}
}

// Open connects to the server and verifies the connection.
func (postgresDriver *PostgresDriver) Open(dataSourceName string) error {
	database, openError := sql.Open(postgresDriverNameConstant, dataSourceName)
	if openError != nil {
		return fmt.Errorf(postgresOpenTemplateConstant, openError)
	}
	if pingError := database.Ping(); pingError != nil {
		_ = database.Close()
		return fmt.Errorf(postgresPingTemplateConstant, pingError)
	}
	postgresDriver.database = database
	return nil
}

// Close releases the connection pool.
func (postgresDriver *PostgresDriver) Close() error {
	if postgresDriver.database == nil {
		return nil
	}
	return postgresDriver.database.Close()
}

// Exec executes a statement without returning rows.
func (postgresDriver *PostgresDriver) Exec(executionContext context.Context, query string, arguments ...any) (sql.Result, error) {
	return postgresDriver.database.ExecContext(executionContext, query, arguments...)
}

// Query executes a statement returning rows.
func (postgresDriver *PostgresDriver) Query(executionContext context.Context, query string, arguments ...any) (*sql.Rows, error) {
	return postgresDriver.database.QueryContext(executionContext, query, arguments...)
}

// QueryRow executes a statement returning at most one row.
func (postgresDriver *PostgresDriver) QueryRow(executionContext context.Context, query string, arguments ...any) *sql.Row {
	return postgresDriver.database.QueryRowContext(executionContext, query, arguments...)
}

// BeginTx starts a transaction.
func (postgresDriver *PostgresDriver) BeginTx(executionContext context.Context, options *sql.TxOptions) (Tx, error) {
	return beginTransaction(executionContext, postgresDriver.database, options)
}

// Migrate applies schema/postgres/{schemaType}_NNN.sql files that were not applied yet.
func (postgresDriver *PostgresDriver) Migrate(executionContext context.Context, schemaFS fs.FS, schemaType string) error {
	return applyMigrations(executionContext, postgresDriver.database, schemaFS, schemaType, migrationPlan{
		directory:              postgresSchemaDirectoryConstant,
		createTableStatement:   postgresMigrationsTableConstant,
		recordVersionStatement: postgresRecordMigrationConstant,
	})
}

// Dialect reports DialectPostgres.
func (postgresDriver *PostgresDriver) Dialect() Dialect {
	return DialectPostgres
}

// Placeholder renders $1, $2, ...
func (postgresDriver *PostgresDriver) Placeholder(index int) string {
	return fmt.Sprintf(postgresPlaceholderTemplateConstant, index)
}

// Rebind numbers the ? markers of the query.
func (postgresDriver *PostgresDriver) Rebind(query string) string {
	return rebind(query, postgresDriver.Placeholder)
}

// DB exposes the connection pool.
func (postgresDriver *PostgresDriver) DB() *sql.DB {
	return postgresDriver.database
}
