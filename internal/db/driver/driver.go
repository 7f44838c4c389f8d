// Package driver hides the differences between the SQL dialects the stores run on.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
)

// Dialect names a supported SQL dialect.
type Dialect string

const (
	// DialectSQLite stores data in an embedded SQLite database.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres stores data in a PostgreSQL server.
	DialectPostgres Dialect = "postgres"
)

const (
	unsupportedDialectTemplateConstant = "unsupported database dialect: %s"
	unknownDialectTemplateConstant     = "unknown database dialect: %q"
	beginTransactionTemplateConstant   = "begin transaction: %w"
	placeholderMarkerConstant          = '?'
)

// Driver executes statements against one database.
type Driver interface {
	Open(dataSourceName string) error
	Close() error

	Exec(executionContext context.Context, query string, arguments ...any) (sql.Result, error)
	Query(executionContext context.Context, query string, arguments ...any) (*sql.Rows, error)
	QueryRow(executionContext context.Context, query string, arguments ...any) *sql.Row
	BeginTx(executionContext context.Context, options *sql.TxOptions) (Tx, error)

	// Migrate applies the pending {schemaType}_NNN.sql files of the dialect.
	Migrate(executionContext context.Context, schemaFS fs.FS, schemaType string) error

	Dialect() Dialect
	// Placeholder renders the bind marker of the 1-based argument index.
	Placeholder(index int) string
	// Rebind rewrites ? markers into the dialect's placeholders.
	Rebind(query string) string

	DB() *sql.DB
}

// Tx is a transaction opened by a Driver. Queries are written with ? markers
// and rebound by the caller.
type Tx interface {
	Exec(executionContext context.Context, query string, arguments ...any) (sql.Result, error)
	Query(executionContext context.Context, query string, arguments ...any) (*sql.Rows, error)
	QueryRow(executionContext context.Context, query string, arguments ...any) *sql.Row
	Commit() error
	Rollback() error
}

// New constructs an unopened driver for the dialect.
func New(dialect Dialect) (Driver, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(), nil
	case DialectPostgres:
		return NewPostgres(), nil
	default:
		return nil, fmt.Errorf(unsupportedDialectTemplateConstant, dialect)
	}
}

// ParseDialect accepts the dialect names used in configuration.
func ParseDialect(rawDialect string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(rawDialect)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf(unknownDialectTemplateConstant, rawDialect)
	}
}

func rebind(query string, placeholder func(index int) string) string {
	var builder strings.Builder
	argumentIndex := 0
	for _, character := range query {
		if character != placeholderMarkerConstant {
			builder.WriteRune(character)
			continue
		}
		argumentIndex++
		builder.WriteString(placeholder(argumentIndex))
	}
	return builder.String()
}

func beginTransaction(executionContext context.Context, database *sql.DB, options *sql.TxOptions) (Tx, error) {
	transaction, beginError := database.BeginTx(executionContext, options)
	if beginError != nil {
		return nil, fmt.Errorf(beginTransactionTemplateConstant, beginError)
	}
	return &sqlTx{transaction: transaction}, nil
}

type sqlTx struct {
	transaction *sql.Tx
}

func (wrapped *sqlTx) Exec(executionContext context.Context, query string, arguments ...any) (sql.Result, error) {
	return wrapped.transaction.ExecContext(executionContext, query, arguments...)
}

func (wrapped *sqlTx) Query(executionContext context.Context, query string, arguments ...any) (*sql.Rows, error) {
	return wrapped.transaction.QueryContext(executionContext, query, arguments...)
}

func (wrapped *sqlTx) QueryRow(executionContext context.Context, query string, arguments ...any) *sql.Row {
	return wrapped.transaction.QueryRowContext(executionContext, query, arguments...)
}

func (wrapped *sqlTx) Commit() error   { return wrapped.transaction.Commit() }
func (wrapped *sqlTx) Rollback() error { return wrapped.transaction.Rollback() }
