package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/usermigration/internal/db/driver"
)

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

const (
	schemaTypeConstant                = "migration"
	inMemoryDataSourceConstant        = ":memory:"
	fileURIPrefixConstant             = "file:"
	databaseDirectoryModeConstant     = 0o755
	createDirectoryTemplateConstant   = "create database directory %s: %w"
	migrateTemplateConstant           = "migrate %s database: %w"
	dataSourceRequiredMessageConstant = "database data source name is required"
)

// ErrDataSourceRequired reports an Open call without a data source name.
var ErrDataSourceRequired = errors.New(dataSourceRequiredMessageConstant)

// DB is an opened and migrated database.
type DB struct {
	driver         driver.Driver
	dataSourceName string
}

// Open connects to the database and applies pending schema migrations. For SQLite the
// data source name is a file path whose parent directory is created when missing.
func Open(executionContext context.Context, dialect driver.Dialect, dataSourceName string) (*DB, error) {
	trimmedDataSourceName := strings.TrimSpace(dataSourceName)
	if len(trimmedDataSourceName) == 0 {
		return nil, ErrDataSourceRequired
	}
	if dialect == driver.DialectSQLite && isFilePath(trimmedDataSourceName) {
		directory := filepath.Dir(trimmedDataSourceName)
		if mkdirError := os.MkdirAll(directory, databaseDirectoryModeConstant); mkdirError != nil {
			return nil, fmt.Errorf(createDirectoryTemplateConstant, directory, mkdirError)
		}
	}

	databaseDriver, driverError := driver.New(dialect)
	if driverError != nil {
		return nil, driverError
	}
	if openError := databaseDriver.Open(trimmedDataSourceName); openError != nil {
		return nil, openError
	}
	if migrateError := databaseDriver.Migrate(executionContext, schemaFS, schemaTypeConstant); migrateError != nil {
		_ = databaseDriver.Close()
		return nil, fmt.Errorf(migrateTemplateConstant, dialect, migrateError)
	}

	return &DB{driver: databaseDriver, dataSourceName: trimmedDataSourceName}, nil
}

// Close releases the connection pool.
func (database *DB) Close() error {
	return database.driver.Close()
}

// Dialect reports the SQL dialect in use.
func (database *DB) Dialect() driver.Dialect {
	return database.driver.Dialect()
}

// DataSourceName returns the path or DSN the database was opened with.
func (database *DB) DataSourceName() string {
	return database.dataSourceName
}

// Driver exposes the dialect driver.
func (database *DB) Driver() driver.Driver {
	return database.driver
}

func (database *DB) exec(executionContext context.Context, query string, arguments ...any) (sql.Result, error) {
	return database.driver.Exec(executionContext, database.driver.Rebind(query), arguments...)
}

func (database *DB) query(executionContext context.Context, query string, arguments ...any) (*sql.Rows, error) {
	return database.driver.Query(executionContext, database.driver.Rebind(query), arguments...)
}

func (database *DB) queryRow(executionContext context.Context, query string, arguments ...any) *sql.Row {
	return database.driver.QueryRow(executionContext, database.driver.Rebind(query), arguments...)
}

func isFilePath(dataSourceName string) bool {
	return dataSourceName != inMemoryDataSourceConstant && !strings.HasPrefix(dataSourceName, fileURIPrefixConstant)
}

func affectedAny(result sql.Result) (bool, error) {
	affectedRows, affectedError := result.RowsAffected()
	if affectedError != nil {
		return false, affectedError
	}
	return affectedRows > 0, nil
}
