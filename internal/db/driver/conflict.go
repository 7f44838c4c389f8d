package driver

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	postgresUniqueViolationCodeConstant = "23505"
	sqliteUniqueFailureMessageConstant  = "UNIQUE constraint failed"
)

// IsUniqueViolation reports whether the error is a unique or primary key constraint failure
// raised by either dialect.
func IsUniqueViolation(candidateError error) bool {
	var sqliteError *sqlite.Error
	if errors.As(candidateError, &sqliteError) {
		code := sqliteError.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteError.Error(), sqliteUniqueFailureMessageConstant)
		}
		return false
	}
	var postgresError *pgconn.PgError
	if errors.As(candidateError, &postgresError) {
		return postgresError.Code == postgresUniqueViolationCodeConstant
	}
	return false
}
