package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/temirov/usermigration/internal/db/driver"
)

const testDatabaseFileNameConstant = "usermigration.db"

// NewTestDB opens a migrated SQLite database in a temporary directory that is
// closed when the test completes.
func NewTestDB(testInstance testing.TB) *DB {
	testInstance.Helper()

	database, openError := Open(context.Background(), driver.DialectSQLite, filepath.Join(testInstance.TempDir(), testDatabaseFileNameConstant))
	if openError != nil {
		testInstance.Fatalf("open test database: %v", openError)
	}
	testInstance.Cleanup(func() {
		_ = database.Close()
	})
	return database
}
