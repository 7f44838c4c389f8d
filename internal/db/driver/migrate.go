package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	migrationFileSuffixConstant           = ".sql"
	selectAppliedVersionsQueryConstant    = "SELECT version FROM _migrations"
	createMigrationsTableTemplateConstant = "create migrations table: %w"
	queryMigrationsTemplateConstant       = "query migrations: %w"
	scanMigrationTemplateConstant         = "scan migration version: %w"
	iterateMigrationsTemplateConstant     = "iterate migrations: %w"
	readSchemaDirectoryTemplateConstant   = "read schema directory %s: %w"
	readMigrationTemplateConstant         = "read migration %s: %w"
	applyMigrationTemplateConstant        = "apply migration %s: %w"
	recordMigrationTemplateConstant       = "record migration %s: %w"
	commitMigrationTemplateConstant       = "commit migration %s: %w"
	invalidMigrationNameTemplateConstant  = "migration %s has no numeric version"
)

// migrationPlan describes how a dialect keeps track of applied schema files.
type migrationPlan struct {
	directory              string
	createTableStatement   string
	recordVersionStatement string
}

func applyMigrations(executionContext context.Context, database *sql.DB, schemaFS fs.FS, schemaType string, plan migrationPlan) error {
	if _, createError := database.ExecContext(executionContext, plan.createTableStatement); createError != nil {
		return fmt.Errorf(createMigrationsTableTemplateConstant, createError)
	}

	appliedVersions, appliedError := loadAppliedVersions(executionContext, database)
	if appliedError != nil {
		return appliedError
	}

	entries, readDirectoryError := fs.ReadDir(schemaFS, plan.directory)
	if readDirectoryError != nil {
		return fmt.Errorf(readSchemaDirectoryTemplateConstant, plan.directory, readDirectoryError)
	}

	prefix := schemaType + "_"
	var migrationNames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), migrationFileSuffixConstant) {
			migrationNames = append(migrationNames, entry.Name())
		}
	}
	sort.Strings(migrationNames)

	for _, migrationName := range migrationNames {
		version, versionError := extractVersion(migrationName, prefix)
		if versionError != nil {
			return versionError
		}
		if appliedVersions[version] {
			continue
		}
		if applyError := applyMigration(executionContext, database, schemaFS, plan, migrationName, version); applyError != nil {
			return applyError
		}
	}
	return nil
}

func loadAppliedVersions(executionContext context.Context, database *sql.DB) (map[int]bool, error) {
	rows, queryError := database.QueryContext(executionContext, selectAppliedVersionsQueryConstant)
	if queryError != nil {
		return nil, fmt.Errorf(queryMigrationsTemplateConstant, queryError)
	}
	defer func() { _ = rows.Close() }()

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if scanError := rows.Scan(&version); scanError != nil {
			return nil, fmt.Errorf(scanMigrationTemplateConstant, scanError)
		}
		appliedVersions[version] = true
	}
	if iterateError := rows.Err(); iterateError != nil {
		return nil, fmt.Errorf(iterateMigrationsTemplateConstant, iterateError)
	}
	return appliedVersions, nil
}

func applyMigration(executionContext context.Context, database *sql.DB, schemaFS fs.FS, plan migrationPlan, migrationName string, version int) error {
	content, readError := fs.ReadFile(schemaFS, path.Join(plan.directory, migrationName))
	if readError != nil {
		return fmt.Errorf(readMigrationTemplateConstant, migrationName, readError)
	}

	transaction, beginError := database.BeginTx(executionContext, nil)
	if beginError != nil {
		return fmt.Errorf(beginTransactionTemplateConstant, beginError)
	}
	if _, applyError := transaction.ExecContext(executionContext, string(content)); applyError != nil {
		_ = transaction.Rollback()
		return fmt.Errorf(applyMigrationTemplateConstant, migrationName, applyError)
	}
	if _, recordError := transaction.ExecContext(executionContext, plan.recordVersionStatement, version); recordError != nil {
		_ = transaction.Rollback()
		return fmt.Errorf(recordMigrationTemplateConstant, migrationName, recordError)
	}
	if commitError := transaction.Commit(); commitError != nil {
		return fmt.Errorf(commitMigrationTemplateConstant, migrationName, commitError)
	}
	return nil
}

// extractVersion reads 1 out of "migration_001.sql" for the prefix "migration_".
func extractVersion(migrationName string, prefix string) (int, error) {
	rawVersion := strings.TrimSuffix(strings.TrimPrefix(migrationName, prefix), migrationFileSuffixConstant)
	version, parseError := strconv.Atoi(rawVersion)
	if parseError != nil {
		return 0, fmt.Errorf(invalidMigrationNameTemplateConstant, migrationName)
	}
	return version, nil
}
