package migration

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/temirov/usermigration/internal/archive"
)

const (
	migrationErrorTemplateConstant          = "migration step %s failed: %v"
	migrationMigratorErrorTemplateConstant  = "migration step %s failed for migrator %s: %v"
	incompatibleVersionTemplateConstant     = "version %s of %s is not compatible with current version %d"
	notExportableTemplateConstant           = "export needs %s but only %s is available"
	registryRequiredMessageConstant         = "migrator registry is unavailable"
	accountDirectoryRequiredMessageConstant = "account directory is unavailable"
	settingsStoreRequiredMessageConstant    = "settings store is unavailable"
	spaceReporterRequiredMessageConstant    = "storage space reporter is unavailable"
	accountStorageRequiredMessageConstant   = "account storage is unavailable"
	serviceRequiredMessageConstant          = "migration service is unavailable"
)

var (
	// ErrRegistryRequired reports a service built without a migrator registry.
	ErrRegistryRequired = errors.New(registryRequiredMessageConstant)
	// ErrAccountDirectoryRequired reports a service built without an account directory.
	ErrAccountDirectoryRequired = errors.New(accountDirectoryRequiredMessageConstant)
	// ErrSettingsStoreRequired reports a service built without a settings store.
	ErrSettingsStoreRequired = errors.New(settingsStoreRequiredMessageConstant)
	// ErrSpaceReporterRequired reports an exportability check without storage accounting.
	ErrSpaceReporterRequired = errors.New(spaceReporterRequiredMessageConstant)
	// ErrAccountStorageRequired reports a job runner built without account storage.
	ErrAccountStorageRequired = errors.New(accountStorageRequiredMessageConstant)
	// ErrServiceRequired reports a job runner built without a migration service.
	ErrServiceRequired = errors.New(serviceRequiredMessageConstant)
)

// MigrationError reports an orchestration failure. Operation names the step that
// failed and MigratorID the migrator it ran, when any.
type MigrationError struct {
	Operation  string
	MigratorID string
	Cause      error
}

// Error describes the failed step.
func (migrationError MigrationError) Error() string {
	if len(migrationError.MigratorID) == 0 {
		return fmt.Sprintf(migrationErrorTemplateConstant, migrationError.Operation, migrationError.Cause)
	}
	return fmt.Sprintf(migrationMigratorErrorTemplateConstant, migrationError.Operation, migrationError.MigratorID, migrationError.Cause)
}

// Unwrap exposes the underlying cause.
func (migrationError MigrationError) Unwrap() error {
	return migrationError.Cause
}

// IncompatibleVersionError reports an archive produced by a newer version of a migrator,
// or one missing a mandatory entry. It always reaches callers wrapped in a MigrationError.
type IncompatibleVersionError struct {
	MigratorID      string
	ArchivedVersion archive.Version
	CurrentVersion  int
}

// Error describes the incompatibility.
func (incompatibleError IncompatibleVersionError) Error() string {
	return fmt.Sprintf(incompatibleVersionTemplateConstant, incompatibleError.ArchivedVersion, incompatibleError.MigratorID, incompatibleError.CurrentVersion)
}

// NotExportableError reports that the destination storage cannot hold the export.
type NotExportableError struct {
	RequiredBytes  int64
	AvailableBytes int64
}

// Error describes the missing space in human readable units.
func (notExportableError NotExportableError) Error() string {
	return fmt.Sprintf(notExportableTemplateConstant, humanizeBytes(notExportableError.RequiredBytes), humanizeBytes(notExportableError.AvailableBytes))
}

func humanizeBytes(byteCount int64) string {
	if byteCount < 0 {
		byteCount = 0
	}
	return humanize.IBytes(uint64(byteCount))
}

func wrapStepError(operation string, migratorID string, cause error) error {
	var migrationError MigrationError
	if errors.As(cause, &migrationError) {
		return cause
	}
	return MigrationError{Operation: operation, MigratorID: migratorID, Cause: cause}
}
