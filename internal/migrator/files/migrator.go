package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/archive"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/storage"
)

const (
	// MigratorID names the archive namespace and manifest entry of this migrator.
	MigratorID = "files"
	// CurrentVersion is bumped whenever the archived layout changes.
	CurrentVersion = 1

	displayNameConstant               = "Files"
	descriptionConstant               = "Files stored in the account, including folders and modification times"
	accountRootDirectoryConstant      = "/"
	exportStartedMessageConstant      = "Copying files…"
	importStartedMessageConstant      = "Importing files…"
	importSkippedTemplateConstant     = "No version for %s, skipping import…"
	exportFailedTemplateConstant      = "could not copy files: %w"
	importFailedTemplateConstant      = "could not import files: %w"
	estimateFailedTemplateConstant    = "could not measure files: %w"
	storageFailedTemplateConstant     = "could not open storage of account %s: %w"
	logMessageExportCompletedConstant = "files exported"
	logMessageImportSkippedConstant   = "files import skipped"
	logMessageImportCompletedConstant = "files imported"
	logMessageImportEmptyConstant     = "archive holds no files"
	logFieldAccountIDConstant         = "account_id"
	logFieldArchivePathConstant       = "archive_path"
)

// ErrStorageRequired reports a migrator constructed without an account storage provider.
var ErrStorageRequired = errors.New("files migrator requires account storage")

// StorageProvider hands out the filesystem of one account.
type StorageProvider interface {
	AccountFilesystem(accountID string) (afero.Fs, error)
}

// Dependencies wires the collaborators of the files migrator.
type Dependencies struct {
	Storage         StorageProvider
	ExcludePatterns []string
	Logger          *zap.Logger
}

// Migrator copies the account storage tree into and out of archives.
type Migrator struct {
	migrator.BasicVersionHandling
	storage StorageProvider
	filter  archive.EntryFilter
	logger  *zap.Logger
}

// NewMigrator validates dependencies and compiles the exclusion globs.
func NewMigrator(dependencies Dependencies) (*Migrator, error) {
	if dependencies.Storage == nil {
		return nil, ErrStorageRequired
	}
	excludeFilter, filterError := archive.ExcludeGlobs(dependencies.ExcludePatterns...)
	if filterError != nil {
		return nil, filterError
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		BasicVersionHandling: migrator.BasicVersionHandling{MigratorID: MigratorID, CurrentVersion: CurrentVersion},
		storage:              dependencies.Storage,
		filter:               excludeFilter,
		logger:               logger,
	}, nil
}

// ID returns the migrator identifier.
func (filesMigrator *Migrator) ID() string {
	return MigratorID
}

// DisplayName returns the human readable name.
func (filesMigrator *Migrator) DisplayName() string {
	return displayNameConstant
}

// Description explains what the migrator moves.
func (filesMigrator *Migrator) Description() string {
	return descriptionConstant
}

// Export mirrors the account storage under the files namespace.
func (filesMigrator *Migrator) Export(executionContext context.Context, subject account.Account, destination archive.ExportDestination, progress migrator.Progress) error {
	progress.Report(exportStartedMessageConstant)

	accountFilesystem, storageError := filesMigrator.storage.AccountFilesystem(subject.ID)
	if storageError != nil {
		return fmt.Errorf(storageFailedTemplateConstant, subject.ID, storageError)
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if copyError := destination.CopyTree(accountFilesystem, accountRootDirectoryConstant, MigratorID, filesMigrator.filter); copyError != nil {
		return fmt.Errorf(exportFailedTemplateConstant, copyError)
	}

	filesMigrator.logger.Debug(logMessageExportCompletedConstant, zap.String(logFieldAccountIDConstant, subject.ID), zap.String(logFieldArchivePathConstant, destination.Path()))
	return nil
}

// Import restores the files namespace into the account storage. Archives without a files entry are skipped.
func (filesMigrator *Migrator) Import(executionContext context.Context, subject account.Account, source archive.ImportSource, progress migrator.Progress) error {
	if !source.MigratorVersion(MigratorID).IsPresent() {
		progress.Report(fmt.Sprintf(importSkippedTemplateConstant, MigratorID))
		filesMigrator.logger.Info(logMessageImportSkippedConstant, zap.String(logFieldAccountIDConstant, subject.ID), zap.String(logFieldArchivePathConstant, source.Path()))
		return nil
	}
	progress.Report(importStartedMessageConstant)

	accountFilesystem, storageError := filesMigrator.storage.AccountFilesystem(subject.ID)
	if storageError != nil {
		return fmt.Errorf(storageFailedTemplateConstant, subject.ID, storageError)
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	entries, listError := source.ListDirectory(MigratorID)
	if errors.Is(listError, archive.ErrEntryNotFound) || (listError == nil && len(entries) == 0) {
		filesMigrator.logger.Debug(logMessageImportEmptyConstant, zap.String(logFieldAccountIDConstant, subject.ID), zap.String(logFieldArchivePathConstant, source.Path()))
		return nil
	}
	if listError != nil {
		return fmt.Errorf(importFailedTemplateConstant, listError)
	}
	if copyError := source.CopyTree(accountFilesystem, accountRootDirectoryConstant, MigratorID, filesMigrator.filter); copyError != nil {
		return fmt.Errorf(importFailedTemplateConstant, copyError)
	}

	filesMigrator.logger.Debug(logMessageImportCompletedConstant, zap.String(logFieldAccountIDConstant, subject.ID), zap.String(logFieldArchivePathConstant, source.Path()))
	return nil
}

// EstimateExportSize sums the files an export would copy.
func (filesMigrator *Migrator) EstimateExportSize(executionContext context.Context, subject account.Account) (int64, error) {
	accountFilesystem, storageError := filesMigrator.storage.AccountFilesystem(subject.ID)
	if storageError != nil {
		return 0, fmt.Errorf(storageFailedTemplateConstant, subject.ID, storageError)
	}
	if contextError := executionContext.Err(); contextError != nil {
		return 0, contextError
	}
	totalBytes, sizeError := storage.TreeSize(accountFilesystem, accountRootDirectoryConstant, filesMigrator.filter)
	if sizeError != nil {
		return 0, fmt.Errorf(estimateFailedTemplateConstant, sizeError)
	}
	return totalBytes, nil
}
