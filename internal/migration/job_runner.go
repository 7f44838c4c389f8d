package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/archive"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/storage"
)

const (
	// LastExportApplication groups the bookkeeping settings written after an export.
	LastExportApplication = "user_migration"
	// LastExportKey stores the unix time of the last completed export.
	LastExportKey = "lastExport"

	exportFileNameLayoutConstant       = "2006-01-02_15-04-05"
	exportFileNameTemplateConstant     = "%s_%s.zip"
	exportDirectoryPermissionConstant  = 0o755
	resolveAccountTemplateConstant     = "failed to resolve account %s: %w"
	openStorageTemplateConstant        = "failed to open storage of account %s: %w"
	relocateArtifactTemplateConstant   = "failed to move export into place: %w"
	recordLastExportTemplateConstant   = "failed to record last export of account %s: %w"
	prepareDirectoryTemplateConstant   = "failed to prepare export directory %s: %w"
	logMessagePartialRemovalConstant   = "failed to remove partial export"
	logMessageArchiveCloseConstant     = "failed to close import archive"
	logMessageImportTargetConstant     = "importing archive into the account it was exported from"
	importTargetExistsTemplateConstant = "archive belongs to account %s: %w"
	logFieldPathConstant               = "path"
)

// AccountStorage hands out the filesystem of one account.
type AccountStorage interface {
	AccountFilesystem(accountID string) (afero.Fs, error)
}

// JobRunnerDependencies wires the collaborators that bind archives to durable storage.
type JobRunnerDependencies struct {
	Service  *Service
	Storage  AccountStorage
	Accounts account.Directory
	Settings account.SettingsStore
	Logger   *zap.Logger
	Clock    func() time.Time
}

// JobRunner executes queued exports and imports against account storage.
type JobRunner struct {
	service  *Service
	storage  AccountStorage
	accounts account.Directory
	settings account.SettingsStore
	logger   *zap.Logger
	clock    func() time.Time
	progress migrator.Progress
}

// NewJobRunner validates dependencies and constructs a JobRunner.
func NewJobRunner(dependencies JobRunnerDependencies) (*JobRunner, error) {
	if dependencies.Service == nil {
		return nil, ErrServiceRequired
	}
	if dependencies.Storage == nil {
		return nil, ErrAccountStorageRequired
	}
	if dependencies.Accounts == nil {
		return nil, ErrAccountDirectoryRequired
	}
	if dependencies.Settings == nil {
		return nil, ErrSettingsStoreRequired
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}

	return &JobRunner{
		service:  dependencies.Service,
		storage:  dependencies.Storage,
		accounts: dependencies.Accounts,
		settings: dependencies.Settings,
		logger:   logger,
		clock:    clock,
		progress: migrator.NopProgress(),
	}, nil
}

// WithProgress returns a copy of the runner reporting to progress.
func (runner *JobRunner) WithProgress(progress migrator.Progress) *JobRunner {
	if progress == nil {
		progress = migrator.NopProgress()
	}
	copied := *runner
	copied.progress = progress
	return &copied
}

// RunExport writes the account export next to its files. The archive is built under a
// partial name and renamed over the previous export only once it is finalized.
func (runner *JobRunner) RunExport(executionContext context.Context, accountID string, selection migrator.Selection) error {
	subject, lookupError := runner.accounts.Get(executionContext, accountID)
	if lookupError != nil {
		return fmt.Errorf(resolveAccountTemplateConstant, accountID, lookupError)
	}

	accountFilesystem, storageError := runner.storage.AccountFilesystem(accountID)
	if storageError != nil {
		return fmt.Errorf(openStorageTemplateConstant, accountID, storageError)
	}

	partialPath := storage.PartialArtifactPath()
	writer, createError := archive.CreatePartialZipFile(accountFilesystem, storage.ArtifactPath())
	if createError != nil {
		return createError
	}

	if exportError := runner.service.Export(executionContext, subject, writer, selection, runner.progress); exportError != nil {
		runner.discardPartial(accountFilesystem, writer, partialPath)
		return exportError
	}

	if relocateError := accountFilesystem.Rename(partialPath, storage.ArtifactPath()); relocateError != nil {
		runner.discardPartial(accountFilesystem, nil, partialPath)
		return fmt.Errorf(relocateArtifactTemplateConstant, relocateError)
	}

	return runner.recordLastExport(executionContext, accountID)
}

// ExportToFile writes the account export into directory on filesystem, named after the
// account and the current time, and returns the archive path.
func (runner *JobRunner) ExportToFile(executionContext context.Context, filesystem afero.Fs, directory string, accountID string, selection migrator.Selection) (string, error) {
	subject, lookupError := runner.accounts.Get(executionContext, accountID)
	if lookupError != nil {
		return "", fmt.Errorf(resolveAccountTemplateConstant, accountID, lookupError)
	}
	if directoryError := filesystem.MkdirAll(directory, exportDirectoryPermissionConstant); directoryError != nil {
		return "", fmt.Errorf(prepareDirectoryTemplateConstant, directory, directoryError)
	}

	archivePath := path.Join(directory, ExportFileName(accountID, runner.clock()))
	writer, createError := archive.CreateZipFile(filesystem, archivePath)
	if createError != nil {
		return "", createError
	}

	if exportError := runner.service.Export(executionContext, subject, writer, selection, runner.progress); exportError != nil {
		runner.discardPartial(filesystem, writer, archivePath)
		return "", exportError
	}
	return archivePath, nil
}

// RunImport reads an archive stored in the author's files into the target account.
func (runner *JobRunner) RunImport(executionContext context.Context, authorID string, targetAccountID string, archivePath string) error {
	if _, lookupError := runner.accounts.Get(executionContext, authorID); lookupError != nil {
		return fmt.Errorf(resolveAccountTemplateConstant, authorID, lookupError)
	}

	authorFilesystem, storageError := runner.storage.AccountFilesystem(authorID)
	if storageError != nil {
		return fmt.Errorf(openStorageTemplateConstant, authorID, storageError)
	}

	_, importError := runner.ImportFromFile(executionContext, authorFilesystem, archivePath, ImportOptions{TargetAccountID: targetAccountID})
	return importError
}

// ImportFromFile imports the archive at archivePath on filesystem and returns the account it restored.
func (runner *JobRunner) ImportFromFile(executionContext context.Context, filesystem afero.Fs, archivePath string, options ImportOptions) (account.Account, error) {
	reader, openError := archive.OpenZipFile(filesystem, archivePath)
	if openError != nil {
		return account.Account{}, openError
	}
	defer func() {
		if closeError := reader.Close(); closeError != nil {
			runner.logger.Warn(logMessageArchiveCloseConstant, zap.String(logFieldPathConstant, archivePath), zap.Error(closeError))
		}
	}()

	if len(options.TargetAccountID) == 0 {
		if targetError := runner.checkOriginalAccountFree(executionContext, reader); targetError != nil {
			return account.Account{}, targetError
		}
	}
	return runner.service.Import(executionContext, reader, options, runner.progress)
}

// checkOriginalAccountFree peeks at the account the archive was exported from and
// refuses the import when that account already exists.
func (runner *JobRunner) checkOriginalAccountFree(executionContext context.Context, reader *archive.ZipReader) error {
	originalAccountID, identifierError := reader.OriginalAccountID()
	if identifierError != nil {
		return identifierError
	}
	_, lookupError := runner.accounts.Get(executionContext, originalAccountID)
	switch {
	case lookupError == nil:
		return fmt.Errorf(importTargetExistsTemplateConstant, originalAccountID, account.ErrAccountExists)
	case !errors.Is(lookupError, account.ErrAccountNotFound):
		return fmt.Errorf(resolveAccountTemplateConstant, originalAccountID, lookupError)
	}
	runner.logger.Info(logMessageImportTargetConstant, zap.String(logFieldAccountIDConstant, originalAccountID), zap.String(logFieldPathConstant, reader.Path()))
	return nil
}

// ExportFileName names a manually requested export.
func ExportFileName(accountID string, exportedAt time.Time) string {
	return fmt.Sprintf(exportFileNameTemplateConstant, accountID, exportedAt.Format(exportFileNameLayoutConstant))
}

func (runner *JobRunner) recordLastExport(executionContext context.Context, accountID string) error {
	values := account.Settings{}
	values.Set(LastExportApplication, LastExportKey, strconv.FormatInt(runner.clock().Unix(), 10))
	if settingsError := runner.settings.SetMany(executionContext, accountID, values); settingsError != nil {
		return fmt.Errorf(recordLastExportTemplateConstant, accountID, settingsError)
	}
	return nil
}

// discardPartial closes an unfinalized writer and removes what it wrote.
func (runner *JobRunner) discardPartial(filesystem afero.Fs, writer *archive.ZipWriter, partialPath string) {
	if writer != nil {
		_ = writer.Finalize()
	}
	if removeError := filesystem.Remove(partialPath); removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
		runner.logger.Warn(logMessagePartialRemovalConstant, zap.String(logFieldPathConstant, partialPath), zap.Error(removeError))
	}
}

