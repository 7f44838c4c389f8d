package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/archive"
	"github.com/temirov/usermigration/internal/migrator"
)

const (
	// CoreVersion is the archived layout version of the core account step.
	CoreVersion = 1
	// CoreExportOverheadBytes is the size budget reserved for core account data in estimates.
	CoreExportOverheadBytes int64 = 100 * 1024

	logMessageExportStartedConstant     = "account export started"
	logMessageExportCompletedConstant   = "account export completed"
	logMessageExportFailedConstant      = "account export failed"
	logMessageImportStartedConstant     = "account import started"
	logMessageImportCompletedConstant   = "account import completed"
	logMessageImportFailedConstant      = "account import failed"
	logMessageNotExportableConstant     = "account export does not fit into storage"
	logFieldAccountIDConstant           = "account_id"
	logFieldArchivePathConstant         = "archive_path"
	logFieldSelectionConstant           = "selection"
	logFieldEstimatedBytesConstant      = "estimated_bytes"
	logFieldAvailableBytesConstant      = "available_bytes"
	exportSavedTemplateConstant         = "Export saved in %s"
	importDoneTemplateConstant          = "Successfully imported %s from %s"
	importStartTemplateConstant         = "Importing from %s…"
	operationValidateSelectionConstant  = "validate selection"
	operationEstimateExportSizeConstant = "estimate export size"
	operationCheckExportabilityConstant = "check exportability"
	operationQueryFreeSpaceConstant     = "query free space"
	operationQueryArtifactSizeConstant  = "query export artifact size"
)

// SpaceReporter exposes the storage accounting used by exportability checks.
// A negative free space means the account has no quota.
type SpaceReporter interface {
	FreeSpace(accountID string) (int64, error)
	ArtifactSize(accountID string) (int64, error)
}

// ServiceDependencies wires the collaborators of the orchestrator.
type ServiceDependencies struct {
	Registry           *migrator.Registry
	Accounts           account.Directory
	Settings           account.SettingsStore
	Space              SpaceReporter
	ApplicationVersion string
	Logger             *zap.Logger
	Clock              func() time.Time
}

// ImportOptions selects the account receiving an import. An empty TargetAccountID
// creates the account recorded in the archive.
type ImportOptions struct {
	TargetAccountID string
}

// ExportabilityReport summarizes a storage preflight.
type ExportabilityReport struct {
	EstimatedBytes int64 `json:"estimatedBytes" yaml:"estimated_bytes"`
	AvailableBytes int64 `json:"availableBytes" yaml:"available_bytes"`
	Unlimited      bool  `json:"unlimited" yaml:"unlimited"`
}

// Service orchestrates exports and imports across the core step and all registered migrators.
type Service struct {
	registry           *migrator.Registry
	accounts           account.Directory
	settings           account.SettingsStore
	space              SpaceReporter
	applicationVersion string
	logger             *zap.Logger
	clock              func() time.Time
	coreVersioning     migrator.BasicVersionHandling
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Registry == nil {
		return nil, ErrRegistryRequired
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

	return &Service{
		registry:           dependencies.Registry,
		accounts:           dependencies.Accounts,
		settings:           dependencies.Settings,
		space:              dependencies.Space,
		applicationVersion: dependencies.ApplicationVersion,
		logger:             logger,
		clock:              clock,
		coreVersioning:     migrator.BasicVersionHandling{MigratorID: migrator.CoreID, CurrentVersion: CoreVersion, Mandatory: true},
	}, nil
}

// Migrators lists the registered migrators in execution order.
func (service *Service) Migrators() []migrator.Description {
	return service.registry.Describe()
}

// MigratorIDs lists the registered identifiers in execution order.
func (service *Service) MigratorIDs() []string {
	return service.registry.IDs()
}

// ValidateSelection rejects selections naming unregistered migrators.
func (service *Service) ValidateSelection(selection migrator.Selection) error {
	return service.registry.Validate(selection)
}

// Export writes the account core data and every selected migrator into destination,
// then the manifest, then finalizes the archive. Any failure leaves the archive unfinalized.
func (service *Service) Export(executionContext context.Context, subject account.Account, destination archive.ExportDestination, selection migrator.Selection, progress migrator.Progress) error {
	if progress == nil {
		progress = migrator.NopProgress()
	}
	if selectionError := service.registry.Validate(selection); selectionError != nil {
		return MigrationError{Operation: operationValidateSelectionConstant, Cause: selectionError}
	}

	logFields := []zap.Field{
		zap.String(logFieldAccountIDConstant, subject.ID),
		zap.String(logFieldArchivePathConstant, destination.Path()),
		zap.Stringer(logFieldSelectionConstant, selection),
	}
	service.logger.Info(logMessageExportStartedConstant, logFields...)

	state := &exportState{
		subject:     subject,
		destination: destination,
		progress:    progress,
		manifest:    archive.Manifest{migrator.CoreID: service.coreVersioning.Version()},
	}
	if runError := runSteps(executionContext, service.exportSteps(selection), state); runError != nil {
		service.logger.Error(logMessageExportFailedConstant, append(logFields, zap.Error(runError))...)
		return runError
	}

	progress.Report(fmt.Sprintf(exportSavedTemplateConstant, destination.Path()))
	service.logger.Info(logMessageExportCompletedConstant, logFields...)
	return nil
}

// Import reads the manifest, checks that the core step and every registered migrator
// accept the archive, and only then restores the account, its settings, and each migrator's data.
func (service *Service) Import(executionContext context.Context, source archive.ImportSource, options ImportOptions, progress migrator.Progress) (account.Account, error) {
	if progress == nil {
		progress = migrator.NopProgress()
	}

	logFields := []zap.Field{
		zap.String(logFieldAccountIDConstant, options.TargetAccountID),
		zap.String(logFieldArchivePathConstant, source.Path()),
	}
	service.logger.Info(logMessageImportStartedConstant, logFields...)
	progress.Report(fmt.Sprintf(importStartTemplateConstant, source.Path()))

	state := &importState{
		source:          source,
		progress:        progress,
		targetAccountID: options.TargetAccountID,
	}
	if runError := runSteps(executionContext, service.importSteps(), state); runError != nil {
		service.logger.Error(logMessageImportFailedConstant, append(logFields, zap.Error(runError))...)
		return account.Account{}, runError
	}

	progress.Report(fmt.Sprintf(importDoneTemplateConstant, state.subject.ID, source.Path()))
	service.logger.Info(logMessageImportCompletedConstant, zap.String(logFieldAccountIDConstant, state.subject.ID), zap.String(logFieldArchivePathConstant, source.Path()))
	return state.subject, nil
}

// EstimateExportSize adds the core overhead to the estimates of the selected migrators.
// Migrators without an estimate contribute nothing; a failing estimate fails the whole estimate.
func (service *Service) EstimateExportSize(executionContext context.Context, subject account.Account, selection migrator.Selection) (int64, error) {
	if selectionError := service.registry.Validate(selection); selectionError != nil {
		return 0, MigrationError{Operation: operationValidateSelectionConstant, Cause: selectionError}
	}

	totalBytes := CoreExportOverheadBytes
	for _, selected := range service.registry.Selected(selection) {
		estimatedBytes, _, estimateError := migrator.EstimateExportSize(executionContext, selected, subject)
		if estimateError != nil {
			return 0, MigrationError{Operation: operationEstimateExportSizeConstant, MigratorID: selected.ID(), Cause: estimateError}
		}
		totalBytes += estimatedBytes
	}
	return totalBytes, nil
}

// CheckExportability compares the estimate against the free space of the account,
// counting the space a previous export artifact would release when replaced.
func (service *Service) CheckExportability(executionContext context.Context, subject account.Account, selection migrator.Selection) (ExportabilityReport, error) {
	if service.space == nil {
		return ExportabilityReport{}, MigrationError{Operation: operationCheckExportabilityConstant, Cause: ErrSpaceReporterRequired}
	}

	estimatedBytes, estimateError := service.EstimateExportSize(executionContext, subject, selection)
	if estimateError != nil {
		return ExportabilityReport{}, estimateError
	}

	freeBytes, freeSpaceError := service.space.FreeSpace(subject.ID)
	if freeSpaceError != nil {
		return ExportabilityReport{}, MigrationError{Operation: operationQueryFreeSpaceConstant, Cause: freeSpaceError}
	}
	if freeBytes < 0 {
		return ExportabilityReport{EstimatedBytes: estimatedBytes, AvailableBytes: freeBytes, Unlimited: true}, nil
	}

	artifactBytes, artifactError := service.space.ArtifactSize(subject.ID)
	if artifactError != nil {
		return ExportabilityReport{}, MigrationError{Operation: operationQueryArtifactSizeConstant, Cause: artifactError}
	}

	report := ExportabilityReport{EstimatedBytes: estimatedBytes, AvailableBytes: freeBytes + artifactBytes}
	if report.AvailableBytes-report.EstimatedBytes < 0 {
		service.logger.Info(
			logMessageNotExportableConstant,
			zap.String(logFieldAccountIDConstant, subject.ID),
			zap.Int64(logFieldEstimatedBytesConstant, report.EstimatedBytes),
			zap.Int64(logFieldAvailableBytesConstant, report.AvailableBytes),
		)
		return report, NotExportableError{RequiredBytes: report.EstimatedBytes, AvailableBytes: report.AvailableBytes}
	}
	return report, nil
}

func (service *Service) exportSteps(selection migrator.Selection) []step[*exportState] {
	steps := []step[*exportState]{
		accountRecordExportStep{},
		settingsExportStep{settings: service.settings},
		provenanceExportStep{applicationVersion: service.applicationVersion, registry: service.registry, clock: service.clock},
	}
	for _, selected := range service.registry.Selected(selection) {
		steps = append(steps, migratorExportStep{migrator: selected})
	}
	return append(steps, manifestWriteStep{}, finalizeStep{})
}

func (service *Service) importSteps() []step[*importState] {
	steps := []step[*importState]{
		manifestReadStep{},
		preflightStep{coreVersioning: service.coreVersioning, registry: service.registry},
		coreDataLoadStep{},
		accountImportStep{accounts: service.accounts},
		settingsImportStep{settings: service.settings},
	}
	for _, registered := range service.registry.All() {
		steps = append(steps, migratorImportStep{migrator: registered})
	}
	return steps
}
