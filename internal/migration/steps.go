package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/archive"
	"github.com/temirov/usermigration/internal/migrator"
)

const (
	// SettingsPath holds the account settings grouped by application.
	SettingsPath = "settings.json"
	// ProvenancePath records the application and migrator versions that produced the archive.
	ProvenancePath = "versions.json"

	stepExportAccountRecordConstant = "export account record"
	stepExportSettingsConstant      = "export settings"
	stepExportProvenanceConstant    = "export provenance"
	stepExportMigratorConstant      = "export migrator"
	stepWriteManifestConstant       = "write manifest"
	stepFinalizeArchiveConstant     = "finalize archive"
	stepReadManifestConstant        = "read manifest"
	stepPreflightConstant           = "preflight"
	stepLoadCoreDataConstant        = "load core data"
	stepImportAccountConstant       = "import account"
	stepImportSettingsConstant      = "import settings"
	stepImportMigratorConstant      = "import migrator"

	exportAccountProgressConstant    = "Exporting account information in account.json…"
	exportSettingsProgressConstant   = "Exporting settings in settings.json…"
	exportProvenanceProgressConstant = "Exporting versions in versions.json…"
	exportMigratorTemplateConstant   = "Exporting %s…"
	importAccountProgressConstant    = "Importing account information…"
	importSettingsProgressConstant   = "Importing settings…"
	importMigratorTemplateConstant   = "Importing %s…"
	cancelledStepTemplateConstant    = "cancelled before %s: %w"
)

// Provenance is the content of ProvenancePath.
type Provenance struct {
	Core       string         `json:"core"`
	ExportedAt string         `json:"exportedAt"`
	Migrators  map[string]int `json:"migrators"`
}

// step is one stage of an export or import. Steps run in order and the first failure stops the run.
type step[S any] interface {
	Name() string
	MigratorID() string
	Execute(executionContext context.Context, state S) error
}

func runSteps[S any](executionContext context.Context, steps []step[S], state S) error {
	for stepIndex := range steps {
		current := steps[stepIndex]
		if contextError := executionContext.Err(); contextError != nil {
			return wrapStepError(current.Name(), current.MigratorID(), fmt.Errorf(cancelledStepTemplateConstant, current.Name(), contextError))
		}
		if executeError := current.Execute(executionContext, state); executeError != nil {
			return wrapStepError(current.Name(), current.MigratorID(), executeError)
		}
	}
	return nil
}

type exportState struct {
	subject     account.Account
	destination archive.ExportDestination
	progress    migrator.Progress
	manifest    archive.Manifest
}

type importState struct {
	source          archive.ImportSource
	progress        migrator.Progress
	targetAccountID string
	manifest        archive.Manifest
	record          account.Record
	settings        account.Settings
	subject         account.Account
}

type accountRecordExportStep struct{}

func (accountRecordExportStep) Name() string       { return stepExportAccountRecordConstant }
func (accountRecordExportStep) MigratorID() string { return migrator.CoreID }

func (accountRecordExportStep) Execute(_ context.Context, state *exportState) error {
	state.progress.Report(exportAccountProgressConstant)
	encodedRecord, encodeError := json.Marshal(account.NewRecord(state.subject))
	if encodeError != nil {
		return encodeError
	}
	return state.destination.AddContent(archive.AccountRecordPath, encodedRecord)
}

type settingsExportStep struct {
	settings account.SettingsStore
}

func (settingsExportStep) Name() string       { return stepExportSettingsConstant }
func (settingsExportStep) MigratorID() string { return migrator.CoreID }

func (exportStep settingsExportStep) Execute(executionContext context.Context, state *exportState) error {
	state.progress.Report(exportSettingsProgressConstant)
	values, readError := exportStep.settings.All(executionContext, state.subject.ID)
	if readError != nil {
		return readError
	}
	if values == nil {
		values = account.Settings{}
	}
	encodedSettings, encodeError := json.Marshal(values)
	if encodeError != nil {
		return encodeError
	}
	return state.destination.AddContent(SettingsPath, encodedSettings)
}

type provenanceExportStep struct {
	applicationVersion string
	registry           *migrator.Registry
	clock              func() time.Time
}

func (provenanceExportStep) Name() string       { return stepExportProvenanceConstant }
func (provenanceExportStep) MigratorID() string { return migrator.CoreID }

func (exportStep provenanceExportStep) Execute(_ context.Context, state *exportState) error {
	state.progress.Report(exportProvenanceProgressConstant)
	provenance := Provenance{
		Core:       exportStep.applicationVersion,
		ExportedAt: exportStep.clock().UTC().Format(time.RFC3339),
		Migrators:  make(map[string]int),
	}
	for _, registered := range exportStep.registry.All() {
		provenance.Migrators[registered.ID()] = registered.Version()
	}
	encodedProvenance, encodeError := json.Marshal(provenance)
	if encodeError != nil {
		return encodeError
	}
	return state.destination.AddContent(ProvenancePath, encodedProvenance)
}

type migratorExportStep struct {
	migrator migrator.Migrator
}

func (migratorExportStep) Name() string                  { return stepExportMigratorConstant }
func (exportStep migratorExportStep) MigratorID() string { return exportStep.migrator.ID() }

func (exportStep migratorExportStep) Execute(executionContext context.Context, state *exportState) error {
	state.progress.Report(fmt.Sprintf(exportMigratorTemplateConstant, exportStep.migrator.DisplayName()))
	if exportError := exportStep.migrator.Export(executionContext, state.subject, state.destination, state.progress); exportError != nil {
		return exportError
	}
	state.manifest[exportStep.migrator.ID()] = exportStep.migrator.Version()
	return nil
}

type manifestWriteStep struct{}

func (manifestWriteStep) Name() string       { return stepWriteManifestConstant }
func (manifestWriteStep) MigratorID() string { return "" }

func (manifestWriteStep) Execute(_ context.Context, state *exportState) error {
	return state.destination.SetManifest(state.manifest)
}

type finalizeStep struct{}

func (finalizeStep) Name() string       { return stepFinalizeArchiveConstant }
func (finalizeStep) MigratorID() string { return "" }

func (finalizeStep) Execute(_ context.Context, state *exportState) error {
	return state.destination.Finalize()
}

type manifestReadStep struct{}

func (manifestReadStep) Name() string       { return stepReadManifestConstant }
func (manifestReadStep) MigratorID() string { return "" }

func (manifestReadStep) Execute(_ context.Context, state *importState) error {
	manifest, manifestError := state.source.Manifest()
	if manifestError != nil {
		return manifestError
	}
	state.manifest = manifest
	return nil
}

// preflightStep verifies every participant before anything is mutated.
type preflightStep struct {
	coreVersioning migrator.BasicVersionHandling
	registry       *migrator.Registry
}

func (preflightStep) Name() string       { return stepPreflightConstant }
func (preflightStep) MigratorID() string { return "" }

func (preflight preflightStep) Execute(_ context.Context, state *importState) error {
	if !preflight.coreVersioning.CanImport(state.source) {
		return incompatibleMigratorError(state.manifest, migrator.CoreID, preflight.coreVersioning.Version())
	}
	for _, registered := range preflight.registry.All() {
		if registered.CanImport(state.source) {
			continue
		}
		return incompatibleMigratorError(state.manifest, registered.ID(), registered.Version())
	}
	return nil
}

func incompatibleMigratorError(manifest archive.Manifest, migratorID string, currentVersion int) error {
	incompatibility := IncompatibleVersionError{MigratorID: migratorID, ArchivedVersion: manifest.Version(migratorID), CurrentVersion: currentVersion}
	return MigrationError{Operation: stepPreflightConstant, MigratorID: migratorID, Cause: incompatibility}
}

// coreDataLoadStep decodes the core entries so malformed archives fail before any account is touched.
type coreDataLoadStep struct{}

func (coreDataLoadStep) Name() string       { return stepLoadCoreDataConstant }
func (coreDataLoadStep) MigratorID() string { return migrator.CoreID }

func (coreDataLoadStep) Execute(_ context.Context, state *importState) error {
	recordContent, recordError := state.source.Content(archive.AccountRecordPath)
	if recordError != nil {
		return recordError
	}
	var record account.Record
	if decodeError := json.Unmarshal(recordContent, &record); decodeError != nil {
		return archive.ReadError{Path: archive.AccountRecordPath, Cause: decodeError}
	}
	if len(record.UID) == 0 {
		return archive.ReadError{Path: archive.AccountRecordPath, Cause: archive.ErrInvalidAccountRecord}
	}
	state.record = record

	state.settings = account.Settings{}
	if !state.source.Exists(SettingsPath) {
		return nil
	}
	settingsContent, settingsError := state.source.Content(SettingsPath)
	if settingsError != nil {
		return settingsError
	}
	if decodeError := json.Unmarshal(settingsContent, &state.settings); decodeError != nil {
		return archive.ReadError{Path: SettingsPath, Cause: decodeError}
	}
	if state.settings == nil {
		state.settings = account.Settings{}
	}
	return nil
}

type accountImportStep struct {
	accounts account.Directory
}

func (accountImportStep) Name() string       { return stepImportAccountConstant }
func (accountImportStep) MigratorID() string { return migrator.CoreID }

func (importStep accountImportStep) Execute(executionContext context.Context, state *importState) error {
	state.progress.Report(importAccountProgressConstant)

	var (
		target       account.Account
		resolveError error
	)
	if len(state.targetAccountID) == 0 {
		target, resolveError = importStep.accounts.Create(executionContext, state.record.UID)
	} else {
		target, resolveError = importStep.accounts.Get(executionContext, state.targetAccountID)
		if errors.Is(resolveError, account.ErrAccountNotFound) {
			target, resolveError = importStep.accounts.Create(executionContext, state.targetAccountID)
		}
	}
	if resolveError != nil {
		return resolveError
	}

	updated := state.record.ApplyTo(target)
	if updateError := importStep.accounts.Update(executionContext, updated); updateError != nil {
		return updateError
	}
	state.subject = updated
	return nil
}

type settingsImportStep struct {
	settings account.SettingsStore
}

func (settingsImportStep) Name() string       { return stepImportSettingsConstant }
func (settingsImportStep) MigratorID() string { return migrator.CoreID }

func (importStep settingsImportStep) Execute(executionContext context.Context, state *importState) error {
	state.progress.Report(importSettingsProgressConstant)
	if state.settings.Count() == 0 {
		return nil
	}
	return importStep.settings.SetMany(executionContext, state.subject.ID, state.settings)
}

type migratorImportStep struct {
	migrator migrator.Migrator
}

func (migratorImportStep) Name() string                  { return stepImportMigratorConstant }
func (importStep migratorImportStep) MigratorID() string { return importStep.migrator.ID() }

func (importStep migratorImportStep) Execute(executionContext context.Context, state *importState) error {
	state.progress.Report(fmt.Sprintf(importMigratorTemplateConstant, importStep.migrator.DisplayName()))
	return importStep.migrator.Import(executionContext, state.subject, state.source, state.progress)
}
