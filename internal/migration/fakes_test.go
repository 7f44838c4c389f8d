package migration_test

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/archive"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/migrator/files"
	"github.com/temirov/usermigration/internal/migration"
	"github.com/temirov/usermigration/internal/storage"
)

const (
	testStorageRootConstant        = "/data"
	testApplicationVersionConstant = "1.2.3"
	testFakePayloadConstant        = "payload"
)

var testClockInstant = time.Date(2024, time.March, 5, 6, 7, 8, 0, time.UTC)

func testClock() time.Time {
	return testClockInstant
}

type memoryDirectory struct {
	accounts map[string]account.Account
	created  []string
	updated  []string
}

func newMemoryDirectory(accounts ...account.Account) *memoryDirectory {
	directory := &memoryDirectory{accounts: make(map[string]account.Account)}
	for _, existing := range accounts {
		directory.accounts[existing.ID] = existing
	}
	return directory
}

func (directory *memoryDirectory) Get(_ context.Context, accountID string) (account.Account, error) {
	existing, exists := directory.accounts[accountID]
	if !exists {
		return account.Account{}, account.ErrAccountNotFound
	}
	return existing, nil
}

func (directory *memoryDirectory) Create(_ context.Context, accountID string) (account.Account, error) {
	if _, exists := directory.accounts[accountID]; exists {
		return account.Account{}, account.ErrAccountExists
	}
	created := account.Account{ID: accountID, Enabled: true}
	directory.accounts[accountID] = created
	directory.created = append(directory.created, accountID)
	return created, nil
}

func (directory *memoryDirectory) Update(_ context.Context, updated account.Account) error {
	if _, exists := directory.accounts[updated.ID]; !exists {
		return account.ErrAccountNotFound
	}
	directory.accounts[updated.ID] = updated
	directory.updated = append(directory.updated, updated.ID)
	return nil
}

type memorySettings struct {
	values       map[string]account.Settings
	setManyCalls int
}

func newMemorySettings() *memorySettings {
	return &memorySettings{values: make(map[string]account.Settings)}
}

func (store *memorySettings) All(_ context.Context, accountID string) (account.Settings, error) {
	stored := account.Settings{}
	for application, values := range store.values[accountID] {
		for key, value := range values {
			stored.Set(application, key, value)
		}
	}
	return stored, nil
}

func (store *memorySettings) SetMany(_ context.Context, accountID string, values account.Settings) error {
	store.setManyCalls++
	stored, exists := store.values[accountID]
	if !exists {
		stored = account.Settings{}
		store.values[accountID] = stored
	}
	for application, applicationValues := range values {
		for key, value := range applicationValues {
			stored.Set(application, key, value)
		}
	}
	return nil
}

type fakeMigrator struct {
	migrator.BasicVersionHandling
	exportError   error
	estimateBytes int64
	estimateError error
	exported      []string
	imported      []string
}

func newFakeMigrator(migratorID string, version int) *fakeMigrator {
	return &fakeMigrator{BasicVersionHandling: migrator.BasicVersionHandling{MigratorID: migratorID, CurrentVersion: version}}
}

func (fake *fakeMigrator) ID() string          { return fake.MigratorID }
func (fake *fakeMigrator) DisplayName() string { return fake.MigratorID }
func (fake *fakeMigrator) Description() string { return "test migrator " + fake.MigratorID }

func (fake *fakeMigrator) Export(_ context.Context, subject account.Account, destination archive.ExportDestination, _ migrator.Progress) error {
	if fake.exportError != nil {
		return fake.exportError
	}
	fake.exported = append(fake.exported, subject.ID)
	return destination.AddContent(fake.MigratorID+"/data.txt", []byte(testFakePayloadConstant))
}

func (fake *fakeMigrator) Import(_ context.Context, subject account.Account, source archive.ImportSource, _ migrator.Progress) error {
	if !source.MigratorVersion(fake.MigratorID).IsPresent() {
		return nil
	}
	fake.imported = append(fake.imported, subject.ID)
	return nil
}

func (fake *fakeMigrator) EstimateExportSize(_ context.Context, _ account.Account) (int64, error) {
	return fake.estimateBytes, fake.estimateError
}

type recordingDestination struct {
	entries         map[string][]byte
	manifest        archive.Manifest
	manifestWritten bool
	finalized       bool
}

func newRecordingDestination() *recordingDestination {
	return &recordingDestination{entries: make(map[string][]byte)}
}

func (destination *recordingDestination) AddContent(entryPath string, content []byte) error {
	destination.entries[entryPath] = append([]byte(nil), content...)
	return nil
}

func (destination *recordingDestination) AddStream(entryPath string, content io.Reader) error {
	payload, readError := io.ReadAll(content)
	if readError != nil {
		return readError
	}
	destination.entries[entryPath] = payload
	return nil
}

func (destination *recordingDestination) CopyTree(afero.Fs, string, string, archive.EntryFilter) error {
	return nil
}

func (destination *recordingDestination) SetManifest(manifest archive.Manifest) error {
	destination.manifest = manifest.Clone()
	destination.manifestWritten = true
	return nil
}

func (destination *recordingDestination) Finalize() error {
	destination.finalized = true
	return nil
}

func (destination *recordingDestination) Path() string {
	return "recording.zip"
}

type fakeSpace struct {
	freeBytes     int64
	artifactBytes int64
}

func (space fakeSpace) FreeSpace(string) (int64, error)    { return space.freeBytes, nil }
func (space fakeSpace) ArtifactSize(string) (int64, error) { return space.artifactBytes, nil }

type installation struct {
	provider  *storage.Provider
	directory *memoryDirectory
	settings  *memorySettings
	registry  *migrator.Registry
	service   *migration.Service
}

func newInstallation(testInstance *testing.T, space migration.SpaceReporter, extraMigrators ...migrator.Migrator) *installation {
	testInstance.Helper()
	provider, providerError := storage.NewProvider(afero.NewMemMapFs(), testStorageRootConstant, storage.UnlimitedSpace)
	require.NoError(testInstance, providerError)

	filesMigrator, filesError := files.NewMigrator(files.Dependencies{Storage: provider})
	require.NoError(testInstance, filesError)

	registry, registryError := migrator.NewRegistry(append([]migrator.Migrator{filesMigrator}, extraMigrators...)...)
	require.NoError(testInstance, registryError)

	return newInstallationWithRegistry(testInstance, provider, registry, space)
}

func newInstallationWithRegistry(testInstance *testing.T, provider *storage.Provider, registry *migrator.Registry, space migration.SpaceReporter) *installation {
	testInstance.Helper()
	directory := newMemoryDirectory()
	settings := newMemorySettings()
	service, serviceError := migration.NewService(migration.ServiceDependencies{
		Registry:           registry,
		Accounts:           directory,
		Settings:           settings,
		Space:              space,
		ApplicationVersion: testApplicationVersionConstant,
		Clock:              testClock,
	})
	require.NoError(testInstance, serviceError)
	return &installation{provider: provider, directory: directory, settings: settings, registry: registry, service: service}
}

func (environment *installation) accountFilesystem(testInstance *testing.T, accountID string) afero.Fs {
	testInstance.Helper()
	accountFilesystem, filesystemError := environment.provider.AccountFilesystem(accountID)
	require.NoError(testInstance, filesystemError)
	return accountFilesystem
}

func listRegularFiles(testInstance *testing.T, filesystem afero.Fs) []string {
	testInstance.Helper()
	var regularFiles []string
	walkError := afero.Walk(filesystem, "/", func(currentPath string, info fs.FileInfo, visitError error) error {
		if visitError != nil {
			return visitError
		}
		if info.Mode().IsRegular() {
			regularFiles = append(regularFiles, filepath.ToSlash(currentPath))
		}
		return nil
	})
	require.NoError(testInstance, walkError)
	sort.Strings(regularFiles)
	return regularFiles
}
