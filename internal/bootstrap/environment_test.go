package bootstrap_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/jobs"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/notify"
	"github.com/temirov/usermigration/internal/storage"
)

const (
	testAccountConstant     = "alice"
	testStorageRootConstant = "/srv/usermigration"
	testDocumentConstant    = "documents/report.txt"
)

var testClockInstant = time.Date(2024, time.April, 2, 10, 0, 0, 0, time.UTC)

func openTestEnvironment(testInstance *testing.T) (*bootstrap.Environment, afero.Fs) {
	testInstance.Helper()
	configuration := bootstrap.Configuration{
		Database: bootstrap.DatabaseConfiguration{
			Dialect:        "sqlite",
			DataSourceName: filepath.Join(testInstance.TempDir(), "usermigration.db"),
		},
		Storage: bootstrap.StorageConfiguration{
			Root:       testStorageRootConstant,
			QuotaBytes: storage.UnlimitedSpace,
		},
		Migration: bootstrap.MigrationConfiguration{ApplicationVersion: "1.0.0"},
		Worker:    bootstrap.WorkerConfiguration{Concurrency: 1, PollInterval: time.Second},
	}
	filesystem := afero.NewMemMapFs()
	environment, openError := bootstrap.Open(context.Background(), configuration, bootstrap.Options{
		Filesystem: filesystem,
		Clock:      func() time.Time { return testClockInstant },
	})
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() {
		require.NoError(testInstance, environment.Close())
	})
	return environment, filesystem
}

func TestOpenRegistersBuiltInMigrators(testInstance *testing.T) {
	environment, _ := openTestEnvironment(testInstance)
	require.Equal(testInstance, []string{"files"}, environment.Registry.IDs())
}

func TestOpenRejectsUnknownDialect(testInstance *testing.T) {
	configuration := bootstrap.Configuration{Database: bootstrap.DatabaseConfiguration{Dialect: "oracle", DataSourceName: "db"}}
	_, openError := bootstrap.Open(context.Background(), configuration, bootstrap.Options{Filesystem: afero.NewMemMapFs()})
	require.Error(testInstance, openError)
}

func TestQueuedExportAndImportRunThroughWorker(testInstance *testing.T) {
	environment, _ := openTestEnvironment(testInstance)
	executionContext := context.Background()

	_, createError := environment.Accounts.Create(executionContext, testAccountConstant)
	require.NoError(testInstance, createError)
	accountFilesystem, filesystemError := environment.Storage.AccountFilesystem(testAccountConstant)
	require.NoError(testInstance, filesystemError)
	require.NoError(testInstance, afero.WriteFile(accountFilesystem, testDocumentConstant, []byte("quarterly numbers"), 0o644))

	exportJob, exportError := environment.Tracker.QueueExport(executionContext, testAccountConstant, migrator.SelectAll())
	require.NoError(testInstance, exportError)

	report, reportError := environment.Tracker.Status(executionContext, testAccountConstant)
	require.NoError(testInstance, reportError)
	require.Equal(testInstance, jobs.StateExporting, report.State)

	processed, processError := environment.Worker.ProcessPending(executionContext)
	require.NoError(testInstance, processError)
	require.Equal(testInstance, 1, processed)

	artifactExists, existsError := afero.Exists(accountFilesystem, storage.ArtifactPath())
	require.NoError(testInstance, existsError)
	require.True(testInstance, artifactExists)

	require.NoError(testInstance, accountFilesystem.Remove(testDocumentConstant))
	importJob, importError := environment.Tracker.QueueImport(executionContext, testAccountConstant, "", storage.ArtifactPath())
	require.NoError(testInstance, importError)

	processed, processError = environment.Worker.ProcessPending(executionContext)
	require.NoError(testInstance, processError)
	require.Equal(testInstance, 1, processed)

	restoredContent, readError := afero.ReadFile(accountFilesystem, testDocumentConstant)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "quarterly numbers", string(restoredContent))

	events, listError := environment.Notifications.List(executionContext, testAccountConstant, 10)
	require.NoError(testInstance, listError)
	require.Len(testInstance, events, 2)

	eventsByJob := map[string]notify.Event{}
	for _, event := range events {
		eventsByJob[event.JobID] = event
	}
	require.Equal(testInstance, notify.EventExportDone, eventsByJob[exportJob.ID].Type)
	require.Equal(testInstance, []string{"files"}, eventsByJob[exportJob.ID].Migrators)
	require.Equal(testInstance, notify.EventImportDone, eventsByJob[importJob.ID].Type)
	require.Equal(testInstance, testAccountConstant, eventsByJob[importJob.ID].TargetAccountID)

	report, reportError = environment.Tracker.Status(executionContext, testAccountConstant)
	require.NoError(testInstance, reportError)
	require.Equal(testInstance, jobs.StateNone, report.State)
}

func TestConfigurationSanitize(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    bootstrap.Configuration
		expected bootstrap.Configuration
	}{
		{
			name: "trims_and_defaults",
			input: bootstrap.Configuration{
				Database:  bootstrap.DatabaseConfiguration{Dialect: " postgres ", DataSourceName: " postgres://localhost/app "},
				Storage:   bootstrap.StorageConfiguration{Root: " /srv/data ", QuotaBytes: 1024},
				Migration: bootstrap.MigrationConfiguration{ApplicationVersion: " 2.1.0 ", Files: bootstrap.FilesMigratorConfiguration{ExcludePatterns: []string{" ", "**/*.tmp "}}},
			},
			expected: bootstrap.Configuration{
				Database:  bootstrap.DatabaseConfiguration{Dialect: "postgres", DataSourceName: "postgres://localhost/app"},
				Storage:   bootstrap.StorageConfiguration{Root: "/srv/data", QuotaBytes: 1024},
				Migration: bootstrap.MigrationConfiguration{ApplicationVersion: "2.1.0", Files: bootstrap.FilesMigratorConfiguration{ExcludePatterns: []string{"**/*.tmp"}}},
				Worker:    bootstrap.WorkerConfiguration{Concurrency: 4, PollInterval: 5 * time.Second},
			},
		},
		{
			name: "keeps_worker_settings",
			input: bootstrap.Configuration{
				Storage: bootstrap.StorageConfiguration{QuotaBytes: storage.UnlimitedSpace},
				Worker:  bootstrap.WorkerConfiguration{Concurrency: 2, PollInterval: time.Minute},
			},
			expected: bootstrap.Configuration{
				Storage: bootstrap.StorageConfiguration{QuotaBytes: storage.UnlimitedSpace},
				Worker:  bootstrap.WorkerConfiguration{Concurrency: 2, PollInterval: time.Minute},
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			require.Equal(subTestInstance, testCase.expected, testCase.input.Sanitize())
		})
	}
}

func TestDefaultConfigurationValues(testInstance *testing.T) {
	defaults := bootstrap.DefaultConfigurationValues()
	require.Equal(testInstance, "sqlite", defaults["database.dialect"])
	require.Equal(testInstance, storage.UnlimitedSpace, defaults["storage.quota_bytes"])
	require.Equal(testInstance, 5*time.Second, defaults["worker.poll_interval"])
}
