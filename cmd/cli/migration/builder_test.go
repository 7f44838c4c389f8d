package migration_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/usermigration/cmd/cli/migration"
	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/bootstrap"
	internalmigration "github.com/temirov/usermigration/internal/migration"
	"github.com/temirov/usermigration/internal/storage"
	"github.com/temirov/usermigration/internal/utils"
)

const (
	testAccountConstant     = "alice"
	testSecondConstant      = "bob"
	testStorageRootConstant = "/srv/usermigration"
	testDocumentConstant    = "documents/notes.txt"
	testExportDirConstant   = "/exports"
)

var testClockInstant = time.Date(2024, time.May, 6, 7, 8, 9, 0, time.UTC)

type commandFixture struct {
	builder         *migration.CommandBuilder
	storage         afero.Fs
	localFilesystem afero.Fs
	openEnvironment func() *bootstrap.Environment
}

func newCommandFixture(testInstance *testing.T, quotaBytes int64) *commandFixture {
	testInstance.Helper()
	configuration := bootstrap.Configuration{
		Database:  bootstrap.DatabaseConfiguration{Dialect: "sqlite", DataSourceName: filepath.Join(testInstance.TempDir(), "usermigration.db")},
		Storage:   bootstrap.StorageConfiguration{Root: testStorageRootConstant, QuotaBytes: quotaBytes},
		Migration: bootstrap.MigrationConfiguration{ApplicationVersion: "1.0.0"},
		Worker:    bootstrap.WorkerConfiguration{Concurrency: 1, PollInterval: time.Second},
	}
	fixture := &commandFixture{storage: afero.NewMemMapFs(), localFilesystem: afero.NewMemMapFs()}
	options := bootstrap.Options{
		Filesystem: fixture.storage,
		Clock:      func() time.Time { return testClockInstant },
	}
	environmentProvider := func(executionContext context.Context, logger *zap.Logger) (*bootstrap.Environment, error) {
		environmentOptions := options
		environmentOptions.Logger = logger
		return bootstrap.Open(executionContext, configuration, environmentOptions)
	}
	fixture.builder = &migration.CommandBuilder{
		EnvironmentProvider: environmentProvider,
		LocalFilesystem:     fixture.localFilesystem,
	}
	fixture.openEnvironment = func() *bootstrap.Environment {
		environment, openError := environmentProvider(context.Background(), zap.NewNop())
		require.NoError(testInstance, openError)
		testInstance.Cleanup(func() {
			require.NoError(testInstance, environment.Close())
		})
		return environment
	}
	return fixture
}

func (fixture *commandFixture) run(testInstance *testing.T, outputFormat string, arguments ...string) (string, error) {
	testInstance.Helper()
	commands, buildError := fixture.builder.Build()
	require.NoError(testInstance, buildError)

	var selected *cobra.Command
	for _, command := range commands {
		if command.Name() == arguments[0] {
			selected = command
		}
	}
	require.NotNil(testInstance, selected)

	outputBuffer := &bytes.Buffer{}
	selected.SetOut(outputBuffer)
	selected.SetErr(&bytes.Buffer{})
	selected.SetArgs(arguments[1:])
	executionContext := utils.NewCommandContextAccessor().WithOutputFormat(context.Background(), outputFormat)
	executionError := selected.ExecuteContext(executionContext)
	return outputBuffer.String(), executionError
}

func (fixture *commandFixture) createAccount(testInstance *testing.T, accountID string, documentContent string) {
	testInstance.Helper()
	_, executionError := fixture.run(testInstance, migration.OutputFormatText, "accounts", "add", accountID)
	require.NoError(testInstance, executionError)
	if len(documentContent) == 0 {
		return
	}
	accountFilesystem, filesystemError := fixture.openEnvironment().Storage.AccountFilesystem(accountID)
	require.NoError(testInstance, filesystemError)
	require.NoError(testInstance, afero.WriteFile(accountFilesystem, testDocumentConstant, []byte(documentContent), 0o644))
}

func TestBuildRequiresEnvironmentProvider(testInstance *testing.T) {
	builder := migration.CommandBuilder{}
	_, buildError := builder.Build()
	require.ErrorIs(testInstance, buildError, migration.ErrEnvironmentProviderMissing)
}

func TestMigratorsCommand(testInstance *testing.T) {
	testCases := []struct {
		name           string
		outputFormat   string
		arguments      []string
		expectedOutput string
	}{
		{name: "identifiers", outputFormat: migration.OutputFormatText, arguments: []string{"migrators"}, expectedOutput: "files\n"},
		{name: "yaml_identifiers", outputFormat: migration.OutputFormatYAML, arguments: []string{"migrators"}, expectedOutput: "migrators:\n  - files\n"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			fixture := newCommandFixture(subTestInstance, storage.UnlimitedSpace)
			output, executionError := fixture.run(subTestInstance, testCase.outputFormat, testCase.arguments...)
			require.NoError(subTestInstance, executionError)
			require.Equal(subTestInstance, testCase.expectedOutput, output)
		})
	}
}

func TestMigratorsCommandFullListing(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, storage.UnlimitedSpace)
	output, executionError := fixture.run(testInstance, migration.OutputFormatText, "migrators", "--full")
	require.NoError(testInstance, executionError)
	require.True(testInstance, strings.HasPrefix(output, "files\t"))
	require.Contains(testInstance, output, "(version ")
}

func TestEstimateAndCheckCommands(testInstance *testing.T) {
	testCases := []struct {
		name           string
		quotaBytes     int64
		arguments      []string
		expectedOutput string
		expectedError  bool
	}{
		{name: "estimate_all", quotaBytes: storage.UnlimitedSpace, arguments: []string{"estimate", "-a", testAccountConstant}, expectedOutput: "alice: estimated export size 101 KiB\n"},
		{name: "estimate_core_only", quotaBytes: storage.UnlimitedSpace, arguments: []string{"estimate", "-a", testAccountConstant, "--migrators", ""}, expectedOutput: "alice: estimated export size 100 KiB\n"},
		{name: "check_unlimited", quotaBytes: storage.UnlimitedSpace, arguments: []string{"check", "-a", testAccountConstant}, expectedOutput: "alice: export of 101 KiB fits, storage is unlimited\n"},
		{name: "check_too_small", quotaBytes: 4096, arguments: []string{"check", "-a", testAccountConstant}, expectedError: true},
		{name: "unknown_migrator", quotaBytes: storage.UnlimitedSpace, arguments: []string{"estimate", "-a", testAccountConstant, "--migrators", "calendar"}, expectedError: true},
		{name: "unknown_account", quotaBytes: storage.UnlimitedSpace, arguments: []string{"estimate", "-a", testSecondConstant}, expectedError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTestInstance *testing.T) {
			fixture := newCommandFixture(subTestInstance, testCase.quotaBytes)
			fixture.createAccount(subTestInstance, testAccountConstant, strings.Repeat("x", 1024))

			output, executionError := fixture.run(subTestInstance, migration.OutputFormatText, testCase.arguments...)
			if testCase.expectedError {
				require.Error(subTestInstance, executionError)
				return
			}
			require.NoError(subTestInstance, executionError)
			require.Equal(subTestInstance, testCase.expectedOutput, output)
		})
	}
}

func TestCheckCommandReportsMissingSpace(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, 4096)
	fixture.createAccount(testInstance, testAccountConstant, "")

	_, executionError := fixture.run(testInstance, migration.OutputFormatText, "check", "-a", testAccountConstant)
	var notExportableError internalmigration.NotExportableError
	require.ErrorAs(testInstance, executionError, &notExportableError)
	require.Equal(testInstance, internalmigration.CoreExportOverheadBytes, notExportableError.RequiredBytes)
}

func TestQueuedJobCommands(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, storage.UnlimitedSpace)
	fixture.createAccount(testInstance, testAccountConstant, "draft")

	output, executionError := fixture.run(testInstance, migration.OutputFormatYAML, "export", "-a", testAccountConstant, "--migrators", "files")
	require.NoError(testInstance, executionError)
	var queued struct {
		JobID     string `yaml:"job_id"`
		Kind      string `yaml:"kind"`
		AccountID string `yaml:"account_id"`
		Migrators string `yaml:"migrators"`
	}
	require.NoError(testInstance, yaml.Unmarshal([]byte(output), &queued))
	require.NotEmpty(testInstance, queued.JobID)
	require.Equal(testInstance, "export", queued.Kind)
	require.Equal(testInstance, testAccountConstant, queued.AccountID)
	require.Equal(testInstance, "files", queued.Migrators)

	output, executionError = fixture.run(testInstance, migration.OutputFormatText, "status", "-a", testAccountConstant)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, fmt.Sprintf("alice: exporting (waiting) job %s, migrators files\n", queued.JobID), output)

	output, executionError = fixture.run(testInstance, migration.OutputFormatText, "cancel", "-a", testAccountConstant)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, fmt.Sprintf("cancelled export job %s for alice\n", queued.JobID), output)

	_, executionError = fixture.run(testInstance, migration.OutputFormatText, "cancel", "-a", testAccountConstant)
	require.Error(testInstance, executionError)

	output, executionError = fixture.run(testInstance, migration.OutputFormatText, "worker", "--once")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "processed 0 queued job(s)\n", output)
}

func TestQueuedExportThenImportThroughWorker(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, storage.UnlimitedSpace)
	fixture.createAccount(testInstance, testAccountConstant, "draft")

	_, executionError := fixture.run(testInstance, migration.OutputFormatText, "export", "-a", testAccountConstant)
	require.NoError(testInstance, executionError)
	output, executionError := fixture.run(testInstance, migration.OutputFormatText, "worker", "--once")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "processed 1 queued job(s)\n", output)

	output, executionError = fixture.run(testInstance, migration.OutputFormatText, "import", storage.ArtifactPath(), "-a", testAccountConstant)
	require.NoError(testInstance, executionError)
	require.True(testInstance, strings.HasPrefix(output, "queued import job "))

	_, executionError = fixture.run(testInstance, migration.OutputFormatText, "worker", "--once")
	require.NoError(testInstance, executionError)

	output, executionError = fixture.run(testInstance, migration.OutputFormatText, "notifications", "-a", testAccountConstant)
	require.NoError(testInstance, executionError)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(testInstance, lines, 2)
	require.Contains(testInstance, output, "\texportDone\t")
	require.Contains(testInstance, output, "\timportDone\t")
}

func TestImmediateExportAndImport(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, storage.UnlimitedSpace)
	fixture.createAccount(testInstance, testAccountConstant, "final report")

	output, executionError := fixture.run(testInstance, migration.OutputFormatText, "export", "-a", testAccountConstant, "--now", "--output-dir", testExportDirConstant)
	require.NoError(testInstance, executionError)
	expectedArchivePath := testExportDirConstant + "/" + internalmigration.ExportFileName(testAccountConstant, testClockInstant)
	require.Equal(testInstance, fmt.Sprintf("exported alice to %s\n", expectedArchivePath), output)

	archiveExists, existsError := afero.Exists(fixture.localFilesystem, expectedArchivePath)
	require.NoError(testInstance, existsError)
	require.True(testInstance, archiveExists)

	_, executionError = fixture.run(testInstance, migration.OutputFormatText, "import", expectedArchivePath, "--now")
	require.ErrorIs(testInstance, executionError, account.ErrAccountExists)

	output, executionError = fixture.run(testInstance, migration.OutputFormatText, "import", expectedArchivePath, "--now", "-a", testSecondConstant)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, fmt.Sprintf("imported %s into bob\n", expectedArchivePath), output)

	restoredFilesystem, filesystemError := fixture.openEnvironment().Storage.AccountFilesystem(testSecondConstant)
	require.NoError(testInstance, filesystemError)
	restoredContent, readError := afero.ReadFile(restoredFilesystem, testDocumentConstant)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "final report", string(restoredContent))

	output, executionError = fixture.run(testInstance, migration.OutputFormatYAML, "accounts", "list")
	require.NoError(testInstance, executionError)
	var listed struct {
		Accounts []struct {
			ID string `yaml:"id"`
		} `yaml:"accounts"`
	}
	require.NoError(testInstance, yaml.Unmarshal([]byte(output), &listed))
	require.Len(testInstance, listed.Accounts, 2)
}

func TestAccountsAddRejectsDuplicates(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, storage.UnlimitedSpace)
	fixture.createAccount(testInstance, testAccountConstant, "")

	_, executionError := fixture.run(testInstance, migration.OutputFormatText, "accounts", "add", testAccountConstant)
	require.Error(testInstance, executionError)

	environment := fixture.openEnvironment()
	accounts, listError := environment.Accounts.List(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, accounts, 1)
}
