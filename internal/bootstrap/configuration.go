package bootstrap

import (
	"strings"
	"time"

	"github.com/temirov/usermigration/internal/storage"
	pathutils "github.com/temirov/usermigration/internal/utils/path"
)

var configurationHomeDirectoryExpander = pathutils.NewHomeExpander()

const (
	databaseDialectKeyConstant        = "database.dialect"
	databaseDataSourceKeyConstant     = "database.dsn"
	storageRootKeyConstant            = "storage.root"
	storageQuotaKeyConstant           = "storage.quota_bytes"
	applicationVersionKeyConstant     = "migration.application_version"
	filesExcludePatternsKeyConstant   = "migration.files.exclude_patterns"
	workerConcurrencyKeyConstant      = "worker.concurrency"
	workerPollIntervalKeyConstant     = "worker.poll_interval"
	defaultDatabaseDialectConstant    = "sqlite"
	defaultDatabaseDataSourceConstant = "~/.usermigration/usermigration.db"
	defaultStorageRootConstant        = "~/.usermigration/data"
	defaultApplicationVersionConstant = "1.0.0"
	defaultWorkerConcurrencyConstant  = 4
	defaultWorkerPollIntervalConstant = 5 * time.Second
)

// Configuration aggregates the runtime settings of the migration tooling.
type Configuration struct {
	Database  DatabaseConfiguration  `mapstructure:"database"`
	Storage   StorageConfiguration   `mapstructure:"storage"`
	Migration MigrationConfiguration `mapstructure:"migration"`
	Worker    WorkerConfiguration    `mapstructure:"worker"`
}

// DatabaseConfiguration selects the SQL backend.
type DatabaseConfiguration struct {
	Dialect        string `mapstructure:"dialect"`
	DataSourceName string `mapstructure:"dsn"`
}

// StorageConfiguration locates account storage. A negative quota means unlimited.
type StorageConfiguration struct {
	Root       string `mapstructure:"root"`
	QuotaBytes int64  `mapstructure:"quota_bytes"`
}

// MigrationConfiguration configures the orchestrator and the built-in migrators.
type MigrationConfiguration struct {
	ApplicationVersion string                     `mapstructure:"application_version"`
	Files              FilesMigratorConfiguration `mapstructure:"files"`
}

// FilesMigratorConfiguration configures the files migrator.
type FilesMigratorConfiguration struct {
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
}

// WorkerConfiguration tunes the background worker.
type WorkerConfiguration struct {
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DefaultConfigurationValues supplies baseline values keyed by their configuration path.
func DefaultConfigurationValues() map[string]any {
	return map[string]any{
		databaseDialectKeyConstant:      defaultDatabaseDialectConstant,
		databaseDataSourceKeyConstant:   defaultDatabaseDataSourceConstant,
		storageRootKeyConstant:          defaultStorageRootConstant,
		storageQuotaKeyConstant:         storage.UnlimitedSpace,
		applicationVersionKeyConstant:   defaultApplicationVersionConstant,
		filesExcludePatternsKeyConstant: []string{},
		workerConcurrencyKeyConstant:    defaultWorkerConcurrencyConstant,
		workerPollIntervalKeyConstant:   defaultWorkerPollIntervalConstant,
	}
}

// Sanitize trims values, expands home directory shortcuts, and drops empty patterns.
func (configuration Configuration) Sanitize() Configuration {
	sanitized := configuration
	sanitized.Database.Dialect = strings.TrimSpace(configuration.Database.Dialect)
	sanitized.Database.DataSourceName = configurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.Database.DataSourceName))
	sanitized.Storage.Root = configurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.Storage.Root))
	sanitized.Migration.ApplicationVersion = strings.TrimSpace(configuration.Migration.ApplicationVersion)
	sanitized.Migration.Files.ExcludePatterns = sanitizePatterns(configuration.Migration.Files.ExcludePatterns)
	if sanitized.Worker.Concurrency <= 0 {
		sanitized.Worker.Concurrency = defaultWorkerConcurrencyConstant
	}
	if sanitized.Worker.PollInterval <= 0 {
		sanitized.Worker.PollInterval = defaultWorkerPollIntervalConstant
	}
	return sanitized
}

func sanitizePatterns(candidatePatterns []string) []string {
	sanitizedPatterns := make([]string, 0, len(candidatePatterns))
	for _, candidatePattern := range candidatePatterns {
		trimmedPattern := strings.TrimSpace(candidatePattern)
		if len(trimmedPattern) == 0 {
			continue
		}
		sanitizedPatterns = append(sanitizedPatterns, trimmedPattern)
	}
	if len(sanitizedPatterns) == 0 {
		return nil
	}
	return sanitizedPatterns
}
