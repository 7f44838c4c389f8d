package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/db"
	"github.com/temirov/usermigration/internal/db/driver"
	"github.com/temirov/usermigration/internal/jobs"
	"github.com/temirov/usermigration/internal/migration"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/migrator/files"
	"github.com/temirov/usermigration/internal/notify"
	"github.com/temirov/usermigration/internal/storage"
	"github.com/temirov/usermigration/internal/ui"
)

const (
	openDatabaseTemplateConstant   = "unable to open database: %w"
	openStorageTemplateConstant    = "unable to open account storage: %w"
	buildMigratorsTemplateConstant = "unable to register migrators: %w"
	buildServiceTemplateConstant   = "unable to construct migration service: %w"
	buildRunnerTemplateConstant    = "unable to construct job runner: %w"
	buildTrackerTemplateConstant   = "unable to construct job tracker: %w"
	buildNotifierTemplateConstant  = "unable to construct notifier: %w"
	buildWorkerTemplateConstant    = "unable to construct worker: %w"
	logMessageEnvironmentConstant  = "migration environment ready"
	logFieldDialectConstant        = "dialect"
	logFieldStorageRootConstant    = "storage_root"
	logFieldMigratorsConstant      = "migrators"
)

// Options carries the collaborators an Environment may share with its caller.
// A nil filesystem means the operating system filesystem. ExtraMigrators run
// after the built-in files migrator. HumanReadableEvents reports job outcomes as
// console sentences instead of structured fields.
type Options struct {
	Filesystem          afero.Fs
	Logger              *zap.Logger
	Clock               func() time.Time
	ExtraMigrators      []migrator.Migrator
	HumanReadableEvents bool
}

// Environment is the assembled migration runtime.
type Environment struct {
	Database      *db.DB
	Accounts      *db.AccountStore
	Settings      *db.SettingsStore
	Storage       *storage.Provider
	Registry      *migrator.Registry
	Service       *migration.Service
	Runner        *migration.JobRunner
	Tracker       *jobs.Tracker
	Notifications *notify.PersistentNotifier
	Worker        *jobs.Worker
	Logger        *zap.Logger
}

// Open connects to the configured database and wires every component on top of it.
func Open(executionContext context.Context, configuration Configuration, options Options) (*Environment, error) {
	sanitized := configuration.Sanitize()
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialect, dialectError := driver.ParseDialect(sanitized.Database.Dialect)
	if dialectError != nil {
		return nil, fmt.Errorf(openDatabaseTemplateConstant, dialectError)
	}
	database, databaseError := db.Open(executionContext, dialect, sanitized.Database.DataSourceName)
	if databaseError != nil {
		return nil, fmt.Errorf(openDatabaseTemplateConstant, databaseError)
	}

	environment, assembleError := assemble(database, sanitized, options, logger)
	if assembleError != nil {
		return nil, multierr.Append(assembleError, database.Close())
	}

	logger.Debug(
		logMessageEnvironmentConstant,
		zap.String(logFieldDialectConstant, string(dialect)),
		zap.String(logFieldStorageRootConstant, sanitized.Storage.Root),
		zap.Strings(logFieldMigratorsConstant, environment.Registry.IDs()),
	)
	return environment, nil
}

// Close releases the database.
func (environment *Environment) Close() error {
	if environment == nil || environment.Database == nil {
		return nil
	}
	return environment.Database.Close()
}

func assemble(database *db.DB, configuration Configuration, options Options, logger *zap.Logger) (*Environment, error) {
	accounts := db.NewAccountStore(database)
	settings := db.NewSettingsStore(database)

	storageProvider, storageError := storage.NewProvider(options.Filesystem, configuration.Storage.Root, configuration.Storage.QuotaBytes)
	if storageError != nil {
		return nil, fmt.Errorf(openStorageTemplateConstant, storageError)
	}

	filesMigrator, filesError := files.NewMigrator(files.Dependencies{
		Storage:         storageProvider,
		ExcludePatterns: configuration.Migration.Files.ExcludePatterns,
		Logger:          logger,
	})
	if filesError != nil {
		return nil, fmt.Errorf(buildMigratorsTemplateConstant, filesError)
	}
	registeredMigrators := append([]migrator.Migrator{filesMigrator}, options.ExtraMigrators...)
	registry, registryError := migrator.NewRegistry(registeredMigrators...)
	if registryError != nil {
		return nil, fmt.Errorf(buildMigratorsTemplateConstant, registryError)
	}

	service, serviceError := migration.NewService(migration.ServiceDependencies{
		Registry:           registry,
		Accounts:           accounts,
		Settings:           settings,
		Space:              storageProvider,
		ApplicationVersion: configuration.Migration.ApplicationVersion,
		Logger:             logger,
		Clock:              options.Clock,
	})
	if serviceError != nil {
		return nil, fmt.Errorf(buildServiceTemplateConstant, serviceError)
	}

	runner, runnerError := migration.NewJobRunner(migration.JobRunnerDependencies{
		Service:  service,
		Storage:  storageProvider,
		Accounts: accounts,
		Settings: settings,
		Logger:   logger,
		Clock:    options.Clock,
	})
	if runnerError != nil {
		return nil, fmt.Errorf(buildRunnerTemplateConstant, runnerError)
	}

	tracker, trackerError := jobs.NewTracker(jobs.TrackerDependencies{
		Store:     db.NewJobStore(database),
		Queue:     db.NewTaskQueue(database),
		Migrators: registry,
		Logger:    logger,
		Clock:     options.Clock,
	})
	if trackerError != nil {
		return nil, fmt.Errorf(buildTrackerTemplateConstant, trackerError)
	}

	notifications, notificationsError := notify.NewPersistentNotifier(db.NewNotificationStore(database))
	if notificationsError != nil {
		return nil, fmt.Errorf(buildNotifierTemplateConstant, notificationsError)
	}

	worker, workerError := jobs.NewWorker(jobs.WorkerDependencies{
		Tracker:      tracker,
		Runner:       runner,
		Notifier:     notify.NewMulti(eventLogger(logger, options.HumanReadableEvents), notifications),
		Logger:       logger,
		Concurrency:  configuration.Worker.Concurrency,
		PollInterval: configuration.Worker.PollInterval,
		Clock:        options.Clock,
	})
	if workerError != nil {
		return nil, fmt.Errorf(buildWorkerTemplateConstant, workerError)
	}

	return &Environment{
		Database:      database,
		Accounts:      accounts,
		Settings:      settings,
		Storage:       storageProvider,
		Registry:      registry,
		Service:       service,
		Runner:        runner,
		Tracker:       tracker,
		Notifications: notifications,
		Worker:        worker,
		Logger:        logger,
	}, nil
}

func eventLogger(logger *zap.Logger, humanReadable bool) notify.Notifier {
	if humanReadable {
		return ui.NewConsoleEventNotifier(logger)
	}
	return notify.NewLoggingNotifier(logger)
}
