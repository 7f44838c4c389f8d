package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/utils"
	flagutils "github.com/temirov/usermigration/internal/utils/flags"
)

const (
	environmentProviderMissingMessageConstant = "migration environment provider is not configured"
	openEnvironmentTemplateConstant           = "unable to open migration environment: %w"
	accountRequiredMessageConstant            = "an account identifier is required (--account)"
	lookupAccountTemplateConstant             = "unable to resolve account %s: %w"
	progressFieldAccountIDConstant            = "account_id"
	progressFieldMessageConstant              = "message"
	selectionSeparatorConstant                = ","
	logMessageProgressConstant                = "migration progress"
)

var (
	// ErrEnvironmentProviderMissing reports a builder without an environment provider.
	ErrEnvironmentProviderMissing = errors.New(environmentProviderMissingMessageConstant)
	// ErrAccountRequired reports a command invoked without --account.
	ErrAccountRequired = errors.New(accountRequiredMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// EnvironmentProvider opens the migration runtime. Commands close the environment when they finish.
type EnvironmentProvider func(executionContext context.Context, logger *zap.Logger) (*bootstrap.Environment, error)

// CommandBuilder assembles the migration commands. LocalFilesystem backs the immediate
// export and import modes, which read and write archives outside account storage; nil
// means the operating system filesystem.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	EnvironmentProvider          EnvironmentProvider
	HumanReadableLoggingProvider func() bool
	LocalFilesystem              afero.Fs
}

// Build constructs every migration command.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	if builder.EnvironmentProvider == nil {
		return nil, ErrEnvironmentProviderMissing
	}

	return []*cobra.Command{
		builder.buildMigratorsCommand(),
		builder.buildStatusCommand(),
		builder.buildCancelCommand(),
		builder.buildEstimateCommand(),
		builder.buildCheckCommand(),
		builder.buildExportCommand(),
		builder.buildImportCommand(),
		builder.buildWorkerCommand(),
		builder.buildNotificationsCommand(),
		builder.buildAccountsCommand(),
	}, nil
}

// withEnvironment opens the environment, runs action, and closes the environment again.
func (builder *CommandBuilder) withEnvironment(command *cobra.Command, action func(environment *bootstrap.Environment) error) (resultError error) {
	environment, openError := builder.EnvironmentProvider(command.Context(), builder.resolveLogger())
	if openError != nil {
		return fmt.Errorf(openEnvironmentTemplateConstant, openError)
	}
	defer func() {
		resultError = multierr.Append(resultError, environment.Close())
	}()
	return action(environment)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveLocalFilesystem() afero.Fs {
	if builder.LocalFilesystem == nil {
		return afero.NewOsFs()
	}
	return builder.LocalFilesystem
}

func (builder *CommandBuilder) humanReadable() bool {
	return builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider()
}

// progressSink prints progress lines to the command error stream in console mode and logs them otherwise.
func (builder *CommandBuilder) progressSink(command *cobra.Command, accountID string) migrator.Progress {
	if builder.humanReadable() {
		writer := utils.NewFlushingWriter(command.ErrOrStderr())
		return migrator.ProgressFunc(func(message string) {
			_ = writer.WriteLine(message)
		})
	}
	logger := builder.resolveLogger()
	return migrator.ProgressFunc(func(message string) {
		logger.Info(logMessageProgressConstant, zap.String(progressFieldAccountIDConstant, accountID), zap.String(progressFieldMessageConstant, message))
	})
}

func requireAccount(values *flagutils.AccountFlagValues) (string, error) {
	accountID := values.Trimmed()
	if len(accountID) == 0 {
		return "", ErrAccountRequired
	}
	return accountID, nil
}

// selectionFromFlag maps an omitted flag to every migrator and an empty flag to core data only.
// The keywords "all" and "none" are accepted as well.
func selectionFromFlag(values *flagutils.MigratorSelectionFlagValues) migrator.Selection {
	if !values.Provided() {
		return migrator.SelectAll()
	}
	identifiers := values.TrimmedIdentifiers()
	if len(identifiers) == 0 {
		return migrator.SelectNone()
	}
	return migrator.ParseSelection(strings.Join(identifiers, selectionSeparatorConstant))
}

func bindAccountFlag(command *cobra.Command) *flagutils.AccountFlagValues {
	return flagutils.BindAccountFlag(command, flagutils.AccountFlagValues{}, flagutils.AccountFlagDefinition{Shorthand: flagutils.AccountFlagShorthand})
}
