package migration

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/migration"
)

const (
	importCommandUseConstant              = "import <archive>"
	importCommandShortDescriptionConstant = "Import a migration archive into an account"
	importCommandLongDescriptionConstant  = "import queues a background import of an archive stored in the account's own storage; the path is relative to that storage. With --now a local archive is imported immediately, into --account when given or into the account recorded in the archive otherwise."
	importNowFlagUsageConstant            = "Import a local archive immediately instead of queueing a background job"
	importedTemplateConstant              = "imported %s into %s\n"
)

type importedView struct {
	AccountID   string `yaml:"account_id"`
	ArchivePath string `yaml:"archive_path"`
}

func (builder *CommandBuilder) buildImportCommand() *cobra.Command {
	var importNow bool
	command := &cobra.Command{
		Use:           importCommandUseConstant,
		Short:         importCommandShortDescriptionConstant,
		Long:          importCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
	}
	accountValues := bindAccountFlag(command)
	command.Flags().BoolVar(&importNow, nowFlagNameConstant, false, importNowFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		archivePath := strings.TrimSpace(arguments[0])
		if importNow {
			return builder.importNow(command, archivePath, accountValues.Trimmed())
		}

		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			if _, lookupError := lookupAccount(command, environment, accountID); lookupError != nil {
				return lookupError
			}
			job, queueError := environment.Tracker.QueueImport(command.Context(), accountID, accountID, archivePath)
			if queueError != nil {
				return queueError
			}
			return renderQueuedJob(command, queuedJobView{JobID: job.ID, Kind: string(job.Kind), AccountID: job.AccountID, Migrators: job.Selection.String()})
		})
	}
	return command
}

func (builder *CommandBuilder) importNow(command *cobra.Command, archivePath string, targetAccountID string) error {
	return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
		runner := environment.Runner.WithProgress(builder.progressSink(command, targetAccountID))
		restored, importError := runner.ImportFromFile(command.Context(), builder.resolveLocalFilesystem(), archivePath, migration.ImportOptions{TargetAccountID: targetAccountID})
		if importError != nil {
			return importError
		}
		view := importedView{AccountID: restored.ID, ArchivePath: archivePath}
		return render(command, view, func(writer io.Writer) error {
			_, writeError := fmt.Fprintf(writer, importedTemplateConstant, archivePath, restored.ID)
			return writeError
		})
	})
}
