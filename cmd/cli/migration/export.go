package migration

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/bootstrap"
	flagutils "github.com/temirov/usermigration/internal/utils/flags"
)

const (
	exportCommandUseConstant              = "export"
	exportCommandShortDescriptionConstant = "Export an account into a migration archive"
	exportCommandLongDescriptionConstant  = "export queues a background export that stores the archive in the account's own storage. With --now the export runs immediately and writes the archive into --output-dir."
	nowFlagNameConstant                   = "now"
	exportNowFlagUsageConstant            = "Export immediately into --output-dir instead of queueing a background job"
	outputDirectoryFlagNameConstant       = "output-dir"
	outputDirectoryFlagUsageConstant      = "Directory receiving the archive of an immediate export"
	defaultOutputDirectoryConstant        = "."
	queuedJobTemplateConstant             = "queued %s job %s for %s\n"
	exportedTemplateConstant              = "exported %s to %s\n"
)

type queuedJobView struct {
	JobID     string `yaml:"job_id"`
	Kind      string `yaml:"kind"`
	AccountID string `yaml:"account_id"`
	Migrators string `yaml:"migrators"`
}

type exportedView struct {
	AccountID   string `yaml:"account_id"`
	ArchivePath string `yaml:"archive_path"`
}

func (builder *CommandBuilder) buildExportCommand() *cobra.Command {
	var (
		exportNow       bool
		outputDirectory string
	)
	command := &cobra.Command{
		Use:           exportCommandUseConstant,
		Short:         exportCommandShortDescriptionConstant,
		Long:          exportCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	accountValues := bindAccountFlag(command)
	selectionValues := flagutils.BindMigratorSelectionFlag(command)
	command.Flags().BoolVar(&exportNow, nowFlagNameConstant, false, exportNowFlagUsageConstant)
	command.Flags().StringVar(&outputDirectory, outputDirectoryFlagNameConstant, defaultOutputDirectoryConstant, outputDirectoryFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		selection := selectionFromFlag(selectionValues)
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			if _, lookupError := lookupAccount(command, environment, accountID); lookupError != nil {
				return lookupError
			}

			if exportNow {
				runner := environment.Runner.WithProgress(builder.progressSink(command, accountID))
				archivePath, exportError := runner.ExportToFile(command.Context(), builder.resolveLocalFilesystem(), strings.TrimSpace(outputDirectory), accountID, selection)
				if exportError != nil {
					return exportError
				}
				view := exportedView{AccountID: accountID, ArchivePath: archivePath}
				return render(command, view, func(writer io.Writer) error {
					_, writeError := fmt.Fprintf(writer, exportedTemplateConstant, accountID, archivePath)
					return writeError
				})
			}

			job, queueError := environment.Tracker.QueueExport(command.Context(), accountID, selection)
			if queueError != nil {
				return queueError
			}
			return renderQueuedJob(command, queuedJobView{JobID: job.ID, Kind: string(job.Kind), AccountID: job.AccountID, Migrators: job.Selection.String()})
		})
	}
	return command
}

func renderQueuedJob(command *cobra.Command, view queuedJobView) error {
	return render(command, view, func(writer io.Writer) error {
		_, writeError := fmt.Fprintf(writer, queuedJobTemplateConstant, view.Kind, view.JobID, view.AccountID)
		return writeError
	})
}
