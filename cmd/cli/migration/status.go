package migration

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/jobs"
)

const (
	statusCommandUseConstant              = "status"
	statusCommandShortDescriptionConstant = "Show the migration job of an account"
	statusCommandLongDescriptionConstant  = "status reports whether the account has no job, a queued or running export, or a queued or running import."
	cancelCommandUseConstant              = "cancel"
	cancelCommandShortDescriptionConstant = "Cancel the waiting migration job of an account"
	cancelCommandLongDescriptionConstant  = "cancel removes the account's job while it is still waiting. Jobs that already started run to completion."
	statusIdleTemplateConstant            = "%s: no migration job\n"
	statusJobTemplateConstant             = "%s: %s (%s) job %s, migrators %s\n"
	cancelledTemplateConstant             = "cancelled %s job %s for %s\n"
	noMigratorsLabelConstant              = "none"
	migratorListSeparatorConstant         = ", "
)

type cancelView struct {
	JobID     string `yaml:"job_id"`
	Kind      string `yaml:"kind"`
	AccountID string `yaml:"account_id"`
}

func (builder *CommandBuilder) buildStatusCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           statusCommandUseConstant,
		Short:         statusCommandShortDescriptionConstant,
		Long:          statusCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	accountValues := bindAccountFlag(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			report, statusError := environment.Tracker.Status(command.Context(), accountID)
			if statusError != nil {
				return statusError
			}
			return render(command, report, func(writer io.Writer) error {
				if report.State == jobs.StateNone {
					_, writeError := fmt.Fprintf(writer, statusIdleTemplateConstant, accountID)
					return writeError
				}
				_, writeError := fmt.Fprintf(writer, statusJobTemplateConstant, accountID, report.State, report.Status, report.JobID, describeMigrators(report.Migrators))
				return writeError
			})
		})
	}
	return command
}

func (builder *CommandBuilder) buildCancelCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           cancelCommandUseConstant,
		Short:         cancelCommandShortDescriptionConstant,
		Long:          cancelCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	accountValues := bindAccountFlag(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			cancelled, cancelError := environment.Tracker.Cancel(command.Context(), accountID)
			if cancelError != nil {
				return cancelError
			}
			view := cancelView{JobID: cancelled.ID, Kind: string(cancelled.Kind), AccountID: cancelled.AccountID}
			return render(command, view, func(writer io.Writer) error {
				_, writeError := fmt.Fprintf(writer, cancelledTemplateConstant, view.Kind, view.JobID, view.AccountID)
				return writeError
			})
		})
	}
	return command
}

func describeMigrators(identifiers []string) string {
	if len(identifiers) == 0 {
		return noMigratorsLabelConstant
	}
	return strings.Join(identifiers, migratorListSeparatorConstant)
}
