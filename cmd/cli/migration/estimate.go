package migration

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/migration"
	flagutils "github.com/temirov/usermigration/internal/utils/flags"
)

const (
	estimateCommandUseConstant              = "estimate"
	estimateCommandShortDescriptionConstant = "Estimate the size of an account export"
	estimateCommandLongDescriptionConstant  = "estimate adds the core data overhead to the size estimates of the selected migrators. Migrators without an estimate contribute nothing."
	checkCommandUseConstant                 = "check"
	checkCommandShortDescriptionConstant    = "Check whether an account export fits into its storage"
	checkCommandLongDescriptionConstant     = "check compares the estimated export size with the free space of the account storage, counting the space of a previous export that the new one replaces. It fails when the export does not fit."
	estimateTemplateConstant                = "%s: estimated export size %s\n"
	checkUnlimitedTemplateConstant          = "%s: export of %s fits, storage is unlimited\n"
	checkFitsTemplateConstant               = "%s: export of %s fits into %s available\n"
)

type estimateView struct {
	AccountID      string `yaml:"account_id"`
	Migrators      string `yaml:"migrators"`
	EstimatedBytes int64  `yaml:"estimated_bytes"`
}

type checkView struct {
	AccountID string                        `yaml:"account_id"`
	Migrators string                        `yaml:"migrators"`
	Report    migration.ExportabilityReport `yaml:"report"`
}

func (builder *CommandBuilder) buildEstimateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           estimateCommandUseConstant,
		Short:         estimateCommandShortDescriptionConstant,
		Long:          estimateCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	accountValues := bindAccountFlag(command)
	selectionValues := flagutils.BindMigratorSelectionFlag(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		selection := selectionFromFlag(selectionValues)
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			subject, lookupError := lookupAccount(command, environment, accountID)
			if lookupError != nil {
				return lookupError
			}
			estimatedBytes, estimateError := environment.Service.EstimateExportSize(command.Context(), subject, selection)
			if estimateError != nil {
				return estimateError
			}
			view := estimateView{AccountID: accountID, Migrators: selection.String(), EstimatedBytes: estimatedBytes}
			return render(command, view, func(writer io.Writer) error {
				_, writeError := fmt.Fprintf(writer, estimateTemplateConstant, accountID, humanize.IBytes(uint64(estimatedBytes)))
				return writeError
			})
		})
	}
	return command
}

func (builder *CommandBuilder) buildCheckCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           checkCommandUseConstant,
		Short:         checkCommandShortDescriptionConstant,
		Long:          checkCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	accountValues := bindAccountFlag(command)
	selectionValues := flagutils.BindMigratorSelectionFlag(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		selection := selectionFromFlag(selectionValues)
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			subject, lookupError := lookupAccount(command, environment, accountID)
			if lookupError != nil {
				return lookupError
			}
			report, checkError := environment.Service.CheckExportability(command.Context(), subject, selection)
			if checkError != nil {
				return checkError
			}
			view := checkView{AccountID: accountID, Migrators: selection.String(), Report: report}
			return render(command, view, func(writer io.Writer) error {
				estimatedSize := humanize.IBytes(uint64(report.EstimatedBytes))
				if report.Unlimited {
					_, writeError := fmt.Fprintf(writer, checkUnlimitedTemplateConstant, accountID, estimatedSize)
					return writeError
				}
				_, writeError := fmt.Fprintf(writer, checkFitsTemplateConstant, accountID, estimatedSize, humanize.IBytes(uint64(report.AvailableBytes)))
				return writeError
			})
		})
	}
	return command
}

func lookupAccount(command *cobra.Command, environment *bootstrap.Environment, accountID string) (account.Account, error) {
	subject, lookupError := environment.Accounts.Get(command.Context(), accountID)
	if lookupError != nil {
		return account.Account{}, fmt.Errorf(lookupAccountTemplateConstant, accountID, lookupError)
	}
	return subject, nil
}
