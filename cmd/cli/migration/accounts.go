package migration

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/bootstrap"
)

const (
	accountsCommandUseConstant                  = "accounts"
	accountsCommandShortDescriptionConstant     = "Manage the accounts known to the migration store"
	accountsListCommandUseConstant              = "list"
	accountsListCommandShortDescriptionConstant = "List accounts"
	accountsAddCommandUseConstant               = "add <account-id>"
	accountsAddCommandShortDescriptionConstant  = "Create an account"
	displayNameFlagNameConstant                 = "display-name"
	displayNameFlagUsageConstant                = "Display name of the new account (defaults to the identifier)"
	accountLineTemplateConstant                 = "%s\t%s\t%s\n"
	accountCreatedTemplateConstant              = "created account %s\n"
	accountEnabledLabelConstant                 = "enabled"
	accountDisabledLabelConstant                = "disabled"
	updateAccountTemplateConstant               = "unable to set display name of %s: %w"
)

type accountView struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Enabled     bool   `yaml:"enabled"`
}

type accountsView struct {
	Accounts []accountView `yaml:"accounts"`
}

func (builder *CommandBuilder) buildAccountsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           accountsCommandUseConstant,
		Short:         accountsCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	command.AddCommand(builder.buildAccountsListCommand(), builder.buildAccountsAddCommand())
	return command
}

func (builder *CommandBuilder) buildAccountsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:           accountsListCommandUseConstant,
		Short:         accountsListCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
				accounts, listError := environment.Accounts.List(command.Context())
				if listError != nil {
					return listError
				}
				views := make([]accountView, 0, len(accounts))
				for _, listed := range accounts {
					views = append(views, newAccountView(listed))
				}
				return render(command, accountsView{Accounts: views}, func(writer io.Writer) error {
					for _, view := range views {
						enabledLabel := accountDisabledLabelConstant
						if view.Enabled {
							enabledLabel = accountEnabledLabelConstant
						}
						if _, writeError := fmt.Fprintf(writer, accountLineTemplateConstant, view.ID, view.DisplayName, enabledLabel); writeError != nil {
							return writeError
						}
					}
					return nil
				})
			})
		},
	}
}

func (builder *CommandBuilder) buildAccountsAddCommand() *cobra.Command {
	var displayName string
	command := &cobra.Command{
		Use:           accountsAddCommandUseConstant,
		Short:         accountsAddCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
				created, createError := environment.Accounts.Create(command.Context(), arguments[0])
				if createError != nil {
					return createError
				}
				if trimmedDisplayName := strings.TrimSpace(displayName); len(trimmedDisplayName) > 0 {
					created.DisplayName = trimmedDisplayName
					if updateError := environment.Accounts.Update(command.Context(), created); updateError != nil {
						return fmt.Errorf(updateAccountTemplateConstant, created.ID, updateError)
					}
				}
				return render(command, newAccountView(created), func(writer io.Writer) error {
					_, writeError := fmt.Fprintf(writer, accountCreatedTemplateConstant, created.ID)
					return writeError
				})
			})
		},
	}
	command.Flags().StringVar(&displayName, displayNameFlagNameConstant, "", displayNameFlagUsageConstant)
	return command
}

func newAccountView(source account.Account) accountView {
	return accountView{ID: source.ID, DisplayName: source.DisplayName, Enabled: source.Enabled}
}
