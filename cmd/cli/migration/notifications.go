package migration

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/notify"
	"github.com/temirov/usermigration/internal/ui"
)

const (
	notificationsCommandUseConstant              = "notifications"
	notificationsCommandShortDescriptionConstant = "List migration notifications of an account"
	notificationsCommandLongDescriptionConstant  = "notifications lists the most recent export and import outcomes delivered to the account, newest first."
	limitFlagNameConstant                        = "limit"
	limitFlagUsageConstant                       = "Maximum number of notifications to list"
	defaultNotificationLimitConstant             = 20
	notificationLineTemplateConstant             = "%s\t%s\t%s\n"
)

type notificationsView struct {
	Notifications []notify.Event `yaml:"notifications"`
}

func (builder *CommandBuilder) buildNotificationsCommand() *cobra.Command {
	var limit int
	command := &cobra.Command{
		Use:           notificationsCommandUseConstant,
		Short:         notificationsCommandShortDescriptionConstant,
		Long:          notificationsCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
	accountValues := bindAccountFlag(command)
	command.Flags().IntVar(&limit, limitFlagNameConstant, defaultNotificationLimitConstant, limitFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		accountID, accountError := requireAccount(accountValues)
		if accountError != nil {
			return accountError
		}
		return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
			events, listError := environment.Notifications.List(command.Context(), accountID, limit)
			if listError != nil {
				return listError
			}
			formatter := ui.EventFormatter{}
			return render(command, notificationsView{Notifications: events}, func(writer io.Writer) error {
				for _, event := range events {
					if _, writeError := fmt.Fprintf(writer, notificationLineTemplateConstant, event.CreatedAt.Format(time.RFC3339), event.Type, formatter.BuildMessage(event)); writeError != nil {
						return writeError
					}
				}
				return nil
			})
		})
	}
	return command
}
