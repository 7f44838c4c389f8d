package migration

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/temirov/usermigration/internal/bootstrap"
	"github.com/temirov/usermigration/internal/migrator"
)

const (
	migratorsCommandUseConstant              = "migrators"
	migratorsCommandShortDescriptionConstant = "List the registered migrators"
	migratorsCommandLongDescriptionConstant  = "migrators lists the identifiers of the registered migrators in export order. Use --full to include display names, descriptions, and versions."
	fullFlagNameConstant                     = "full"
	fullFlagUsageConstant                    = "Include display names, descriptions, and versions"
	migratorLineTemplateConstant             = "%s\n"
	migratorFullLineTemplateConstant         = "%s\t%s (version %d)\t%s\n"
)

type migratorsView struct {
	Migrators []migrator.Description `yaml:"migrators"`
}

type migratorIdentifiersView struct {
	Migrators []string `yaml:"migrators"`
}

func (builder *CommandBuilder) buildMigratorsCommand() *cobra.Command {
	var fullListing bool
	command := &cobra.Command{
		Use:           migratorsCommandUseConstant,
		Short:         migratorsCommandShortDescriptionConstant,
		Long:          migratorsCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.withEnvironment(command, func(environment *bootstrap.Environment) error {
				return renderMigrators(command, environment.Service.Migrators(), fullListing)
			})
		},
	}
	command.Flags().BoolVar(&fullListing, fullFlagNameConstant, false, fullFlagUsageConstant)
	return command
}

func renderMigrators(command *cobra.Command, descriptions []migrator.Description, fullListing bool) error {
	if !fullListing {
		identifiers := make([]string, 0, len(descriptions))
		for _, description := range descriptions {
			identifiers = append(identifiers, description.ID)
		}
		return render(command, migratorIdentifiersView{Migrators: identifiers}, func(writer io.Writer) error {
			for _, identifier := range identifiers {
				if _, writeError := fmt.Fprintf(writer, migratorLineTemplateConstant, identifier); writeError != nil {
					return writeError
				}
			}
			return nil
		})
	}

	return render(command, migratorsView{Migrators: descriptions}, func(writer io.Writer) error {
		for _, description := range descriptions {
			if _, writeError := fmt.Fprintf(writer, migratorFullLineTemplateConstant, description.ID, description.DisplayName, description.Version, description.Description); writeError != nil {
				return writeError
			}
		}
		return nil
	})
}
