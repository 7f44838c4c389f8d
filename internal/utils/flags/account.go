package flags

import (
	"strings"

	"github.com/spf13/cobra"
)

const (
	// AccountFlagName exposes the shared account flag name.
	AccountFlagName = "account"
	// AccountFlagShorthand provides the shorthand for the account flag.
	AccountFlagShorthand = "a"
	// AccountFlagUsage describes the shared account flag purpose.
	AccountFlagUsage = "Account identifier to operate on"
	// MigratorsFlagName exposes the shared migrator selection flag name.
	MigratorsFlagName = "migrators"
	// MigratorsFlagUsage describes the shared migrator selection flag purpose.
	MigratorsFlagUsage = "Migrator identifiers to include (comma separated, repeatable); omit to include all"
)

// AccountFlagDefinition captures configuration for the account flag.
type AccountFlagDefinition struct {
	Name       string
	Shorthand  string
	Usage      string
	Persistent bool
}

// AccountFlagValues stores the account flag value.
type AccountFlagValues struct {
	AccountID string
}

// Trimmed returns the account identifier without surrounding whitespace.
func (values *AccountFlagValues) Trimmed() string {
	if values == nil {
		return ""
	}
	return strings.TrimSpace(values.AccountID)
}

// BindAccountFlag attaches the account flag to the provided command.
func BindAccountFlag(command *cobra.Command, defaults AccountFlagValues, definition AccountFlagDefinition) *AccountFlagValues {
	values := defaults
	if command == nil {
		return &values
	}
	flagName := definition.Name
	if len(flagName) == 0 {
		flagName = AccountFlagName
	}
	flagUsage := definition.Usage
	if len(flagUsage) == 0 {
		flagUsage = AccountFlagUsage
	}

	flagSet := command.Flags()
	if definition.Persistent {
		flagSet = command.PersistentFlags()
	}
	flagSet.StringVarP(&values.AccountID, flagName, definition.Shorthand, defaults.AccountID, flagUsage)
	return &values
}

// MigratorSelectionFlagValues stores the migrator selection flag value.
type MigratorSelectionFlagValues struct {
	command     *cobra.Command
	flagName    string
	Identifiers []string
}

// Provided reports whether the flag was given on the command line. An omitted flag selects every migrator.
func (values *MigratorSelectionFlagValues) Provided() bool {
	if values == nil || values.command == nil {
		return false
	}
	return values.command.Flags().Changed(values.flagName)
}

// TrimmedIdentifiers returns the selected identifiers without blanks.
func (values *MigratorSelectionFlagValues) TrimmedIdentifiers() []string {
	if values == nil {
		return nil
	}
	trimmed := make([]string, 0, len(values.Identifiers))
	for _, identifier := range values.Identifiers {
		trimmedIdentifier := strings.TrimSpace(identifier)
		if len(trimmedIdentifier) > 0 {
			trimmed = append(trimmed, trimmedIdentifier)
		}
	}
	return trimmed
}

// BindMigratorSelectionFlag attaches the migrator selection flag to the provided command.
func BindMigratorSelectionFlag(command *cobra.Command) *MigratorSelectionFlagValues {
	values := &MigratorSelectionFlagValues{command: command, flagName: MigratorsFlagName}
	if command == nil {
		return values
	}
	command.Flags().StringSliceVar(&values.Identifiers, MigratorsFlagName, nil, MigratorsFlagUsage)
	return values
}
