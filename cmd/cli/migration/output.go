package migration

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/usermigration/internal/utils"
)

const (
	// OutputFormatText renders one human-readable line per item.
	OutputFormatText = "text"
	// OutputFormatYAML renders the structured result as YAML.
	OutputFormatYAML = "yaml"

	yamlIndentConstant         = 2
	encodeYAMLTemplateConstant = "unable to render yaml output: %w"
)

// SupportedOutputFormats lists the accepted report formats.
func SupportedOutputFormats() []string {
	return []string{OutputFormatText, OutputFormatYAML}
}

// render writes result as YAML when requested through the command context and through textRenderer otherwise.
func render(command *cobra.Command, result any, textRenderer func(writer io.Writer) error) error {
	writer := command.OutOrStdout()
	outputFormat, _ := utils.NewCommandContextAccessor().OutputFormat(command.Context())
	if !strings.EqualFold(strings.TrimSpace(outputFormat), OutputFormatYAML) {
		return textRenderer(writer)
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(result); encodeError != nil {
		return fmt.Errorf(encodeYAMLTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(encodeYAMLTemplateConstant, closeError)
	}
	return nil
}
