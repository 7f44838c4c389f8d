// Package flags provides helpers for binding standardized flags to Cobra commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderPrefix           = "<"
	choicePlaceholderSuffix           = ">"
	choiceSeparatorLiteral            = "|"
	choiceUsageEmptyTemplate          = "`%s`"
	choiceUsageFullTemplate           = "`%s` %s"
	choiceValueTypeConstant           = "string"
	unsupportedChoiceTemplateConstant = "unsupported value %q, expected one of %s"
)

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := buildChoicePlaceholder(defaultChoice, choices)
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplate, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplate, placeholder, description)
}

// AddChoiceFlag registers a string flag restricted to choices. Values are matched case-insensitively
// and stored in their canonical spelling.
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, defaultChoice string, choices []string, description string) {
	if flagSet == nil || len(name) == 0 {
		return
	}
	flagSet.Var(newChoiceValue(defaultChoice, choices, target), name, FormatChoiceUsage(defaultChoice, choices, description))
}

type choiceValue struct {
	choices []string
	current string
	target  *string
}

func newChoiceValue(defaultChoice string, choices []string, target *string) *choiceValue {
	value := &choiceValue{choices: normalizeChoices(choices), current: strings.TrimSpace(defaultChoice), target: target}
	if target != nil {
		*target = value.current
	}
	return value
}

func (value *choiceValue) Set(rawValue string) error {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range value.choices {
		if strings.ToLower(choice) != normalizedValue {
			continue
		}
		value.current = choice
		if value.target != nil {
			*value.target = choice
		}
		return nil
	}
	return fmt.Errorf(unsupportedChoiceTemplateConstant, rawValue, strings.Join(value.choices, ", "))
}

func (value *choiceValue) String() string {
	if value == nil {
		return ""
	}
	return value.current
}

func (value *choiceValue) Type() string {
	return choiceValueTypeConstant
}

func buildChoicePlaceholder(defaultChoice string, choices []string) string {
	highlightedChoices := highlightDefaultChoice(defaultChoice, choices)
	return choicePlaceholderPrefix + strings.Join(highlightedChoices, choiceSeparatorLiteral) + choicePlaceholderSuffix
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	uniqueChoices := normalizeChoices(choices)
	highlighted := make([]string, 0, len(uniqueChoices))
	for _, choice := range uniqueChoices {
		displayValue := choice
		if strings.ToLower(choice) == normalizedDefault {
			displayValue = strings.ToUpper(choice)
		}
		highlighted = append(highlighted, displayValue)
	}
	return highlighted
}

// normalizeChoices trims choices and drops blanks and case-insensitive duplicates.
func normalizeChoices(choices []string) []string {
	normalized := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		if len(trimmedChoice) == 0 {
			continue
		}
		normalizedChoice := strings.ToLower(trimmedChoice)
		if _, exists := seen[normalizedChoice]; exists {
			continue
		}
		seen[normalizedChoice] = struct{}{}
		normalized = append(normalized, trimmedChoice)
	}
	return normalized
}
