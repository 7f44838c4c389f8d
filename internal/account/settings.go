package account

import (
	"context"
	"sort"
)

// Settings groups per-account values by application and key.
type Settings map[string]map[string]string

// SettingsStore reads and writes per-account settings in bulk.
type SettingsStore interface {
	All(executionContext context.Context, accountID string) (Settings, error)
	SetMany(executionContext context.Context, accountID string, values Settings) error
}

// Set records a single value, allocating the application group when needed.
func (settings Settings) Set(application string, key string, value string) {
	values, exists := settings[application]
	if !exists {
		values = make(map[string]string)
		settings[application] = values
	}
	values[key] = value
}

// Value returns a stored value and whether it exists.
func (settings Settings) Value(application string, key string) (string, bool) {
	values, exists := settings[application]
	if !exists {
		return "", false
	}
	value, valueExists := values[key]
	return value, valueExists
}

// Applications lists application names in lexical order.
func (settings Settings) Applications() []string {
	applications := make([]string, 0, len(settings))
	for application := range settings {
		applications = append(applications, application)
	}
	sort.Strings(applications)
	return applications
}

// Count returns the total number of values.
func (settings Settings) Count() int {
	total := 0
	for _, values := range settings {
		total += len(values)
	}
	return total
}
