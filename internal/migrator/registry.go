package migrator

import (
	"fmt"
	"sort"
	"strings"
)

const registrationErrorTemplateConstant = "cannot register migrator %q: %w"

// Registry keeps migrators in registration order. That order drives both export and import.
type Registry struct {
	migrators []Migrator
	positions map[string]int
}

// NewRegistry validates identifiers and preserves the given order.
func NewRegistry(migrators ...Migrator) (*Registry, error) {
	registry := &Registry{
		migrators: make([]Migrator, 0, len(migrators)),
		positions: make(map[string]int, len(migrators)),
	}
	for _, candidate := range migrators {
		if candidate == nil {
			continue
		}
		identifier := candidate.ID()
		switch {
		case len(strings.TrimSpace(identifier)) == 0:
			return nil, fmt.Errorf(registrationErrorTemplateConstant, identifier, ErrEmptyIdentifier)
		case identifier == CoreID:
			return nil, fmt.Errorf(registrationErrorTemplateConstant, identifier, ErrReservedIdentifier)
		}
		if _, duplicate := registry.positions[identifier]; duplicate {
			return nil, DuplicateMigratorError{ID: identifier}
		}
		registry.positions[identifier] = len(registry.migrators)
		registry.migrators = append(registry.migrators, candidate)
	}
	return registry, nil
}

// All returns the registered migrators in order.
func (registry *Registry) All() []Migrator {
	if registry == nil {
		return nil
	}
	migrators := make([]Migrator, len(registry.migrators))
	copy(migrators, registry.migrators)
	return migrators
}

// IDs returns the registered identifiers in order.
func (registry *Registry) IDs() []string {
	if registry == nil {
		return nil
	}
	identifiers := make([]string, 0, len(registry.migrators))
	for _, registered := range registry.migrators {
		identifiers = append(identifiers, registered.ID())
	}
	return identifiers
}

// Lookup finds a migrator by identifier.
func (registry *Registry) Lookup(identifier string) (Migrator, bool) {
	if registry == nil {
		return nil, false
	}
	position, exists := registry.positions[identifier]
	if !exists {
		return nil, false
	}
	return registry.migrators[position], true
}

// Describe lists identity details of every migrator in order.
func (registry *Registry) Describe() []Description {
	descriptions := make([]Description, 0, len(registry.All()))
	for _, registered := range registry.All() {
		descriptions = append(descriptions, Describe(registered))
	}
	return descriptions
}

// Validate rejects selections naming unregistered migrators.
func (registry *Registry) Validate(selection Selection) error {
	if selection.IsAll() {
		return nil
	}
	var unknownIDs []string
	for _, identifier := range selection.IDs() {
		if _, exists := registry.Lookup(identifier); !exists {
			unknownIDs = append(unknownIDs, identifier)
		}
	}
	if len(unknownIDs) > 0 {
		sort.Strings(unknownIDs)
		return InvalidSelectionError{UnknownIDs: unknownIDs}
	}
	return nil
}

// Selected returns the registered migrators included by the selection, in registration order.
func (registry *Registry) Selected(selection Selection) []Migrator {
	var selected []Migrator
	for _, registered := range registry.All() {
		if selection.Includes(registered.ID()) {
			selected = append(selected, registered)
		}
	}
	return selected
}
