package migrator

import (
	"errors"
	"fmt"
	"strings"
)

const (
	invalidSelectionTemplateConstant  = "unknown migrators: %s"
	duplicateMigratorTemplateConstant = "migrator %s registered more than once"
	reservedIdentifierMessageConstant = "migrator identifier is reserved"
	emptyIdentifierMessageConstant    = "migrator identifier is empty"
	selectionSeparatorConstant        = ", "
)

var (
	// ErrReservedIdentifier reports a migrator claiming the core identifier.
	ErrReservedIdentifier = errors.New(reservedIdentifierMessageConstant)
	// ErrEmptyIdentifier reports a migrator without an identifier.
	ErrEmptyIdentifier = errors.New(emptyIdentifierMessageConstant)
)

// InvalidSelectionError lists selected identifiers that are not registered.
type InvalidSelectionError struct {
	UnknownIDs []string
}

// Error describes the invalid selection.
func (selectionError InvalidSelectionError) Error() string {
	return fmt.Sprintf(invalidSelectionTemplateConstant, strings.Join(selectionError.UnknownIDs, selectionSeparatorConstant))
}

// DuplicateMigratorError reports two migrators sharing one identifier.
type DuplicateMigratorError struct {
	ID string
}

// Error describes the duplicate registration.
func (duplicateError DuplicateMigratorError) Error() string {
	return fmt.Sprintf(duplicateMigratorTemplateConstant, duplicateError.ID)
}
