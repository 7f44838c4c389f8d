package migrator

import (
	"context"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/archive"
)

// CoreID is the manifest identifier reserved for the account core step.
const CoreID = "core"

// Migrator exports and imports one data domain under its own archive namespace.
type Migrator interface {
	ID() string
	DisplayName() string
	Description() string
	Version() int
	Export(executionContext context.Context, subject account.Account, destination archive.ExportDestination, progress Progress) error
	Import(executionContext context.Context, subject account.Account, source archive.ImportSource, progress Progress) error
	CanImport(source archive.ImportSource) bool
}

// SizeEstimator is implemented by migrators able to predict the size of their export.
type SizeEstimator interface {
	EstimateExportSize(executionContext context.Context, subject account.Account) (int64, error)
}

// EstimateExportSize queries the optional estimator capability. Migrators without it report zero and false.
func EstimateExportSize(executionContext context.Context, candidate Migrator, subject account.Account) (int64, bool, error) {
	estimator, supportsEstimation := candidate.(SizeEstimator)
	if !supportsEstimation {
		return 0, false, nil
	}
	estimatedBytes, estimateError := estimator.EstimateExportSize(executionContext, subject)
	if estimateError != nil {
		return 0, true, estimateError
	}
	return estimatedBytes, true, nil
}

// Description summarizes a registered migrator for listings.
type Description struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Description string `json:"description" yaml:"description"`
	Version     int    `json:"version" yaml:"version"`
}

// Describe captures the identity of a migrator.
func Describe(candidate Migrator) Description {
	return Description{
		ID:          candidate.ID(),
		DisplayName: candidate.DisplayName(),
		Description: candidate.Description(),
		Version:     candidate.Version(),
	}
}
