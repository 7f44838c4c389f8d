package archive

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const invalidPatternTemplateConstant = "invalid exclude pattern %q"

// EntryFilter decides whether an entry takes part in a CopyTree. The path is
// slash separated and relative to the copied tree; directories are passed without
// a trailing slash. Returning false skips the entry and, for directories, its subtree.
type EntryFilter func(relativePath string, info fs.FileInfo) bool

// ExcludeGlobs builds a filter rejecting entries matching any doublestar pattern.
func ExcludeGlobs(patterns ...string) (EntryFilter, error) {
	normalizedPatterns := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if len(trimmedPattern) == 0 {
			continue
		}
		if !doublestar.ValidatePattern(trimmedPattern) {
			return nil, fmt.Errorf(invalidPatternTemplateConstant, trimmedPattern)
		}
		normalizedPatterns = append(normalizedPatterns, trimmedPattern)
	}

	if len(normalizedPatterns) == 0 {
		return nil, nil
	}

	return func(relativePath string, _ fs.FileInfo) bool {
		for _, pattern := range normalizedPatterns {
			if doublestar.MatchUnvalidated(pattern, relativePath) {
				return false
			}
		}
		return true
	}, nil
}

// CombineFilters requires every non-nil filter to accept an entry.
func CombineFilters(filters ...EntryFilter) EntryFilter {
	activeFilters := make([]EntryFilter, 0, len(filters))
	for _, filter := range filters {
		if filter != nil {
			activeFilters = append(activeFilters, filter)
		}
	}

	switch len(activeFilters) {
	case 0:
		return nil
	case 1:
		return activeFilters[0]
	}

	return func(relativePath string, info fs.FileInfo) bool {
		for _, filter := range activeFilters {
			if !filter(relativePath, info) {
				return false
			}
		}
		return true
	}
}

// Accepts applies the filter. A nil filter accepts every entry.
func (filter EntryFilter) Accepts(relativePath string, info fs.FileInfo) bool {
	if filter == nil {
		return true
	}
	return filter(relativePath, info)
}
