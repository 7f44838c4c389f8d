package archive

import (
	"path"
	"strings"
)

const (
	entrySeparatorConstant  = "/"
	parentReferenceConstant = ".."
)

// normalizeEntryPath converts a caller path into the canonical entry name without
// leading or trailing separators. The archive root normalizes to the empty string.
func normalizeEntryPath(entryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(strings.ReplaceAll(entryPath, "\\", entrySeparatorConstant))
	for _, segment := range strings.Split(trimmedPath, entrySeparatorConstant) {
		if segment == parentReferenceConstant {
			return "", ErrInvalidEntryPath
		}
	}
	cleanedPath := path.Clean(entrySeparatorConstant + trimmedPath)
	return strings.TrimPrefix(cleanedPath, entrySeparatorConstant), nil
}

func normalizeFileEntryPath(entryPath string) (string, error) {
	normalizedPath, normalizeError := normalizeEntryPath(entryPath)
	if normalizeError != nil {
		return "", normalizeError
	}
	if len(normalizedPath) == 0 {
		return "", ErrInvalidEntryPath
	}
	return normalizedPath, nil
}

func joinEntryPath(parent string, child string) string {
	if len(parent) == 0 {
		return child
	}
	return parent + entrySeparatorConstant + child
}

func directoryEntryName(entryPath string) string {
	return entryPath + entrySeparatorConstant
}
