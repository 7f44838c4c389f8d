package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/temirov/usermigration/internal/archive"
)

const (
	// UnlimitedSpace is reported by FreeSpace when no quota applies.
	UnlimitedSpace int64 = -1

	accountDirectoryPermissionsConstant = 0o755
	missingRootMessageConstant          = "storage root directory is required"
	invalidAccountIDTemplateConstant    = "invalid account identifier %q"
	createAccountRootTemplateConstant   = "failed to create storage for account %s: %w"
	measureUsageTemplateConstant        = "failed to measure storage of account %s: %w"
	statArtifactTemplateConstant        = "failed to inspect export artifact of account %s: %w"
	accountRootSeparatorConstant        = "/"
)

// ErrRootDirectoryRequired reports a provider configured without a root directory.
var ErrRootDirectoryRequired = errors.New(missingRootMessageConstant)

// Provider hands out account-scoped filesystems rooted below a shared directory.
type Provider struct {
	filesystem    afero.Fs
	rootDirectory string
	quotaBytes    int64
}

// NewProvider builds a provider. A negative quota disables free-space limits.
func NewProvider(filesystem afero.Fs, rootDirectory string, quotaBytes int64) (*Provider, error) {
	trimmedRoot := strings.TrimSpace(rootDirectory)
	if len(trimmedRoot) == 0 {
		return nil, ErrRootDirectoryRequired
	}
	if filesystem == nil {
		filesystem = afero.NewOsFs()
	}
	if quotaBytes < 0 {
		quotaBytes = UnlimitedSpace
	}
	return &Provider{filesystem: filesystem, rootDirectory: trimmedRoot, quotaBytes: quotaBytes}, nil
}

// AccountFilesystem returns the storage of one account, creating its root on demand.
func (provider *Provider) AccountFilesystem(accountID string) (afero.Fs, error) {
	accountDirectory, directoryError := provider.accountDirectory(accountID)
	if directoryError != nil {
		return nil, directoryError
	}
	if createError := provider.filesystem.MkdirAll(accountDirectory, accountDirectoryPermissionsConstant); createError != nil {
		return nil, fmt.Errorf(createAccountRootTemplateConstant, accountID, createError)
	}
	return afero.NewBasePathFs(provider.filesystem, accountDirectory), nil
}

// UsedSpace sums the sizes of every regular file stored for the account.
func (provider *Provider) UsedSpace(accountID string) (int64, error) {
	accountFilesystem, filesystemError := provider.AccountFilesystem(accountID)
	if filesystemError != nil {
		return 0, filesystemError
	}
	usedBytes, measureError := measureTree(accountFilesystem, accountRootSeparatorConstant, nil, false)
	if measureError != nil {
		return 0, fmt.Errorf(measureUsageTemplateConstant, accountID, measureError)
	}
	return usedBytes, nil
}

// FreeSpace reports how many bytes the account may still store, or UnlimitedSpace.
func (provider *Provider) FreeSpace(accountID string) (int64, error) {
	if provider.quotaBytes == UnlimitedSpace {
		return UnlimitedSpace, nil
	}
	usedBytes, usageError := provider.UsedSpace(accountID)
	if usageError != nil {
		return 0, usageError
	}
	freeBytes := provider.quotaBytes - usedBytes
	if freeBytes < 0 {
		return 0, nil
	}
	return freeBytes, nil
}

// ArtifactSize returns the size of the completed export stored for the account, or zero.
func (provider *Provider) ArtifactSize(accountID string) (int64, error) {
	accountFilesystem, filesystemError := provider.AccountFilesystem(accountID)
	if filesystemError != nil {
		return 0, filesystemError
	}
	artifactInfo, statError := accountFilesystem.Stat(ArtifactPath())
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf(statArtifactTemplateConstant, accountID, statError)
	}
	if artifactInfo.IsDir() {
		return 0, nil
	}
	return artifactInfo.Size(), nil
}

// ArtifactPath is the location of a completed export inside an account filesystem.
func ArtifactPath() string {
	return accountRootSeparatorConstant + archive.ExportArtifactName
}

// PartialArtifactPath is the location an export is written to before it completes.
func PartialArtifactPath() string {
	return archive.PartialPath(ArtifactPath())
}

func (provider *Provider) accountDirectory(accountID string) (string, error) {
	trimmedID := strings.TrimSpace(accountID)
	if len(trimmedID) == 0 || trimmedID == "." || trimmedID == ".." || strings.ContainsAny(trimmedID, "/\\") {
		return "", fmt.Errorf(invalidAccountIDTemplateConstant, accountID)
	}
	return filepath.Join(provider.rootDirectory, trimmedID), nil
}

// TreeSize sums the sizes of regular files below rootDirectory that the filter accepts.
// Export artifacts at the root of the tree are ignored, matching what an export copies.
func TreeSize(filesystem afero.Fs, rootDirectory string, filter archive.EntryFilter) (int64, error) {
	return measureTree(filesystem, rootDirectory, filter, true)
}

func measureTree(filesystem afero.Fs, rootDirectory string, filter archive.EntryFilter, skipArtifacts bool) (int64, error) {
	var totalBytes int64
	walkError := afero.Walk(filesystem, rootDirectory, func(currentPath string, info fs.FileInfo, visitError error) error {
		if visitError != nil {
			return visitError
		}
		relativePath, relativeError := filepath.Rel(rootDirectory, currentPath)
		if relativeError != nil {
			return relativeError
		}
		relativePath = filepath.ToSlash(relativePath)
		if relativePath == "." {
			return nil
		}

		if skipArtifacts && path.Dir(relativePath) == "." && isArtifactName(info.Name()) {
			return nil
		}
		if !filter.Accepts(relativePath, info) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			totalBytes += info.Size()
		}
		return nil
	})
	if walkError != nil {
		return 0, walkError
	}
	return totalBytes, nil
}

func isArtifactName(name string) bool {
	return name == archive.ExportArtifactName || name == archive.ExportArtifactName+archive.PartialArtifactSuffix
}
