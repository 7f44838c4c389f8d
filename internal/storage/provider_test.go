package storage_test

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/archive"
	"github.com/temirov/usermigration/internal/storage"
)

const (
	testRootDirectoryConstant = "/data"
	testAccountIDConstant     = "alice"
)

func TestProviderFreeSpace(testInstance *testing.T) {
	testCases := []struct {
		name              string
		quotaBytes        int64
		seededFiles       map[string]int
		expectedFreeSpace int64
	}{
		{
			name:              "unlimited quota",
			quotaBytes:        -5,
			seededFiles:       map[string]int{"doc.txt": 10},
			expectedFreeSpace: storage.UnlimitedSpace,
		},
		{
			name:              "quota minus usage",
			quotaBytes:        100,
			seededFiles:       map[string]int{"doc.txt": 10, "nested/more.bin": 30},
			expectedFreeSpace: 60,
		},
		{
			name:              "usage above quota",
			quotaBytes:        10,
			seededFiles:       map[string]int{"doc.txt": 25},
			expectedFreeSpace: 0,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testingInstance *testing.T) {
			filesystem := afero.NewMemMapFs()
			provider, providerError := storage.NewProvider(filesystem, testRootDirectoryConstant, testCase.quotaBytes)
			require.NoError(testingInstance, providerError)

			accountFilesystem, filesystemError := provider.AccountFilesystem(testAccountIDConstant)
			require.NoError(testingInstance, filesystemError)
			for relativePath, size := range testCase.seededFiles {
				require.NoError(testingInstance, afero.WriteFile(accountFilesystem, "/"+relativePath, make([]byte, size), 0o644))
			}

			freeSpace, freeSpaceError := provider.FreeSpace(testAccountIDConstant)
			require.NoError(testingInstance, freeSpaceError)
			require.Equal(testingInstance, testCase.expectedFreeSpace, freeSpace)
		})
	}
}

func TestProviderArtifactSize(testInstance *testing.T) {
	filesystem := afero.NewMemMapFs()
	provider, providerError := storage.NewProvider(filesystem, testRootDirectoryConstant, -1)
	require.NoError(testInstance, providerError)

	missingSize, missingError := provider.ArtifactSize(testAccountIDConstant)
	require.NoError(testInstance, missingError)
	require.Zero(testInstance, missingSize)

	require.NoError(testInstance, afero.WriteFile(filesystem, testRootDirectoryConstant+"/"+testAccountIDConstant+"/"+archive.ExportArtifactName, make([]byte, 42), 0o644))
	artifactSize, artifactError := provider.ArtifactSize(testAccountIDConstant)
	require.NoError(testInstance, artifactError)
	require.Equal(testInstance, int64(42), artifactSize)
}

func TestProviderRejectsInvalidAccountIdentifiers(testInstance *testing.T) {
	provider, providerError := storage.NewProvider(afero.NewMemMapFs(), testRootDirectoryConstant, -1)
	require.NoError(testInstance, providerError)

	for testCaseIndex, accountID := range []string{"", "..", "alice/bob", `alice\bob`} {
		testInstance.Run(fmt.Sprintf("%d_%q", testCaseIndex, accountID), func(testingInstance *testing.T) {
			_, filesystemError := provider.AccountFilesystem(accountID)
			require.Error(testingInstance, filesystemError)
		})
	}

	_, missingRootError := storage.NewProvider(afero.NewMemMapFs(), " ", -1)
	require.ErrorIs(testInstance, missingRootError, storage.ErrRootDirectoryRequired)
}

func TestTreeSizeHonoursFilterAndArtifacts(testInstance *testing.T) {
	filesystem := afero.NewMemMapFs()
	seededFiles := map[string]int{
		"doc.txt":                                5,
		"cache/blob.tmp":                         100,
		"projects/plan.md":                       7,
		archive.ExportArtifactName:               1000,
		archive.ExportArtifactName + ".part":     500,
		"projects/" + archive.ExportArtifactName: 3,
	}
	for relativePath, size := range seededFiles {
		require.NoError(testInstance, afero.WriteFile(filesystem, "/home/"+relativePath, make([]byte, size), 0o644))
	}

	excludeFilter, filterError := archive.ExcludeGlobs("cache")
	require.NoError(testInstance, filterError)

	totalBytes, sizeError := storage.TreeSize(filesystem, "/home", excludeFilter)
	require.NoError(testInstance, sizeError)
	require.Equal(testInstance, int64(15), totalBytes)
}
