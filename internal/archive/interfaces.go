package archive

import (
	"io"
	"time"

	"github.com/spf13/afero"
)

// ExportDestination is the write-once side of an archive handed to migrators.
type ExportDestination interface {
	AddContent(entryPath string, content []byte) error
	AddStream(entryPath string, content io.Reader) error
	CopyTree(source afero.Fs, sourceDirectory string, destinationPath string, filter EntryFilter) error
	SetManifest(manifest Manifest) error
	Finalize() error
	Path() string
}

// ImportSource is the read-only side of an archive handed to migrators.
type ImportSource interface {
	Content(entryPath string) ([]byte, error)
	Stream(entryPath string) (io.ReadCloser, error)
	ListDirectory(entryPath string) ([]string, error)
	Exists(entryPath string) bool
	Modified(entryPath string) (time.Time, error)
	CopyTree(destination afero.Fs, destinationDirectory string, sourcePath string, filter EntryFilter) error
	Manifest() (Manifest, error)
	MigratorVersion(migratorID string) Version
	Path() string
	Close() error
}
