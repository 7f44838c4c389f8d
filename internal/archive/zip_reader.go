package archive

import (
	"archive/zip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

const (
	// AccountRecordPath is the core account record written by the export.
	AccountRecordPath = "account.json"

	accountIdentifierFieldConstant       = "uid"
	restoredFilePermissionsConstant      = 0o644
	restoredDirectoryPermissionsConstant = 0o755
)

// ZipReader gives path-addressed read access to a finished archive.
type ZipReader struct {
	identifier  string
	closer      io.Closer
	files       map[string]*zip.File
	directories map[string]struct{}
	modified    map[string]time.Time
	children    map[string]map[string]bool

	manifestOnce  sync.Once
	manifest      Manifest
	manifestError error

	closeMutex sync.Mutex
	closed     bool
}

// OpenZipFile opens an archive stored on the filesystem. Close releases the file.
func OpenZipFile(filesystem afero.Fs, filePath string) (*ZipReader, error) {
	archiveFile, openError := filesystem.Open(filePath)
	if openError != nil {
		return nil, ReadError{Path: filePath, Cause: openError}
	}

	archiveInfo, statError := archiveFile.Stat()
	if statError != nil {
		archiveFile.Close()
		return nil, ReadError{Path: filePath, Cause: statError}
	}

	reader, readerError := NewZipReader(archiveFile, archiveInfo.Size(), filePath)
	if readerError != nil {
		archiveFile.Close()
		return nil, readerError
	}
	reader.closer = archiveFile
	return reader, nil
}

// NewZipReader indexes an archive available through random access.
func NewZipReader(source io.ReaderAt, size int64, identifier string) (*ZipReader, error) {
	zipReader, openError := zip.NewReader(source, size)
	if openError != nil {
		return nil, ReadError{Path: identifier, Cause: openError}
	}

	reader := &ZipReader{
		identifier:  identifier,
		files:       make(map[string]*zip.File),
		directories: map[string]struct{}{"": {}},
		modified:    make(map[string]time.Time),
		children:    make(map[string]map[string]bool),
	}
	for _, archivedFile := range zipReader.File {
		reader.index(archivedFile)
	}
	return reader, nil
}

func (reader *ZipReader) index(archivedFile *zip.File) {
	isDirectory := archivedFile.FileInfo().IsDir()
	normalizedPath, normalizeError := normalizeEntryPath(archivedFile.Name)
	if normalizeError != nil || len(normalizedPath) == 0 {
		return
	}

	if isDirectory {
		reader.directories[normalizedPath] = struct{}{}
	} else {
		reader.files[normalizedPath] = archivedFile
	}
	reader.modified[normalizedPath] = archivedFile.Modified
	reader.registerChild(normalizedPath, isDirectory)
}

func (reader *ZipReader) registerChild(entryPath string, isDirectory bool) {
	for len(entryPath) > 0 {
		parentPath := path.Dir(entryPath)
		if parentPath == "." {
			parentPath = ""
		}

		siblings, exists := reader.children[parentPath]
		if !exists {
			siblings = make(map[string]bool)
			reader.children[parentPath] = siblings
		}
		entryName := path.Base(entryPath)
		siblings[entryName] = siblings[entryName] || isDirectory

		reader.directories[parentPath] = struct{}{}
		entryPath = parentPath
		isDirectory = true
	}
}

// Path returns the archive identifier.
func (reader *ZipReader) Path() string {
	return reader.identifier
}

// Content reads a whole entry.
func (reader *ZipReader) Content(entryPath string) ([]byte, error) {
	stream, streamError := reader.Stream(entryPath)
	if streamError != nil {
		return nil, streamError
	}
	defer stream.Close()

	content, readError := io.ReadAll(stream)
	if readError != nil {
		return nil, ReadError{Path: entryPath, Cause: readError}
	}
	return content, nil
}

// Stream opens an entry for streaming consumption. The checksum is verified when the stream reaches EOF.
func (reader *ZipReader) Stream(entryPath string) (io.ReadCloser, error) {
	archivedFile, lookupError := reader.lookupFile(entryPath)
	if lookupError != nil {
		return nil, lookupError
	}

	stream, openError := archivedFile.Open()
	if openError != nil {
		return nil, ReadError{Path: entryPath, Cause: openError}
	}
	return stream, nil
}

// ListDirectory returns the immediate children of a directory in lexical order. Directory names carry a trailing slash.
func (reader *ZipReader) ListDirectory(entryPath string) ([]string, error) {
	if closedError := reader.ensureOpen(entryPath); closedError != nil {
		return nil, closedError
	}

	normalizedPath, normalizeError := normalizeEntryPath(entryPath)
	if normalizeError != nil {
		return nil, ReadError{Path: entryPath, Cause: normalizeError}
	}
	if _, isDirectory := reader.directories[normalizedPath]; !isDirectory {
		if _, isFile := reader.files[normalizedPath]; isFile {
			return nil, ReadError{Path: entryPath, Cause: ErrEntryNotDirectory}
		}
		return nil, ReadError{Path: entryPath, Cause: ErrEntryNotFound}
	}

	siblings := reader.children[normalizedPath]
	names := make([]string, 0, len(siblings))
	for name, isDirectory := range siblings {
		if isDirectory {
			name = directoryEntryName(name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a file or directory entry is present.
func (reader *ZipReader) Exists(entryPath string) bool {
	if reader.isClosed() {
		return false
	}
	normalizedPath, normalizeError := normalizeEntryPath(entryPath)
	if normalizeError != nil {
		return false
	}
	if _, isFile := reader.files[normalizedPath]; isFile {
		return true
	}
	_, isDirectory := reader.directories[normalizedPath]
	return isDirectory
}

// Modified returns the archived modification time. Implied directories report the zero time.
func (reader *ZipReader) Modified(entryPath string) (time.Time, error) {
	if closedError := reader.ensureOpen(entryPath); closedError != nil {
		return time.Time{}, closedError
	}
	normalizedPath, normalizeError := normalizeEntryPath(entryPath)
	if normalizeError != nil {
		return time.Time{}, ReadError{Path: entryPath, Cause: normalizeError}
	}
	if !reader.Exists(normalizedPath) {
		return time.Time{}, ReadError{Path: entryPath, Cause: ErrEntryNotFound}
	}
	return reader.modified[normalizedPath], nil
}

// Manifest parses the manifest entry once and caches the outcome.
func (reader *ZipReader) Manifest() (Manifest, error) {
	reader.manifestOnce.Do(func() {
		content, contentError := reader.Content(ManifestPath)
		if contentError != nil {
			reader.manifestError = ManifestError{Archive: reader.identifier, Cause: contentError}
			return
		}
		manifest, parseError := ParseManifest(content)
		if parseError != nil {
			reader.manifestError = ManifestError{Archive: reader.identifier, Cause: parseError}
			return
		}
		reader.manifest = manifest
	})
	if reader.manifestError != nil {
		return nil, reader.manifestError
	}
	return reader.manifest.Clone(), nil
}

// MigratorVersion looks up the archived version of a migrator. An unreadable manifest yields NoVersion.
func (reader *ZipReader) MigratorVersion(migratorID string) Version {
	manifest, manifestError := reader.Manifest()
	if manifestError != nil {
		return NoVersion()
	}
	return manifest.Version(migratorID)
}

// OriginalAccountID returns the identifier of the exported account recorded in the account record.
func (reader *ZipReader) OriginalAccountID() (string, error) {
	content, contentError := reader.Content(AccountRecordPath)
	if contentError != nil {
		return "", contentError
	}
	if !gjson.ValidBytes(content) {
		return "", ReadError{Path: AccountRecordPath, Cause: ErrInvalidAccountRecord}
	}
	identifier := gjson.GetBytes(content, accountIdentifierFieldConstant)
	if !identifier.Exists() || len(identifier.String()) == 0 {
		return "", ReadError{Path: AccountRecordPath, Cause: ErrInvalidAccountRecord}
	}
	return identifier.String(), nil
}

// CopyTree restores the subtree at sourcePath into destinationDirectory. Existing
// items are overwritten in place, items of the wrong kind are removed first, and
// modification times are restored after each entry is written.
func (reader *ZipReader) CopyTree(destination afero.Fs, destinationDirectory string, sourcePath string, filter EntryFilter) error {
	if closedError := reader.ensureOpen(sourcePath); closedError != nil {
		return closedError
	}
	normalizedSource, normalizeError := normalizeEntryPath(sourcePath)
	if normalizeError != nil {
		return ReadError{Path: sourcePath, Cause: normalizeError}
	}
	if _, isDirectory := reader.directories[normalizedSource]; !isDirectory {
		if _, isFile := reader.files[normalizedSource]; isFile {
			return ReadError{Path: sourcePath, Cause: ErrEntryNotDirectory}
		}
		return ReadError{Path: sourcePath, Cause: ErrEntryNotFound}
	}

	if directoryError := ensureDirectory(destination, destinationDirectory); directoryError != nil {
		return directoryError
	}
	return reader.restoreDirectory(destination, destinationDirectory, normalizedSource, "", filter)
}

func (reader *ZipReader) restoreDirectory(destination afero.Fs, destinationDirectory string, sourcePath string, relativePath string, filter EntryFilter) error {
	names := make([]string, 0, len(reader.children[sourcePath]))
	for name := range reader.children[sourcePath] {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entrySourcePath := joinEntryPath(sourcePath, name)
		entryRelativePath := joinEntryPath(relativePath, name)
		entryDestinationPath := path.Join(destinationDirectory, name)
		entryInfo := reader.entryInfo(entrySourcePath)
		if !filter.Accepts(entryRelativePath, entryInfo) {
			continue
		}

		if entryInfo.IsDir() {
			if directoryError := ensureDirectory(destination, entryDestinationPath); directoryError != nil {
				return directoryError
			}
			if recursionError := reader.restoreDirectory(destination, entryDestinationPath, entrySourcePath, entryRelativePath, filter); recursionError != nil {
				return recursionError
			}
		} else if restoreError := reader.restoreFile(destination, entryDestinationPath, entrySourcePath); restoreError != nil {
			return restoreError
		}

		if modified := reader.modified[entrySourcePath]; !modified.IsZero() {
			if touchError := destination.Chtimes(entryDestinationPath, modified, modified); touchError != nil {
				return classifyDestinationError(entryDestinationPath, touchError)
			}
		}
	}
	return nil
}

func (reader *ZipReader) restoreFile(destination afero.Fs, destinationPath string, sourcePath string) error {
	existingInfo, statError := destination.Stat(destinationPath)
	if statError == nil && existingInfo.IsDir() {
		if removeError := destination.RemoveAll(destinationPath); removeError != nil {
			return classifyDestinationError(destinationPath, removeError)
		}
	}

	stream, streamError := reader.Stream(sourcePath)
	if streamError != nil {
		return streamError
	}
	defer stream.Close()

	targetFile, openError := destination.OpenFile(destinationPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, restoredFilePermissionsConstant)
	if openError != nil {
		return classifyDestinationError(destinationPath, openError)
	}
	if _, copyError := io.Copy(targetFile, stream); copyError != nil {
		targetFile.Close()
		return ReadError{Path: sourcePath, Cause: copyError}
	}
	if closeError := targetFile.Close(); closeError != nil {
		return classifyDestinationError(destinationPath, closeError)
	}
	return nil
}

func ensureDirectory(destination afero.Fs, directoryPath string) error {
	existingInfo, statError := destination.Stat(directoryPath)
	if statError == nil {
		if existingInfo.IsDir() {
			return nil
		}
		if removeError := destination.Remove(directoryPath); removeError != nil {
			return classifyDestinationError(directoryPath, removeError)
		}
	}
	if createError := destination.MkdirAll(directoryPath, restoredDirectoryPermissionsConstant); createError != nil {
		return classifyDestinationError(directoryPath, createError)
	}
	return nil
}

func classifyDestinationError(destinationPath string, cause error) error {
	if errors.Is(cause, fs.ErrPermission) {
		return PermissionError{Path: destinationPath, Cause: cause}
	}
	return ReadError{Path: destinationPath, Cause: cause}
}

func (reader *ZipReader) entryInfo(entryPath string) fs.FileInfo {
	if archivedFile, isFile := reader.files[entryPath]; isFile {
		return archivedFile.FileInfo()
	}
	return impliedDirectoryInfo{name: path.Base(entryPath), modified: reader.modified[entryPath]}
}

func (reader *ZipReader) lookupFile(entryPath string) (*zip.File, error) {
	if closedError := reader.ensureOpen(entryPath); closedError != nil {
		return nil, closedError
	}
	normalizedPath, normalizeError := normalizeFileEntryPath(entryPath)
	if normalizeError != nil {
		return nil, ReadError{Path: entryPath, Cause: normalizeError}
	}
	if archivedFile, isFile := reader.files[normalizedPath]; isFile {
		return archivedFile, nil
	}
	if _, isDirectory := reader.directories[normalizedPath]; isDirectory {
		return nil, ReadError{Path: entryPath, Cause: ErrEntryIsDirectory}
	}
	return nil, ReadError{Path: entryPath, Cause: ErrEntryNotFound}
}

// Close releases the underlying file. Repeated calls are no-ops.
func (reader *ZipReader) Close() error {
	reader.closeMutex.Lock()
	defer reader.closeMutex.Unlock()
	if reader.closed {
		return nil
	}
	reader.closed = true
	if reader.closer == nil {
		return nil
	}
	return reader.closer.Close()
}

func (reader *ZipReader) isClosed() bool {
	reader.closeMutex.Lock()
	defer reader.closeMutex.Unlock()
	return reader.closed
}

func (reader *ZipReader) ensureOpen(entryPath string) error {
	if reader.isClosed() {
		return ReadError{Path: entryPath, Cause: ErrArchiveClosed}
	}
	return nil
}

type impliedDirectoryInfo struct {
	name     string
	modified time.Time
}

func (info impliedDirectoryInfo) Name() string       { return info.name }
func (info impliedDirectoryInfo) Size() int64        { return 0 }
func (info impliedDirectoryInfo) Mode() fs.FileMode  { return fs.ModeDir | restoredDirectoryPermissionsConstant }
func (info impliedDirectoryInfo) ModTime() time.Time { return info.modified }
func (info impliedDirectoryInfo) IsDir() bool        { return true }
func (info impliedDirectoryInfo) Sys() any           { return nil }
