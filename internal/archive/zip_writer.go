package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
)

const (
	fileEntryPermissionsConstant      = 0o644
	directoryEntryPermissionsConstant = 0o755
	partialFilePermissionsConstant    = 0o600
)

// ZipWriter appends entries to a store-only zip archive. Entries are never
// overwritten, and nothing may be written after Finalize.
type ZipWriter struct {
	destination    string
	sink           io.Writer
	zipWriter      *zip.Writer
	writtenEntries map[string]struct{}
	finalized      bool
	now            func() time.Time
}

// NewZipWriter streams an archive into sink. The destination identifies the archive for callers relocating it.
func NewZipWriter(sink io.Writer, destination string) *ZipWriter {
	return &ZipWriter{
		destination:    destination,
		sink:           sink,
		zipWriter:      zip.NewWriter(sink),
		writtenEntries: make(map[string]struct{}),
		now:            time.Now,
	}
}

// CreateZipFile truncates or creates a file on the filesystem and returns a writer bound to it.
// The file is closed by Finalize.
func CreateZipFile(filesystem afero.Fs, filePath string) (*ZipWriter, error) {
	archiveFile, openError := filesystem.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, partialFilePermissionsConstant)
	if openError != nil {
		return nil, WriteError{Path: filePath, Cause: openError}
	}
	return NewZipWriter(archiveFile, filePath), nil
}

// CreatePartialZipFile writes into the partial counterpart of finalPath while Path reports finalPath.
// Callers move the file into place after Finalize.
func CreatePartialZipFile(filesystem afero.Fs, finalPath string) (*ZipWriter, error) {
	writer, createError := CreateZipFile(filesystem, PartialPath(finalPath))
	if createError != nil {
		return nil, createError
	}
	writer.destination = finalPath
	return writer, nil
}

// PartialPath names the file an archive is written to before it completes.
func PartialPath(finalPath string) string {
	return finalPath + PartialArtifactSuffix
}

// Path returns the destination identifier.
func (writer *ZipWriter) Path() string {
	return writer.destination
}

// AddContent writes a complete in-memory payload.
func (writer *ZipWriter) AddContent(entryPath string, content []byte) error {
	return writer.addFileEntry(entryPath, bytes.NewReader(content), writer.now())
}

// AddStream writes a payload from a stream without buffering it whole.
func (writer *ZipWriter) AddStream(entryPath string, content io.Reader) error {
	return writer.addFileEntry(entryPath, content, writer.now())
}

// SetManifest writes the reserved manifest entry.
func (writer *ZipWriter) SetManifest(manifest Manifest) error {
	encodedManifest, encodeError := json.Marshal(manifest)
	if encodeError != nil {
		return WriteError{Path: ManifestPath, Cause: encodeError}
	}
	return writer.AddContent(ManifestPath, encodedManifest)
}

// CopyTree mirrors sourceDirectory from the filesystem into the archive under
// destinationPath, depth first, preserving modification times. The previous export
// artifact at the root of the copied tree is never included.
func (writer *ZipWriter) CopyTree(source afero.Fs, sourceDirectory string, destinationPath string, filter EntryFilter) error {
	normalizedDestination, normalizeError := normalizeEntryPath(destinationPath)
	if normalizeError != nil {
		return WriteError{Path: destinationPath, Cause: normalizeError}
	}

	rootInfo, statError := source.Stat(sourceDirectory)
	if statError != nil {
		return WriteError{Path: sourceDirectory, Cause: statError}
	}
	if !rootInfo.IsDir() {
		return WriteError{Path: sourceDirectory, Cause: ErrEntryNotDirectory}
	}

	if len(normalizedDestination) > 0 {
		if directoryError := writer.addDirectoryEntry(normalizedDestination, rootInfo.ModTime()); directoryError != nil {
			return directoryError
		}
	}

	return writer.copyDirectory(source, sourceDirectory, normalizedDestination, "", filter)
}

func (writer *ZipWriter) copyDirectory(source afero.Fs, sourceDirectory string, destinationPath string, relativePath string, filter EntryFilter) error {
	directoryEntries, listError := afero.ReadDir(source, sourceDirectory)
	if listError != nil {
		return WriteError{Path: sourceDirectory, Cause: listError}
	}

	for _, entryInfo := range directoryEntries {
		entryName := entryInfo.Name()
		if len(relativePath) == 0 && isExportArtifact(entryName) {
			continue
		}

		entryRelativePath := joinEntryPath(relativePath, entryName)
		if !filter.Accepts(entryRelativePath, entryInfo) {
			continue
		}

		entrySourcePath := path.Join(sourceDirectory, entryName)
		entryDestinationPath := joinEntryPath(destinationPath, entryName)

		switch {
		case entryInfo.IsDir():
			if directoryError := writer.addDirectoryEntry(entryDestinationPath, entryInfo.ModTime()); directoryError != nil {
				return directoryError
			}
			if recursionError := writer.copyDirectory(source, entrySourcePath, entryDestinationPath, entryRelativePath, filter); recursionError != nil {
				return recursionError
			}
		case entryInfo.Mode().IsRegular():
			if copyError := writer.copyFile(source, entrySourcePath, entryDestinationPath, entryInfo); copyError != nil {
				return copyError
			}
		default:
			return WriteError{Path: entrySourcePath, Cause: ErrUnsupportedEntryType}
		}
	}

	return nil
}

func (writer *ZipWriter) copyFile(source afero.Fs, sourcePath string, destinationPath string, entryInfo fs.FileInfo) error {
	sourceFile, openError := source.Open(sourcePath)
	if openError != nil {
		return WriteError{Path: sourcePath, Cause: openError}
	}
	defer sourceFile.Close()

	return writer.addFileEntry(destinationPath, sourceFile, entryInfo.ModTime())
}

// Finalize writes the central directory and closes the sink. It is never retried.
func (writer *ZipWriter) Finalize() error {
	if writer.finalized {
		return WriteError{Path: writer.destination, Cause: ErrArchiveFinalized}
	}
	writer.finalized = true

	closeError := writer.zipWriter.Close()
	if sinkCloser, closable := writer.sink.(io.Closer); closable {
		if sinkCloseError := sinkCloser.Close(); sinkCloseError != nil && closeError == nil {
			closeError = sinkCloseError
		}
	}
	if closeError != nil {
		return WriteError{Path: writer.destination, Cause: closeError}
	}
	return nil
}

func (writer *ZipWriter) addFileEntry(entryPath string, content io.Reader, modified time.Time) error {
	normalizedPath, normalizeError := normalizeFileEntryPath(entryPath)
	if normalizeError != nil {
		return WriteError{Path: entryPath, Cause: normalizeError}
	}
	if reservationError := writer.reserve(normalizedPath); reservationError != nil {
		return reservationError
	}

	header := &zip.FileHeader{
		Name:     normalizedPath,
		Method:   zip.Store,
		Modified: modified,
	}
	header.SetMode(fileEntryPermissionsConstant)

	entryWriter, createError := writer.zipWriter.CreateHeader(header)
	if createError != nil {
		return WriteError{Path: normalizedPath, Cause: createError}
	}
	if _, copyError := io.Copy(entryWriter, content); copyError != nil {
		return WriteError{Path: normalizedPath, Cause: copyError}
	}
	return nil
}

// addDirectoryEntry records an explicit directory so its timestamp survives the
// round trip. Repeating a directory is harmless and writes nothing.
func (writer *ZipWriter) addDirectoryEntry(normalizedPath string, modified time.Time) error {
	if writer.finalized {
		return WriteError{Path: normalizedPath, Cause: ErrArchiveFinalized}
	}

	directoryName := directoryEntryName(normalizedPath)
	if _, alreadyWritten := writer.writtenEntries[directoryName]; alreadyWritten {
		return nil
	}
	if _, fileExists := writer.writtenEntries[normalizedPath]; fileExists {
		return WriteError{Path: normalizedPath, Cause: ErrEntryExists}
	}
	writer.writtenEntries[directoryName] = struct{}{}

	header := &zip.FileHeader{
		Name:     directoryName,
		Method:   zip.Store,
		Modified: modified,
	}
	header.SetMode(fs.ModeDir | directoryEntryPermissionsConstant)

	if _, createError := writer.zipWriter.CreateHeader(header); createError != nil {
		return WriteError{Path: normalizedPath, Cause: createError}
	}
	return nil
}

func (writer *ZipWriter) reserve(normalizedPath string) error {
	if writer.finalized {
		return WriteError{Path: normalizedPath, Cause: ErrArchiveFinalized}
	}
	if _, alreadyWritten := writer.writtenEntries[normalizedPath]; alreadyWritten {
		return WriteError{Path: normalizedPath, Cause: ErrEntryExists}
	}
	if _, directoryExists := writer.writtenEntries[directoryEntryName(normalizedPath)]; directoryExists {
		return WriteError{Path: normalizedPath, Cause: ErrEntryExists}
	}
	writer.writtenEntries[normalizedPath] = struct{}{}
	return nil
}

func isExportArtifact(entryName string) bool {
	return entryName == ExportArtifactName || entryName == ExportArtifactName+PartialArtifactSuffix
}
