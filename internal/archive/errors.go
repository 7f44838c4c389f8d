package archive

import (
	"errors"
	"fmt"
)

const (
	writeErrorTemplateConstant          = "archive write failed for %s: %v"
	writeErrorWithoutPathConstant       = "archive write failed: %v"
	readErrorTemplateConstant           = "archive read failed for %s: %v"
	readErrorWithoutPathConstant        = "archive read failed: %v"
	permissionErrorTemplateConstant     = "permission denied for %s: %v"
	manifestErrorTemplateConstant       = "invalid migration archive %s: %v"
	entryExistsMessageConstant          = "entry already written"
	archiveFinalizedMessageConstant     = "archive already finalized"
	entryMissingMessageConstant         = "entry not found"
	entryIsDirectoryMessageConstant     = "entry is a directory"
	entryNotDirectoryMessageConstant    = "entry is not a directory"
	invalidEntryPathMessageConstant     = "invalid entry path"
	unsupportedEntryTypeMessageConstant = "unsupported entry type"
	archiveClosedMessageConstant        = "archive closed"
	invalidAccountRecordMessageConstant = "account record has no uid"
)

var (
	// ErrEntryExists reports an attempt to overwrite an entry of an append-only archive.
	ErrEntryExists = errors.New(entryExistsMessageConstant)
	// ErrArchiveFinalized reports a write after Finalize.
	ErrArchiveFinalized = errors.New(archiveFinalizedMessageConstant)
	// ErrEntryNotFound reports a missing entry.
	ErrEntryNotFound = errors.New(entryMissingMessageConstant)
	// ErrEntryIsDirectory reports a content request for a directory entry.
	ErrEntryIsDirectory = errors.New(entryIsDirectoryMessageConstant)
	// ErrEntryNotDirectory reports a listing request for a file entry.
	ErrEntryNotDirectory = errors.New(entryNotDirectoryMessageConstant)
	// ErrInvalidEntryPath reports an empty or escaping entry path.
	ErrInvalidEntryPath = errors.New(invalidEntryPathMessageConstant)
	// ErrUnsupportedEntryType reports a storage entry that is neither a regular file nor a directory.
	ErrUnsupportedEntryType = errors.New(unsupportedEntryTypeMessageConstant)
	// ErrArchiveClosed reports use of a closed reader.
	ErrArchiveClosed = errors.New(archiveClosedMessageConstant)
	// ErrInvalidAccountRecord reports an account record without an identifier.
	ErrInvalidAccountRecord = errors.New(invalidAccountRecordMessageConstant)
)

// WriteError describes a failure to serialize an entry into the archive sink.
type WriteError struct {
	Path  string
	Cause error
}

// Error describes the write failure.
func (writeError WriteError) Error() string {
	if len(writeError.Path) == 0 {
		return fmt.Sprintf(writeErrorWithoutPathConstant, writeError.Cause)
	}
	return fmt.Sprintf(writeErrorTemplateConstant, writeError.Path, writeError.Cause)
}

// Unwrap exposes the underlying cause.
func (writeError WriteError) Unwrap() error {
	return writeError.Cause
}

// ReadError describes a missing or corrupt archive entry.
type ReadError struct {
	Path  string
	Cause error
}

// Error describes the read failure.
func (readError ReadError) Error() string {
	if len(readError.Path) == 0 {
		return fmt.Sprintf(readErrorWithoutPathConstant, readError.Cause)
	}
	return fmt.Sprintf(readErrorTemplateConstant, readError.Path, readError.Cause)
}

// Unwrap exposes the underlying cause.
func (readError ReadError) Unwrap() error {
	return readError.Cause
}

// PermissionError reports that the account-side storage refused a write during CopyTree.
type PermissionError struct {
	Path  string
	Cause error
}

// Error describes the permission failure.
func (permissionError PermissionError) Error() string {
	return fmt.Sprintf(permissionErrorTemplateConstant, permissionError.Path, permissionError.Cause)
}

// Unwrap exposes the underlying cause.
func (permissionError PermissionError) Unwrap() error {
	return permissionError.Cause
}

// ManifestError reports an archive without a parseable manifest.
type ManifestError struct {
	Archive string
	Cause   error
}

// Error describes the manifest failure.
func (manifestError ManifestError) Error() string {
	return fmt.Sprintf(manifestErrorTemplateConstant, manifestError.Archive, manifestError.Cause)
}

// Unwrap exposes the underlying cause.
func (manifestError ManifestError) Unwrap() error {
	return manifestError.Cause
}
