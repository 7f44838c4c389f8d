// Package archive implements the portable account archive: a store-only zip
// container written once by an export (ZipWriter) and read back, immutably, by
// an import (ZipReader).
//
// Entries are path addressed and namespaced by migrator identifier. The reserved
// manifest entry records which migrator version produced each namespace; it is the
// last entry written by an export and the first entry read by an import.
package archive
