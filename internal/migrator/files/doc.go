// Package files implements the reference migrator that moves the account's
// stored files through the archive under the "files" namespace.
package files
