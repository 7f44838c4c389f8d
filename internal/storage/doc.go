// Package storage exposes per-account hierarchical storage over afero and the
// free-space accounting used by export preflight checks.
package storage
