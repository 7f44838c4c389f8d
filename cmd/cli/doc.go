// Package cli constructs the user-migration command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the migration environment.
package cli
