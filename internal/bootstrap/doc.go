// Package bootstrap assembles the migration runtime (database, storage, migrators,
// orchestrator, job tracker, worker, and notifiers) from configuration.
package bootstrap
