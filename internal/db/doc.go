// Package db persists accounts, settings, migration jobs, their queued tasks, and
// notifications in SQLite or PostgreSQL. Schema files under schema/ are embedded and
// applied on Open.
package db
