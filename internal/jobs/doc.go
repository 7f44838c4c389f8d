// Package jobs tracks the single pending or running export or import of each
// account and executes queued jobs in the background.
//
// A job is created WAITING by Tracker, moved to STARTED by Worker immediately
// before the migration runs, and deleted when the migration ends, whatever the
// outcome. The outcome itself is reported through a notification.
package jobs
