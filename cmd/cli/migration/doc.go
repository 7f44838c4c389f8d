// Package migration provides the Cobra front ends of the account migration engine:
// listing migrators, inspecting and cancelling jobs, storage preflight, queued and
// immediate exports and imports, the background worker, and notifications.
package migration
