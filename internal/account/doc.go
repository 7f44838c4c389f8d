// Package account defines the account-side collaborators consumed by the
// migration engine: identity lookup and creation, and the per-account
// key/value settings store.
package account
