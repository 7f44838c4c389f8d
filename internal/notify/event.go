package notify

import (
	"context"
	"time"
)

// EventType names the outcome a notification reports.
type EventType string

const (
	// EventExportDone reports a completed export.
	EventExportDone EventType = "exportDone"
	// EventExportFailed reports an export that was abandoned.
	EventExportFailed EventType = "exportFailed"
	// EventImportDone reports a completed import.
	EventImportDone EventType = "importDone"
	// EventImportFailed reports an import that was abandoned.
	EventImportFailed EventType = "importFailed"
)

// Failed reports whether the event describes a failure.
func (eventType EventType) Failed() bool {
	return eventType == EventExportFailed || eventType == EventImportFailed
}

// Event carries enough identity for the recipient to retry a failed job by hand.
// AccountID is the recipient.
type Event struct {
	ID              string    `json:"id" yaml:"id"`
	Type            EventType `json:"type" yaml:"type"`
	AccountID       string    `json:"accountId" yaml:"account_id"`
	AuthorID        string    `json:"authorId,omitempty" yaml:"author_id,omitempty"`
	TargetAccountID string    `json:"targetAccountId,omitempty" yaml:"target_account_id,omitempty"`
	JobID           string    `json:"jobId" yaml:"job_id"`
	Migrators       []string  `json:"migrators" yaml:"migrators"`
	ArchivePath     string    `json:"archivePath,omitempty" yaml:"archive_path,omitempty"`
	Failure         string    `json:"failure,omitempty" yaml:"failure,omitempty"`
	CreatedAt       time.Time `json:"createdAt" yaml:"created_at"`
}

// Notifier delivers events.
type Notifier interface {
	Notify(executionContext context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(executionContext context.Context, event Event) error

// Notify forwards the event.
func (notifierFunc NotifierFunc) Notify(executionContext context.Context, event Event) error {
	return notifierFunc(executionContext, event)
}
