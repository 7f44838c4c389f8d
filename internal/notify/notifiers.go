package notify

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	logMessageDeliveredConstant   = "migration notification"
	logFieldEventIDConstant       = "event_id"
	logFieldEventTypeConstant     = "event_type"
	logFieldAccountIDConstant     = "account_id"
	logFieldAuthorIDConstant      = "author_id"
	logFieldTargetAccountConstant = "target_account_id"
	logFieldJobIDConstant         = "job_id"
	logFieldMigratorsConstant     = "migrators"
	logFieldArchivePathConstant   = "archive_path"
	logFieldFailureConstant       = "failure"
	storeRequiredMessageConstant  = "notification store is unavailable"
	defaultListLimitConstant      = 50
)

// ErrStoreRequired reports a persistent notifier built without a store.
var ErrStoreRequired = errors.New(storeRequiredMessageConstant)

// Store persists events and lists them per recipient, newest first.
type Store interface {
	Save(executionContext context.Context, event Event) error
	List(executionContext context.Context, accountID string, limit int) ([]Event, error)
}

// LoggingNotifier writes every event to the structured log.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier constructs a LoggingNotifier. A nil logger discards events.
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingNotifier{logger: logger}
}

// Notify logs the event, at warn level for failures.
func (notifier *LoggingNotifier) Notify(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String(logFieldEventIDConstant, event.ID),
		zap.String(logFieldEventTypeConstant, string(event.Type)),
		zap.String(logFieldAccountIDConstant, event.AccountID),
		zap.String(logFieldJobIDConstant, event.JobID),
		zap.Strings(logFieldMigratorsConstant, event.Migrators),
	}
	if len(event.AuthorID) > 0 {
		fields = append(fields, zap.String(logFieldAuthorIDConstant, event.AuthorID))
	}
	if len(event.TargetAccountID) > 0 {
		fields = append(fields, zap.String(logFieldTargetAccountConstant, event.TargetAccountID))
	}
	if len(event.ArchivePath) > 0 {
		fields = append(fields, zap.String(logFieldArchivePathConstant, event.ArchivePath))
	}
	if event.Type.Failed() {
		fields = append(fields, zap.String(logFieldFailureConstant, event.Failure))
		notifier.logger.Warn(logMessageDeliveredConstant, fields...)
		return nil
	}
	notifier.logger.Info(logMessageDeliveredConstant, fields...)
	return nil
}

// PersistentNotifier stores events so account holders can list them later.
type PersistentNotifier struct {
	store Store
}

// NewPersistentNotifier constructs a PersistentNotifier.
func NewPersistentNotifier(store Store) (*PersistentNotifier, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	return &PersistentNotifier{store: store}, nil
}

// Notify saves the event.
func (notifier *PersistentNotifier) Notify(executionContext context.Context, event Event) error {
	return notifier.store.Save(executionContext, event)
}

// List returns the newest events of the account. A non-positive limit uses the default page size.
func (notifier *PersistentNotifier) List(executionContext context.Context, accountID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimitConstant
	}
	return notifier.store.List(executionContext, accountID, limit)
}

// Multi delivers each event to every notifier, even when some of them fail.
type Multi struct {
	notifiers []Notifier
}

// NewMulti fans events out to the non-nil notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			filtered = append(filtered, notifier)
		}
	}
	return &Multi{notifiers: filtered}
}

// Notify delivers the event and combines the failures.
func (multi *Multi) Notify(executionContext context.Context, event Event) error {
	var combinedError error
	for _, notifier := range multi.notifiers {
		combinedError = multierr.Append(combinedError, notifier.Notify(executionContext, event))
	}
	return combinedError
}
