package ui

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/notify"
)

const (
	exportCompletedMessageTemplateConstant = "Exported %s (%s)"
	exportFailedMessageTemplateConstant    = "Export of %s failed: %s"
	importCompletedMessageTemplateConstant = "Imported %s into %s"
	importFailedMessageTemplateConstant    = "Import of %s into %s failed: %s"
	unknownEventMessageTemplateConstant    = "%s for %s"
	jobSuffixTemplateConstant              = " [job %s]"
	migratorsJoinSeparatorConstant         = ", "
	coreDataOnlyLabelConstant              = "core data only"
	unknownFailureMessageConstant          = "unknown error"
	unknownArchiveLabelConstant            = "archive"
	emptyStringConstant                    = ""
)

// EventFormatter builds human-readable messages for migration job outcomes.
type EventFormatter struct{}

// BuildMessage formats the message describing the event.
func (formatter EventFormatter) BuildMessage(event notify.Event) string {
	var message string
	switch event.Type {
	case notify.EventExportDone:
		message = fmt.Sprintf(exportCompletedMessageTemplateConstant, event.AccountID, formatter.formatMigrators(event.Migrators))
	case notify.EventExportFailed:
		message = fmt.Sprintf(exportFailedMessageTemplateConstant, event.AccountID, formatter.formatFailure(event.Failure))
	case notify.EventImportDone:
		message = fmt.Sprintf(importCompletedMessageTemplateConstant, formatter.formatArchive(event.ArchivePath), formatter.formatTarget(event))
	case notify.EventImportFailed:
		message = fmt.Sprintf(importFailedMessageTemplateConstant, formatter.formatArchive(event.ArchivePath), formatter.formatTarget(event), formatter.formatFailure(event.Failure))
	default:
		message = fmt.Sprintf(unknownEventMessageTemplateConstant, event.Type, event.AccountID)
	}
	return message + formatter.formatJobSuffix(event.JobID)
}

func (formatter EventFormatter) formatMigrators(migratorIdentifiers []string) string {
	if len(migratorIdentifiers) == 0 {
		return coreDataOnlyLabelConstant
	}
	return strings.Join(migratorIdentifiers, migratorsJoinSeparatorConstant)
}

func (formatter EventFormatter) formatFailure(failure string) string {
	trimmedFailure := strings.TrimSpace(failure)
	if len(trimmedFailure) == 0 {
		return unknownFailureMessageConstant
	}
	return trimmedFailure
}

func (formatter EventFormatter) formatArchive(archivePath string) string {
	trimmedArchivePath := strings.TrimSpace(archivePath)
	if len(trimmedArchivePath) == 0 {
		return unknownArchiveLabelConstant
	}
	return trimmedArchivePath
}

func (formatter EventFormatter) formatTarget(event notify.Event) string {
	if len(event.TargetAccountID) > 0 {
		return event.TargetAccountID
	}
	return event.AccountID
}

func (formatter EventFormatter) formatJobSuffix(jobID string) string {
	trimmedJobID := strings.TrimSpace(jobID)
	if len(trimmedJobID) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(jobSuffixTemplateConstant, trimmedJobID)
}

// ConsoleEventNotifier renders job outcomes using a zap logger configured for human-readable output.
type ConsoleEventNotifier struct {
	logger    *zap.Logger
	formatter EventFormatter
}

// NewConsoleEventNotifier constructs a console notifier backed by the provided zap logger.
func NewConsoleEventNotifier(logger *zap.Logger) *ConsoleEventNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleEventNotifier{logger: logger, formatter: EventFormatter{}}
}

// Notify implements notify.Notifier by logging the formatted event, at warn level for failures.
func (eventNotifier *ConsoleEventNotifier) Notify(_ context.Context, event notify.Event) error {
	if eventNotifier == nil {
		return nil
	}
	if event.Type.Failed() {
		eventNotifier.logger.Warn(eventNotifier.formatter.BuildMessage(event))
		return nil
	}
	eventNotifier.logger.Info(eventNotifier.formatter.BuildMessage(event))
	return nil
}
