package jobs

import (
	"errors"
	"fmt"
)

const (
	alreadyQueuedTemplateConstant        = "an %s job is already queued for account %s"
	alreadyQueuedUnknownTemplateConstant = "a job is already queued for account %s"
	notCancelableTemplateConstant        = "job %s of account %s is %s and can no longer be cancelled"
	inconsistentJobTemplateConstant      = "job %s of account %s lost its background task and was discarded"
	invalidTransitionTemplateConstant    = "job %s cannot move from %s to %s"
	jobNotFoundMessageConstant           = "job not found"
	storeRequiredMessageConstant         = "job store is unavailable"
	queueRequiredMessageConstant         = "task queue is unavailable"
	catalogRequiredMessageConstant       = "migrator catalog is unavailable"
	trackerRequiredMessageConstant       = "job tracker is unavailable"
	runnerRequiredMessageConstant        = "job runner is unavailable"
	archivePathRequiredMessageConstant   = "import archive path is required"
	accountRequiredMessageConstant       = "account identifier is required"
	importTargetMismatchMessageConstant  = "accounts may only import into themselves"
)

var (
	// ErrJobNotFound reports a lookup for a job that does not exist.
	ErrJobNotFound = errors.New(jobNotFoundMessageConstant)
	// ErrStoreRequired reports a tracker built without a job store.
	ErrStoreRequired = errors.New(storeRequiredMessageConstant)
	// ErrQueueRequired reports a tracker built without a task queue.
	ErrQueueRequired = errors.New(queueRequiredMessageConstant)
	// ErrCatalogRequired reports a tracker built without the registered migrators.
	ErrCatalogRequired = errors.New(catalogRequiredMessageConstant)
	// ErrTrackerRequired reports a worker built without a tracker.
	ErrTrackerRequired = errors.New(trackerRequiredMessageConstant)
	// ErrRunnerRequired reports a worker built without a runner.
	ErrRunnerRequired = errors.New(runnerRequiredMessageConstant)
	// ErrArchivePathRequired reports an import request without an archive.
	ErrArchivePathRequired = errors.New(archivePathRequiredMessageConstant)
	// ErrAccountRequired reports a request without an account.
	ErrAccountRequired = errors.New(accountRequiredMessageConstant)
	// ErrImportTargetMismatch reports an import queued by one account into another.
	ErrImportTargetMismatch = errors.New(importTargetMismatchMessageConstant)
)

// AlreadyQueuedError reports a second job for an account that already has one.
// Kind is the kind of the existing job when it is known.
type AlreadyQueuedError struct {
	AccountID string
	Kind      Kind
}

// Error describes the conflict.
func (alreadyQueuedError AlreadyQueuedError) Error() string {
	if len(alreadyQueuedError.Kind) == 0 {
		return fmt.Sprintf(alreadyQueuedUnknownTemplateConstant, alreadyQueuedError.AccountID)
	}
	return fmt.Sprintf(alreadyQueuedTemplateConstant, alreadyQueuedError.Kind, alreadyQueuedError.AccountID)
}

// JobNotCancelableError reports a cancellation of a job that already started.
type JobNotCancelableError struct {
	JobID     string
	AccountID string
	Status    Status
}

// Error describes the refused cancellation.
func (notCancelableError JobNotCancelableError) Error() string {
	return fmt.Sprintf(notCancelableTemplateConstant, notCancelableError.JobID, notCancelableError.AccountID, notCancelableError.Status)
}

// InconsistentJobError reports a job row whose background task disappeared. The row is deleted
// before the error is returned.
type InconsistentJobError struct {
	JobID     string
	AccountID string
}

// Error describes the discarded job.
func (inconsistentError InconsistentJobError) Error() string {
	return fmt.Sprintf(inconsistentJobTemplateConstant, inconsistentError.JobID, inconsistentError.AccountID)
}

// InvalidTransitionError reports a status change the lifecycle does not allow.
type InvalidTransitionError struct {
	JobID string
	From  Status
	To    Status
}

// Error describes the transition.
func (transitionError InvalidTransitionError) Error() string {
	return fmt.Sprintf(invalidTransitionTemplateConstant, transitionError.JobID, transitionError.From, transitionError.To)
}
