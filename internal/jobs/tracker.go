package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/usermigration/internal/migrator"
)

const (
	scheduleJobTemplateConstant       = "failed to schedule job %s: %w"
	lookupTaskTemplateConstant        = "failed to look up task of job %s: %w"
	discardJobTemplateConstant        = "failed to discard job %s: %w"
	logMessageJobQueuedConstant       = "migration job queued"
	logMessageJobCancelledConstant    = "migration job cancelled"
	logMessageJobStartedConstant      = "migration job started"
	logMessageJobFinishedConstant     = "migration job finished"
	logMessageInconsistentJobConstant = "migration job lost its task and was discarded"
	logFieldJobIDConstant             = "job_id"
	logFieldAccountIDConstant         = "account_id"
	logFieldAuthorIDConstant          = "author_id"
	logFieldKindConstant              = "kind"
	logFieldSelectionConstant         = "selection"
)

// MigratorCatalog exposes the registered migrators a job may select.
type MigratorCatalog interface {
	Validate(selection migrator.Selection) error
	IDs() []string
}

// TrackerDependencies wires the collaborators of a Tracker.
type TrackerDependencies struct {
	Store               Store
	Queue               Queue
	Migrators           MigratorCatalog
	Logger              *zap.Logger
	Clock               func() time.Time
	IdentifierGenerator func() string
}

// Tracker enforces the one-job-per-account rule and the job lifecycle.
type Tracker struct {
	store               Store
	queue               Queue
	migrators           MigratorCatalog
	logger              *zap.Logger
	clock               func() time.Time
	identifierGenerator func() string
}

// NewTracker validates dependencies and constructs a Tracker.
func NewTracker(dependencies TrackerDependencies) (*Tracker, error) {
	if dependencies.Store == nil {
		return nil, ErrStoreRequired
	}
	if dependencies.Queue == nil {
		return nil, ErrQueueRequired
	}
	if dependencies.Migrators == nil {
		return nil, ErrCatalogRequired
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	identifierGenerator := dependencies.IdentifierGenerator
	if identifierGenerator == nil {
		identifierGenerator = uuid.NewString
	}

	return &Tracker{
		store:               dependencies.Store,
		queue:               dependencies.Queue,
		migrators:           dependencies.Migrators,
		logger:              logger,
		clock:               clock,
		identifierGenerator: identifierGenerator,
	}, nil
}

// QueueExport records an export of the selected migrators and schedules it.
func (tracker *Tracker) QueueExport(executionContext context.Context, accountID string, selection migrator.Selection) (Job, error) {
	trimmedAccountID := strings.TrimSpace(accountID)
	if len(trimmedAccountID) == 0 {
		return Job{}, ErrAccountRequired
	}
	if selectionError := tracker.migrators.Validate(selection); selectionError != nil {
		return Job{}, selectionError
	}

	return tracker.enqueue(executionContext, Job{
		ID:        tracker.identifierGenerator(),
		Kind:      KindExport,
		AccountID: trimmedAccountID,
		AuthorID:  trimmedAccountID,
		Selection: selection,
		Status:    StatusWaiting,
		CreatedAt: tracker.clock(),
	})
}

// QueueImport records an import of the archive stored in the author's files and schedules it.
// An empty target imports into the author, the only target a queued import accepts.
// Imports always run every registered migrator.
func (tracker *Tracker) QueueImport(executionContext context.Context, authorID string, targetAccountID string, archivePath string) (Job, error) {
	trimmedAuthorID := strings.TrimSpace(authorID)
	if len(trimmedAuthorID) == 0 {
		return Job{}, ErrAccountRequired
	}
	trimmedTargetID := strings.TrimSpace(targetAccountID)
	if len(trimmedTargetID) == 0 {
		trimmedTargetID = trimmedAuthorID
	}
	if trimmedTargetID != trimmedAuthorID {
		return Job{}, ErrImportTargetMismatch
	}
	trimmedArchivePath := strings.TrimSpace(archivePath)
	if len(trimmedArchivePath) == 0 {
		return Job{}, ErrArchivePathRequired
	}

	return tracker.enqueue(executionContext, Job{
		ID:          tracker.identifierGenerator(),
		Kind:        KindImport,
		AccountID:   trimmedTargetID,
		AuthorID:    trimmedAuthorID,
		Selection:   migrator.SelectIDs(tracker.migrators.IDs()...),
		ArchivePath: trimmedArchivePath,
		Status:      StatusWaiting,
		CreatedAt:   tracker.clock(),
	})
}

// Current returns the job of the account, or nil when there is none. A job whose
// background task disappeared is deleted and reported as InconsistentJobError.
func (tracker *Tracker) Current(executionContext context.Context, accountID string) (*Job, error) {
	job, findError := tracker.store.FindByAccount(executionContext, accountID)
	if errors.Is(findError, ErrJobNotFound) {
		return nil, nil
	}
	if findError != nil {
		return nil, findError
	}

	taskExists, taskError := tracker.queue.Has(executionContext, job.ID)
	if taskError != nil {
		return nil, fmt.Errorf(lookupTaskTemplateConstant, job.ID, taskError)
	}
	if taskExists {
		return &job, nil
	}

	if _, deleteError := tracker.store.Delete(executionContext, job.ID); deleteError != nil {
		return nil, fmt.Errorf(discardJobTemplateConstant, job.ID, deleteError)
	}
	tracker.logger.Warn(logMessageInconsistentJobConstant, tracker.jobFields(job)...)
	return nil, InconsistentJobError{JobID: job.ID, AccountID: job.AccountID}
}

// Status reports what the account is currently doing.
func (tracker *Tracker) Status(executionContext context.Context, accountID string) (Report, error) {
	job, currentError := tracker.Current(executionContext, accountID)
	if currentError != nil {
		return Report{}, currentError
	}
	if job == nil {
		return NewReport(nil, nil), nil
	}
	return NewReport(job, tracker.selectedIDs(job.Selection)), nil
}

// Cancel removes the waiting job of the account. Started jobs cannot be cancelled.
func (tracker *Tracker) Cancel(executionContext context.Context, accountID string) (Job, error) {
	job, currentError := tracker.Current(executionContext, accountID)
	if currentError != nil {
		return Job{}, currentError
	}
	if job == nil {
		return Job{}, ErrJobNotFound
	}
	if job.Status != StatusWaiting {
		return Job{}, JobNotCancelableError{JobID: job.ID, AccountID: job.AccountID, Status: job.Status}
	}

	deleted, deleteError := tracker.store.DeleteWithStatus(executionContext, job.ID, StatusWaiting)
	if deleteError != nil {
		return Job{}, deleteError
	}
	if !deleted {
		return Job{}, JobNotCancelableError{JobID: job.ID, AccountID: job.AccountID, Status: StatusStarted}
	}
	if removeError := tracker.queue.Remove(executionContext, job.ID); removeError != nil {
		return Job{}, removeError
	}

	tracker.logger.Info(logMessageJobCancelledConstant, tracker.jobFields(*job)...)
	return *job, nil
}

// Start moves a waiting job to STARTED. It succeeds exactly once per job.
func (tracker *Tracker) Start(executionContext context.Context, jobID string) (Job, error) {
	job, findError := tracker.store.FindByID(executionContext, jobID)
	if findError != nil {
		return Job{}, findError
	}

	transitioned, transitionError := tracker.store.TransitionStatus(executionContext, jobID, StatusWaiting, StatusStarted)
	if transitionError != nil {
		return Job{}, transitionError
	}
	if !transitioned {
		return Job{}, InvalidTransitionError{JobID: jobID, From: job.Status, To: StatusStarted}
	}

	job.Status = StatusStarted
	tracker.logger.Info(logMessageJobStartedConstant, tracker.jobFields(job)...)
	return job, nil
}

// Finish deletes the job and its task. Finishing an absent job does nothing.
func (tracker *Tracker) Finish(executionContext context.Context, job Job) error {
	if _, deleteError := tracker.store.Delete(executionContext, job.ID); deleteError != nil {
		return deleteError
	}
	if removeError := tracker.queue.Remove(executionContext, job.ID); removeError != nil {
		return removeError
	}
	tracker.logger.Info(logMessageJobFinishedConstant, tracker.jobFields(job)...)
	return nil
}

func (tracker *Tracker) enqueue(executionContext context.Context, job Job) (Job, error) {
	task := Task{JobID: job.ID, Kind: job.Kind, AccountID: job.AccountID, EnqueuedAt: job.CreatedAt}
	if scheduleError := tracker.store.Schedule(executionContext, job, task); scheduleError != nil {
		var alreadyQueuedError AlreadyQueuedError
		if errors.As(scheduleError, &alreadyQueuedError) {
			if len(alreadyQueuedError.Kind) == 0 {
				if existing, findError := tracker.store.FindByAccount(executionContext, job.AccountID); findError == nil {
					alreadyQueuedError.Kind = existing.Kind
				}
			}
			return Job{}, alreadyQueuedError
		}
		return Job{}, fmt.Errorf(scheduleJobTemplateConstant, job.ID, scheduleError)
	}

	tracker.logger.Info(logMessageJobQueuedConstant, append(tracker.jobFields(job), zap.Stringer(logFieldSelectionConstant, job.Selection))...)
	return job, nil
}

// selectedIDs expands a selection into the identifiers it covers.
func (tracker *Tracker) selectedIDs(selection migrator.Selection) []string {
	if selection.IsAll() {
		return tracker.migrators.IDs()
	}
	return selection.IDs()
}

func (tracker *Tracker) jobFields(job Job) []zap.Field {
	return []zap.Field{
		zap.String(logFieldJobIDConstant, job.ID),
		zap.String(logFieldKindConstant, string(job.Kind)),
		zap.String(logFieldAccountIDConstant, job.AccountID),
		zap.String(logFieldAuthorIDConstant, job.AuthorID),
	}
}
