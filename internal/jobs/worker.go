package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/notify"
)

const (
	defaultConcurrencyConstant          = 4
	defaultPollIntervalConstant         = 5 * time.Second
	claimAllTasksConstant               = 0
	logMessageDuplicateDeliveryConstant = "migration task has no job, skipping"
	logMessageAlreadyStartedConstant    = "migration job already started, skipping duplicate task"
	logMessageTaskReleasedConstant      = "worker stopping, returned migration task to the queue"
	logMessageJobFailedConstant         = "migration job failed"
	logMessageNotificationConstant      = "failed to deliver migration notification"
	logMessagePollFailedConstant        = "failed to process migration tasks"
	logMessageWorkerStoppedConstant     = "migration worker stopped"
	logFieldProcessedConstant           = "processed"
)

// Runner executes the migration a job describes.
type Runner interface {
	RunExport(executionContext context.Context, accountID string, selection migrator.Selection) error
	RunImport(executionContext context.Context, authorID string, targetAccountID string, archivePath string) error
}

// WorkerDependencies wires the collaborators of a Worker.
type WorkerDependencies struct {
	Tracker             *Tracker
	Runner              Runner
	Notifier            notify.Notifier
	Logger              *zap.Logger
	Concurrency         int
	PollInterval        time.Duration
	Clock               func() time.Time
	IdentifierGenerator func() string
}

// Worker claims queued tasks and runs them. Tasks of different accounts run in
// parallel up to the configured concurrency; each task runs sequentially.
type Worker struct {
	tracker             *Tracker
	runner              Runner
	notifier            notify.Notifier
	logger              *zap.Logger
	concurrency         int
	pollInterval        time.Duration
	clock               func() time.Time
	identifierGenerator func() string
}

// NewWorker validates dependencies and constructs a Worker.
func NewWorker(dependencies WorkerDependencies) (*Worker, error) {
	if dependencies.Tracker == nil {
		return nil, ErrTrackerRequired
	}
	if dependencies.Runner == nil {
		return nil, ErrRunnerRequired
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := dependencies.Notifier
	if notifier == nil {
		notifier = notify.NewLoggingNotifier(logger)
	}
	concurrency := dependencies.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrencyConstant
	}
	pollInterval := dependencies.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollIntervalConstant
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	identifierGenerator := dependencies.IdentifierGenerator
	if identifierGenerator == nil {
		identifierGenerator = uuid.NewString
	}

	return &Worker{
		tracker:             dependencies.Tracker,
		runner:              dependencies.Runner,
		notifier:            notifier,
		logger:              logger,
		concurrency:         concurrency,
		pollInterval:        pollInterval,
		clock:               clock,
		identifierGenerator: identifierGenerator,
	}, nil
}

// ProcessPending claims every queued task, runs them, and returns how many were claimed.
// Migration failures are reported through notifications; only bookkeeping failures are returned.
// Cancelling the context stops jobs from starting: their tasks go back to the queue. Jobs
// that already started run to completion and are finished regardless of the context.
func (worker *Worker) ProcessPending(executionContext context.Context) (int, error) {
	tasks, claimError := worker.tracker.queue.Claim(executionContext, claimAllTasksConstant)
	if claimError != nil {
		return 0, claimError
	}

	var group errgroup.Group
	group.SetLimit(worker.concurrency)
	for taskIndex := range tasks {
		task := tasks[taskIndex]
		group.Go(func() error {
			return worker.process(executionContext, task)
		})
	}
	return len(tasks), group.Wait()
}

// Run processes tasks every poll interval until the context is cancelled. Jobs running
// at that moment finish before Run returns.
func (worker *Worker) Run(executionContext context.Context) error {
	ticker := time.NewTicker(worker.pollInterval)
	defer ticker.Stop()

	for executionContext.Err() == nil {
		processed, processError := worker.ProcessPending(executionContext)
		if processError != nil {
			worker.logger.Error(logMessagePollFailedConstant, zap.Int(logFieldProcessedConstant, processed), zap.Error(processError))
		}

		select {
		case <-executionContext.Done():
		case <-ticker.C:
		}
	}
	worker.logger.Info(logMessageWorkerStoppedConstant)
	return nil
}

func (worker *Worker) process(executionContext context.Context, task Task) error {
	jobContext := context.WithoutCancel(executionContext)
	if executionContext.Err() != nil {
		worker.logger.Info(logMessageTaskReleasedConstant, zap.String(logFieldJobIDConstant, task.JobID), zap.String(logFieldAccountIDConstant, task.AccountID))
		return worker.tracker.queue.Release(jobContext, task.JobID)
	}

	job, startError := worker.tracker.Start(jobContext, task.JobID)
	if errors.Is(startError, ErrJobNotFound) {
		worker.logger.Info(logMessageDuplicateDeliveryConstant, zap.String(logFieldJobIDConstant, task.JobID), zap.String(logFieldAccountIDConstant, task.AccountID))
		return worker.tracker.queue.Remove(jobContext, task.JobID)
	}
	var transitionError InvalidTransitionError
	if errors.As(startError, &transitionError) {
		worker.logger.Info(logMessageAlreadyStartedConstant, zap.String(logFieldJobIDConstant, task.JobID), zap.String(logFieldAccountIDConstant, task.AccountID))
		return nil
	}
	if startError != nil {
		return startError
	}

	runError := worker.execute(jobContext, job)
	finishError := worker.tracker.Finish(jobContext, job)

	if runError != nil {
		worker.logger.Error(logMessageJobFailedConstant, append(worker.tracker.jobFields(job), zap.Error(runError))...)
	}
	if notifyError := worker.notifier.Notify(jobContext, worker.event(job, runError)); notifyError != nil {
		worker.logger.Error(logMessageNotificationConstant, append(worker.tracker.jobFields(job), zap.Error(notifyError))...)
	}
	return finishError
}

func (worker *Worker) execute(executionContext context.Context, job Job) error {
	if job.Kind == KindImport {
		return worker.runner.RunImport(executionContext, job.AuthorID, job.AccountID, job.ArchivePath)
	}
	return worker.runner.RunExport(executionContext, job.AccountID, job.Selection)
}

func (worker *Worker) event(job Job, runError error) notify.Event {
	event := notify.Event{
		ID:          worker.identifierGenerator(),
		AccountID:   job.AuthorID,
		JobID:       job.ID,
		Migrators:   worker.tracker.selectedIDs(job.Selection),
		ArchivePath: job.ArchivePath,
		CreatedAt:   worker.clock(),
	}
	switch {
	case job.Kind == KindImport && runError == nil:
		event.Type = notify.EventImportDone
	case job.Kind == KindImport:
		event.Type = notify.EventImportFailed
	case runError == nil:
		event.Type = notify.EventExportDone
	default:
		event.Type = notify.EventExportFailed
	}
	if job.Kind == KindImport {
		event.AuthorID = job.AuthorID
		event.TargetAccountID = job.AccountID
	}
	if runError != nil {
		event.Failure = runError.Error()
	}
	return event
}
