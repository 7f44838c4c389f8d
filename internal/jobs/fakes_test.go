package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/jobs"
	"github.com/temirov/usermigration/internal/migrator"
	"github.com/temirov/usermigration/internal/notify"
)

var testClockInstant = time.Date(2024, time.March, 5, 6, 7, 8, 0, time.UTC)

type memoryStore struct {
	mutex          sync.Mutex
	jobs           map[string]jobs.Job
	queue          *memoryQueue
	beforeSchedule func()
}

func newMemoryStore(queue *memoryQueue) *memoryStore {
	return &memoryStore{jobs: make(map[string]jobs.Job), queue: queue}
}

func (store *memoryStore) Schedule(executionContext context.Context, job jobs.Job, task jobs.Task) error {
	if store.beforeSchedule != nil {
		store.beforeSchedule()
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, existing := range store.jobs {
		if existing.AccountID == job.AccountID {
			return jobs.AlreadyQueuedError{AccountID: job.AccountID}
		}
	}
	if enqueueError := store.queue.Enqueue(executionContext, task); enqueueError != nil {
		return enqueueError
	}
	store.jobs[job.ID] = job
	return nil
}

func (store *memoryStore) FindByAccount(_ context.Context, accountID string) (jobs.Job, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, existing := range store.jobs {
		if existing.AccountID == accountID {
			return existing, nil
		}
	}
	return jobs.Job{}, jobs.ErrJobNotFound
}

func (store *memoryStore) FindByID(_ context.Context, jobID string) (jobs.Job, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	existing, exists := store.jobs[jobID]
	if !exists {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	return existing, nil
}

func (store *memoryStore) TransitionStatus(_ context.Context, jobID string, from jobs.Status, to jobs.Status) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	existing, exists := store.jobs[jobID]
	if !exists || existing.Status != from {
		return false, nil
	}
	existing.Status = to
	store.jobs[jobID] = existing
	return true, nil
}

func (store *memoryStore) Delete(_ context.Context, jobID string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	_, exists := store.jobs[jobID]
	delete(store.jobs, jobID)
	return exists, nil
}

func (store *memoryStore) DeleteWithStatus(_ context.Context, jobID string, status jobs.Status) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	existing, exists := store.jobs[jobID]
	if !exists || existing.Status != status {
		return false, nil
	}
	delete(store.jobs, jobID)
	return true, nil
}

func (store *memoryStore) count() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.jobs)
}

type memoryQueue struct {
	mutex        sync.Mutex
	tasks        map[string]jobs.Task
	claimed      map[string]bool
	enqueueError error
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{tasks: make(map[string]jobs.Task), claimed: make(map[string]bool)}
}

func (queue *memoryQueue) Enqueue(_ context.Context, task jobs.Task) error {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	if queue.enqueueError != nil {
		return queue.enqueueError
	}
	queue.tasks[task.JobID] = task
	return nil
}

func (queue *memoryQueue) Has(_ context.Context, jobID string) (bool, error) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	_, exists := queue.tasks[jobID]
	return exists, nil
}

func (queue *memoryQueue) Remove(_ context.Context, jobID string) error {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	delete(queue.tasks, jobID)
	delete(queue.claimed, jobID)
	return nil
}

func (queue *memoryQueue) Claim(_ context.Context, limit int) ([]jobs.Task, error) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	var claimable []jobs.Task
	for jobID, task := range queue.tasks {
		if !queue.claimed[jobID] {
			claimable = append(claimable, task)
		}
	}
	sort.Slice(claimable, func(left int, right int) bool { return claimable[left].JobID < claimable[right].JobID })
	if limit > 0 && len(claimable) > limit {
		claimable = claimable[:limit]
	}
	for _, task := range claimable {
		queue.claimed[task.JobID] = true
	}
	return claimable, nil
}

func (queue *memoryQueue) Release(_ context.Context, jobID string) error {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	delete(queue.claimed, jobID)
	return nil
}

func (queue *memoryQueue) claimedCount() int {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	return len(queue.claimed)
}

func (queue *memoryQueue) count() int {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	return len(queue.tasks)
}

type staticCatalog struct {
	identifiers []string
}

func (catalog staticCatalog) Validate(selection migrator.Selection) error {
	var unknownIDs []string
	for _, identifier := range selection.IDs() {
		known := false
		for _, registered := range catalog.identifiers {
			known = known || registered == identifier
		}
		if !known {
			unknownIDs = append(unknownIDs, identifier)
		}
	}
	if len(unknownIDs) > 0 {
		return migrator.InvalidSelectionError{UnknownIDs: unknownIDs}
	}
	return nil
}

func (catalog staticCatalog) IDs() []string {
	return append([]string(nil), catalog.identifiers...)
}

type recordedRun struct {
	kind            jobs.Kind
	accountID       string
	authorID        string
	archivePath     string
	selection       migrator.Selection
	observedStatus  jobs.Status
	observedJobSeen bool
	contextError    error
}

type recordingRunner struct {
	mutex     sync.Mutex
	store     *memoryStore
	failures  map[string]error
	runs      []recordedRun
	runSignal chan struct{}
	duringRun func()
}

func newRecordingRunner(store *memoryStore) *recordingRunner {
	return &recordingRunner{store: store, failures: make(map[string]error), runSignal: make(chan struct{}, 16)}
}

func (runner *recordingRunner) RunExport(executionContext context.Context, accountID string, selection migrator.Selection) error {
	return runner.record(executionContext, recordedRun{kind: jobs.KindExport, accountID: accountID, authorID: accountID, selection: selection})
}

func (runner *recordingRunner) RunImport(executionContext context.Context, authorID string, targetAccountID string, archivePath string) error {
	return runner.record(executionContext, recordedRun{kind: jobs.KindImport, accountID: targetAccountID, authorID: authorID, archivePath: archivePath})
}

func (runner *recordingRunner) record(executionContext context.Context, run recordedRun) error {
	current, findError := runner.store.FindByAccount(executionContext, run.accountID)
	run.observedJobSeen = findError == nil
	run.observedStatus = current.Status
	if runner.duringRun != nil {
		runner.duringRun()
	}
	run.contextError = executionContext.Err()

	runner.mutex.Lock()
	runner.runs = append(runner.runs, run)
	failure := runner.failures[run.accountID]
	runner.mutex.Unlock()

	runner.runSignal <- struct{}{}
	return failure
}

func (runner *recordingRunner) recordedRuns() []recordedRun {
	runner.mutex.Lock()
	defer runner.mutex.Unlock()
	runs := append([]recordedRun(nil), runner.runs...)
	sort.Slice(runs, func(left int, right int) bool { return runs[left].accountID < runs[right].accountID })
	return runs
}

type recordingNotifier struct {
	mutex  sync.Mutex
	events []notify.Event
}

func (notifier *recordingNotifier) Notify(_ context.Context, event notify.Event) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.events = append(notifier.events, event)
	return nil
}

func (notifier *recordingNotifier) recordedEvents() []notify.Event {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	events := append([]notify.Event(nil), notifier.events...)
	sort.Slice(events, func(left int, right int) bool { return events[left].AccountID < events[right].AccountID })
	return events
}

type trackerFixture struct {
	store   *memoryStore
	queue   *memoryQueue
	tracker *jobs.Tracker
}

func newTrackerFixture(testInstance *testing.T) *trackerFixture {
	testInstance.Helper()
	queue := newMemoryQueue()
	store := newMemoryStore(queue)
	identifierSequence := 0
	var sequenceMutex sync.Mutex
	identifierGenerator := func() string {
		sequenceMutex.Lock()
		defer sequenceMutex.Unlock()
		identifierSequence++
		return fmt.Sprintf("job-%d", identifierSequence)
	}

	tracker, trackerError := jobs.NewTracker(jobs.TrackerDependencies{
		Store:               store,
		Queue:               queue,
		Migrators:           staticCatalog{identifiers: []string{"files", "contacts"}},
		Clock:               func() time.Time { return testClockInstant },
		IdentifierGenerator: identifierGenerator,
	})
	require.NoError(testInstance, trackerError)
	return &trackerFixture{store: store, queue: queue, tracker: tracker}
}

var errRunFailed = errors.New("migration exploded")
