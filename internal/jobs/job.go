package jobs

import (
	"context"
	"time"

	"github.com/temirov/usermigration/internal/migrator"
)

// Kind distinguishes exports from imports.
type Kind string

const (
	// KindExport writes an account archive.
	KindExport Kind = "export"
	// KindImport restores an account archive.
	KindImport Kind = "import"
)

// Status is the persisted lifecycle position of a job.
type Status int

const (
	// StatusWaiting marks a queued job that may still be cancelled.
	StatusWaiting Status = iota
	// StatusStarted marks a job whose migration is running.
	StatusStarted
)

const (
	statusWaitingNameConstant = "waiting"
	statusStartedNameConstant = "started"
	statusUnknownNameConstant = "unknown"
)

// String names the status.
func (status Status) String() string {
	switch status {
	case StatusWaiting:
		return statusWaitingNameConstant
	case StatusStarted:
		return statusStartedNameConstant
	default:
		return statusUnknownNameConstant
	}
}

// Job is the persisted intent to export or import one account.
// For exports AuthorID equals AccountID; for imports AccountID is the target.
type Job struct {
	ID          string
	Kind        Kind
	AccountID   string
	AuthorID    string
	Selection   migrator.Selection
	ArchivePath string
	Status      Status
	CreatedAt   time.Time
}

// Task is the queued unit of background work backing a job.
type Task struct {
	JobID      string
	Kind       Kind
	AccountID  string
	EnqueuedAt time.Time
}

// Store persists jobs. Schedule records the job together with its task in one atomic
// write and reports a second job for the same account as AlreadyQueuedError; a job is
// never observable without its task.
type Store interface {
	Schedule(executionContext context.Context, job Job, task Task) error
	FindByAccount(executionContext context.Context, accountID string) (Job, error)
	FindByID(executionContext context.Context, jobID string) (Job, error)
	TransitionStatus(executionContext context.Context, jobID string, from Status, to Status) (bool, error)
	Delete(executionContext context.Context, jobID string) (bool, error)
	DeleteWithStatus(executionContext context.Context, jobID string, status Status) (bool, error)
}

// Queue is the durable task queue consulted to detect jobs whose task went missing.
// Tasks of new jobs are written by Store.Schedule; Enqueue adds a bare task.
// Claimed tasks stay visible to Has until they are removed.
type Queue interface {
	Enqueue(executionContext context.Context, task Task) error
	Has(executionContext context.Context, jobID string) (bool, error)
	Remove(executionContext context.Context, jobID string) error
	Claim(executionContext context.Context, limit int) ([]Task, error)
	// Release returns a claimed task to the queue so that a later Claim picks it up again.
	Release(executionContext context.Context, jobID string) error
}

// State summarises what an account is currently doing.
type State string

const (
	// StateNone reports an account without a job.
	StateNone State = "none"
	// StateExporting reports a queued or running export.
	StateExporting State = "exporting"
	// StateImporting reports a queued or running import.
	StateImporting State = "importing"
)

// Report is the status answer for one account.
type Report struct {
	State     State      `json:"state" yaml:"state"`
	Status    string     `json:"status,omitempty" yaml:"status,omitempty"`
	JobID     string     `json:"jobId,omitempty" yaml:"job_id,omitempty"`
	Migrators []string   `json:"migrators,omitempty" yaml:"migrators,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
}

// NewReport describes the job, or the absence of one. migratorIDs is the job's
// selection expanded against the registered migrators.
func NewReport(job *Job, migratorIDs []string) Report {
	if job == nil {
		return Report{State: StateNone}
	}
	state := StateExporting
	if job.Kind == KindImport {
		state = StateImporting
	}
	createdAt := job.CreatedAt
	return Report{
		State:     state,
		Status:    job.Status.String(),
		JobID:     job.ID,
		Migrators: migratorIDs,
		CreatedAt: &createdAt,
	}
}
