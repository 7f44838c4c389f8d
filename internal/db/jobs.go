package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/temirov/usermigration/internal/db/driver"
	"github.com/temirov/usermigration/internal/jobs"
)

const (
	jobColumnsConstant               = "id, kind, account_id, author_id, selection, archive_path, status, created_at"
	insertJobQueryConstant           = "INSERT INTO migration_jobs (" + jobColumnsConstant + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	selectJobByAccountQueryConstant  = "SELECT " + jobColumnsConstant + " FROM migration_jobs WHERE account_id = ?"
	selectJobByIDQueryConstant       = "SELECT " + jobColumnsConstant + " FROM migration_jobs WHERE id = ?"
	transitionJobQueryConstant       = "UPDATE migration_jobs SET status = ? WHERE id = ? AND status = ?"
	deleteJobQueryConstant           = "DELETE FROM migration_jobs WHERE id = ?"
	deleteJobWithStatusQueryConstant = "DELETE FROM migration_jobs WHERE id = ? AND status = ?"
	insertJobTemplateConstant        = "insert job %s: %w"
	scheduleJobTemplateConstant      = "schedule job %s: %w"
	loadJobTemplateConstant          = "load job: %w"
	encodeSelectionTemplateConstant  = "encode selection of job %s: %w"
	decodeSelectionTemplateConstant  = "decode selection of job %s: %w"
	transitionJobTemplateConstant    = "update status of job %s: %w"
	deleteJobTemplateConstant        = "delete job %s: %w"
)

// JobStore persists migration jobs. The UNIQUE account_id column enforces one job per account.
type JobStore struct {
	database *DB
}

// NewJobStore binds the job store to the database.
func NewJobStore(database *DB) *JobStore {
	return &JobStore{database: database}
}

// Schedule stores a new job and its unclaimed task in one transaction, reporting an
// existing job of the account as AlreadyQueuedError. Nothing is written when either insert fails.
func (store *JobStore) Schedule(executionContext context.Context, job jobs.Job, task jobs.Task) (scheduleError error) {
	encodedSelection, encodeError := json.Marshal(job.Selection)
	if encodeError != nil {
		return fmt.Errorf(encodeSelectionTemplateConstant, job.ID, encodeError)
	}

	databaseDriver := store.database.driver
	transaction, beginError := databaseDriver.BeginTx(executionContext, nil)
	if beginError != nil {
		return fmt.Errorf(scheduleJobTemplateConstant, job.ID, beginError)
	}
	defer func() {
		if scheduleError != nil {
			_ = transaction.Rollback()
		}
	}()

	_, insertError := transaction.Exec(executionContext, databaseDriver.Rebind(insertJobQueryConstant),
		job.ID, string(job.Kind), job.AccountID, job.AuthorID, string(encodedSelection), job.ArchivePath, int(job.Status), job.CreatedAt.Unix())
	if insertError != nil {
		if driver.IsUniqueViolation(insertError) {
			return jobs.AlreadyQueuedError{AccountID: job.AccountID}
		}
		return fmt.Errorf(insertJobTemplateConstant, job.ID, insertError)
	}
	if _, enqueueError := transaction.Exec(executionContext, databaseDriver.Rebind(insertTaskQueryConstant), task.JobID, string(task.Kind), task.AccountID, task.EnqueuedAt.Unix()); enqueueError != nil {
		return fmt.Errorf(enqueueTaskTemplateConstant, task.JobID, enqueueError)
	}
	if commitError := transaction.Commit(); commitError != nil {
		return fmt.Errorf(scheduleJobTemplateConstant, job.ID, commitError)
	}
	return nil
}

// FindByAccount loads the job of the account.
func (store *JobStore) FindByAccount(executionContext context.Context, accountID string) (jobs.Job, error) {
	return scanJob(store.database.queryRow(executionContext, selectJobByAccountQueryConstant, accountID))
}

// FindByID loads a job by identifier.
func (store *JobStore) FindByID(executionContext context.Context, jobID string) (jobs.Job, error) {
	return scanJob(store.database.queryRow(executionContext, selectJobByIDQueryConstant, jobID))
}

// TransitionStatus moves the job from one status to another and reports whether it was in the expected status.
func (store *JobStore) TransitionStatus(executionContext context.Context, jobID string, from jobs.Status, to jobs.Status) (bool, error) {
	result, updateError := store.database.exec(executionContext, transitionJobQueryConstant, int(to), jobID, int(from))
	if updateError != nil {
		return false, fmt.Errorf(transitionJobTemplateConstant, jobID, updateError)
	}
	return affectedAny(result)
}

// Delete removes the job and reports whether it existed.
func (store *JobStore) Delete(executionContext context.Context, jobID string) (bool, error) {
	result, deleteError := store.database.exec(executionContext, deleteJobQueryConstant, jobID)
	if deleteError != nil {
		return false, fmt.Errorf(deleteJobTemplateConstant, jobID, deleteError)
	}
	return affectedAny(result)
}

// DeleteWithStatus removes the job only while it is in the given status.
func (store *JobStore) DeleteWithStatus(executionContext context.Context, jobID string, status jobs.Status) (bool, error) {
	result, deleteError := store.database.exec(executionContext, deleteJobWithStatusQueryConstant, jobID, int(status))
	if deleteError != nil {
		return false, fmt.Errorf(deleteJobTemplateConstant, jobID, deleteError)
	}
	return affectedAny(result)
}

func scanJob(row rowScanner) (jobs.Job, error) {
	var (
		job              jobs.Job
		kind             string
		encodedSelection string
		status           int
		createdAt        int64
	)
	scanError := row.Scan(&job.ID, &kind, &job.AccountID, &job.AuthorID, &encodedSelection, &job.ArchivePath, &status, &createdAt)
	if errors.Is(scanError, sql.ErrNoRows) {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	if scanError != nil {
		return jobs.Job{}, fmt.Errorf(loadJobTemplateConstant, scanError)
	}
	if decodeError := json.Unmarshal([]byte(encodedSelection), &job.Selection); decodeError != nil {
		return jobs.Job{}, fmt.Errorf(decodeSelectionTemplateConstant, job.ID, decodeError)
	}
	job.Kind = jobs.Kind(kind)
	job.Status = jobs.Status(status)
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	return job, nil
}
