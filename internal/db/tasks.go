package db

import (
	"context"
	"fmt"
	"time"

	"github.com/temirov/usermigration/internal/jobs"
)

const (
	insertTaskQueryConstant           = "INSERT INTO migration_tasks (job_id, kind, account_id, claimed, enqueued_at) VALUES (?, ?, ?, 0, ?)"
	countTaskQueryConstant            = "SELECT COUNT(*) FROM migration_tasks WHERE job_id = ?"
	deleteTaskQueryConstant           = "DELETE FROM migration_tasks WHERE job_id = ?"
	selectUnclaimedTasksQueryConstant = "SELECT job_id, kind, account_id, enqueued_at FROM migration_tasks WHERE claimed = 0 ORDER BY enqueued_at, job_id"
	claimTaskQueryConstant            = "UPDATE migration_tasks SET claimed = 1 WHERE job_id = ? AND claimed = 0"
	releaseTaskQueryConstant          = "UPDATE migration_tasks SET claimed = 0 WHERE job_id = ?"
	limitClauseConstant               = " LIMIT ?"
	enqueueTaskTemplateConstant       = "enqueue task for job %s: %w"
	lookupTaskTemplateConstant        = "look up task for job %s: %w"
	removeTaskTemplateConstant        = "remove task for job %s: %w"
	claimTasksTemplateConstant        = "claim tasks: %w"
	releaseTaskTemplateConstant       = "release task for job %s: %w"
)

// TaskQueue is the durable queue of background migration tasks. Claimed tasks stay
// in the table until the worker removes them.
type TaskQueue struct {
	database *DB
}

// NewTaskQueue binds the task queue to the database.
func NewTaskQueue(database *DB) *TaskQueue {
	return &TaskQueue{database: database}
}

// Enqueue adds an unclaimed task.
func (queue *TaskQueue) Enqueue(executionContext context.Context, task jobs.Task) error {
	if _, insertError := queue.database.exec(executionContext, insertTaskQueryConstant, task.JobID, string(task.Kind), task.AccountID, task.EnqueuedAt.Unix()); insertError != nil {
		return fmt.Errorf(enqueueTaskTemplateConstant, task.JobID, insertError)
	}
	return nil
}

// Has reports whether the task of the job is still queued or running.
func (queue *TaskQueue) Has(executionContext context.Context, jobID string) (bool, error) {
	var count int
	if scanError := queue.database.queryRow(executionContext, countTaskQueryConstant, jobID).Scan(&count); scanError != nil {
		return false, fmt.Errorf(lookupTaskTemplateConstant, jobID, scanError)
	}
	return count > 0, nil
}

// Remove deletes the task of the job. Removing an absent task does nothing.
func (queue *TaskQueue) Remove(executionContext context.Context, jobID string) error {
	if _, deleteError := queue.database.exec(executionContext, deleteTaskQueryConstant, jobID); deleteError != nil {
		return fmt.Errorf(removeTaskTemplateConstant, jobID, deleteError)
	}
	return nil
}

// Claim marks up to limit unclaimed tasks as claimed, oldest first, and returns them.
// A limit of zero or less claims every unclaimed task. A task claimed concurrently by
// another worker is skipped.
func (queue *TaskQueue) Claim(executionContext context.Context, limit int) ([]jobs.Task, error) {
	candidates, loadError := queue.unclaimed(executionContext, limit)
	if loadError != nil {
		return nil, loadError
	}

	claimed := make([]jobs.Task, 0, len(candidates))
	for _, candidate := range candidates {
		result, updateError := queue.database.exec(executionContext, claimTaskQueryConstant, candidate.JobID)
		if updateError != nil {
			return claimed, fmt.Errorf(claimTasksTemplateConstant, updateError)
		}
		won, affectedError := affectedAny(result)
		if affectedError != nil {
			return claimed, fmt.Errorf(claimTasksTemplateConstant, affectedError)
		}
		if won {
			claimed = append(claimed, candidate)
		}
	}
	return claimed, nil
}

// Release marks the task of the job unclaimed again.
func (queue *TaskQueue) Release(executionContext context.Context, jobID string) error {
	if _, updateError := queue.database.exec(executionContext, releaseTaskQueryConstant, jobID); updateError != nil {
		return fmt.Errorf(releaseTaskTemplateConstant, jobID, updateError)
	}
	return nil
}

func (queue *TaskQueue) unclaimed(executionContext context.Context, limit int) ([]jobs.Task, error) {
	query := selectUnclaimedTasksQueryConstant
	var arguments []any
	if limit > 0 {
		query += limitClauseConstant
		arguments = append(arguments, limit)
	}

	rows, queryError := queue.database.query(executionContext, query, arguments...)
	if queryError != nil {
		return nil, fmt.Errorf(claimTasksTemplateConstant, queryError)
	}
	defer func() { _ = rows.Close() }()

	var tasks []jobs.Task
	for rows.Next() {
		var (
			task       jobs.Task
			kind       string
			enqueuedAt int64
		)
		if scanError := rows.Scan(&task.JobID, &kind, &task.AccountID, &enqueuedAt); scanError != nil {
			return nil, fmt.Errorf(claimTasksTemplateConstant, scanError)
		}
		task.Kind = jobs.Kind(kind)
		task.EnqueuedAt = time.Unix(enqueuedAt, 0).UTC()
		tasks = append(tasks, task)
	}
	if iterateError := rows.Err(); iterateError != nil {
		return nil, fmt.Errorf(claimTasksTemplateConstant, iterateError)
	}
	return tasks, nil
}
