package db

import (
	"context"
	"time"
)

const processingJobColumns = `id, uuid, match_id, status, progress_percent, current_step, error_message, demo_path, started_at, completed_at, created_at, updated_at`

func scanProcessingJob(row interface{ Scan(...interface{}) error }) (ProcessingJob, error) {
	var i ProcessingJob
	err := row.Scan(
		&i.ID,
		&i.Uuid,
		&i.MatchID,
		&i.Status,
		&i.ProgressPercent,
		&i.CurrentStep,
		&i.ErrorMessage,
		&i.DemoPath,
		&i.StartedAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProcessingJob = `-- name: CreateProcessingJob :execlastid
INSERT INTO processing_jobs (uuid, match_id, status, progress_percent, current_step, demo_path, started_at, created_at, updated_at)
VALUES (?, ?, 'pending', 0, ?, ?, ?, ?, ?)`

type CreateProcessingJobParams struct {
	Uuid        string    `json:"uuid"`
	MatchID     *int64    `json:"match_id"`
	CurrentStep string    `json:"current_step"`
	DemoPath    string    `json:"demo_path"`
	StartedAt   time.Time `json:"started_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (q *Queries) CreateProcessingJob(ctx context.Context, arg CreateProcessingJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createProcessingJob,
		arg.Uuid,
		arg.MatchID,
		arg.CurrentStep,
		arg.DemoPath,
		arg.StartedAt,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getProcessingJobByUuid = `-- name: GetProcessingJobByUuid :one
SELECT ` + processingJobColumns + ` FROM processing_jobs WHERE uuid = ?`

func (q *Queries) GetProcessingJobByUuid(ctx context.Context, uuid string) (ProcessingJob, error) {
	row := q.db.QueryRowContext(ctx, getProcessingJobByUuid, uuid)
	return scanProcessingJob(row)
}

const getLatestProcessingJobForMatch = `-- name: GetLatestProcessingJobForMatch :one
SELECT ` + processingJobColumns + ` FROM processing_jobs
WHERE match_id = ?
ORDER BY id DESC
LIMIT 1`

func (q *Queries) GetLatestProcessingJobForMatch(ctx context.Context, matchID *int64) (ProcessingJob, error) {
	row := q.db.QueryRowContext(ctx, getLatestProcessingJobForMatch, matchID)
	return scanProcessingJob(row)
}

const updateProcessingJobProgress = `-- name: UpdateProcessingJobProgress :execrows
UPDATE processing_jobs
SET status = ?,
    progress_percent = MAX(progress_percent, ?),
    current_step = ?,
    updated_at = ?
WHERE uuid = ? AND (status = 'pending' OR (status = 'processing' AND ? = 'processing'))`

type UpdateProcessingJobProgressParams struct {
	Status          string    `json:"status"`
	ProgressPercent int64     `json:"progress_percent"`
	CurrentStep     string    `json:"current_step"`
	UpdatedAt       time.Time `json:"updated_at"`
	Uuid            string    `json:"uuid"`
}

func (q *Queries) UpdateProcessingJobProgress(ctx context.Context, arg UpdateProcessingJobProgressParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateProcessingJobProgress,
		arg.Status,
		arg.ProgressPercent,
		arg.CurrentStep,
		arg.UpdatedAt,
		arg.Uuid,
		arg.Status,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markProcessingJobDispatched = `-- name: MarkProcessingJobDispatched :execrows
UPDATE processing_jobs
SET status = 'processing',
    current_step = ?,
    updated_at = ?
WHERE uuid = ? AND status = 'pending'`

type MarkProcessingJobDispatchedParams struct {
	CurrentStep string    `json:"current_step"`
	UpdatedAt   time.Time `json:"updated_at"`
	Uuid        string    `json:"uuid"`
}

func (q *Queries) MarkProcessingJobDispatched(ctx context.Context, arg MarkProcessingJobDispatchedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markProcessingJobDispatched, arg.CurrentStep, arg.UpdatedAt, arg.Uuid)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const completeProcessingJob = `-- name: CompleteProcessingJob :execrows
UPDATE processing_jobs
SET status = ?,
    progress_percent = MAX(progress_percent, ?),
    current_step = ?,
    error_message = ?,
    completed_at = ?,
    updated_at = ?
WHERE uuid = ? AND status IN ('pending', 'processing')`

type CompleteProcessingJobParams struct {
	Status          string    `json:"status"`
	ProgressPercent int64     `json:"progress_percent"`
	CurrentStep     string    `json:"current_step"`
	ErrorMessage    *string   `json:"error_message"`
	CompletedAt     time.Time `json:"completed_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Uuid            string    `json:"uuid"`
}

func (q *Queries) CompleteProcessingJob(ctx context.Context, arg CompleteProcessingJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeProcessingJob,
		arg.Status,
		arg.ProgressPercent,
		arg.CurrentStep,
		arg.ErrorMessage,
		arg.CompletedAt,
		arg.UpdatedAt,
		arg.Uuid,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listStaleProcessingJobs = `-- name: ListStaleProcessingJobs :many
SELECT ` + processingJobColumns + ` FROM processing_jobs
WHERE status IN ('pending', 'processing') AND updated_at < ?
ORDER BY id`

func (q *Queries) ListStaleProcessingJobs(ctx context.Context, before time.Time) ([]ProcessingJob, error) {
	rows, err := q.db.QueryContext(ctx, listStaleProcessingJobs, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProcessingJob
	for rows.Next() {
		i, err := scanProcessingJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteTerminalProcessingJobsBefore = `-- name: DeleteTerminalProcessingJobsBefore :execrows
DELETE FROM processing_jobs
WHERE status IN ('completed', 'failed') AND completed_at < ?`

func (q *Queries) DeleteTerminalProcessingJobsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTerminalProcessingJobsBefore, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
