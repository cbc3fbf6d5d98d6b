package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	"github.com/rs/zerolog"
)

type JobRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewJobRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *JobRepository {
	return &JobRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Create inserts an empty match and a pending job that owns it in one transaction.
func (r *JobRepository) Create(ctx context.Context, jobUUID, demoPath string, now time.Time) (*domain.ProcessingJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	matchID, err := qtx.CreateMatch(ctx, db.CreateMatchParams{CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	if _, err := qtx.CreateProcessingJob(ctx, db.CreateProcessingJobParams{
		Uuid:        jobUUID,
		MatchID:     &matchID,
		CurrentStep: "Queued",
		DemoPath:    demoPath,
		StartedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("failed to create job %s: %w", jobUUID, err)
	}

	job, err := qtx.GetProcessingJobByUuid(ctx, jobUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to read back job %s: %w", jobUUID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job %s: %w", jobUUID, err)
	}

	r.logger.Debug().Str("job_id", jobUUID).Int64("match_id", matchID).Msg("job created")
	return toDomainJob(job), nil
}

func (r *JobRepository) GetByUUID(ctx context.Context, jobUUID string) (*domain.ProcessingJob, error) {
	job, err := r.queries.GetProcessingJobByUuid(ctx, jobUUID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobUUID, err)
	}
	return toDomainJob(job), nil
}

// LatestForMatch returns the most recent job that produced the match.
func (r *JobRepository) LatestForMatch(ctx context.Context, matchID int64) (*domain.ProcessingJob, error) {
	job, err := r.queries.GetLatestProcessingJobForMatch(ctx, &matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job for match %d: %w", matchID, err)
	}
	return toDomainJob(job), nil
}

// UpdateProgress applies a non-terminal transition. It reports false when the
// job is missing, already terminal, or when a pending report would move a
// processing job backwards.
func (r *JobRepository) UpdateProgress(ctx context.Context, jobUUID string, status domain.JobStatus, percent int, step string, now time.Time) (bool, error) {
	n, err := r.queries.UpdateProcessingJobProgress(ctx, db.UpdateProcessingJobProgressParams{
		Status:          string(status),
		ProgressPercent: int64(percent),
		CurrentStep:     step,
		UpdatedAt:       now,
		Uuid:            jobUUID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update progress for job %s: %w", jobUUID, err)
	}
	return n > 0, nil
}

// MarkDispatched moves a pending job to processing with the given step. Jobs
// the parser already reported on are left alone.
func (r *JobRepository) MarkDispatched(ctx context.Context, jobUUID, step string, now time.Time) (bool, error) {
	n, err := r.queries.MarkProcessingJobDispatched(ctx, db.MarkProcessingJobDispatchedParams{
		CurrentStep: step,
		UpdatedAt:   now,
		Uuid:        jobUUID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark job %s dispatched: %w", jobUUID, err)
	}
	return n > 0, nil
}

// Complete moves a non-terminal job into a terminal status. It reports false
// when the job is missing or already terminal.
func (r *JobRepository) Complete(ctx context.Context, jobUUID string, status domain.JobStatus, percent int, step string, errMsg *string, now time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}
	n, err := r.queries.CompleteProcessingJob(ctx, db.CompleteProcessingJobParams{
		Status:          string(status),
		ProgressPercent: int64(percent),
		CurrentStep:     step,
		ErrorMessage:    errMsg,
		CompletedAt:     now,
		UpdatedAt:       now,
		Uuid:            jobUUID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to complete job %s: %w", jobUUID, err)
	}
	return n > 0, nil
}

func (r *JobRepository) ListStale(ctx context.Context, before time.Time) ([]domain.ProcessingJob, error) {
	jobs, err := r.queries.ListStaleProcessingJobs(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	result := make([]domain.ProcessingJob, len(jobs))
	for i, j := range jobs {
		result[i] = *toDomainJob(j)
	}
	return result, nil
}

func (r *JobRepository) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.queries.DeleteTerminalProcessingJobsBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}
	return n, nil
}

func toDomainJob(j db.ProcessingJob) *domain.ProcessingJob {
	return &domain.ProcessingJob{
		ID:              j.ID,
		UUID:            j.Uuid,
		MatchID:         j.MatchID,
		Status:          domain.JobStatus(j.Status),
		ProgressPercent: int(j.ProgressPercent),
		CurrentStep:     j.CurrentStep,
		ErrorMessage:    j.ErrorMessage,
		DemoPath:        j.DemoPath,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}
