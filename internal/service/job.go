package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demo-ingest/internal/domain"
	"demo-ingest/internal/metrics"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/workqueue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskSubmitter is the part of the workqueue services hand work to.
type TaskSubmitter interface {
	Submit(task workqueue.Task, queueName string) error
}

const (
	StepQueued    = "Queued"
	StepCompleted = "Completed"
	StepFailed    = "Failed"
)

// JobTracker owns the processing job state machine:
// pending → processing → completed | failed. Terminal jobs never change.
type JobTracker struct {
	jobRepo    *repository.JobRepository
	aggregator *Aggregator
	queue      TaskSubmitter
	logger     zerolog.Logger
}

func NewJobTracker(jobRepo *repository.JobRepository, aggregator *Aggregator, queue TaskSubmitter, logger zerolog.Logger) *JobTracker {
	return &JobTracker{jobRepo: jobRepo, aggregator: aggregator, queue: queue, logger: logger}
}

// Create allocates a job for a demo, together with the empty match it will fill.
func (t *JobTracker) Create(ctx context.Context, demoPath string) (*domain.ProcessingJob, error) {
	jobID := uuid.NewString()
	job, err := t.jobRepo.Create(ctx, jobID, demoPath, time.Now().UTC())
	if err != nil {
		t.logger.Error().Err(err).Str("demo_path", demoPath).Msg("failed to create job")
		return nil, err
	}
	metrics.JobsTransitioned.WithLabelValues(string(domain.JobStatusPending)).Inc()
	t.logger.Info().Str("job_id", job.UUID).Int64("match_id", *job.MatchID).Str("demo_path", demoPath).Msg("job created")
	return job, nil
}

func (t *JobTracker) FindByJobID(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	return t.jobRepo.GetByUUID(ctx, jobID)
}

// UpdateProgress records a progress report. Reports for unknown or terminal
// jobs are logged and dropped; applied tells the caller which happened. A
// terminal status is treated as a completion.
func (t *JobTracker) UpdateProgress(ctx context.Context, jobID string, status domain.JobStatus, percent int, step string) (applied bool, err error) {
	if !status.Valid() {
		return false, fmt.Errorf("invalid job status %q", status)
	}
	if status.IsTerminal() {
		return t.Complete(ctx, jobID, status, nil)
	}

	percent = clampPercent(percent)
	logger := t.logger.With().Str("job_id", jobID).Str("status", string(status)).Int("progress", percent).Logger()

	ok, err := t.jobRepo.UpdateProgress(ctx, jobID, status, percent, step, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("failed to update job progress")
		return false, err
	}
	if !ok {
		t.logIgnored(ctx, logger, jobID, "progress")
		return false, nil
	}

	metrics.JobsTransitioned.WithLabelValues(string(status)).Inc()
	logger.Debug().Str("step", step).Msg("job progress updated")
	return true, nil
}

// MarkDispatched records that the parser accepted the demo. It only moves a
// job that is still pending, so progress the parser reported during the
// upload is kept.
func (t *JobTracker) MarkDispatched(ctx context.Context, jobID, step string) (bool, error) {
	ok, err := t.jobRepo.MarkDispatched(ctx, jobID, step, time.Now().UTC())
	if err != nil {
		t.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job dispatched")
		return false, err
	}
	if ok {
		metrics.JobsTransitioned.WithLabelValues(string(domain.JobStatusProcessing)).Inc()
	}
	return ok, nil
}

// Complete moves a job into completed or failed. Only the first completion
// wins; later ones are no-ops. A successful job schedules aggregation of its match.
func (t *JobTracker) Complete(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string) (applied bool, err error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("completion status must be completed or failed, got %q", status)
	}

	logger := t.logger.With().Str("job_id", jobID).Str("status", string(status)).Logger()

	percent, step := 0, StepFailed
	if status == domain.JobStatusCompleted {
		percent, step = 100, StepCompleted
		errMsg = nil
	}

	ok, err := t.jobRepo.Complete(ctx, jobID, status, percent, step, errMsg, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("failed to complete job")
		return false, err
	}
	if !ok {
		t.logIgnored(ctx, logger, jobID, "completion")
		return false, nil
	}

	metrics.JobsTransitioned.WithLabelValues(string(status)).Inc()
	if errMsg != nil {
		logger.Warn().Str("error_message", *errMsg).Msg("job failed")
	} else {
		logger.Info().Msg("job completed")
	}

	if status == domain.JobStatusCompleted {
		t.scheduleAggregation(ctx, jobID)
	}
	return true, nil
}

// Fail is Complete with a failure message.
func (t *JobTracker) Fail(ctx context.Context, jobID, message string) (bool, error) {
	return t.Complete(ctx, jobID, domain.JobStatusFailed, &message)
}

func (t *JobTracker) scheduleAggregation(ctx context.Context, jobID string) {
	job, err := t.jobRepo.GetByUUID(ctx, jobID)
	if err != nil {
		t.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load completed job")
		return
	}
	if job.MatchID == nil {
		t.logger.Warn().Str("job_id", jobID).Msg("completed job has no match, skipping aggregation")
		return
	}
	if err := t.queue.Submit(t.aggregator.Task(*job.MatchID), workqueue.QueueDefault); err != nil {
		t.logger.Error().Err(err).Str("job_id", jobID).Int64("match_id", *job.MatchID).Msg("failed to schedule aggregation")
	}
}

// logIgnored explains why a transition did not apply.
func (t *JobTracker) logIgnored(ctx context.Context, logger zerolog.Logger, jobID, kind string) {
	job, err := t.jobRepo.GetByUUID(ctx, jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		logger.Warn().Msgf("%s for unknown job ignored", kind)
	case err != nil:
		logger.Warn().Err(err).Msgf("%s ignored", kind)
	default:
		logger.Info().Str("current_status", string(job.Status)).Msgf("%s for finished job ignored", kind)
	}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
