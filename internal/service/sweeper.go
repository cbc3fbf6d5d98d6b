package service

import (
	"context"
	"fmt"
	"time"

	"demo-ingest/internal/config"
	"demo-ingest/internal/metrics"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/workqueue"

	"github.com/rs/zerolog"
)

// Sweeper fails jobs the parser stopped reporting on and deletes old finished jobs.
type Sweeper struct {
	jobRepo    *repository.JobRepository
	tracker    *JobTracker
	staleAfter time.Duration
	retention  time.Duration
	logger     zerolog.Logger
}

func NewSweeper(cfg *config.Config, jobRepo *repository.JobRepository, tracker *JobTracker, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		jobRepo:    jobRepo,
		tracker:    tracker,
		staleAfter: cfg.StaleJobTimeout,
		retention:  cfg.JobRetention,
		logger:     logger,
	}
}

// SweepStale fails every pending or processing job not updated since now-staleAfter.
func (s *Sweeper) SweepStale(ctx context.Context, now time.Time) (int, error) {
	jobs, err := s.jobRepo.ListStale(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, job := range jobs {
		msg := fmt.Sprintf("no progress reported for %s", s.staleAfter)
		ok, err := s.tracker.Fail(ctx, job.UUID, msg)
		if err != nil {
			return failed, err
		}
		if ok {
			failed++
		}
	}

	if failed > 0 {
		metrics.SweptJobs.WithLabelValues("stale").Add(float64(failed))
		s.logger.Warn().Int("jobs", failed).Dur("stale_after", s.staleAfter).Msg("stale jobs failed")
	}
	return failed, nil
}

// SweepRetention deletes finished jobs older than the retention period. A
// zero retention keeps jobs forever.
func (s *Sweeper) SweepRetention(ctx context.Context, now time.Time) (int64, error) {
	if s.retention == 0 {
		return 0, nil
	}
	n, err := s.jobRepo.DeleteTerminalBefore(ctx, now.Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SweptJobs.WithLabelValues("retention").Add(float64(n))
		s.logger.Info().Int64("jobs", n).Dur("retention", s.retention).Msg("old jobs deleted")
	}
	return n, nil
}

func (s *Sweeper) Task() workqueue.Task {
	return workqueue.TaskFunc{
		TaskID:   "sweep-" + time.Now().UTC().Format(time.RFC3339),
		TaskName: "sweep_jobs",
		Fn: func(ctx context.Context) error {
			now := time.Now().UTC()
			if _, err := s.SweepStale(ctx, now); err != nil {
				return err
			}
			_, err := s.SweepRetention(ctx, now)
			return err
		},
	}
}
