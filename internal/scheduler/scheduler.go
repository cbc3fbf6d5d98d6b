// Package scheduler submits periodic background work to the scheduled queue.
package scheduler

import (
	"context"
	"sync"
	"time"

	"demo-ingest/internal/workqueue"

	"github.com/rs/zerolog"
)

// Submitter accepts tasks for a named queue.
type Submitter interface {
	Submit(task workqueue.Task, queueName string) error
}

// Job produces a fresh task every time its interval elapses.
type Job struct {
	Name     string
	Interval time.Duration
	Task     func() workqueue.Task
}

type Scheduler struct {
	queue  Submitter
	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func New(queue Submitter, logger zerolog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{queue: queue, jobs: jobs, logger: logger}
}

// Start launches one ticker loop per job. Jobs with a non-positive interval
// are disabled.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Info().Str("job", job.Name).Msg("scheduled job disabled")
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop ends every loop and waits for them, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.queue.Submit(job.Task(), workqueue.QueueScheduled); err != nil {
				s.logger.Warn().Err(err).Str("job", job.Name).Msg("failed to submit scheduled job")
				continue
			}
			s.logger.Debug().Str("job", job.Name).Msg("scheduled job submitted")
		}
	}
}
