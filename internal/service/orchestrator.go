package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"demo-ingest/internal/api"
	"demo-ingest/internal/config"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/workqueue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Parser is the external demo parsing worker.
type Parser interface {
	CheckHealth(ctx context.Context) error
	UploadDemo(ctx context.Context, filePath, jobID string) error
}

// Orchestrator accepts demos, creates their jobs and hands them to the parser
// in the background.
type Orchestrator struct {
	tracker *JobTracker
	parser  Parser
	queue   TaskSubmitter
	demoDir string
	logger  zerolog.Logger
}

func NewOrchestrator(cfg *config.Config, tracker *JobTracker, parser Parser, queue TaskSubmitter, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		tracker: tracker,
		parser:  parser,
		queue:   queue,
		demoDir: cfg.DemoDir,
		logger:  logger,
	}
}

// SubmitDemo stores an uploaded demo and starts processing it.
func (o *Orchestrator) SubmitDemo(ctx context.Context, r io.Reader) (*domain.ProcessingJob, error) {
	if err := os.MkdirAll(o.demoDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create demo dir: %w", err)
	}

	path := filepath.Join(o.demoDir, uuid.NewString()+".dem")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create demo file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to store demo: %w", err)
	}

	o.logger.Debug().Str("demo_path", path).Int64("bytes", n).Msg("demo stored")
	return o.Start(ctx, path)
}

// Start creates a job for a demo already on disk and queues its upload.
func (o *Orchestrator) Start(ctx context.Context, demoPath string) (*domain.ProcessingJob, error) {
	job, err := o.tracker.Create(ctx, demoPath)
	if err != nil {
		return nil, err
	}

	if err := o.queue.Submit(&uploadTask{orchestrator: o, jobID: job.UUID, demoPath: demoPath}, workqueue.QueueDefault); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.UUID).Msg("failed to queue demo upload")
		if _, ferr := o.tracker.Fail(ctx, job.UUID, "could not queue upload: "+err.Error()); ferr != nil {
			o.logger.Error().Err(ferr).Str("job_id", job.UUID).Msg("failed to mark job failed")
		}
		return nil, err
	}
	return job, nil
}

// dispatch checks the parser is up and sends it the demo. Parser errors are
// permanent for this attempt; anything else is left to the queue to retry.
func (o *Orchestrator) dispatch(ctx context.Context, jobID, demoPath string) error {
	logger := o.logger.With().Str("job_id", jobID).Str("demo_path", demoPath).Logger()

	if err := o.parser.CheckHealth(ctx); err != nil {
		return parserError(err)
	}
	if _, err := o.tracker.UpdateProgress(ctx, jobID, domain.JobStatusPending, 0, "Uploading demo"); err != nil {
		return err
	}

	if err := o.parser.UploadDemo(ctx, demoPath, jobID); err != nil {
		return parserError(err)
	}
	moved, err := o.tracker.MarkDispatched(ctx, jobID, "Demo sent to parser")
	if err != nil {
		return err
	}

	logger.Info().Bool("parser_reported", !moved).Msg("demo dispatched")
	return nil
}

func parserError(err error) error {
	var unavailable *api.ServiceUnavailableError
	var uploadFailed *api.UploadFailedError
	if errors.As(err, &unavailable) || errors.As(err, &uploadFailed) {
		return workqueue.Permanent(err)
	}
	return err
}

type uploadTask struct {
	orchestrator *Orchestrator
	jobID        string
	demoPath     string
}

func (t *uploadTask) ID() string   { return t.jobID }
func (t *uploadTask) Name() string { return "dispatch_demo" }

func (t *uploadTask) Execute(ctx context.Context) error {
	return t.orchestrator.dispatch(ctx, t.jobID, t.demoPath)
}

func (t *uploadTask) OnFailure(ctx context.Context, err error) {
	if _, ferr := t.orchestrator.tracker.Fail(ctx, t.jobID, err.Error()); ferr != nil {
		t.orchestrator.logger.Error().Err(ferr).Str("job_id", t.jobID).Msg("failed to mark job failed")
	}
}
