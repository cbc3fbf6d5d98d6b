package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demo-ingest/internal/domain"
	"demo-ingest/internal/metrics"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/validation"

	"github.com/rs/zerolog"
)

type IngestResult struct {
	JobID      string
	EventName  domain.EventName
	Batch      validation.BatchInfo
	Received   int
	Inserted   int
	Duplicates int
}

// BatchProgress compares the batches received for one event type with the
// number the parser declared.
type BatchProgress struct {
	EventName domain.EventName `json:"event_name"`
	Received  int              `json:"received"`
	Expected  int              `json:"expected"`
	Missing   []int            `json:"missing,omitempty"`
	Complete  bool             `json:"complete"`
}

// Ingestor validates and persists event batches streamed by the parser.
type Ingestor struct {
	jobRepo   *repository.JobRepository
	eventRepo *repository.EventRepository
	validator *validation.Validator
	logger    zerolog.Logger
}

func NewIngestor(jobRepo *repository.JobRepository, eventRepo *repository.EventRepository, validator *validation.Validator, logger zerolog.Logger) *Ingestor {
	return &Ingestor{jobRepo: jobRepo, eventRepo: eventRepo, validator: validator, logger: logger}
}

// Ingest stores one batch of events for a job. The batch is validated as a
// whole and inserted idempotently, so a replayed batch reports only duplicates.
func (i *Ingestor) Ingest(ctx context.Context, jobID, eventName string, env validation.BatchEnvelope) (*IngestResult, error) {
	name, err := validation.ParseEventName(eventName)
	if err != nil {
		metrics.BatchesRejected.WithLabelValues("unknown", "event_name").Inc()
		return nil, err
	}

	logger := i.logger.With().Str("job_id", jobID).Str("event_name", eventName).Logger()

	job, err := i.jobRepo.GetByUUID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn().Msg("events for unknown job")
		}
		return nil, err
	}
	if job.Status.IsTerminal() {
		metrics.BatchesRejected.WithLabelValues(eventName, "terminal_job").Inc()
		logger.Warn().Str("status", string(job.Status)).Msg("events for finished job rejected")
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrJobTerminal)
	}
	if job.MatchID == nil {
		return nil, fmt.Errorf("job %s has no match: %w", jobID, domain.ErrMatchNotFound)
	}

	batch, err := env.Batch()
	if err != nil {
		metrics.BatchesRejected.WithLabelValues(eventName, "envelope").Inc()
		logger.Warn().Err(err).Msg("batch envelope rejected")
		return nil, err
	}

	events, err := i.validator.ValidateBatch(name, env.Data)
	if err != nil {
		metrics.BatchesRejected.WithLabelValues(eventName, "validation").Inc()
		logger.Warn().Err(err).Int("batch_index", batch.Index).Msg("batch rejected")
		return nil, err
	}

	res, err := i.eventRepo.InsertBatch(ctx, jobID, *job.MatchID, domain.BatchReceipt{
		EventName:    name,
		Index:        batch.Index,
		Total:        batch.Total,
		IsLast:       batch.IsLast,
		ReceivedRows: len(events),
		ReceivedAt:   time.Now().UTC(),
	}, events)
	if err != nil {
		logger.Error().Err(err).Int("batch_index", batch.Index).Msg("failed to store batch")
		return nil, err
	}

	metrics.EventsReceived.WithLabelValues(eventName).Add(float64(res.Received))
	metrics.EventsInserted.WithLabelValues(eventName).Add(float64(res.Inserted))

	logger.Info().
		Int64("match_id", *job.MatchID).
		Int("batch_index", batch.Index).
		Int("total_batches", batch.Total).
		Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Msg("batch ingested")

	return &IngestResult{
		JobID:      jobID,
		EventName:  name,
		Batch:      batch,
		Received:   res.Received,
		Inserted:   res.Inserted,
		Duplicates: res.Duplicates,
	}, nil
}

// Completeness reports received versus declared batches for every event type.
func (i *Ingestor) Completeness(ctx context.Context, jobID string) ([]BatchProgress, error) {
	if _, err := i.jobRepo.GetByUUID(ctx, jobID); err != nil {
		return nil, err
	}
	receipts, err := i.eventRepo.Batches(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return Completeness(receipts), nil
}

// Completeness folds batch receipts into per-event progress, in the order of
// domain.EventNames. Event types that sent nothing are reported complete with
// nothing expected.
func Completeness(receipts []domain.BatchReceipt) []BatchProgress {
	type acc struct {
		expected int
		seen     map[int]bool
	}
	byName := make(map[domain.EventName]*acc)
	for _, r := range receipts {
		a, ok := byName[r.EventName]
		if !ok {
			a = &acc{seen: make(map[int]bool)}
			byName[r.EventName] = a
		}
		a.seen[r.Index] = true
		if r.Total > a.expected {
			a.expected = r.Total
		}
	}

	out := make([]BatchProgress, 0, len(domain.EventNames))
	for _, name := range domain.EventNames {
		p := BatchProgress{EventName: name, Complete: true}
		if a, ok := byName[name]; ok {
			p.Received = len(a.seen)
			p.Expected = a.expected
			for idx := 1; idx <= a.expected; idx++ {
				if !a.seen[idx] {
					p.Missing = append(p.Missing, idx)
				}
			}
			p.Complete = len(p.Missing) == 0
		}
		out = append(out, p)
	}
	return out
}

// missingBatches lists incomplete event types, or nil when every declared batch arrived.
func missingBatches(progress []BatchProgress) []string {
	var missing []string
	for _, p := range progress {
		if !p.Complete {
			missing = append(missing, fmt.Sprintf("%s %d/%d", p.EventName, p.Received, p.Expected))
		}
	}
	return missing
}
