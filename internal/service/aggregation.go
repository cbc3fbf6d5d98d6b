package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"demo-ingest/internal/config"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/metrics"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/scoring"
	"demo-ingest/internal/workqueue"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Aggregator computes per-player match summaries from persisted events.
type Aggregator struct {
	jobRepo     *repository.JobRepository
	matchRepo   *repository.MatchRepository
	eventRepo   *repository.EventRepository
	summaryRepo *repository.SummaryRepository
	table       *scoring.Table
	queue       TaskSubmitter
	logger      zerolog.Logger
}

func NewAggregator(
	cfg *config.Config,
	jobRepo *repository.JobRepository,
	matchRepo *repository.MatchRepository,
	eventRepo *repository.EventRepository,
	summaryRepo *repository.SummaryRepository,
	queue TaskSubmitter,
	logger zerolog.Logger,
) (*Aggregator, error) {
	table, err := scoring.Load(cfg.ComplexionTablePath)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		jobRepo:     jobRepo,
		matchRepo:   matchRepo,
		eventRepo:   eventRepo,
		summaryRepo: summaryRepo,
		table:       table,
		queue:       queue,
		logger:      logger,
	}, nil
}

// Aggregate recomputes and replaces every summary of a match. It refuses to
// run while the owning job still has undelivered batches.
func (a *Aggregator) Aggregate(ctx context.Context, matchID int64) ([]domain.PlayerMatchSummary, error) {
	start := time.Now()
	logger := a.logger.With().Int64("match_id", matchID).Logger()

	match, err := a.matchRepo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if err := a.checkComplete(ctx, matchID); err != nil {
		logger.Warn().Err(err).Msg("aggregation deferred")
		return nil, err
	}

	var (
		roster []domain.MatchPlayer
		events domain.EventSet
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roster, err = a.matchRepo.Roster(gCtx, matchID)
		return err
	})
	g.Go(func() error {
		var err error
		events.Gunfights, err = a.eventRepo.Gunfights(gCtx, matchID)
		return err
	})
	g.Go(func() error {
		var err error
		events.Damages, err = a.eventRepo.Damages(gCtx, matchID)
		return err
	})
	g.Go(func() error {
		var err error
		events.Grenades, err = a.eventRepo.Grenades(gCtx, matchID)
		return err
	})
	g.Go(func() error {
		var err error
		events.Rounds, err = a.eventRepo.Rounds(gCtx, matchID)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("failed to load match events")
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}

	if len(roster) == 0 {
		return nil, fmt.Errorf("match %d: %w", matchID, domain.ErrRosterMissing)
	}

	now := time.Now().UTC()
	result := scoring.Aggregate(scoring.Input{
		MatchID:     matchID,
		TotalRounds: match.TotalRounds,
		Roster:      roster,
		Events:      events,
	}, a.table, now)

	if match.TotalRounds > 0 && result.ObservedRounds != match.TotalRounds {
		logger.Warn().
			Int("total_rounds", match.TotalRounds).
			Int("observed_rounds", result.ObservedRounds).
			Msg("round count differs from match metadata")
	}

	fights, grenades := len(events.Gunfights), len(events.Grenades)
	if err := a.summaryRepo.ReplaceForMatch(ctx, matchID, result.Summaries, fights, grenades, now); err != nil {
		logger.Error().Err(err).Msg("failed to store summaries")
		return nil, err
	}

	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int("players", len(result.Summaries)).
		Int("fight_events", fights).
		Int("grenade_events", grenades).
		Dur("duration", time.Since(start)).
		Msg("match aggregated")
	return result.Summaries, nil
}

func (a *Aggregator) checkComplete(ctx context.Context, matchID int64) error {
	job, err := a.jobRepo.LatestForMatch(ctx, matchID)
	if errors.Is(err, domain.ErrJobNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	receipts, err := a.eventRepo.Batches(ctx, job.UUID)
	if err != nil {
		return err
	}
	if missing := missingBatches(Completeness(receipts)); len(missing) > 0 {
		return fmt.Errorf("job %s: %s: %w", job.UUID, strings.Join(missing, ", "), domain.ErrIncompleteIngestion)
	}
	return nil
}

// Task wraps aggregation of one match for the workqueue.
func (a *Aggregator) Task(matchID int64) workqueue.Task {
	return &aggregationTask{aggregator: a, matchID: matchID}
}

// Reprocess schedules a high priority re-aggregation of an existing match.
func (a *Aggregator) Reprocess(ctx context.Context, matchID int64) error {
	if _, err := a.matchRepo.Get(ctx, matchID); err != nil {
		return err
	}
	if err := a.queue.Submit(a.Task(matchID), workqueue.QueueHigh); err != nil {
		return fmt.Errorf("failed to schedule reprocessing of match %d: %w", matchID, err)
	}
	a.logger.Info().Int64("match_id", matchID).Msg("match reprocessing scheduled")
	return nil
}

type aggregationTask struct {
	aggregator *Aggregator
	matchID    int64
}

func (t *aggregationTask) ID() string   { return "match-" + strconv.FormatInt(t.matchID, 10) }
func (t *aggregationTask) Name() string { return "aggregate_match" }

func (t *aggregationTask) Execute(ctx context.Context) error {
	_, err := t.aggregator.Aggregate(ctx, t.matchID)
	if errors.Is(err, domain.ErrMatchNotFound) || errors.Is(err, domain.ErrRosterMissing) {
		return workqueue.Permanent(err)
	}
	return err
}

func (t *aggregationTask) OnFailure(ctx context.Context, err error) {
	t.aggregator.logger.Error().Err(err).Int64("match_id", t.matchID).Msg("match aggregation abandoned")
}
