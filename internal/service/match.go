package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"demo-ingest/internal/config"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/validation"

	"github.com/rs/zerolog"
)

// Registry records match metadata and rosters reported by the parser.
type Registry struct {
	jobRepo    *repository.JobRepository
	matchRepo  *repository.MatchRepository
	playerRepo *repository.PlayerRepository
	tracker    *JobTracker
	validator  *validation.Validator
	production bool
	logger     zerolog.Logger
}

func NewRegistry(jobRepo *repository.JobRepository, matchRepo *repository.MatchRepository, playerRepo *repository.PlayerRepository, tracker *JobTracker, validator *validation.Validator, cfg *config.Config, logger zerolog.Logger) *Registry {
	return &Registry{
		jobRepo:    jobRepo,
		matchRepo:  matchRepo,
		playerRepo: playerRepo,
		tracker:    tracker,
		validator:  validator,
		production: cfg.IsProduction(),
		logger:     logger,
	}
}

// MatchHash fingerprints a match by its header and roster. The roster is
// sorted by steam id first, so the order players are reported in does not matter.
func MatchHash(meta domain.MatchMeta, roster []domain.RosterEntry) string {
	players := make([]domain.RosterEntry, len(roster))
	copy(players, roster)
	sort.Slice(players, func(i, j int) bool { return players[i].SteamID < players[j].SteamID })

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%d|%s|%d|%d",
		meta.Map, meta.WinningTeamScore, meta.LosingTeamScore, meta.MatchType, meta.TotalRounds, meta.PlaybackTicks)
	for _, p := range players {
		fmt.Fprintf(&b, "|%s:%s", p.SteamID, p.Team)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ComputeMatchHash returns the match hash, or nil outside production where
// the same demo is routinely ingested more than once.
func (r *Registry) ComputeMatchHash(meta domain.MatchMeta, roster []domain.RosterEntry) *string {
	if !r.production {
		return nil
	}
	h := MatchHash(meta, roster)
	return &h
}

// RegisterMetadata validates and stores the match header and roster for a
// job's match. A duplicate of an already ingested match fails the job.
func (r *Registry) RegisterMetadata(ctx context.Context, jobID string, m validation.MatchMetadata) (*domain.Match, error) {
	logger := r.logger.With().Str("job_id", jobID).Logger()

	job, err := r.jobRepo.GetByUUID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrJobTerminal)
	}
	if job.MatchID == nil {
		return nil, fmt.Errorf("job %s has no match: %w", jobID, domain.ErrMatchNotFound)
	}

	meta, roster, err := r.validator.ValidateMatchMetadata(m)
	if err != nil {
		logger.Warn().Err(err).Msg("match metadata rejected")
		return nil, err
	}

	hash := r.ComputeMatchHash(meta, roster)
	err = r.matchRepo.RegisterMetadata(ctx, *job.MatchID, meta, hash, roster, time.Now().UTC())
	if errors.Is(err, domain.ErrDuplicateMatch) {
		logger.Warn().Err(err).Int64("match_id", *job.MatchID).Msg("duplicate match, failing job")
		if _, ferr := r.tracker.Fail(ctx, jobID, "duplicate match: "+err.Error()); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to fail duplicate job")
		}
		return nil, err
	}
	if err != nil {
		logger.Error().Err(err).Int64("match_id", *job.MatchID).Msg("failed to register match metadata")
		return nil, err
	}

	logger.Info().
		Int64("match_id", *job.MatchID).
		Str("map", meta.Map).
		Int("players", len(roster)).
		Msg("match metadata registered")
	return r.matchRepo.Get(ctx, *job.MatchID)
}

// UpsertPlayer finds or creates a player, counting one more match for them.
func (r *Registry) UpsertPlayer(ctx context.Context, steamID, name string) (*domain.Player, error) {
	return r.playerRepo.Upsert(ctx, steamID, name, time.Now().UTC())
}

func (r *Registry) Match(ctx context.Context, matchID int64) (*domain.Match, error) {
	return r.matchRepo.Get(ctx, matchID)
}
