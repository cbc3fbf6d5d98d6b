package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"demo-ingest/internal/constants"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/metrics"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/workqueue"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LeaderboardCalculator ranks group members on averaged per-match scores.
type LeaderboardCalculator struct {
	groupRepo       *repository.GroupRepository
	summaryRepo     *repository.SummaryRepository
	leaderboardRepo *repository.LeaderboardRepository
	logger          zerolog.Logger
}

func NewLeaderboardCalculator(groupRepo *repository.GroupRepository, summaryRepo *repository.SummaryRepository, leaderboardRepo *repository.LeaderboardRepository, logger zerolog.Logger) *LeaderboardCalculator {
	return &LeaderboardCalculator{
		groupRepo:       groupRepo,
		summaryRepo:     summaryRepo,
		leaderboardRepo: leaderboardRepo,
		logger:          logger,
	}
}

// RunAll recalculates every leaderboard of every group. A failing group does
// not stop the others; the first error is returned at the end.
func (c *LeaderboardCalculator) RunAll(ctx context.Context) error {
	groups, err := c.groupRepo.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var firstErr error
	for _, g := range groups {
		if err := c.Calculate(ctx, g.ID, now); err != nil {
			c.logger.Error().Err(err).Str("group_id", g.ID).Msg("leaderboard calculation failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.logger.Info().Int("groups", len(groups)).Msg("leaderboards recalculated")
	return firstErr
}

// Calculate replaces every (type, window) snapshot of one group.
func (c *LeaderboardCalculator) Calculate(ctx context.Context, groupID string, now time.Time) error {
	if _, err := c.groupRepo.Get(ctx, groupID); err != nil {
		return err
	}

	summaries := make(map[domain.TimeWindow][]domain.PlayerMatchSummary, len(domain.TimeWindows))
	for _, w := range domain.TimeWindows {
		s, err := c.summaryRepo.ListForGroupSince(ctx, groupID, now.Add(-w.Duration()))
		if err != nil {
			return err
		}
		summaries[w] = s
	}

	generation, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate leaderboard generation id: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.LeaderboardConcurrency)
	for _, w := range domain.TimeWindows {
		for _, lt := range domain.LeaderboardTypes {
			w, lt := w, lt
			g.Go(func() error {
				return c.replace(gCtx, groupID, lt, w, summaries[w], generation, now)
			})
		}
	}
	return g.Wait()
}

func (c *LeaderboardCalculator) replace(ctx context.Context, groupID string, lt domain.LeaderboardType, w domain.TimeWindow, summaries []domain.PlayerMatchSummary, generation string, now time.Time) error {
	entries := Rank(summaries, lt)
	for i := range entries {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate leaderboard entry id: %w", err)
		}
		entries[i].ID = id
		entries[i].GroupID = groupID
		entries[i].TimeWindow = w
		entries[i].Generation = generation
		entries[i].CalculatedAt = now
	}

	removed, err := c.leaderboardRepo.Replace(ctx, groupID, lt, w, entries)
	if err != nil {
		return err
	}

	metrics.LeaderboardEntries.WithLabelValues(string(lt), string(w)).Set(float64(len(entries)))
	c.logger.Debug().
		Str("group_id", groupID).
		Str("type", string(lt)).
		Str("window", string(w)).
		Int("entries", len(entries)).
		Int64("removed", removed).
		Msg("leaderboard replaced")
	return nil
}

// Rank averages the leaderboard's per-match value for each player and orders
// players by it, highest first. Ties go to the player with more matches, then
// to the lower steam id.
func Rank(summaries []domain.PlayerMatchSummary, lt domain.LeaderboardType) []domain.LeaderboardEntry {
	type acc struct {
		sum     float64
		matches int
	}
	byPlayer := make(map[string]*acc)
	for _, s := range summaries {
		a, ok := byPlayer[s.SteamID]
		if !ok {
			a = &acc{}
			byPlayer[s.SteamID] = a
		}
		a.sum += lt.Value(s)
		a.matches++
	}

	entries := make([]domain.LeaderboardEntry, 0, len(byPlayer))
	for steamID, a := range byPlayer {
		entries = append(entries, domain.LeaderboardEntry{
			LeaderboardType: lt,
			SteamID:         steamID,
			Value:           a.sum / float64(a.matches),
			MatchesPlayed:   a.matches,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		if a.MatchesPlayed != b.MatchesPlayed {
			return a.MatchesPlayed > b.MatchesPlayed
		}
		return a.SteamID < b.SteamID
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}

// Leaderboard returns the latest snapshot for one group, type and window.
func (c *LeaderboardCalculator) Leaderboard(ctx context.Context, groupID string, lt domain.LeaderboardType, w domain.TimeWindow) ([]domain.LeaderboardEntry, error) {
	if !lt.Valid() {
		return nil, fmt.Errorf("unknown leaderboard type %q", lt)
	}
	if !w.Valid() {
		return nil, fmt.Errorf("unknown time window %q", w)
	}
	if _, err := c.groupRepo.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return c.leaderboardRepo.List(ctx, groupID, lt, w)
}

// Task wraps a full recalculation for the scheduled queue.
func (c *LeaderboardCalculator) Task() workqueue.Task {
	return workqueue.TaskFunc{
		TaskID:   "leaderboards-" + time.Now().UTC().Format(time.RFC3339),
		TaskName: "calculate_leaderboards",
		Fn: func(ctx context.Context) error {
			err := c.RunAll(ctx)
			if errors.Is(err, domain.ErrGroupNotFound) {
				return workqueue.Permanent(err)
			}
			return err
		},
	}
}

// GroupService manages the player groups leaderboards are computed for.
type GroupService struct {
	groupRepo *repository.GroupRepository
	logger    zerolog.Logger
}

func NewGroupService(groupRepo *repository.GroupRepository, logger zerolog.Logger) *GroupService {
	return &GroupService{groupRepo: groupRepo, logger: logger}
}

func (s *GroupService) Create(ctx context.Context, name string) (*domain.Group, error) {
	g, err := s.groupRepo.Create(ctx, name, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("group_id", g.ID).Str("name", name).Msg("group created")
	return g, nil
}

// AddMembers adds players to a group and reports how many were new.
func (s *GroupService) AddMembers(ctx context.Context, groupID string, steamIDs []string) (int, error) {
	added, err := s.groupRepo.AddMembers(ctx, groupID, steamIDs, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("group_id", groupID).Int("added", added).Int("requested", len(steamIDs)).Msg("group members added")
	return added, nil
}

func (s *GroupService) Get(ctx context.Context, groupID string) (*domain.Group, []string, error) {
	g, err := s.groupRepo.Get(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.groupRepo.Members(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	return g, members, nil
}
