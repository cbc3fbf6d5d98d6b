package repository

import (
	"context"
	"database/sql"
	"fmt"

	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	"github.com/rs/zerolog"
)

type LeaderboardRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewLeaderboardRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *LeaderboardRepository {
	return &LeaderboardRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Replace swaps the snapshot for one (group, type, window) in a single
// transaction and returns how many stale rows it removed. An empty entries
// slice leaves the board empty.
func (r *LeaderboardRepository) Replace(ctx context.Context, groupID string, lt domain.LeaderboardType, window domain.TimeWindow, entries []domain.LeaderboardEntry) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	removed, err := qtx.DeleteLeaderboard(ctx, db.DeleteLeaderboardParams{
		GroupID:         groupID,
		LeaderboardType: string(lt),
		TimeWindow:      string(window),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear leaderboard %s/%s/%s: %w", groupID, lt, window, err)
	}

	for _, e := range entries {
		if err := qtx.InsertLeaderboardEntry(ctx, db.InsertLeaderboardEntryParams{
			ID:              e.ID,
			GroupID:         groupID,
			LeaderboardType: string(lt),
			TimeWindow:      string(window),
			SteamID:         e.SteamID,
			Position:        int64(e.Position),
			Value:           e.Value,
			MatchesPlayed:   int64(e.MatchesPlayed),
			Generation:      e.Generation,
			CalculatedAt:    e.CalculatedAt,
		}); err != nil {
			return 0, fmt.Errorf("failed to insert leaderboard entry for %s: %w", e.SteamID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit leaderboard %s/%s/%s: %w", groupID, lt, window, err)
	}
	return removed, nil
}

func (r *LeaderboardRepository) List(ctx context.Context, groupID string, lt domain.LeaderboardType, window domain.TimeWindow) ([]domain.LeaderboardEntry, error) {
	rows, err := r.queries.ListLeaderboard(ctx, db.ListLeaderboardParams{
		GroupID:         groupID,
		LeaderboardType: string(lt),
		TimeWindow:      string(window),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard %s/%s/%s: %w", groupID, lt, window, err)
	}

	result := make([]domain.LeaderboardEntry, len(rows))
	for i, row := range rows {
		result[i] = domain.LeaderboardEntry{
			ID:              row.ID,
			GroupID:         row.GroupID,
			LeaderboardType: domain.LeaderboardType(row.LeaderboardType),
			TimeWindow:      domain.TimeWindow(row.TimeWindow),
			SteamID:         row.SteamID,
			Position:        int(row.Position),
			Value:           row.Value,
			MatchesPlayed:   int(row.MatchesPlayed),
			Generation:      row.Generation,
			CalculatedAt:    row.CalculatedAt,
		}
	}
	return result, nil
}
