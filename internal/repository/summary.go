package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type SummaryRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewSummaryRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SummaryRepository {
	return &SummaryRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

type clutchJSON struct {
	Size      int `json:"size"`
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// ReplaceForMatch overwrites every summary of a match and resets the match
// event counters to the stored totals in a single transaction.
func (r *SummaryRepository) ReplaceForMatch(ctx context.Context, matchID int64, summaries []domain.PlayerMatchSummary, fights, grenades int, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if err := qtx.DeleteMatchSummaries(ctx, matchID); err != nil {
		return fmt.Errorf("failed to clear summaries for match %d: %w", matchID, err)
	}

	for _, s := range summaries {
		row, err := toSummaryRow(matchID, s)
		if err != nil {
			return err
		}
		if err := qtx.InsertPlayerMatchSummary(ctx, row); err != nil {
			return fmt.Errorf("failed to insert summary %d/%s: %w", matchID, s.SteamID, err)
		}
	}

	if err := qtx.SetMatchEventCounts(ctx, db.SetMatchEventCountsParams{
		TotalFightEvents:   int64(fights),
		TotalGrenadeEvents: int64(grenades),
		UpdatedAt:          now,
		ID:                 matchID,
	}); err != nil {
		return fmt.Errorf("failed to set counters for match %d: %w", matchID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summaries for match %d: %w", matchID, err)
	}

	r.logger.Debug().Int64("match_id", matchID).Int("summaries", len(summaries)).Msg("summaries replaced")
	return nil
}

func (r *SummaryRepository) ListForMatch(ctx context.Context, matchID int64) ([]domain.PlayerMatchSummary, error) {
	rows, err := r.queries.ListMatchSummaries(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries for match %d: %w", matchID, err)
	}
	return toDomainSummaries(rows)
}

// ListForGroupSince returns the summaries of every group member for matches
// created at or after since.
func (r *SummaryRepository) ListForGroupSince(ctx context.Context, groupID string, since time.Time) ([]domain.PlayerMatchSummary, error) {
	rows, err := r.queries.ListGroupSummariesSince(ctx, db.ListGroupSummariesSinceParams{
		GroupID: groupID,
		Since:   since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries for group %s: %w", groupID, err)
	}
	return toDomainSummaries(rows)
}

func toSummaryRow(matchID int64, s domain.PlayerMatchSummary) (db.InsertPlayerMatchSummaryParams, error) {
	clutches := make([]clutchJSON, len(s.Clutches))
	for i, c := range s.Clutches {
		clutches[i] = clutchJSON{Size: i + 1, Attempts: c.Attempts, Successes: c.Successes}
	}
	encoded, err := json.Marshal(clutches)
	if err != nil {
		return db.InsertPlayerMatchSummaryParams{}, fmt.Errorf("failed to encode clutch stats: %w", err)
	}

	return db.InsertPlayerMatchSummaryParams{
		MatchID:              matchID,
		SteamID:              s.SteamID,
		Team:                 string(s.Team),
		RoundsPlayed:         int64(s.RoundsPlayed),
		Kills:                int64(s.Kills),
		Deaths:               int64(s.Deaths),
		Assists:              int64(s.Assists),
		Headshots:            int64(s.Headshots),
		Wallbangs:            int64(s.Wallbangs),
		DamageDealt:          int64(s.DamageDealt),
		DamageTaken:          int64(s.DamageTaken),
		UtilityDamage:        int64(s.UtilityDamage),
		EnemyFlashDuration:   s.EnemyFlashDuration,
		TeamFlashDuration:    s.TeamFlashDuration,
		SmokeBlockingSeconds: s.SmokeBlockingSeconds,
		FirstKills:           int64(s.FirstKills),
		FirstDeaths:          int64(s.FirstDeaths),
		ClutchStats:          string(encoded),
		ClutchAttempts:       int64(s.ClutchAttempts()),
		ClutchSuccesses:      int64(s.ClutchSuccesses()),
		KdRatio:              s.KDRatio,
		HeadshotPercentage:   s.HeadshotPercentage,
		ClutchSuccessRate:    s.ClutchSuccessRate,
		ImpactScore:          s.ImpactScore,
		RoundSwing:           s.RoundSwing,
		OpenerScore:          s.OpenerScore,
		CloserScore:          s.CloserScore,
		SupportScore:         s.SupportScore,
		FraggerScore:         s.FraggerScore,
		ComputedAt:           s.ComputedAt,
	}, nil
}

func toDomainSummaries(rows []db.PlayerMatchSummary) ([]domain.PlayerMatchSummary, error) {
	result := make([]domain.PlayerMatchSummary, len(rows))
	for i, row := range rows {
		var clutches []clutchJSON
		if err := json.Unmarshal([]byte(row.ClutchStats), &clutches); err != nil {
			return nil, fmt.Errorf("failed to decode clutch stats for %d/%s: %w", row.MatchID, row.SteamID, err)
		}

		s := domain.PlayerMatchSummary{
			MatchID:              row.MatchID,
			SteamID:              row.SteamID,
			Team:                 domain.Team(row.Team),
			RoundsPlayed:         int(row.RoundsPlayed),
			Kills:                int(row.Kills),
			Deaths:               int(row.Deaths),
			Assists:              int(row.Assists),
			Headshots:            int(row.Headshots),
			Wallbangs:            int(row.Wallbangs),
			DamageDealt:          int(row.DamageDealt),
			DamageTaken:          int(row.DamageTaken),
			UtilityDamage:        int(row.UtilityDamage),
			EnemyFlashDuration:   row.EnemyFlashDuration,
			TeamFlashDuration:    row.TeamFlashDuration,
			SmokeBlockingSeconds: row.SmokeBlockingSeconds,
			FirstKills:           int(row.FirstKills),
			FirstDeaths:          int(row.FirstDeaths),
			KDRatio:              row.KdRatio,
			HeadshotPercentage:   row.HeadshotPercentage,
			ClutchSuccessRate:    row.ClutchSuccessRate,
			ImpactScore:          row.ImpactScore,
			RoundSwing:           row.RoundSwing,
			OpenerScore:          row.OpenerScore,
			CloserScore:          row.CloserScore,
			SupportScore:         row.SupportScore,
			FraggerScore:         row.FraggerScore,
			ComputedAt:           row.ComputedAt,
		}
		for _, c := range clutches {
			if c.Size >= 1 && c.Size <= len(s.Clutches) {
				s.Clutches[c.Size-1] = domain.ClutchStat{Size: c.Size, Attempts: c.Attempts, Successes: c.Successes}
			}
		}
		result[i] = s
	}
	return result, nil
}
