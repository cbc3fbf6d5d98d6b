package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"demo-ingest/internal/constants"
	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type MatchRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *MatchRepository) Get(ctx context.Context, matchID int64) (*domain.Match, error) {
	match, err := r.queries.GetMatch(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return toDomainMatch(match), nil
}

// RegisterMetadata stores the match header and roster in one transaction.
// Players are upserted only when they join the match for the first time, so
// repeated registrations do not inflate total_matches. A player whose team
// differs from an earlier registration is rejected with domain.ErrTeamConflict.
func (r *MatchRepository) RegisterMetadata(ctx context.Context, matchID int64, meta domain.MatchMeta, hash *string, roster []domain.RosterEntry, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if hash != nil {
		existing, err := qtx.GetMatchByHash(ctx, *hash)
		switch {
		case err == nil && existing.ID != matchID:
			return fmt.Errorf("match %d has the same hash as match %d: %w", matchID, existing.ID, domain.ErrDuplicateMatch)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up match hash: %w", err)
		}
	}

	err = qtx.UpdateMatchMetadata(ctx, db.UpdateMatchMetadataParams{
		MatchHash:        hash,
		Map:              meta.Map,
		WinningTeamScore: int64(meta.WinningTeamScore),
		LosingTeamScore:  int64(meta.LosingTeamScore),
		MatchType:        string(meta.MatchType),
		TotalRounds:      int64(meta.TotalRounds),
		PlaybackTicks:    meta.PlaybackTicks,
		UpdatedAt:        now,
		ID:               matchID,
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("match %d: %w", matchID, domain.ErrDuplicateMatch)
	}
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", matchID, err)
	}

	for i := 0; i < len(roster); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(roster) {
			end = len(roster)
		}

		for _, p := range roster[i:end] {
			existing, err := qtx.GetMatchPlayer(ctx, db.GetMatchPlayerParams{MatchID: matchID, SteamID: p.SteamID})
			if err == nil {
				if domain.Team(existing.Team) != p.Team {
					return fmt.Errorf("player %s is on team %s, not %s: %w", p.SteamID, existing.Team, p.Team, domain.ErrTeamConflict)
				}
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to get match player %s: %w", p.SteamID, err)
			}

			if _, err := qtx.UpsertPlayer(ctx, db.UpsertPlayerParams{SteamID: p.SteamID, Name: p.Name, SeenAt: now}); err != nil {
				return fmt.Errorf("failed to upsert player %s: %w", p.SteamID, err)
			}
			if _, err := qtx.InsertMatchPlayer(ctx, db.InsertMatchPlayerParams{
				MatchID: matchID,
				SteamID: p.SteamID,
				Name:    p.Name,
				Team:    string(p.Team),
			}); err != nil {
				return fmt.Errorf("failed to insert match player %d/%s: %w", matchID, p.SteamID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match %d metadata: %w", matchID, err)
	}
	return nil
}

func (r *MatchRepository) Roster(ctx context.Context, matchID int64) ([]domain.MatchPlayer, error) {
	players, err := r.queries.ListMatchPlayers(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for match %d: %w", matchID, err)
	}

	result := make([]domain.MatchPlayer, len(players))
	for i, p := range players {
		result[i] = domain.MatchPlayer{
			MatchID: p.MatchID,
			SteamID: p.SteamID,
			Name:    p.Name,
			Team:    domain.Team(p.Team),
		}
	}
	return result, nil
}

func toDomainMatch(m db.Match) *domain.Match {
	return &domain.Match{
		ID:                 m.ID,
		MatchHash:          m.MatchHash,
		Map:                m.Map,
		WinningTeamScore:   int(m.WinningTeamScore),
		LosingTeamScore:    int(m.LosingTeamScore),
		MatchType:          domain.MatchType(m.MatchType),
		TotalRounds:        int(m.TotalRounds),
		TotalFightEvents:   int(m.TotalFightEvents),
		TotalGrenadeEvents: int(m.TotalGrenadeEvents),
		PlaybackTicks:      m.PlaybackTicks,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
