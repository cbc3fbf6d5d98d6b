package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Upsert creates the player or counts one more match for it. The
// insert-or-increment is a single statement, so concurrent callers never
// lose an increment.
func (r *PlayerRepository) Upsert(ctx context.Context, steamID, name string, seenAt time.Time) (*domain.Player, error) {
	total, err := r.queries.UpsertPlayer(ctx, db.UpsertPlayerParams{
		SteamID: steamID,
		Name:    name,
		SeenAt:  seenAt,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("steam_id", steamID).Msg("failed to upsert player")
		return nil, fmt.Errorf("failed to upsert player %s: %w", steamID, err)
	}

	r.logger.Debug().Str("steam_id", steamID).Int64("total_matches", total).Msg("player upserted")

	player, err := r.Get(ctx, steamID)
	if err != nil {
		return nil, err
	}
	return player, nil
}

func (r *PlayerRepository) Get(ctx context.Context, steamID string) (*domain.Player, error) {
	player, err := r.queries.GetPlayer(ctx, steamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", steamID, err)
	}

	return &domain.Player{
		SteamID:      player.SteamID,
		Name:         player.Name,
		FirstSeenAt:  player.FirstSeenAt,
		LastSeenAt:   player.LastSeenAt,
		TotalMatches: int(player.TotalMatches),
		CreatedAt:    player.CreatedAt,
		UpdatedAt:    player.UpdatedAt,
	}, nil
}
