package db

import (
	"context"
	"time"
)

const upsertPlayer = `-- name: UpsertPlayer :one
INSERT INTO players (steam_id, name, first_seen_at, last_seen_at, total_matches, created_at, updated_at)
VALUES (?1, ?2, ?3, ?3, 1, ?3, ?3)
ON CONFLICT (steam_id) DO UPDATE
SET total_matches = players.total_matches + 1,
    last_seen_at = excluded.last_seen_at,
    name = CASE WHEN excluded.name != '' THEN excluded.name ELSE players.name END,
    updated_at = excluded.updated_at
RETURNING total_matches`

type UpsertPlayerParams struct {
	SteamID string    `json:"steam_id"`
	Name    string    `json:"name"`
	SeenAt  time.Time `json:"seen_at"`
}

func (q *Queries) UpsertPlayer(ctx context.Context, arg UpsertPlayerParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertPlayer, arg.SteamID, arg.Name, arg.SeenAt)
	var total_matches int64
	err := row.Scan(&total_matches)
	return total_matches, err
}

const getPlayer = `-- name: GetPlayer :one
SELECT steam_id, name, first_seen_at, last_seen_at, total_matches, created_at, updated_at
FROM players WHERE steam_id = ?`

func (q *Queries) GetPlayer(ctx context.Context, steamID string) (Player, error) {
	row := q.db.QueryRowContext(ctx, getPlayer, steamID)
	var i Player
	err := row.Scan(
		&i.SteamID,
		&i.Name,
		&i.FirstSeenAt,
		&i.LastSeenAt,
		&i.TotalMatches,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
