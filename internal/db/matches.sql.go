package db

import (
	"context"
	"time"
)

const matchColumns = `id, match_hash, map, winning_team_score, losing_team_score, match_type, total_rounds, total_fight_events, total_grenade_events, playback_ticks, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (Match, error) {
	var i Match
	err := row.Scan(
		&i.ID,
		&i.MatchHash,
		&i.Map,
		&i.WinningTeamScore,
		&i.LosingTeamScore,
		&i.MatchType,
		&i.TotalRounds,
		&i.TotalFightEvents,
		&i.TotalGrenadeEvents,
		&i.PlaybackTicks,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMatch = `-- name: CreateMatch :execlastid
INSERT INTO matches (created_at, updated_at)
VALUES (?, ?)`

type CreateMatchParams struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createMatch, arg.CreatedAt, arg.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getMatch = `-- name: GetMatch :one
SELECT ` + matchColumns + ` FROM matches WHERE id = ?`

func (q *Queries) GetMatch(ctx context.Context, id int64) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatch, id)
	return scanMatch(row)
}

const getMatchByHash = `-- name: GetMatchByHash :one
SELECT ` + matchColumns + ` FROM matches WHERE match_hash = ?`

func (q *Queries) GetMatchByHash(ctx context.Context, matchHash string) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatchByHash, matchHash)
	return scanMatch(row)
}

const updateMatchMetadata = `-- name: UpdateMatchMetadata :exec
UPDATE matches
SET match_hash = ?,
    map = ?,
    winning_team_score = ?,
    losing_team_score = ?,
    match_type = ?,
    total_rounds = ?,
    playback_ticks = ?,
    updated_at = ?
WHERE id = ?`

type UpdateMatchMetadataParams struct {
	MatchHash        *string   `json:"match_hash"`
	Map              string    `json:"map"`
	WinningTeamScore int64     `json:"winning_team_score"`
	LosingTeamScore  int64     `json:"losing_team_score"`
	MatchType        string    `json:"match_type"`
	TotalRounds      int64     `json:"total_rounds"`
	PlaybackTicks    int64     `json:"playback_ticks"`
	UpdatedAt        time.Time `json:"updated_at"`
	ID               int64     `json:"id"`
}

func (q *Queries) UpdateMatchMetadata(ctx context.Context, arg UpdateMatchMetadataParams) error {
	_, err := q.db.ExecContext(ctx, updateMatchMetadata,
		arg.MatchHash,
		arg.Map,
		arg.WinningTeamScore,
		arg.LosingTeamScore,
		arg.MatchType,
		arg.TotalRounds,
		arg.PlaybackTicks,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const incrementMatchEventCounts = `-- name: IncrementMatchEventCounts :exec
UPDATE matches
SET total_fight_events = total_fight_events + ?,
    total_grenade_events = total_grenade_events + ?,
    updated_at = ?
WHERE id = ?`

type IncrementMatchEventCountsParams struct {
	FightEvents   int64     `json:"fight_events"`
	GrenadeEvents int64     `json:"grenade_events"`
	UpdatedAt     time.Time `json:"updated_at"`
	ID            int64     `json:"id"`
}

func (q *Queries) IncrementMatchEventCounts(ctx context.Context, arg IncrementMatchEventCountsParams) error {
	_, err := q.db.ExecContext(ctx, incrementMatchEventCounts,
		arg.FightEvents,
		arg.GrenadeEvents,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const setMatchEventCounts = `-- name: SetMatchEventCounts :exec
UPDATE matches
SET total_fight_events = ?,
    total_grenade_events = ?,
    updated_at = ?
WHERE id = ?`

type SetMatchEventCountsParams struct {
	TotalFightEvents   int64     `json:"total_fight_events"`
	TotalGrenadeEvents int64     `json:"total_grenade_events"`
	UpdatedAt          time.Time `json:"updated_at"`
	ID                 int64     `json:"id"`
}

func (q *Queries) SetMatchEventCounts(ctx context.Context, arg SetMatchEventCountsParams) error {
	_, err := q.db.ExecContext(ctx, setMatchEventCounts,
		arg.TotalFightEvents,
		arg.TotalGrenadeEvents,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const insertMatchPlayer = `-- name: InsertMatchPlayer :execrows
INSERT INTO match_players (match_id, steam_id, name, team)
VALUES (?, ?, ?, ?)
ON CONFLICT (match_id, steam_id) DO NOTHING`

type InsertMatchPlayerParams struct {
	MatchID int64  `json:"match_id"`
	SteamID string `json:"steam_id"`
	Name    string `json:"name"`
	Team    string `json:"team"`
}

func (q *Queries) InsertMatchPlayer(ctx context.Context, arg InsertMatchPlayerParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertMatchPlayer,
		arg.MatchID,
		arg.SteamID,
		arg.Name,
		arg.Team,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getMatchPlayer = `-- name: GetMatchPlayer :one
SELECT match_id, steam_id, name, team FROM match_players
WHERE match_id = ? AND steam_id = ?`

type GetMatchPlayerParams struct {
	MatchID int64  `json:"match_id"`
	SteamID string `json:"steam_id"`
}

func (q *Queries) GetMatchPlayer(ctx context.Context, arg GetMatchPlayerParams) (MatchPlayer, error) {
	row := q.db.QueryRowContext(ctx, getMatchPlayer, arg.MatchID, arg.SteamID)
	var i MatchPlayer
	err := row.Scan(
		&i.MatchID,
		&i.SteamID,
		&i.Name,
		&i.Team,
	)
	return i, err
}

const listMatchPlayers = `-- name: ListMatchPlayers :many
SELECT match_id, steam_id, name, team FROM match_players
WHERE match_id = ?
ORDER BY steam_id`

func (q *Queries) ListMatchPlayers(ctx context.Context, matchID int64) ([]MatchPlayer, error) {
	rows, err := q.db.QueryContext(ctx, listMatchPlayers, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchPlayer
	for rows.Next() {
		var i MatchPlayer
		if err := rows.Scan(
			&i.MatchID,
			&i.SteamID,
			&i.Name,
			&i.Team,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
