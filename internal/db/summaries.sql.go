package db

import (
	"context"
	"time"
)

const summaryColumns = `s.match_id, s.steam_id, s.team, s.rounds_played, s.kills, s.deaths, s.assists, s.headshots, s.wallbangs, s.damage_dealt, s.damage_taken, s.utility_damage, s.enemy_flash_duration, s.team_flash_duration, s.smoke_blocking_seconds, s.first_kills, s.first_deaths, s.clutch_stats, s.clutch_attempts, s.clutch_successes, s.kd_ratio, s.headshot_percentage, s.clutch_success_rate, s.impact_score, s.round_swing, s.opener_score, s.closer_score, s.support_score, s.fragger_score, s.computed_at`

func scanPlayerMatchSummary(row interface{ Scan(...interface{}) error }) (PlayerMatchSummary, error) {
	var i PlayerMatchSummary
	err := row.Scan(
		&i.MatchID,
		&i.SteamID,
		&i.Team,
		&i.RoundsPlayed,
		&i.Kills,
		&i.Deaths,
		&i.Assists,
		&i.Headshots,
		&i.Wallbangs,
		&i.DamageDealt,
		&i.DamageTaken,
		&i.UtilityDamage,
		&i.EnemyFlashDuration,
		&i.TeamFlashDuration,
		&i.SmokeBlockingSeconds,
		&i.FirstKills,
		&i.FirstDeaths,
		&i.ClutchStats,
		&i.ClutchAttempts,
		&i.ClutchSuccesses,
		&i.KdRatio,
		&i.HeadshotPercentage,
		&i.ClutchSuccessRate,
		&i.ImpactScore,
		&i.RoundSwing,
		&i.OpenerScore,
		&i.CloserScore,
		&i.SupportScore,
		&i.FraggerScore,
		&i.ComputedAt,
	)
	return i, err
}

const deleteMatchSummaries = `-- name: DeleteMatchSummaries :exec
DELETE FROM player_match_summaries WHERE match_id = ?`

func (q *Queries) DeleteMatchSummaries(ctx context.Context, matchID int64) error {
	_, err := q.db.ExecContext(ctx, deleteMatchSummaries, matchID)
	return err
}

const insertPlayerMatchSummary = `-- name: InsertPlayerMatchSummary :exec
INSERT INTO player_match_summaries (
    match_id, steam_id, team, rounds_played, kills, deaths, assists, headshots, wallbangs,
    damage_dealt, damage_taken, utility_damage, enemy_flash_duration, team_flash_duration,
    smoke_blocking_seconds, first_kills, first_deaths, clutch_stats, clutch_attempts,
    clutch_successes, kd_ratio, headshot_percentage, clutch_success_rate, impact_score,
    round_swing, opener_score, closer_score, support_score, fragger_score, computed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertPlayerMatchSummaryParams = PlayerMatchSummary

func (q *Queries) InsertPlayerMatchSummary(ctx context.Context, arg InsertPlayerMatchSummaryParams) error {
	_, err := q.db.ExecContext(ctx, insertPlayerMatchSummary,
		arg.MatchID,
		arg.SteamID,
		arg.Team,
		arg.RoundsPlayed,
		arg.Kills,
		arg.Deaths,
		arg.Assists,
		arg.Headshots,
		arg.Wallbangs,
		arg.DamageDealt,
		arg.DamageTaken,
		arg.UtilityDamage,
		arg.EnemyFlashDuration,
		arg.TeamFlashDuration,
		arg.SmokeBlockingSeconds,
		arg.FirstKills,
		arg.FirstDeaths,
		arg.ClutchStats,
		arg.ClutchAttempts,
		arg.ClutchSuccesses,
		arg.KdRatio,
		arg.HeadshotPercentage,
		arg.ClutchSuccessRate,
		arg.ImpactScore,
		arg.RoundSwing,
		arg.OpenerScore,
		arg.CloserScore,
		arg.SupportScore,
		arg.FraggerScore,
		arg.ComputedAt,
	)
	return err
}

const listMatchSummaries = `-- name: ListMatchSummaries :many
SELECT ` + summaryColumns + ` FROM player_match_summaries s
WHERE s.match_id = ?
ORDER BY s.steam_id`

func (q *Queries) ListMatchSummaries(ctx context.Context, matchID int64) ([]PlayerMatchSummary, error) {
	return q.listSummaries(ctx, listMatchSummaries, matchID)
}

const listGroupSummariesSince = `-- name: ListGroupSummariesSince :many
SELECT ` + summaryColumns + ` FROM player_match_summaries s
JOIN group_members gm ON gm.steam_id = s.steam_id
JOIN matches m ON m.id = s.match_id
WHERE gm.group_id = ? AND m.created_at >= ?
ORDER BY s.steam_id, s.match_id`

type ListGroupSummariesSinceParams struct {
	GroupID string    `json:"group_id"`
	Since   time.Time `json:"since"`
}

func (q *Queries) ListGroupSummariesSince(ctx context.Context, arg ListGroupSummariesSinceParams) ([]PlayerMatchSummary, error) {
	return q.listSummaries(ctx, listGroupSummariesSince, arg.GroupID, arg.Since)
}

func (q *Queries) listSummaries(ctx context.Context, query string, args ...interface{}) ([]PlayerMatchSummary, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PlayerMatchSummary
	for rows.Next() {
		i, err := scanPlayerMatchSummary(rows)
		if err != nil {
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
