package db

import (
	"context"
)

const deleteLeaderboard = `-- name: DeleteLeaderboard :execrows
DELETE FROM leaderboard_entries
WHERE group_id = ? AND leaderboard_type = ? AND time_window = ?`

type DeleteLeaderboardParams struct {
	GroupID         string `json:"group_id"`
	LeaderboardType string `json:"leaderboard_type"`
	TimeWindow      string `json:"time_window"`
}

func (q *Queries) DeleteLeaderboard(ctx context.Context, arg DeleteLeaderboardParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteLeaderboard, arg.GroupID, arg.LeaderboardType, arg.TimeWindow)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertLeaderboardEntry = `-- name: InsertLeaderboardEntry :exec
INSERT INTO leaderboard_entries (id, group_id, leaderboard_type, time_window, steam_id, position, value, matches_played, generation, calculated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertLeaderboardEntryParams = LeaderboardEntry

func (q *Queries) InsertLeaderboardEntry(ctx context.Context, arg InsertLeaderboardEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertLeaderboardEntry,
		arg.ID,
		arg.GroupID,
		arg.LeaderboardType,
		arg.TimeWindow,
		arg.SteamID,
		arg.Position,
		arg.Value,
		arg.MatchesPlayed,
		arg.Generation,
		arg.CalculatedAt,
	)
	return err
}

const listLeaderboard = `-- name: ListLeaderboard :many
SELECT id, group_id, leaderboard_type, time_window, steam_id, position, value, matches_played, generation, calculated_at
FROM leaderboard_entries
WHERE group_id = ? AND leaderboard_type = ? AND time_window = ?
ORDER BY position`

type ListLeaderboardParams = DeleteLeaderboardParams

func (q *Queries) ListLeaderboard(ctx context.Context, arg ListLeaderboardParams) ([]LeaderboardEntry, error) {
	rows, err := q.db.QueryContext(ctx, listLeaderboard, arg.GroupID, arg.LeaderboardType, arg.TimeWindow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LeaderboardEntry
	for rows.Next() {
		var i LeaderboardEntry
		if err := rows.Scan(
			&i.ID,
			&i.GroupID,
			&i.LeaderboardType,
			&i.TimeWindow,
			&i.SteamID,
			&i.Position,
			&i.Value,
			&i.MatchesPlayed,
			&i.Generation,
			&i.CalculatedAt,
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
