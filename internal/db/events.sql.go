package db

import (
	"context"
	"time"
)

const insertGunfightEvent = `-- name: InsertGunfightEvent :execrows
INSERT INTO gunfight_events (match_id, event_key, round_number, round_time, tick_timestamp, player_1_steam_id, player_2_steam_id, victor_steam_id, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, event_key) DO NOTHING`

type InsertGunfightEventParams struct {
	MatchID        int64     `json:"match_id"`
	EventKey       string    `json:"event_key"`
	RoundNumber    int64     `json:"round_number"`
	RoundTime      float64   `json:"round_time"`
	TickTimestamp  int64     `json:"tick_timestamp"`
	Player1SteamID string    `json:"player_1_steam_id"`
	Player2SteamID string    `json:"player_2_steam_id"`
	VictorSteamID  string    `json:"victor_steam_id"`
	Payload        string    `json:"payload"`
	CreatedAt      time.Time `json:"created_at"`
}

func (q *Queries) InsertGunfightEvent(ctx context.Context, arg InsertGunfightEventParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertGunfightEvent,
		arg.MatchID,
		arg.EventKey,
		arg.RoundNumber,
		arg.RoundTime,
		arg.TickTimestamp,
		arg.Player1SteamID,
		arg.Player2SteamID,
		arg.VictorSteamID,
		arg.Payload,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertDamageEvent = `-- name: InsertDamageEvent :execrows
INSERT INTO damage_events (match_id, event_key, round_number, round_time, tick_timestamp, attacker_steam_id, victim_steam_id, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, event_key) DO NOTHING`

type InsertDamageEventParams struct {
	MatchID         int64     `json:"match_id"`
	EventKey        string    `json:"event_key"`
	RoundNumber     int64     `json:"round_number"`
	RoundTime       float64   `json:"round_time"`
	TickTimestamp   int64     `json:"tick_timestamp"`
	AttackerSteamID string    `json:"attacker_steam_id"`
	VictimSteamID   string    `json:"victim_steam_id"`
	Payload         string    `json:"payload"`
	CreatedAt       time.Time `json:"created_at"`
}

func (q *Queries) InsertDamageEvent(ctx context.Context, arg InsertDamageEventParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertDamageEvent,
		arg.MatchID,
		arg.EventKey,
		arg.RoundNumber,
		arg.RoundTime,
		arg.TickTimestamp,
		arg.AttackerSteamID,
		arg.VictimSteamID,
		arg.Payload,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertGrenadeEvent = `-- name: InsertGrenadeEvent :execrows
INSERT INTO grenade_events (match_id, event_key, round_number, round_time, tick_timestamp, player_steam_id, grenade_type, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, event_key) DO NOTHING`

type InsertGrenadeEventParams struct {
	MatchID       int64     `json:"match_id"`
	EventKey      string    `json:"event_key"`
	RoundNumber   int64     `json:"round_number"`
	RoundTime     float64   `json:"round_time"`
	TickTimestamp int64     `json:"tick_timestamp"`
	PlayerSteamID string    `json:"player_steam_id"`
	GrenadeType   string    `json:"grenade_type"`
	Payload       string    `json:"payload"`
	CreatedAt     time.Time `json:"created_at"`
}

func (q *Queries) InsertGrenadeEvent(ctx context.Context, arg InsertGrenadeEventParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertGrenadeEvent,
		arg.MatchID,
		arg.EventKey,
		arg.RoundNumber,
		arg.RoundTime,
		arg.TickTimestamp,
		arg.PlayerSteamID,
		arg.GrenadeType,
		arg.Payload,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertRoundEvent = `-- name: InsertRoundEvent :execrows
INSERT INTO round_events (match_id, event_key, round_number, round_time, tick_timestamp, event_type, winner, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, event_key) DO NOTHING`

type InsertRoundEventParams struct {
	MatchID       int64     `json:"match_id"`
	EventKey      string    `json:"event_key"`
	RoundNumber   int64     `json:"round_number"`
	RoundTime     float64   `json:"round_time"`
	TickTimestamp int64     `json:"tick_timestamp"`
	EventType     string    `json:"event_type"`
	Winner        *string   `json:"winner"`
	Payload       string    `json:"payload"`
	CreatedAt     time.Time `json:"created_at"`
}

func (q *Queries) InsertRoundEvent(ctx context.Context, arg InsertRoundEventParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertRoundEvent,
		arg.MatchID,
		arg.EventKey,
		arg.RoundNumber,
		arg.RoundTime,
		arg.TickTimestamp,
		arg.EventType,
		arg.Winner,
		arg.Payload,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listGunfightPayloads = `-- name: ListGunfightPayloads :many
SELECT payload FROM gunfight_events
WHERE match_id = ?
ORDER BY round_number, tick_timestamp, id`

func (q *Queries) ListGunfightPayloads(ctx context.Context, matchID int64) ([]string, error) {
	return q.listPayloads(ctx, listGunfightPayloads, matchID)
}

const listDamagePayloads = `-- name: ListDamagePayloads :many
SELECT payload FROM damage_events
WHERE match_id = ?
ORDER BY round_number, tick_timestamp, id`

func (q *Queries) ListDamagePayloads(ctx context.Context, matchID int64) ([]string, error) {
	return q.listPayloads(ctx, listDamagePayloads, matchID)
}

const listGrenadePayloads = `-- name: ListGrenadePayloads :many
SELECT payload FROM grenade_events
WHERE match_id = ?
ORDER BY round_number, tick_timestamp, id`

func (q *Queries) ListGrenadePayloads(ctx context.Context, matchID int64) ([]string, error) {
	return q.listPayloads(ctx, listGrenadePayloads, matchID)
}

const listRoundPayloads = `-- name: ListRoundPayloads :many
SELECT payload FROM round_events
WHERE match_id = ?
ORDER BY round_number, tick_timestamp, id`

func (q *Queries) ListRoundPayloads(ctx context.Context, matchID int64) ([]string, error) {
	return q.listPayloads(ctx, listRoundPayloads, matchID)
}

func (q *Queries) listPayloads(ctx context.Context, query string, matchID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		items = append(items, payload)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countMatchEvents = `-- name: CountMatchEvents :one
SELECT
    (SELECT COUNT(*) FROM gunfight_events g WHERE g.match_id = ?1) AS fight_events,
    (SELECT COUNT(*) FROM grenade_events n WHERE n.match_id = ?1) AS grenade_events`

type CountMatchEventsRow struct {
	FightEvents   int64 `json:"fight_events"`
	GrenadeEvents int64 `json:"grenade_events"`
}

func (q *Queries) CountMatchEvents(ctx context.Context, matchID int64) (CountMatchEventsRow, error) {
	row := q.db.QueryRowContext(ctx, countMatchEvents, matchID)
	var i CountMatchEventsRow
	err := row.Scan(&i.FightEvents, &i.GrenadeEvents)
	return i, err
}

const recordEventBatch = `-- name: RecordEventBatch :exec
INSERT INTO job_event_batches (job_uuid, event_name, batch_index, total_batches, is_last, received_rows, inserted_rows, received_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_uuid, event_name, batch_index) DO UPDATE
SET total_batches = excluded.total_batches,
    is_last = excluded.is_last,
    received_rows = excluded.received_rows,
    inserted_rows = job_event_batches.inserted_rows + excluded.inserted_rows,
    received_at = excluded.received_at`

type RecordEventBatchParams struct {
	JobUuid      string    `json:"job_uuid"`
	EventName    string    `json:"event_name"`
	BatchIndex   int64     `json:"batch_index"`
	TotalBatches int64     `json:"total_batches"`
	IsLast       bool      `json:"is_last"`
	ReceivedRows int64     `json:"received_rows"`
	InsertedRows int64     `json:"inserted_rows"`
	ReceivedAt   time.Time `json:"received_at"`
}

func (q *Queries) RecordEventBatch(ctx context.Context, arg RecordEventBatchParams) error {
	_, err := q.db.ExecContext(ctx, recordEventBatch,
		arg.JobUuid,
		arg.EventName,
		arg.BatchIndex,
		arg.TotalBatches,
		arg.IsLast,
		arg.ReceivedRows,
		arg.InsertedRows,
		arg.ReceivedAt,
	)
	return err
}

const listEventBatches = `-- name: ListEventBatches :many
SELECT job_uuid, event_name, batch_index, total_batches, is_last, received_rows, inserted_rows, received_at
FROM job_event_batches
WHERE job_uuid = ?
ORDER BY event_name, batch_index`

func (q *Queries) ListEventBatches(ctx context.Context, jobUuid string) ([]JobEventBatch, error) {
	rows, err := q.db.QueryContext(ctx, listEventBatches, jobUuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []JobEventBatch
	for rows.Next() {
		var i JobEventBatch
		if err := rows.Scan(
			&i.JobUuid,
			&i.EventName,
			&i.BatchIndex,
			&i.TotalBatches,
			&i.IsLast,
			&i.ReceivedRows,
			&i.InsertedRows,
			&i.ReceivedAt,
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
