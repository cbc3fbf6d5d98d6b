package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type EventRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewEventRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *EventRepository {
	return &EventRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// InsertResult counts what one batch contributed.
type InsertResult struct {
	Received   int
	Inserted   int
	Duplicates int
}

// InsertBatch persists one validated batch for a match. Each record is keyed
// by a fingerprint of its content, so replaying a batch inserts nothing new.
// Match counters grow by the rows actually inserted and the batch is recorded
// against the job, all in the same transaction.
func (r *EventRepository) InsertBatch(ctx context.Context, jobUUID string, matchID int64, receipt domain.BatchReceipt, events []domain.Event) (InsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	now := receipt.ReceivedAt

	var inserted, fights, grenades int64
	for i, event := range events {
		n, err := insertEvent(ctx, qtx, matchID, event, now)
		if err != nil {
			return InsertResult{}, fmt.Errorf("failed to insert %s event %d: %w", event.Name(), i, err)
		}
		inserted += n
		switch event.Name() {
		case domain.EventGunfight:
			fights += n
		case domain.EventGrenade:
			grenades += n
		}
	}

	if fights > 0 || grenades > 0 {
		if err := qtx.IncrementMatchEventCounts(ctx, db.IncrementMatchEventCountsParams{
			FightEvents:   fights,
			GrenadeEvents: grenades,
			UpdatedAt:     now,
			ID:            matchID,
		}); err != nil {
			return InsertResult{}, fmt.Errorf("failed to update counters for match %d: %w", matchID, err)
		}
	}

	if err := qtx.RecordEventBatch(ctx, db.RecordEventBatchParams{
		JobUuid:      jobUUID,
		EventName:    string(receipt.EventName),
		BatchIndex:   int64(receipt.Index),
		TotalBatches: int64(receipt.Total),
		IsLast:       receipt.IsLast,
		ReceivedRows: int64(len(events)),
		InsertedRows: inserted,
		ReceivedAt:   now,
	}); err != nil {
		return InsertResult{}, fmt.Errorf("failed to record batch %d of %s: %w", receipt.Index, receipt.EventName, err)
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}

	return InsertResult{
		Received:   len(events),
		Inserted:   int(inserted),
		Duplicates: len(events) - int(inserted),
	}, nil
}

func insertEvent(ctx context.Context, q *db.Queries, matchID int64, event domain.Event, now time.Time) (int64, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload: %w", err)
	}
	key := EventKey(payload)
	h := event.Header()

	switch e := event.(type) {
	case domain.GunfightEvent:
		return q.InsertGunfightEvent(ctx, db.InsertGunfightEventParams{
			MatchID:        matchID,
			EventKey:       key,
			RoundNumber:    int64(h.RoundNumber),
			RoundTime:      h.RoundTime,
			TickTimestamp:  h.TickTimestamp,
			Player1SteamID: e.Player1.SteamID,
			Player2SteamID: e.Player2.SteamID,
			VictorSteamID:  e.VictorSteamID,
			Payload:        string(payload),
			CreatedAt:      now,
		})
	case domain.DamageEvent:
		return q.InsertDamageEvent(ctx, db.InsertDamageEventParams{
			MatchID:         matchID,
			EventKey:        key,
			RoundNumber:     int64(h.RoundNumber),
			RoundTime:       h.RoundTime,
			TickTimestamp:   h.TickTimestamp,
			AttackerSteamID: e.AttackerSteamID,
			VictimSteamID:   e.VictimSteamID,
			Payload:         string(payload),
			CreatedAt:       now,
		})
	case domain.GrenadeEvent:
		return q.InsertGrenadeEvent(ctx, db.InsertGrenadeEventParams{
			MatchID:       matchID,
			EventKey:      key,
			RoundNumber:   int64(h.RoundNumber),
			RoundTime:     h.RoundTime,
			TickTimestamp: h.TickTimestamp,
			PlayerSteamID: e.PlayerSteamID,
			GrenadeType:   e.GrenadeType,
			Payload:       string(payload),
			CreatedAt:     now,
		})
	case domain.RoundEvent:
		return q.InsertRoundEvent(ctx, db.InsertRoundEventParams{
			MatchID:       matchID,
			EventKey:      key,
			RoundNumber:   int64(h.RoundNumber),
			RoundTime:     h.RoundTime,
			TickTimestamp: h.TickTimestamp,
			EventType:     e.EventType,
			Winner:        e.Winner,
			Payload:       string(payload),
			CreatedAt:     now,
		})
	}
	return 0, fmt.Errorf("unsupported event type %T", event)
}

// EventKey fingerprints an encoded event record.
func EventKey(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (r *EventRepository) Gunfights(ctx context.Context, matchID int64) ([]domain.GunfightEvent, error) {
	payloads, err := r.queries.ListGunfightPayloads(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gunfights for match %d: %w", matchID, err)
	}
	return decodePayloads[domain.GunfightEvent](payloads)
}

func (r *EventRepository) Damages(ctx context.Context, matchID int64) ([]domain.DamageEvent, error) {
	payloads, err := r.queries.ListDamagePayloads(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list damage events for match %d: %w", matchID, err)
	}
	return decodePayloads[domain.DamageEvent](payloads)
}

func (r *EventRepository) Grenades(ctx context.Context, matchID int64) ([]domain.GrenadeEvent, error) {
	payloads, err := r.queries.ListGrenadePayloads(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grenades for match %d: %w", matchID, err)
	}
	return decodePayloads[domain.GrenadeEvent](payloads)
}

func (r *EventRepository) Rounds(ctx context.Context, matchID int64) ([]domain.RoundEvent, error) {
	payloads, err := r.queries.ListRoundPayloads(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round events for match %d: %w", matchID, err)
	}
	return decodePayloads[domain.RoundEvent](payloads)
}

func decodePayloads[T any](payloads []string) ([]T, error) {
	result := make([]T, len(payloads))
	for i, p := range payloads {
		if err := json.Unmarshal([]byte(p), &result[i]); err != nil {
			return nil, fmt.Errorf("failed to decode payload %d: %w", i, err)
		}
	}
	return result, nil
}

// Batches lists every batch receipt recorded for a job.
func (r *EventRepository) Batches(ctx context.Context, jobUUID string) ([]domain.BatchReceipt, error) {
	rows, err := r.queries.ListEventBatches(ctx, jobUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for job %s: %w", jobUUID, err)
	}

	result := make([]domain.BatchReceipt, len(rows))
	for i, b := range rows {
		result[i] = domain.BatchReceipt{
			EventName:    domain.EventName(b.EventName),
			Index:        int(b.BatchIndex),
			Total:        int(b.TotalBatches),
			IsLast:       b.IsLast,
			ReceivedRows: int(b.ReceivedRows),
			InsertedRows: int(b.InsertedRows),
			ReceivedAt:   b.ReceivedAt,
		}
	}
	return result, nil
}

// Counts returns the stored fight and grenade event totals for a match.
func (r *EventRepository) Counts(ctx context.Context, matchID int64) (fights, grenades int, err error) {
	row, err := r.queries.CountMatchEvents(ctx, matchID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count events for match %d: %w", matchID, err)
	}
	return int(row.FightEvents), int(row.GrenadeEvents), nil
}
