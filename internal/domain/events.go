package domain

import "time"

type EventName string

const (
	EventRound    EventName = "round"
	EventGunfight EventName = "gunfight"
	EventGrenade  EventName = "grenade"
	EventDamage   EventName = "damage"
)

// EventNames is the closed set of ingestible event types, in the order they are reported to callers.
var EventNames = []EventName{EventRound, EventGunfight, EventGrenade, EventDamage}

func (n EventName) Valid() bool {
	for _, known := range EventNames {
		if n == known {
			return true
		}
	}
	return false
}

type EventHeader struct {
	RoundNumber   int
	RoundTime     float64
	TickTimestamp int64
}

// Event is one validated raw event record of any type.
type Event interface {
	Name() EventName
	Header() EventHeader
}

type Position struct {
	X float64 `json:"x" validate:"min=-10000,max=10000"`
	Y float64 `json:"y" validate:"min=-10000,max=10000"`
	Z float64 `json:"z" validate:"min=-10000,max=10000"`
}

type AimVector struct {
	X float64 `json:"x" validate:"min=-1,max=1"`
	Y float64 `json:"y" validate:"min=-1,max=1"`
	Z float64 `json:"z" validate:"min=-1,max=1"`
}

type GunfightPlayer struct {
	SteamID        string   `json:"steam_id" validate:"required,max=32"`
	Side           string   `json:"side" validate:"omitempty,oneof=CT T"`
	HPStart        int      `json:"hp_start" validate:"min=0,max=100"`
	Armor          int      `json:"armor" validate:"min=0,max=100"`
	Flashed        bool     `json:"flashed"`
	Weapon         string   `json:"weapon" validate:"max=50"`
	EquipmentValue int      `json:"equipment_value" validate:"min=0,max=10000"`
	Position       Position `json:"position"`
}

type GunfightEvent struct {
	RoundNumber       int            `json:"round_number" validate:"min=1"`
	RoundTime         float64        `json:"round_time" validate:"min=0,max=300"`
	TickTimestamp     int64          `json:"tick_timestamp" validate:"min=0"`
	Player1           GunfightPlayer `json:"player_1"`
	Player2           GunfightPlayer `json:"player_2"`
	Distance          float64        `json:"distance" validate:"min=0,max=10000"`
	Headshot          bool           `json:"headshot"`
	Wallbang          bool           `json:"wallbang"`
	PenetratedObjects int            `json:"penetrated_objects" validate:"min=0,max=100"`
	VictorSteamID     string         `json:"victor_steam_id" validate:"required,max=32"`
	DamageDealt       int            `json:"damage_dealt" validate:"min=0,max=1000"`
	AssisterSteamID   *string        `json:"assister_steam_id,omitempty" validate:"omitempty,max=32"`
}

func (e GunfightEvent) Name() EventName { return EventGunfight }

func (e GunfightEvent) Header() EventHeader {
	return EventHeader{RoundNumber: e.RoundNumber, RoundTime: e.RoundTime, TickTimestamp: e.TickTimestamp}
}

// Loser is the steam id of the player who did not win the duel.
func (e GunfightEvent) Loser() string {
	if e.VictorSteamID == e.Player1.SteamID {
		return e.Player2.SteamID
	}
	return e.Player1.SteamID
}

func (e GunfightEvent) VictorSide() string {
	if e.VictorSteamID == e.Player1.SteamID {
		return e.Player1.Side
	}
	return e.Player2.Side
}

type AffectedPlayer struct {
	SteamID       string   `json:"steam_id" validate:"required,max=32"`
	FlashDuration *float64 `json:"flash_duration,omitempty" validate:"omitempty,min=0,max=10"`
	DamageTaken   *int     `json:"damage_taken,omitempty" validate:"omitempty,min=0,max=1000"`
}

type GrenadeEvent struct {
	RoundNumber     int              `json:"round_number" validate:"min=1"`
	RoundTime       float64          `json:"round_time" validate:"min=0,max=300"`
	TickTimestamp   int64            `json:"tick_timestamp" validate:"min=0"`
	PlayerSteamID   string           `json:"player_steam_id" validate:"required,max=32"`
	GrenadeType     string           `json:"grenade_type" validate:"required,oneof=hegrenade flashbang smokegrenade molotov incendiary decoy"`
	ThrowType       string           `json:"throw_type" validate:"required,oneof=lineup reaction pre_aim utility"`
	PlayerAim       AimVector        `json:"player_aim"`
	PlayerPosition  Position         `json:"player_position"`
	GrenadePosition Position         `json:"grenade_position"`
	DamageDealt     int              `json:"damage_dealt" validate:"min=0,max=1000"`
	FlashDuration   *float64         `json:"flash_duration,omitempty" validate:"omitempty,min=0,max=10"`
	AffectedPlayers []AffectedPlayer `json:"affected_players,omitempty" validate:"omitempty,dive"`
}

func (e GrenadeEvent) Name() EventName { return EventGrenade }

func (e GrenadeEvent) Header() EventHeader {
	return EventHeader{RoundNumber: e.RoundNumber, RoundTime: e.RoundTime, TickTimestamp: e.TickTimestamp}
}

type DamageEvent struct {
	RoundNumber     int     `json:"round_number" validate:"min=1"`
	RoundTime       float64 `json:"round_time" validate:"min=0,max=300"`
	TickTimestamp   int64   `json:"tick_timestamp" validate:"min=0"`
	AttackerSteamID string  `json:"attacker_steam_id" validate:"required,max=32"`
	VictimSteamID   string  `json:"victim_steam_id" validate:"required,max=32"`
	Damage          int     `json:"damage" validate:"min=0,max=1000"`
	ArmorDamage     int     `json:"armor_damage" validate:"min=0,max=1000"`
	HealthDamage    int     `json:"health_damage" validate:"min=0,max=1000"`
	Headshot        bool    `json:"headshot"`
	Weapon          string  `json:"weapon" validate:"max=50"`
}

func (e DamageEvent) Name() EventName { return EventDamage }

func (e DamageEvent) Header() EventHeader {
	return EventHeader{RoundNumber: e.RoundNumber, RoundTime: e.RoundTime, TickTimestamp: e.TickTimestamp}
}

type RoundEvent struct {
	RoundNumber   int     `json:"round_number" validate:"min=1"`
	RoundTime     float64 `json:"round_time" validate:"min=0,max=300"`
	TickTimestamp int64   `json:"tick_timestamp" validate:"min=0"`
	EventType     string  `json:"event_type" validate:"required,oneof=start end"`
	Winner        *string `json:"winner,omitempty" validate:"omitempty,oneof=CT T"`
	Duration      *int    `json:"duration,omitempty" validate:"omitempty,min=1,max=300"`
}

func (e RoundEvent) Name() EventName { return EventRound }

func (e RoundEvent) Header() EventHeader {
	return EventHeader{RoundNumber: e.RoundNumber, RoundTime: e.RoundTime, TickTimestamp: e.TickTimestamp}
}

// EventSet is every persisted event of one match, grouped by type.
type EventSet struct {
	Gunfights []GunfightEvent
	Damages   []DamageEvent
	Grenades  []GrenadeEvent
	Rounds    []RoundEvent
}

// BatchReceipt records that one batch of one event type arrived for a job.
type BatchReceipt struct {
	EventName    EventName
	Index        int
	Total        int
	IsLast       bool
	ReceivedRows int
	InsertedRows int
	ReceivedAt   time.Time
}
