package testhelpers

import (
	"fmt"

	"demo-ingest/internal/domain"
)

// SteamID returns a deterministic steam id for fixture player n.
func SteamID(n int) string {
	return fmt.Sprintf("765611980000000%02d", n)
}

// Roster returns ten players, 1..5 on team A and 6..10 on team B.
func Roster() []domain.RosterEntry {
	roster := make([]domain.RosterEntry, 10)
	for i := range roster {
		team := domain.TeamA
		if i >= 5 {
			team = domain.TeamB
		}
		roster[i] = domain.RosterEntry{
			SteamID: SteamID(i + 1),
			Name:    fmt.Sprintf("player%d", i+1),
			Team:    team,
		}
	}
	return roster
}

func Dust2Meta() domain.MatchMeta {
	return domain.MatchMeta{
		Map:              "de_dust2",
		WinningTeamScore: 16,
		LosingTeamScore:  14,
		MatchType:        domain.MatchTypeFaceit,
		TotalRounds:      30,
		PlaybackTicks:    192000,
	}
}

// Kill builds a gunfight in which winner kills loser. Sides are CT/T strings.
func Kill(round int, tick int64, winner, winnerSide, loser, loserSide string) domain.GunfightEvent {
	return domain.GunfightEvent{
		RoundNumber:   round,
		RoundTime:     float64(tick%115) + 5,
		TickTimestamp: tick,
		Player1: domain.GunfightPlayer{
			SteamID:        winner,
			Side:           winnerSide,
			HPStart:        100,
			Armor:          100,
			Weapon:         "ak47",
			EquipmentValue: 3700,
		},
		Player2: domain.GunfightPlayer{
			SteamID:        loser,
			Side:           loserSide,
			HPStart:        100,
			Armor:          100,
			Weapon:         "m4a1",
			EquipmentValue: 4100,
		},
		Distance:      812.5,
		VictorSteamID: winner,
		DamageDealt:   100,
	}
}

func RoundEnd(round int, tick int64, winner string) domain.RoundEvent {
	w := winner
	duration := 90
	return domain.RoundEvent{
		RoundNumber:   round,
		RoundTime:     90,
		TickTimestamp: tick,
		EventType:     "end",
		Winner:        &w,
		Duration:      &duration,
	}
}

func Damage(round int, tick int64, attacker, victim string, dmg int) domain.DamageEvent {
	return domain.DamageEvent{
		RoundNumber:     round,
		RoundTime:       30,
		TickTimestamp:   tick,
		AttackerSteamID: attacker,
		VictimSteamID:   victim,
		Damage:          dmg,
		HealthDamage:    dmg,
		Weapon:          "ak47",
	}
}

func Grenade(round int, tick int64, thrower, grenadeType string, affected ...domain.AffectedPlayer) domain.GrenadeEvent {
	return domain.GrenadeEvent{
		RoundNumber:     round,
		RoundTime:       20,
		TickTimestamp:   tick,
		PlayerSteamID:   thrower,
		GrenadeType:     grenadeType,
		ThrowType:       "lineup",
		PlayerAim:       domain.AimVector{X: 0.5, Y: 0.5, Z: 0},
		AffectedPlayers: affected,
	}
}

// Events converts typed fixtures to the generic event slice used by ingestion.
func Events[T domain.Event](in ...T) []domain.Event {
	out := make([]domain.Event, len(in))
	for i, e := range in {
		out[i] = e
	}
	return out
}
