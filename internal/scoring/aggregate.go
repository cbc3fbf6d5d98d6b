// Package scoring turns the raw events of one match into per-player summaries.
// It is pure: callers load events and persist the results.
package scoring

import (
	"sort"
	"time"

	"demo-ingest/internal/constants"
	"demo-ingest/internal/domain"
)

// Input is everything known about one match.
type Input struct {
	MatchID     int64
	TotalRounds int
	Roster      []domain.MatchPlayer
	Events      domain.EventSet
}

type Result struct {
	Summaries []domain.PlayerMatchSummary
	// ObservedRounds counts distinct round numbers seen across all events.
	ObservedRounds int
}

// playerAggregate accumulates raw counts for one player before ratios are derived.
type playerAggregate struct {
	steamID        string
	team           domain.Team
	kills          int
	deaths         int
	assists        int
	headshots      int
	wallbangs      int
	damageDealt    int
	damageTaken    int
	utilityDamage  int
	enemyFlash     float64
	teamFlash      float64
	smokes         int
	firstKills     int
	firstDeaths    int
	lateRoundKills int
	clutches       [constants.MaxClutchSize]domain.ClutchStat
}

// Aggregate computes a summary for every roster player. Events that mention
// players outside the roster are ignored for team-relative stats.
func Aggregate(in Input, table *Table, now time.Time) Result {
	players := make(map[string]*playerAggregate, len(in.Roster))
	for _, p := range in.Roster {
		agg := &playerAggregate{steamID: p.SteamID, team: p.Team}
		for i := range agg.clutches {
			agg.clutches[i].Size = i + 1
		}
		players[p.SteamID] = agg
	}

	rounds := observedRounds(in.Events)

	applyGunfights(players, in.Events.Gunfights)
	applyDamage(players, in.Events.Damages)
	applyGrenades(players, in.Events.Grenades)
	applyClutches(players, in.Events.Gunfights, in.Events.Rounds)

	roundsPlayed := in.TotalRounds
	if roundsPlayed <= 0 {
		roundsPlayed = rounds
	}

	summaries := make([]domain.PlayerMatchSummary, 0, len(players))
	for _, p := range in.Roster {
		agg := players[p.SteamID]
		summaries = append(summaries, summarize(in.MatchID, agg, roundsPlayed, table, now))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].SteamID < summaries[j].SteamID })

	return Result{Summaries: summaries, ObservedRounds: rounds}
}

func observedRounds(events domain.EventSet) int {
	seen := make(map[int]struct{})
	for _, e := range events.Gunfights {
		seen[e.RoundNumber] = struct{}{}
	}
	for _, e := range events.Damages {
		seen[e.RoundNumber] = struct{}{}
	}
	for _, e := range events.Grenades {
		seen[e.RoundNumber] = struct{}{}
	}
	for _, e := range events.Rounds {
		seen[e.RoundNumber] = struct{}{}
	}
	return len(seen)
}

func applyGunfights(players map[string]*playerAggregate, fights []domain.GunfightEvent) {
	firstByRound := make(map[int]domain.GunfightEvent)
	for _, f := range fights {
		if winner, ok := players[f.VictorSteamID]; ok {
			winner.kills++
			if f.Headshot {
				winner.headshots++
			}
			if f.Wallbang {
				winner.wallbangs++
			}
			if f.RoundTime >= constants.LateRoundSeconds {
				winner.lateRoundKills++
			}
		}
		if loser, ok := players[f.Loser()]; ok {
			loser.deaths++
		}
		if f.AssisterSteamID != nil {
			if assister, ok := players[*f.AssisterSteamID]; ok {
				assister.assists++
			}
		}

		first, ok := firstByRound[f.RoundNumber]
		if !ok || f.TickTimestamp < first.TickTimestamp {
			firstByRound[f.RoundNumber] = f
		}
	}

	for _, f := range firstByRound {
		if winner, ok := players[f.VictorSteamID]; ok {
			winner.firstKills++
		}
		if loser, ok := players[f.Loser()]; ok {
			loser.firstDeaths++
		}
	}
}

func applyDamage(players map[string]*playerAggregate, damages []domain.DamageEvent) {
	for _, d := range damages {
		attacker, hasAttacker := players[d.AttackerSteamID]
		victim, hasVictim := players[d.VictimSteamID]

		if hasVictim {
			victim.damageTaken += d.Damage
		}
		if !hasAttacker || d.AttackerSteamID == d.VictimSteamID {
			continue
		}
		if hasVictim && attacker.team == victim.team {
			continue
		}
		attacker.damageDealt += d.Damage
	}
}

func applyGrenades(players map[string]*playerAggregate, grenades []domain.GrenadeEvent) {
	for _, g := range grenades {
		thrower, ok := players[g.PlayerSteamID]
		if !ok {
			continue
		}

		switch g.GrenadeType {
		case "smokegrenade":
			thrower.smokes++
		case "hegrenade", "molotov", "incendiary":
			thrower.utilityDamage += g.DamageDealt
		case "flashbang":
			for _, a := range g.AffectedPlayers {
				if a.FlashDuration == nil {
					continue
				}
				target, known := players[a.SteamID]
				if known && target.team == thrower.team {
					thrower.teamFlash += *a.FlashDuration
				} else {
					thrower.enemyFlash += *a.FlashDuration
				}
			}
		}
	}
}

// applyClutches replays each round's gunfights in tick order over the roster.
// When a team is reduced to one living player facing at least one opponent,
// that player opens a 1vN attempt; it succeeds if their side wins the round.
func applyClutches(players map[string]*playerAggregate, fights []domain.GunfightEvent, rounds []domain.RoundEvent) {
	fightsByRound := make(map[int][]domain.GunfightEvent)
	for _, f := range fights {
		fightsByRound[f.RoundNumber] = append(fightsByRound[f.RoundNumber], f)
	}

	winners := make(map[int]string)
	for _, r := range rounds {
		if r.EventType == "end" && r.Winner != nil {
			winners[r.RoundNumber] = *r.Winner
		}
	}

	for round, roundFights := range fightsByRound {
		sort.SliceStable(roundFights, func(i, j int) bool {
			return roundFights[i].TickTimestamp < roundFights[j].TickTimestamp
		})

		alive := map[domain.Team]map[string]bool{
			domain.TeamA: {},
			domain.TeamB: {},
		}
		for id, p := range players {
			if alive[p.team] != nil {
				alive[p.team][id] = true
			}
		}

		sides := roundSides(players, roundFights)
		opened := make(map[string]bool)

		for _, f := range roundFights {
			loser, ok := players[f.Loser()]
			if !ok || !alive[loser.team][loser.steamID] {
				continue
			}
			delete(alive[loser.team], loser.steamID)

			if len(alive[loser.team]) != 1 {
				continue
			}
			opponents := len(alive[loser.team.Opponent()])
			if opponents < 1 {
				continue
			}

			var clutcher *playerAggregate
			for id := range alive[loser.team] {
				clutcher = players[id]
			}
			if opened[clutcher.steamID] {
				continue
			}
			opened[clutcher.steamID] = true

			size := opponents
			if size > constants.MaxClutchSize {
				size = constants.MaxClutchSize
			}
			stat := &clutcher.clutches[size-1]
			stat.Attempts++

			side := sides[clutcher.team]
			if winner, ok := winners[round]; ok && side != "" && side == winner {
				stat.Successes++
			}
		}
	}
}

// roundSides learns which side (CT or T) each team played in a round from
// the sides reported on its gunfights.
func roundSides(players map[string]*playerAggregate, fights []domain.GunfightEvent) map[domain.Team]string {
	sides := make(map[domain.Team]string, 2)
	record := func(gp domain.GunfightPlayer) {
		p, ok := players[gp.SteamID]
		if !ok || gp.Side == "" {
			return
		}
		if _, seen := sides[p.team]; !seen {
			sides[p.team] = gp.Side
		}
	}
	for _, f := range fights {
		record(f.Player1)
		record(f.Player2)
	}

	for _, team := range []domain.Team{domain.TeamA, domain.TeamB} {
		if _, ok := sides[team]; ok {
			continue
		}
		if other, ok := sides[team.Opponent()]; ok {
			sides[team] = oppositeSide(other)
		}
	}
	return sides
}

func oppositeSide(side string) string {
	if side == "CT" {
		return "T"
	}
	return "CT"
}

func summarize(matchID int64, agg *playerAggregate, rounds int, table *Table, now time.Time) domain.PlayerMatchSummary {
	s := domain.PlayerMatchSummary{
		MatchID:              matchID,
		SteamID:              agg.steamID,
		Team:                 agg.team,
		RoundsPlayed:         rounds,
		Kills:                agg.kills,
		Deaths:               agg.deaths,
		Assists:              agg.assists,
		Headshots:            agg.headshots,
		Wallbangs:            agg.wallbangs,
		DamageDealt:          agg.damageDealt,
		DamageTaken:          agg.damageTaken,
		UtilityDamage:        agg.utilityDamage,
		EnemyFlashDuration:   agg.enemyFlash,
		TeamFlashDuration:    agg.teamFlash,
		SmokeBlockingSeconds: float64(agg.smokes) * constants.SmokeDurationSeconds,
		FirstKills:           agg.firstKills,
		FirstDeaths:          agg.firstDeaths,
		Clutches:             agg.clutches,
		ComputedAt:           now,
	}

	if s.Deaths > 0 {
		s.KDRatio = float64(s.Kills) / float64(s.Deaths)
	} else {
		s.KDRatio = float64(s.Kills)
	}
	if s.Kills > 0 {
		s.HeadshotPercentage = float64(s.Headshots) / float64(s.Kills) * 100
	}
	attempts, successes := s.ClutchAttempts(), s.ClutchSuccesses()
	if attempts > 0 {
		s.ClutchSuccessRate = float64(successes) / float64(attempts) * 100
	}

	if rounds > 0 {
		r := float64(rounds)
		s.ImpactScore = (float64(s.Kills) + 0.5*float64(s.Assists) + float64(s.FirstKills) +
			2*float64(successes) - 0.5*float64(s.FirstDeaths)) / r
		s.RoundSwing = float64(s.FirstKills-s.FirstDeaths+successes) / r * 100
	}

	if table != nil {
		metrics := Metrics(s, agg.lateRoundKills)
		s.OpenerScore = table.Score(RoleOpener, metrics)
		s.CloserScore = table.Score(RoleCloser, metrics)
		s.SupportScore = table.Score(RoleSupport, metrics)
		s.FraggerScore = table.Score(RoleFragger, metrics)
	}
	return s
}
