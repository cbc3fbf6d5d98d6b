package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"demo-ingest/internal/domain"

	"gopkg.in/yaml.v3"
)

type Role string

const (
	RoleOpener  Role = "opener"
	RoleCloser  Role = "closer"
	RoleSupport Role = "support"
	RoleFragger Role = "fragger"
)

var Roles = []Role{RoleOpener, RoleCloser, RoleSupport, RoleFragger}

// Metric names understood by the complexion table.
const (
	MetricFirstKillsPerRound     = "first_kills_per_round"
	MetricFirstDeathsPerRound    = "first_deaths_per_round"
	MetricOpeningDuelWinRate     = "opening_duel_win_rate"
	MetricClutchSuccessRate      = "clutch_success_rate"
	MetricClutchAttemptsPerRound = "clutch_attempts_per_round"
	MetricLateKillsPerRound      = "late_round_kills_per_round"
	MetricAssistsPerRound        = "assists_per_round"
	MetricEnemyFlashPerRound     = "enemy_flash_per_round"
	MetricUtilityDamagePerRound  = "utility_damage_per_round"
	MetricTeamFlashPerRound      = "team_flash_per_round"
	MetricKillsPerRound          = "kills_per_round"
	MetricKDRatio                = "kd_ratio"
	MetricHeadshotPercentage     = "headshot_percentage"
	MetricDamagePerRound         = "damage_per_round"
)

var knownMetrics = map[string]bool{
	MetricFirstKillsPerRound:     true,
	MetricFirstDeathsPerRound:    true,
	MetricOpeningDuelWinRate:     true,
	MetricClutchSuccessRate:      true,
	MetricClutchAttemptsPerRound: true,
	MetricLateKillsPerRound:      true,
	MetricAssistsPerRound:        true,
	MetricEnemyFlashPerRound:     true,
	MetricUtilityDamagePerRound:  true,
	MetricTeamFlashPerRound:      true,
	MetricKillsPerRound:          true,
	MetricKDRatio:                true,
	MetricHeadshotPercentage:     true,
	MetricDamagePerRound:         true,
}

//go:embed complexion.yaml
var defaultTable []byte

// MetricWeight compares a player's metric against a baseline score.
type MetricWeight struct {
	Metric       string  `yaml:"metric"`
	Score        float64 `yaml:"score"`
	Weight       float64 `yaml:"weight"`
	HigherBetter bool    `yaml:"higher_better"`
}

// Table is the weighted complexion model, one metric list per role.
type Table struct {
	MaxRatio float64                 `yaml:"max_ratio"`
	Roles    map[Role][]MetricWeight `yaml:"roles"`
}

// Load reads a complexion table from path, or the embedded default when path is empty.
func Load(path string) (*Table, error) {
	data := defaultTable
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read complexion table %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse complexion table: %w", err)
	}
	if t.MaxRatio == 0 {
		t.MaxRatio = 5
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	if t.MaxRatio < 1 {
		return fmt.Errorf("complexion table: max_ratio must be at least 1, got %v", t.MaxRatio)
	}
	for _, role := range Roles {
		metrics, ok := t.Roles[role]
		if !ok || len(metrics) == 0 {
			return fmt.Errorf("complexion table: role %q has no metrics", role)
		}
		for _, m := range metrics {
			if !knownMetrics[m.Metric] {
				return fmt.Errorf("complexion table: role %q uses unknown metric %q", role, m.Metric)
			}
			if m.Weight <= 0 {
				return fmt.Errorf("complexion table: %s.%s weight must be positive", role, m.Metric)
			}
			if m.Score < 0 {
				return fmt.Errorf("complexion table: %s.%s score must not be negative", role, m.Metric)
			}
		}
	}
	for role := range t.Roles {
		if !isRole(role) {
			return fmt.Errorf("complexion table: unknown role %q", role)
		}
	}
	return nil
}

func isRole(r Role) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Contribution is weight × (value/score) when higher is better, otherwise
// weight × (score/value), with the ratio capped at maxRatio. ok is false
// when the metric has no baseline and must be left out.
func Contribution(m MetricWeight, value, maxRatio float64) (contribution float64, ok bool) {
	if m.Score == 0 {
		return 0, false
	}

	var ratio float64
	switch {
	case m.HigherBetter:
		ratio = value / m.Score
	case value <= 0:
		ratio = maxRatio
	default:
		ratio = m.Score / value
	}
	ratio = math.Max(0, math.Min(ratio, maxRatio))
	return m.Weight * ratio, true
}

// Score is the weighted mean of a role's metric contributions.
func (t *Table) Score(role Role, metrics map[string]float64) float64 {
	var sum, weights float64
	for _, m := range t.Roles[role] {
		c, ok := Contribution(m, metrics[m.Metric], t.MaxRatio)
		if !ok {
			continue
		}
		sum += c
		weights += m.Weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// Metrics derives the per-round rates the table is expressed in.
func Metrics(s domain.PlayerMatchSummary, lateRoundKills int) map[string]float64 {
	m := map[string]float64{
		MetricClutchSuccessRate:  s.ClutchSuccessRate,
		MetricKDRatio:            s.KDRatio,
		MetricHeadshotPercentage: s.HeadshotPercentage,
	}
	if duels := s.FirstKills + s.FirstDeaths; duels > 0 {
		m[MetricOpeningDuelWinRate] = float64(s.FirstKills) / float64(duels) * 100
	}

	if s.RoundsPlayed > 0 {
		r := float64(s.RoundsPlayed)
		m[MetricFirstKillsPerRound] = float64(s.FirstKills) / r
		m[MetricFirstDeathsPerRound] = float64(s.FirstDeaths) / r
		m[MetricClutchAttemptsPerRound] = float64(s.ClutchAttempts()) / r
		m[MetricLateKillsPerRound] = float64(lateRoundKills) / r
		m[MetricAssistsPerRound] = float64(s.Assists) / r
		m[MetricEnemyFlashPerRound] = s.EnemyFlashDuration / r
		m[MetricUtilityDamagePerRound] = float64(s.UtilityDamage) / r
		m[MetricTeamFlashPerRound] = s.TeamFlashDuration / r
		m[MetricKillsPerRound] = float64(s.Kills) / r
		m[MetricDamagePerRound] = float64(s.DamageDealt) / r
	}
	return m
}
