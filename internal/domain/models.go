package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

type ProcessingJob struct {
	ID              int64
	UUID            string
	MatchID         *int64
	Status          JobStatus
	ProgressPercent int
	CurrentStep     string
	ErrorMessage    *string
	DemoPath        string
	StartedAt       time.Time
	CompletedAt     *time.Time // set only once Status is terminal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type MatchType string

const (
	MatchTypeHLTV        MatchType = "hltv"
	MatchTypeMatchmaking MatchType = "matchmaking"
	MatchTypeFaceit      MatchType = "faceit"
	MatchTypeEsportal    MatchType = "esportal"
	MatchTypeOther       MatchType = "other"
)

var KnownMaps = []string{
	"de_ancient",
	"de_anubis",
	"de_dust2",
	"de_inferno",
	"de_mirage",
	"de_nuke",
	"de_overpass",
	"de_train",
	"de_vertigo",
	"cs_italy",
	"cs_office",
}

type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

func (t Team) Opponent() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

type Match struct {
	ID                 int64
	MatchHash          *string
	Map                string
	WinningTeamScore   int
	LosingTeamScore    int
	MatchType          MatchType
	TotalRounds        int
	TotalFightEvents   int
	TotalGrenadeEvents int
	PlaybackTicks      int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MatchMeta is the subset of Match that the parser reports and that feeds the match hash.
type MatchMeta struct {
	Map              string
	WinningTeamScore int
	LosingTeamScore  int
	MatchType        MatchType
	TotalRounds      int
	PlaybackTicks    int64
}

type Player struct {
	SteamID      string
	Name         string
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
	TotalMatches int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MatchPlayer struct {
	MatchID int64
	SteamID string
	Name    string
	Team    Team
}

// RosterEntry is a player as reported in a match's roster.
type RosterEntry struct {
	SteamID string
	Name    string
	Team    Team
}

type Group struct {
	ID        string // nanoid
	Name      string
	CreatedAt time.Time
}

type ClutchStat struct {
	Size      int // 1..5 opponents
	Attempts  int
	Successes int
}

type PlayerMatchSummary struct {
	MatchID              int64
	SteamID              string
	Team                 Team
	RoundsPlayed         int
	Kills                int
	Deaths               int
	Assists              int
	Headshots            int
	Wallbangs            int
	DamageDealt          int
	DamageTaken          int
	UtilityDamage        int
	EnemyFlashDuration   float64
	TeamFlashDuration    float64
	SmokeBlockingSeconds float64
	FirstKills           int
	FirstDeaths          int
	Clutches             [5]ClutchStat
	KDRatio              float64
	HeadshotPercentage   float64
	ClutchSuccessRate    float64
	ImpactScore          float64
	RoundSwing           float64
	OpenerScore          float64
	CloserScore          float64
	SupportScore         float64
	FraggerScore         float64
	ComputedAt           time.Time
}

func (s PlayerMatchSummary) ClutchAttempts() int {
	total := 0
	for _, c := range s.Clutches {
		total += c.Attempts
	}
	return total
}

func (s PlayerMatchSummary) ClutchSuccesses() int {
	total := 0
	for _, c := range s.Clutches {
		total += c.Successes
	}
	return total
}

type LeaderboardType string

const (
	LeaderboardAim        LeaderboardType = "aim"
	LeaderboardImpact     LeaderboardType = "impact"
	LeaderboardRoundSwing LeaderboardType = "round_swing"
	LeaderboardFragger    LeaderboardType = "fragger"
	LeaderboardSupport    LeaderboardType = "support"
	LeaderboardOpener     LeaderboardType = "opener"
	LeaderboardCloser     LeaderboardType = "closer"
)

var LeaderboardTypes = []LeaderboardType{
	LeaderboardAim,
	LeaderboardImpact,
	LeaderboardRoundSwing,
	LeaderboardFragger,
	LeaderboardSupport,
	LeaderboardOpener,
	LeaderboardCloser,
}

func (t LeaderboardType) Valid() bool {
	for _, lt := range LeaderboardTypes {
		if lt == t {
			return true
		}
	}
	return false
}

// Value picks the per-match scalar this leaderboard ranks on.
func (t LeaderboardType) Value(s PlayerMatchSummary) float64 {
	switch t {
	case LeaderboardAim:
		return s.HeadshotPercentage
	case LeaderboardImpact:
		return s.ImpactScore
	case LeaderboardRoundSwing:
		return s.RoundSwing
	case LeaderboardFragger:
		return s.FraggerScore
	case LeaderboardSupport:
		return s.SupportScore
	case LeaderboardOpener:
		return s.OpenerScore
	case LeaderboardCloser:
		return s.CloserScore
	}
	return 0
}

type TimeWindow string

const (
	Window7Days  TimeWindow = "7d"
	Window30Days TimeWindow = "30d"
)

var TimeWindows = []TimeWindow{Window7Days, Window30Days}

func (w TimeWindow) Valid() bool {
	return w == Window7Days || w == Window30Days
}

func (w TimeWindow) Duration() time.Duration {
	if w == Window30Days {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

type LeaderboardEntry struct {
	ID              string // nanoid
	GroupID         string
	LeaderboardType LeaderboardType
	TimeWindow      TimeWindow
	SteamID         string
	Position        int
	Value           float64
	MatchesPlayed   int
	Generation      string
	CalculatedAt    time.Time
}
