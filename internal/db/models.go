package db

import (
	"time"
)

type ProcessingJob struct {
	ID              int64      `json:"id"`
	Uuid            string     `json:"uuid"`
	MatchID         *int64     `json:"match_id"`
	Status          string     `json:"status"`
	ProgressPercent int64      `json:"progress_percent"`
	CurrentStep     string     `json:"current_step"`
	ErrorMessage    *string    `json:"error_message"`
	DemoPath        string     `json:"demo_path"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Match struct {
	ID                 int64     `json:"id"`
	MatchHash          *string   `json:"match_hash"`
	Map                string    `json:"map"`
	WinningTeamScore   int64     `json:"winning_team_score"`
	LosingTeamScore    int64     `json:"losing_team_score"`
	MatchType          string    `json:"match_type"`
	TotalRounds        int64     `json:"total_rounds"`
	TotalFightEvents   int64     `json:"total_fight_events"`
	TotalGrenadeEvents int64     `json:"total_grenade_events"`
	PlaybackTicks      int64     `json:"playback_ticks"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Player struct {
	SteamID      string    `json:"steam_id"`
	Name         string    `json:"name"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	TotalMatches int64     `json:"total_matches"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type MatchPlayer struct {
	MatchID int64  `json:"match_id"`
	SteamID string `json:"steam_id"`
	Name    string `json:"name"`
	Team    string `json:"team"`
}

type JobEventBatch struct {
	JobUuid      string    `json:"job_uuid"`
	EventName    string    `json:"event_name"`
	BatchIndex   int64     `json:"batch_index"`
	TotalBatches int64     `json:"total_batches"`
	IsLast       bool      `json:"is_last"`
	ReceivedRows int64     `json:"received_rows"`
	InsertedRows int64     `json:"inserted_rows"`
	ReceivedAt   time.Time `json:"received_at"`
}

type PlayerMatchSummary struct {
	MatchID              int64     `json:"match_id"`
	SteamID              string    `json:"steam_id"`
	Team                 string    `json:"team"`
	RoundsPlayed         int64     `json:"rounds_played"`
	Kills                int64     `json:"kills"`
	Deaths               int64     `json:"deaths"`
	Assists              int64     `json:"assists"`
	Headshots            int64     `json:"headshots"`
	Wallbangs            int64     `json:"wallbangs"`
	DamageDealt          int64     `json:"damage_dealt"`
	DamageTaken          int64     `json:"damage_taken"`
	UtilityDamage        int64     `json:"utility_damage"`
	EnemyFlashDuration   float64   `json:"enemy_flash_duration"`
	TeamFlashDuration    float64   `json:"team_flash_duration"`
	SmokeBlockingSeconds float64   `json:"smoke_blocking_seconds"`
	FirstKills           int64     `json:"first_kills"`
	FirstDeaths          int64     `json:"first_deaths"`
	ClutchStats          string    `json:"clutch_stats"`
	ClutchAttempts       int64     `json:"clutch_attempts"`
	ClutchSuccesses      int64     `json:"clutch_successes"`
	KdRatio              float64   `json:"kd_ratio"`
	HeadshotPercentage   float64   `json:"headshot_percentage"`
	ClutchSuccessRate    float64   `json:"clutch_success_rate"`
	ImpactScore          float64   `json:"impact_score"`
	RoundSwing           float64   `json:"round_swing"`
	OpenerScore          float64   `json:"opener_score"`
	CloserScore          float64   `json:"closer_score"`
	SupportScore         float64   `json:"support_score"`
	FraggerScore         float64   `json:"fragger_score"`
	ComputedAt           time.Time `json:"computed_at"`
}

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type GroupMember struct {
	GroupID  string    `json:"group_id"`
	SteamID  string    `json:"steam_id"`
	JoinedAt time.Time `json:"joined_at"`
}

type LeaderboardEntry struct {
	ID              string    `json:"id"`
	GroupID         string    `json:"group_id"`
	LeaderboardType string    `json:"leaderboard_type"`
	TimeWindow      string    `json:"time_window"`
	SteamID         string    `json:"steam_id"`
	Position        int64     `json:"position"`
	Value           float64   `json:"value"`
	MatchesPlayed   int64     `json:"matches_played"`
	Generation      string    `json:"generation"`
	CalculatedAt    time.Time `json:"calculated_at"`
}
