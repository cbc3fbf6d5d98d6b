package constants

import "time"

const (
	HealthCheckTimeout = 10 * time.Second
	UploadTimeout      = 300 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	MaxDemoUploadBytes   = 1 << 30
	MaxEventBodyBytes    = 32 << 20
	MaxCallbackBodyBytes = 64 << 10
)

const (
	// SmokeDurationSeconds is how long a smoke grenade blocks vision once deployed.
	SmokeDurationSeconds = 18.0
	MaxClutchSize        = 5
	LateRoundSeconds     = 75.0
)

const (
	LeaderboardConcurrency = 4
	SweepInterval          = 5 * time.Minute
)

const (
	BreakerConsecutiveFailures = 5
	BreakerOpenTimeout         = 30 * time.Second
)

const (
	IngestRateLimit       = 600
	IngestRateLimitWindow = time.Minute
)
