package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTesting     = "testing"
)

type Config struct {
	AppEnv              string
	ServerPort          string
	DBPath              string
	LogLevel            string
	IngestAPIKey        string
	ParserBaseURL       string
	ParserAPIKey        string
	CallbackBaseURL     string
	DemoDir             string
	ComplexionTablePath string
	LeaderboardInterval time.Duration
	StaleJobTimeout     time.Duration
	JobRetention        time.Duration
	WorkqueueWorkers    int
}

// IsProduction reports whether match hashes are computed and enforced.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", EnvDevelopment),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "demo-ingest.db"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		IngestAPIKey:        getEnv("INGEST_API_KEY", ""),
		ParserBaseURL:       strings.TrimRight(getEnv("PARSER_BASE_URL", ""), "/"),
		ParserAPIKey:        getEnv("PARSER_API_KEY", ""),
		CallbackBaseURL:     strings.TrimRight(getEnv("CALLBACK_BASE_URL", ""), "/"),
		DemoDir:             getEnv("DEMO_DIR", "demos"),
		ComplexionTablePath: getEnv("COMPLEXION_TABLE_PATH", ""),
	}

	var err error
	if cfg.LeaderboardInterval, err = getDuration("LEADERBOARD_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.StaleJobTimeout, err = getDuration("STALE_JOB_TIMEOUT", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.JobRetention, err = getDuration("JOB_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WorkqueueWorkers, err = getInt("WORKQUEUE_WORKERS", 4); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("app_env", cfg.AppEnv).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("parser_base_url", cfg.ParserBaseURL).
		Dur("leaderboard_interval", cfg.LeaderboardInterval).
		Dur("stale_job_timeout", cfg.StaleJobTimeout).
		Dur("job_retention", cfg.JobRetention).
		Int("workqueue_workers", cfg.WorkqueueWorkers).
		Msg("configuration loaded")

	return cfg, nil
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"INGEST_API_KEY", c.IngestAPIKey},
		{"PARSER_BASE_URL", c.ParserBaseURL},
		{"PARSER_API_KEY", c.ParserAPIKey},
		{"CALLBACK_BASE_URL", c.CallbackBaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	switch c.AppEnv {
	case EnvProduction, EnvDevelopment, EnvTesting:
	default:
		return fmt.Errorf("APP_ENV must be one of production, development, testing, got %q", c.AppEnv)
	}

	if c.LeaderboardInterval <= 0 {
		return fmt.Errorf("LEADERBOARD_INTERVAL must be positive")
	}
	if c.StaleJobTimeout <= 0 {
		return fmt.Errorf("STALE_JOB_TIMEOUT must be positive")
	}
	if c.JobRetention < 0 {
		return fmt.Errorf("JOB_RETENTION must not be negative")
	}
	if c.WorkqueueWorkers < 1 {
		return fmt.Errorf("WORKQUEUE_WORKERS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

var Module = fx.Provide(Load)
