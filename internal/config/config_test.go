package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("INGEST_API_KEY", "ingest-key")
	t.Setenv("PARSER_BASE_URL", "http://parser:8000/")
	t.Setenv("PARSER_API_KEY", "parser-key")
	t.Setenv("CALLBACK_BASE_URL", "http://ingest:8080")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "http://parser:8000", cfg.ParserBaseURL)
	assert.Equal(t, time.Hour, cfg.LeaderboardInterval)
	assert.Equal(t, 4, cfg.WorkqueueWorkers)
}

func TestLoad_MissingRequiredKey(t *testing.T) {
	for _, key := range []string{"INGEST_API_KEY", "PARSER_BASE_URL", "PARSER_API_KEY", "CALLBACK_BASE_URL"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			_, err := Load(zerolog.Nop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"APP_ENV", "staging"},
		{"LEADERBOARD_INTERVAL", "soon"},
		{"STALE_JOB_TIMEOUT", "-1m"},
		{"WORKQUEUE_WORKERS", "zero"},
		{"WORKQUEUE_WORKERS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestLoad_ZeroRetentionDisablesSweep(t *testing.T) {
	setRequired(t)
	t.Setenv("JOB_RETENTION", "0s")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, cfg.JobRetention)
}
