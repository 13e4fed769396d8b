package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/forex?sslmode=disable")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "pg", cfg.Storage)
	require.Equal(t, 60, cfg.CallsPerMinute)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 2, cfg.BackfillMonths)
	require.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/fx.db")
	t.Setenv("ALPHAVANTAGE_CALLS_PER_MINUTE", "5")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("IDEMPOTENCY_BACKEND", "noop")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "sqlite", cfg.Storage)
	require.Equal(t, 5, cfg.CallsPerMinute)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"pg without url":  {"STORAGE": "pg", "DATABASE_URL": ""},
		"unknown storage": {"STORAGE": "mongo"},
		"bad hour":        {"DATABASE_URL": "postgres://x", "DAILY_SYNC_HOUR": "24"},
		"zero rate":       {"DATABASE_URL": "postgres://x", "ALPHAVANTAGE_CALLS_PER_MINUTE": "0"},
		"bad timezone":    {"DATABASE_URL": "postgres://x", "TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			require.Error(t, Load().Validate())
		})
	}
}
