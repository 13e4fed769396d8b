package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// Common
	Env      string
	LogLevel string `validate:"oneof=debug info warn error"`
	Timezone string
	// API
	Port            string        `validate:"required,numeric"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	// Storage
	Storage     string `validate:"oneof=pg sqlite"`
	DatabaseURL string `validate:"required_if=Storage pg"`
	SQLitePath  string `validate:"required_if=Storage sqlite"`
	PGMaxConns  int32  `validate:"min=1"`
	// Market data
	MarketData          string        `validate:"oneof=alphavantage fake"`
	AlphaVantageBaseURL string        `validate:"required,url"`
	CallsPerMinute      int           `validate:"min=1"`
	RequestTimeout      time.Duration `validate:"gt=0"`
	// Idempotency
	IdempotencyBackend string `validate:"oneof=redis noop"`
	RedisAddr          string `validate:"required_if=IdempotencyBackend redis"`
	RedisPassword      string
	RedisDB            int
	IdempotencyTTL     time.Duration `validate:"gt=0"`
	// Scheduler
	SchedulerPoll   time.Duration `validate:"gt=0"`
	DailySyncHour   int           `validate:"min=0,max=23"`
	MonthlySyncHour int           `validate:"min=0,max=23"`
	BackfillMonths  int           `validate:"min=1,max=240"`
}

var defaults = map[string]any{
	"ENV":                           "local",
	"LOG_LEVEL":                     "info",
	"TIMEZONE":                      "UTC",
	"PORT":                          "8080",
	"SHUTDOWN_TIMEOUT":              "10s",
	"STORAGE":                       "pg",
	"DATABASE_URL":                  "",
	"SQLITE_PATH":                   "forexsync.db",
	"PG_MAX_CONNS":                  5,
	"MARKET_DATA":                   "alphavantage",
	"ALPHAVANTAGE_BASE_URL":         "https://www.alphavantage.co/query",
	"ALPHAVANTAGE_CALLS_PER_MINUTE": 60,
	"REQUEST_TIMEOUT":               "30s",
	"IDEMPOTENCY_BACKEND":           "redis",
	"REDIS_ADDR":                    "localhost:6379",
	"REDIS_PASSWORD":                "",
	"REDIS_DB":                      0,
	"IDEMPOTENCY_TTL":               "24h",
	"SCHEDULER_POLL":                "1m",
	"DAILY_SYNC_HOUR":               6,
	"MONTHLY_SYNC_HOUR":             7,
	"BACKFILL_MONTHS":               2,
}

// Load reads environment variables and applies defaults.
func Load() Config {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	return Config{
		Env:                 v.GetString("ENV"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		Timezone:            v.GetString("TIMEZONE"),
		Port:                v.GetString("PORT"),
		ShutdownTimeout:     v.GetDuration("SHUTDOWN_TIMEOUT"),
		Storage:             v.GetString("STORAGE"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		PGMaxConns:          v.GetInt32("PG_MAX_CONNS"),
		MarketData:          v.GetString("MARKET_DATA"),
		AlphaVantageBaseURL: v.GetString("ALPHAVANTAGE_BASE_URL"),
		CallsPerMinute:      v.GetInt("ALPHAVANTAGE_CALLS_PER_MINUTE"),
		RequestTimeout:      v.GetDuration("REQUEST_TIMEOUT"),
		IdempotencyBackend:  v.GetString("IDEMPOTENCY_BACKEND"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		IdempotencyTTL:      v.GetDuration("IDEMPOTENCY_TTL"),
		SchedulerPoll:       v.GetDuration("SCHEDULER_POLL"),
		DailySyncHour:       v.GetInt("DAILY_SYNC_HOUR"),
		MonthlySyncHour:     v.GetInt("MONTHLY_SYNC_HOUR"),
		BackfillMonths:      v.GetInt("BACKFILL_MONTHS"),
	}
}

// Validate checks value ranges and the settings each backend depends on.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the zone used to decide "today" for sync runs.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
