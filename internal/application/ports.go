package application

import (
	"context"
	"time"

	"forexsync/internal/domain"

	"cloud.google.com/go/civil"
)

// SettingsStore holds the single integration settings record.
type SettingsStore interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) error
	MarkDailySync(ctx context.Context, at time.Time) error
	MarkMonthlySync(ctx context.Context, at time.Time) error
}

// CurrentRateStore is the live exchange-rate table consulted by transactions.
type CurrentRateStore interface {
	// Upsert updates the row for (From, To, Date) in place or inserts it.
	Upsert(ctx context.Context, r domain.CurrentRate) error
	Get(ctx context.Context, from, to string, date civil.Date) (domain.CurrentRate, error)
	// ScopeRequired probes whether the scope column is mandatory.
	ScopeRequired(ctx context.Context) (bool, error)
}

type RateLogStore interface {
	// Upsert overwrites the row for (From, To, RateDate, RateType) or inserts it.
	Upsert(ctx context.Context, e domain.RateLogEntry) error
	Latest(ctx context.Context, from, to string, rt domain.RateType) (domain.RateLogEntry, error)
	List(ctx context.Context, f domain.RateLogFilter) ([]domain.RateLogEntry, error)
}

type SyncLogStore interface {
	Insert(ctx context.Context, a domain.SyncAttempt) error
	List(ctx context.Context, f domain.SyncLogFilter) ([]domain.SyncAttempt, error)
}

// MarketData is the market-data adapter for one API key.
type MarketData interface {
	FetchSpot(ctx context.Context, from, to string) (domain.Quote, error)
	FetchDailySeries(ctx context.Context, from, to string, size domain.OutputSize) (domain.Series, error)
	FetchMonthlySeries(ctx context.Context, from, to string) (domain.Series, error)
}

// MarketDataFactory binds the adapter to the API key of the current settings.
// Adapters built by one factory share a single rate budget.
type MarketDataFactory func(apiKey string) MarketData
