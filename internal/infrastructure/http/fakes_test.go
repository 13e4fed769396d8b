package httpserver

import (
	"context"
	"sync"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/alphavantage"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type memSettings struct {
	mu sync.Mutex
	st *domain.Settings
}

func (m *memSettings) Get(context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return domain.Settings{}, domain.ErrNotFound
	}
	return *m.st, nil
}

func (m *memSettings) Save(_ context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = &s
	return nil
}

func (m *memSettings) MarkDailySync(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.LastDailySync = &at
	return nil
}

func (m *memSettings) MarkMonthlySync(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.LastMonthlySync = &at
	return nil
}

type memRates struct{}

func (memRates) Upsert(context.Context, domain.CurrentRate) error { return nil }
func (memRates) Get(context.Context, string, string, civil.Date) (domain.CurrentRate, error) {
	return domain.CurrentRate{}, domain.ErrNotFound
}
func (memRates) ScopeRequired(context.Context) (bool, error) { return false, nil }

type memRateLog struct {
	mu      sync.Mutex
	entries []domain.RateLogEntry
}

func (m *memRateLog) Upsert(_ context.Context, e domain.RateLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRateLog) Latest(_ context.Context, from, to string, rt domain.RateType) (domain.RateLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		best  domain.RateLogEntry
		found bool
	)
	for _, e := range m.entries {
		if e.From == from && e.To == to && e.RateType == rt && (!found || e.RateDate.After(best.RateDate)) {
			best, found = e, true
		}
	}
	if !found {
		return domain.RateLogEntry{}, domain.ErrNotFound
	}
	return best, nil
}

func (m *memRateLog) List(_ context.Context, f domain.RateLogFilter) ([]domain.RateLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RateLogEntry
	for _, e := range m.entries {
		if f.From != "" && e.From != f.From {
			continue
		}
		if f.RateType != "" && e.RateType != f.RateType {
			continue
		}
		if !f.FromDate.IsZero() && e.RateDate.Before(f.FromDate) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type memSyncLog struct {
	mu       sync.Mutex
	attempts []domain.SyncAttempt
}

func (m *memSyncLog) Insert(_ context.Context, a domain.SyncAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memSyncLog) List(_ context.Context, f domain.SyncLogFilter) ([]domain.SyncAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SyncAttempt
	for _, a := range m.attempts {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type memIdem struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memIdem) TryReserve(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type failingMarket struct{ err error }

func (f failingMarket) FetchSpot(context.Context, string, string) (domain.Quote, error) {
	return domain.Quote{}, f.err
}
func (f failingMarket) FetchDailySeries(context.Context, string, string, domain.OutputSize) (domain.Series, error) {
	return domain.Series{}, f.err
}
func (f failingMarket) FetchMonthlySeries(context.Context, string, string) (domain.Series, error) {
	return domain.Series{}, f.err
}

type fixture struct {
	settings *memSettings
	rateLog  *memRateLog
	syncLog  *memSyncLog
	jobs     []application.SyncJob
	market   application.MarketDataFactory
}

func enabledSettings() domain.Settings {
	st := domain.DefaultSettings()
	st.Enabled = true
	st.APIKey = "secret-key"
	return st
}

func newFixture() *fixture {
	st := enabledSettings()
	return &fixture{
		settings: &memSettings{st: &st},
		rateLog:  &memRateLog{},
		syncLog:  &memSyncLog{},
		market:   alphavantage.NewFake(decimal.RequireFromString("0.92")).Factory(),
	}
}

func (f *fixture) service() *application.FXRatesService {
	syncSvc := application.NewSyncService(f.settings, memRates{}, f.rateLog, f.syncLog, f.market)
	return application.NewFXRatesService(f.settings, f.rateLog, f.syncLog, f.market, syncSvc,
		application.WithIdempotency(&memIdem{}),
		application.WithRunner(func(_ context.Context, job application.SyncJob) { f.jobs = append(f.jobs, job) }),
	)
}
