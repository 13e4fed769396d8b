package application

import (
	"context"
	"errors"
	"fmt"

	"forexsync/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Runner executes a sync job. The default runs it on a new goroutine.
type Runner func(ctx context.Context, job SyncJob)

// FXRatesService is the operator-facing surface: rate lookups, settings
// management and sync triggers.
type FXRatesService struct {
	settings SettingsStore
	rateLog  RateLogStore
	syncLog  SyncLogStore
	market   MarketDataFactory
	sync     *SyncService
	uow      UnitOfWork
	idem     IdempotencyStore
	runner   Runner
	idgen    IDGen
	log      *zap.Logger
}

type Option func(*FXRatesService)

func WithIDGen(g IDGen) Option                 { return func(s *FXRatesService) { s.idgen = g } }
func WithUnitOfWork(u UnitOfWork) Option       { return func(s *FXRatesService) { s.uow = u } }
func WithIdempotency(i IdempotencyStore) Option { return func(s *FXRatesService) { s.idem = i } }
func WithRunner(r Runner) Option               { return func(s *FXRatesService) { s.runner = r } }
func WithLogger(l *zap.Logger) Option          { return func(s *FXRatesService) { s.log = l } }

func NewFXRatesService(
	settings SettingsStore,
	rateLog RateLogStore,
	syncLog SyncLogStore,
	market MarketDataFactory,
	sync *SyncService,
	opts ...Option,
) *FXRatesService {
	s := &FXRatesService{
		settings: settings,
		rateLog:  rateLog,
		syncLog:  syncLog,
		market:   market,
		sync:     sync,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.uow == nil {
		s.uow = NoopUoW{}
	}
	if s.idem == nil {
		s.idem = NoopIdempotency{}
	}
	if s.idgen == nil {
		s.idgen = defaultIDGen{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.runner == nil {
		s.runner = s.runAsync
	}
	return s
}

// RequestSync validates the settings and hands the run to the runner. A
// repeated idempotency key is rejected with ErrConflict.
func (s *FXRatesService) RequestSync(ctx context.Context, kind SyncKind, months int, idem *string) (string, error) {
	if kind != SyncKindBackfill && months != 0 {
		return "", fmt.Errorf("%w: months only applies to backfill", ErrBadRequest)
	}
	if months < 0 {
		return "", fmt.Errorf("%w: months must be positive", ErrBadRequest)
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	if err := st.CheckEnabled(); err != nil {
		return "", err
	}
	if idem != nil && *idem != "" {
		ok, err := s.idem.TryReserve(ctx, "sync:"+*idem)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrConflict
		}
	}
	job := SyncJob{ID: s.idgen.NewID(), Kind: kind, Months: months}
	s.runner(context.WithoutCancel(ctx), job)
	return job.ID, nil
}

func (s *FXRatesService) runAsync(ctx context.Context, job SyncJob) {
	go func() {
		log := s.log.With(zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
		log.Info("sync.job_start")
		if err := s.sync.Run(ctx, job); err != nil {
			log.Warn("sync.job_failed", zap.Error(err))
			return
		}
		log.Info("sync.job_done")
	}()
}

func (s *FXRatesService) LatestRate(ctx context.Context, from, to string, rt domain.RateType) (domain.RateLogEntry, error) {
	if !domain.ValidateCurrency(from) || !domain.ValidateCurrency(to) {
		return domain.RateLogEntry{}, fmt.Errorf("%w: invalid currency code", ErrBadRequest)
	}
	return s.rateLog.Latest(ctx, from, to, rt)
}

func (s *FXRatesService) RateHistory(ctx context.Context, f domain.RateLogFilter) ([]domain.RateLogEntry, error) {
	return s.rateLog.List(ctx, f)
}

func (s *FXRatesService) SyncLogs(ctx context.Context, f domain.SyncLogFilter) ([]domain.SyncAttempt, error) {
	return s.syncLog.List(ctx, f)
}

func (s *FXRatesService) Settings(ctx context.Context) (domain.Settings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings validates and saves st. An empty API key keeps the stored one.
func (s *FXRatesService) UpdateSettings(ctx context.Context, st domain.Settings) (domain.Settings, error) {
	var out domain.Settings
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		cur, err := s.settings.Get(ctx)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if st.APIKey == "" {
			st.APIKey = cur.APIKey
		}
		st.LastDailySync, st.LastMonthlySync = cur.LastDailySync, cur.LastMonthlySync
		if err := st.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		if err := s.settings.Save(ctx, st); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// ConnectionResult reports the outcome of a test call to the market data API.
type ConnectionResult struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Rate    decimal.Decimal `json:"sample_rate"`
}

// TestConnection fetches USD to EUR with apiKey, or the stored key when empty.
// Upstream failures are reported in the result, not as an error.
func (s *FXRatesService) TestConnection(ctx context.Context, apiKey string) (ConnectionResult, error) {
	if apiKey == "" {
		st, err := s.settings.Get(ctx)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return ConnectionResult{}, err
		}
		apiKey = st.APIKey
	}
	if apiKey == "" {
		return ConnectionResult{}, &domain.ConfigurationError{Reason: "market data API key is not configured"}
	}
	q, err := s.market(apiKey).FetchSpot(ctx, "USD", "EUR")
	if err != nil {
		return ConnectionResult{Message: err.Error()}, nil
	}
	return ConnectionResult{
		OK:      true,
		Message: "Connection successful. USD to EUR: " + q.ExchangeRate.String(),
		Rate:    q.ExchangeRate,
	}, nil
}

// FetchSpot queries the realtime rate on demand without persisting it.
func (s *FXRatesService) FetchSpot(ctx context.Context, from, to string) (domain.Quote, error) {
	md, err := s.enabledMarket(ctx, from, to)
	if err != nil {
		return domain.Quote{}, err
	}
	return md.FetchSpot(ctx, from, to)
}

// FetchMonthlySeries queries the monthly series on demand without persisting it.
func (s *FXRatesService) FetchMonthlySeries(ctx context.Context, from, to string) (domain.Series, error) {
	md, err := s.enabledMarket(ctx, from, to)
	if err != nil {
		return domain.Series{}, err
	}
	return md.FetchMonthlySeries(ctx, from, to)
}

func (s *FXRatesService) enabledMarket(ctx context.Context, from, to string) (MarketData, error) {
	if !domain.ValidateCurrency(from) || !domain.ValidateCurrency(to) || from == to {
		return nil, fmt.Errorf("%w: invalid currency pair %s-%s", ErrBadRequest, from, to)
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.CheckEnabled(); err != nil {
		return nil, err
	}
	return s.market(st.APIKey), nil
}
