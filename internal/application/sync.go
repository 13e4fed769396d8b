package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forexsync/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SyncKind selects which orchestrated run to execute.
type SyncKind string

const (
	SyncKindDaily    SyncKind = "daily"
	SyncKindMonthly  SyncKind = "monthly"
	SyncKindBackfill SyncKind = "backfill"
)

func ParseSyncKind(s string) (SyncKind, error) {
	switch k := SyncKind(s); k {
	case SyncKindDaily, SyncKindMonthly, SyncKindBackfill:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown sync kind %q", ErrBadRequest, s)
}

// SyncJob is one requested run. Months only applies to backfills.
type SyncJob struct {
	ID     string
	Kind   SyncKind
	Months int
}

const (
	defaultBackfillMonths = 2
	defaultRunLockTTL     = 2 * time.Hour
	runLockName           = "sync"
)

// ErrRunInProgress is returned by Run when another run holds the lock.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// SyncService orchestrates daily, monthly and backfill runs. Each pair is an
// isolated unit of work: a failing pair is recorded and the run moves on.
type SyncService struct {
	settings       SettingsStore
	rates          CurrentRateStore
	recorder       *Recorder
	market         MarketDataFactory
	clock          Clock
	idgen          IDGen
	log            *zap.Logger
	loc            *time.Location
	backfillMonths int
	lock           RunLock
	lockTTL        time.Duration
}

type SyncOption func(*SyncService)

func WithSyncClock(c Clock) SyncOption          { return func(s *SyncService) { s.clock = c } }
func WithSyncIDGen(g IDGen) SyncOption          { return func(s *SyncService) { s.idgen = g } }
func WithSyncLogger(l *zap.Logger) SyncOption   { return func(s *SyncService) { s.log = l } }
func WithLocation(loc *time.Location) SyncOption { return func(s *SyncService) { s.loc = loc } }
func WithBackfillMonths(n int) SyncOption       { return func(s *SyncService) { s.backfillMonths = n } }

// WithRunLock makes Run exclusive across every holder of lock.
func WithRunLock(lock RunLock, ttl time.Duration) SyncOption {
	return func(s *SyncService) { s.lock, s.lockTTL = lock, ttl }
}

func NewSyncService(
	settings SettingsStore,
	rates CurrentRateStore,
	rateLog RateLogStore,
	syncLog SyncLogStore,
	market MarketDataFactory,
	opts ...SyncOption,
) *SyncService {
	s := &SyncService{settings: settings, rates: rates, market: market}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.idgen == nil {
		s.idgen = defaultIDGen{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.backfillMonths <= 0 {
		s.backfillMonths = defaultBackfillMonths
	}
	if s.lock == nil {
		s.lock = &LocalRunLock{}
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultRunLockTTL
	}
	s.recorder = NewRecorder(rateLog, syncLog, s.clock, s.idgen)
	return s
}

// Run executes job synchronously while holding the run lock.
func (s *SyncService) Run(ctx context.Context, job SyncJob) error {
	return s.locked(ctx, func() error {
		switch job.Kind {
		case SyncKindDaily:
			return s.SyncDailySpotRates(ctx)
		case SyncKindMonthly:
			return s.SyncMonthlyRates(ctx)
		case SyncKindBackfill:
			return s.BackfillHistoricalRates(ctx, job.Months)
		}
		return fmt.Errorf("%w: unknown sync kind %q", ErrBadRequest, job.Kind)
	})
}

// RunDue runs the daily or monthly check under the run lock. It reports
// whether a sync was started.
func (s *SyncService) RunDue(ctx context.Context, kind SyncKind) (bool, error) {
	var ran bool
	err := s.locked(ctx, func() error {
		var err error
		switch kind {
		case SyncKindDaily:
			ran, err = s.CheckAndSyncDaily(ctx)
		case SyncKindMonthly:
			ran, err = s.CheckAndSyncMonthly(ctx)
		default:
			err = fmt.Errorf("%w: %q has no schedule", ErrBadRequest, kind)
		}
		return err
	})
	return ran, err
}

func (s *SyncService) locked(ctx context.Context, fn func() error) error {
	release, ok, err := s.lock.Acquire(ctx, runLockName, s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	defer release(context.WithoutCancel(ctx))
	return fn()
}

// SyncDailySpotRates fetches the realtime rate of every enabled pair with the
// daily toggle and writes it as today's Spot rate.
func (s *SyncService) SyncDailySpotRates(ctx context.Context) error {
	r, err := s.begin(ctx, domain.SyncTypeSpotDaily)
	if err != nil {
		return err
	}
	today := s.today()
	for _, p := range r.settings.EnabledPairs() {
		if !p.SyncSpotDaily {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		r.guard(ctx, domain.SyncTypeSpotDaily, p.Label(), func() { r.syncSpot(ctx, p, today) })
	}
	if err := s.settings.MarkDailySync(ctx, s.clock.Now()); err != nil {
		r.log.Error("sync.mark_failed", zap.Error(err))
	}
	r.done()
	return nil
}

// SyncMonthlyRates derives Closing, Monthly Average and Prudency rates for the
// month before today from the compact daily series.
func (s *SyncService) SyncMonthlyRates(ctx context.Context) error {
	r, err := s.begin(ctx, domain.SyncTypeClosingMonthly)
	if err != nil {
		return err
	}
	target := domain.YearMonthOf(s.today()).AddMonths(-1)
	for _, p := range r.settings.EnabledPairs() {
		if !p.SyncsMonthly() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		r.guard(ctx, domain.SyncTypeClosingMonthly, p.Label(), func() { r.syncMonthly(ctx, p, target) })
	}
	if err := s.settings.MarkMonthlySync(ctx, s.clock.Now()); err != nil {
		r.log.Error("sync.mark_failed", zap.Error(err))
	}
	r.done()
	return nil
}

// BackfillHistoricalRates replays the full daily series for the last months
// calendar months plus the current one. months <= 0 uses the configured default.
func (s *SyncService) BackfillHistoricalRates(ctx context.Context, months int) error {
	if months <= 0 {
		months = s.backfillMonths
	}
	r, err := s.begin(ctx, domain.SyncTypeBackfill)
	if err != nil {
		return err
	}
	today := s.today()
	for _, p := range r.settings.EnabledPairs() {
		if ctx.Err() != nil {
			break
		}
		r.guard(ctx, domain.SyncTypeBackfill, p.Label(), func() { r.backfill(ctx, p, today, months) })
	}
	r.done()
	return nil
}

// CheckAndSyncDaily runs the daily sync unless one already ran today. A
// disabled integration is a silent no-op.
func (s *SyncService) CheckAndSyncDaily(ctx context.Context) (bool, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	if !st.Enabled {
		return false, nil
	}
	if st.LastDailySync != nil && s.dateOf(*st.LastDailySync) == s.today() {
		return false, nil
	}
	return true, s.SyncDailySpotRates(ctx)
}

// CheckAndSyncMonthly runs the monthly sync unless one already ran this month.
func (s *SyncService) CheckAndSyncMonthly(ctx context.Context) (bool, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	if !st.Enabled {
		return false, nil
	}
	if st.LastMonthlySync != nil && domain.YearMonthOf(s.dateOf(*st.LastMonthlySync)) == domain.YearMonthOf(s.today()) {
		return false, nil
	}
	return true, s.SyncMonthlyRates(ctx)
}

func (s *SyncService) today() civil.Date { return s.dateOf(s.clock.Now()) }

func (s *SyncService) dateOf(t time.Time) civil.Date { return civil.DateOf(t.In(s.loc)) }

// begin loads settings once for the run. A configuration failure is recorded
// as a single Skipped attempt and returned to the caller.
func (s *SyncService) begin(ctx context.Context, st domain.SyncType) (*run, error) {
	log := s.log.With(zap.String("sync_type", string(st)))
	settings, err := s.settings.Get(ctx)
	if err == nil {
		err = settings.CheckEnabled()
	} else {
		err = &domain.ConfigurationError{Reason: "load settings: " + err.Error()}
	}
	if err == nil && len(settings.EnabledPairs()) == 0 {
		err = &domain.ConfigurationError{Reason: "no currency pairs are enabled"}
	}
	if err != nil {
		log.Warn("sync.skipped", zap.Error(err))
		if rerr := s.recorder.RecordAttempt(ctx, domain.SyncAttempt{
			SyncType:     st,
			CurrencyPair: "*",
			Status:       domain.SyncStatusSkipped,
			ErrorMessage: err.Error(),
		}); rerr != nil {
			log.Error("sync.record_failed", zap.Error(rerr))
		}
		return nil, err
	}
	log.Info("sync.start", zap.Int("pairs", len(settings.EnabledPairs())))
	return &run{
		s:        s,
		settings: settings,
		market:   s.market(settings.APIKey),
		log:      log,
		started:  s.clock.Now(),
	}, nil
}

// run carries the state of one orchestrated run.
type run struct {
	s        *SyncService
	settings domain.Settings
	market   MarketData
	log      *zap.Logger
	started  time.Time

	scopeProbed   bool
	scopeRequired bool
	scopeErr      error

	succeeded, failed int
}

func (r *run) done() {
	r.log.Info("sync.done",
		zap.Int("succeeded", r.succeeded),
		zap.Int("failed", r.failed),
		zap.Duration("elapsed", r.s.clock.Now().Sub(r.started)),
	)
}

// guard isolates a pair: a panic is recorded as an Error attempt.
func (r *run) guard(ctx context.Context, st domain.SyncType, label string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(ctx, st, label, fmt.Errorf("unexpected failure: %v", rec), nil)
		}
	}()
	fn()
}

func (r *run) record(ctx context.Context, a domain.SyncAttempt) {
	if err := r.s.recorder.RecordAttempt(ctx, a); err != nil {
		r.log.Error("sync.record_failed", zap.String("pair", a.CurrencyPair), zap.Error(err))
	}
}

func (r *run) succeed(ctx context.Context, st domain.SyncType, label string, rate decimal.Decimal, msg string, raw []byte) {
	r.succeeded++
	r.log.Debug("sync.pair_ok", zap.String("pair", label), zap.Stringer("rate", rate))
	r.record(ctx, domain.SyncAttempt{
		SyncType:     st,
		CurrencyPair: label,
		Status:       domain.SyncStatusSuccess,
		ExchangeRate: decimal.NewNullDecimal(rate),
		ErrorMessage: msg,
		APIResponse:  raw,
	})
}

func (r *run) fail(ctx context.Context, st domain.SyncType, label string, err error, raw []byte) {
	r.failRate(ctx, st, label, decimal.NullDecimal{}, err, raw)
}

func (r *run) failRate(ctx context.Context, st domain.SyncType, label string, rate decimal.NullDecimal, err error, raw []byte) {
	r.failed++
	var ae *domain.APIError
	if errors.As(err, &ae) && ae.RateLimited() {
		r.log.Warn("sync.rate_limited", zap.String("pair", label), zap.String("message", ae.Message))
	} else {
		r.log.Error("sync.pair_failed", zap.String("pair", label), zap.Error(err))
	}
	r.record(ctx, domain.SyncAttempt{
		SyncType:     st,
		CurrencyPair: label,
		Status:       domain.SyncStatusError,
		ExchangeRate: rate,
		ErrorMessage: err.Error(),
		APIResponse:  raw,
	})
}

// finish records the outcome of a fetched rate: Success when every write
// landed, otherwise Error carrying the rate and the write failures.
func (r *run) finish(ctx context.Context, st domain.SyncType, label string, rate decimal.Decimal, raw []byte, writeErr error) {
	if writeErr != nil {
		r.failRate(ctx, st, label, decimal.NewNullDecimal(rate), writeErr, raw)
		return
	}
	r.succeed(ctx, st, label, rate, "", raw)
}

func (r *run) syncSpot(ctx context.Context, p domain.CurrencyPair, today civil.Date) {
	st, label := domain.SyncTypeSpotDaily, p.Label()
	q, err := r.market.FetchSpot(ctx, p.From, p.To)
	if err != nil {
		r.fail(ctx, st, label, err, domain.RawPayload(err))
		return
	}
	if !q.ExchangeRate.IsPositive() {
		r.fail(ctx, st, label, errors.New("invalid exchange rate received"), q.Raw)
		return
	}
	var errs []error
	if r.settings.AutoUpdateCurrencyExchange {
		errs = append(errs, r.writeCurrent(ctx, p, q.ExchangeRate, today))
	}
	if r.settings.StoreHistoricalData {
		errs = append(errs, r.s.recorder.UpsertRateLog(ctx, domain.RateLogEntry{
			From:         p.From,
			To:           p.To,
			RateDate:     today,
			RateType:     domain.RateTypeSpot,
			ExchangeRate: q.ExchangeRate,
			APIResponse:  q.Raw,
		}))
	}
	r.finish(ctx, st, label, q.ExchangeRate, q.Raw, errors.Join(errs...))
}

func (r *run) syncMonthly(ctx context.Context, p domain.CurrencyPair, target domain.YearMonth) {
	label := p.Label()
	series, err := r.market.FetchDailySeries(ctx, p.From, p.To, domain.OutputSizeCompact)
	if err != nil {
		r.fail(ctx, domain.SyncTypeClosingMonthly, label, err, domain.RawPayload(err))
		return
	}
	agg, err := domain.AggregateMonth(series, target)
	if err != nil {
		if errors.Is(err, domain.ErrNoDataForMonth) {
			err = fmt.Errorf("no data available for previous month (%s)", target)
		}
		r.fail(ctx, domain.SyncTypeClosingMonthly, label, err, nil)
		return
	}
	r.log.Debug("sync.month_aggregated", zap.String("pair", label), zap.Stringer("month", target), zap.Int("points", agg.DataPoints))

	if p.SyncClosingMonthly {
		var errs []error
		if r.settings.AutoUpdateCurrencyExchange {
			errs = append(errs, r.writeCurrent(ctx, p, agg.ClosingRate, agg.MonthEnd))
		}
		if r.settings.StoreHistoricalData {
			errs = append(errs, r.logMonthly(ctx, p, agg, domain.RateTypeClosing, agg.ClosingRate))
		}
		r.finish(ctx, domain.SyncTypeClosingMonthly, label, agg.ClosingRate, nil, errors.Join(errs...))
	}
	if p.SyncAverageMonthly {
		var err error
		if r.settings.StoreHistoricalData {
			err = r.logMonthly(ctx, p, agg, domain.RateTypeMonthlyAverage, agg.AverageRate)
		}
		r.finish(ctx, domain.SyncTypeMonthlyAverage, label, agg.AverageRate, nil, err)
	}
	if p.SyncPrudencyMonthly {
		for _, b := range []struct {
			rt     domain.RateType
			suffix string
			v      decimal.NullDecimal
		}{
			{domain.RateTypePrudencyHigh, " (High)", agg.HighRate},
			{domain.RateTypePrudencyLow, " (Low)", agg.LowRate},
		} {
			if !b.v.Valid {
				continue
			}
			var err error
			if r.settings.StoreHistoricalData {
				err = r.logMonthly(ctx, p, agg, b.rt, b.v.Decimal)
			}
			r.finish(ctx, domain.SyncTypePrudency, label+b.suffix, b.v.Decimal, nil, err)
		}
	}
}

func (r *run) logMonthly(ctx context.Context, p domain.CurrencyPair, agg domain.MonthlyAggregate, rt domain.RateType, rate decimal.Decimal) error {
	return r.s.recorder.UpsertRateLog(ctx, domain.RateLogEntry{
		From:         p.From,
		To:           p.To,
		RateDate:     agg.MonthEnd,
		RateType:     rt,
		ExchangeRate: rate,
		High:         agg.HighRate,
		Low:          agg.LowRate,
		Close:        decimal.NewNullDecimal(agg.ClosingRate),
	})
}

func (r *run) backfill(ctx context.Context, p domain.CurrencyPair, today civil.Date, months int) {
	st, label := domain.SyncTypeBackfill, p.Label()
	series, err := r.market.FetchDailySeries(ctx, p.From, p.To, domain.OutputSizeFull)
	if err != nil {
		r.fail(ctx, st, label, err, domain.RawPayload(err))
		return
	}
	if len(series.Points) == 0 {
		r.fail(ctx, st, label, errors.New("no time series data returned"), series.Raw)
		return
	}

	current := domain.YearMonthOf(today)
	start := current.AddMonths(-months).FirstDay()
	var days, writeErrs int
	var last decimal.Decimal
	for _, date := range series.Dates() {
		if date.Before(start) || date.After(today) {
			continue
		}
		pt := series.Points[date]
		if !pt.Close.IsPositive() {
			continue
		}
		var errs []error
		if r.settings.AutoUpdateCurrencyExchange {
			errs = append(errs, r.writeCurrent(ctx, p, pt.Close, date))
		}
		if r.settings.StoreHistoricalData {
			errs = append(errs, r.s.recorder.UpsertRateLog(ctx, domain.RateLogEntry{
				From:         p.From,
				To:           p.To,
				RateDate:     date,
				RateType:     domain.RateTypeSpot,
				ExchangeRate: pt.Close,
				Open:         decimal.NewNullDecimal(pt.Open),
				High:         decimal.NewNullDecimal(pt.High),
				Low:          decimal.NewNullDecimal(pt.Low),
				Close:        decimal.NewNullDecimal(pt.Close),
			}))
		}
		if err := errors.Join(errs...); err != nil {
			writeErrs++
			r.log.Warn("sync.backfill_day_failed", zap.String("pair", label), zap.Stringer("date", date), zap.Error(err))
		}
		days++
		last = pt.Close
	}

	var monthsDone int
	for i := 1; i <= months; i++ {
		m := current.AddMonths(-i)
		agg, err := domain.AggregateMonth(series, m)
		if err != nil {
			r.log.Debug("sync.backfill_month_empty", zap.String("pair", label), zap.Stringer("month", m))
			continue
		}
		if r.settings.StoreHistoricalData {
			for _, v := range []struct {
				rt   domain.RateType
				rate decimal.NullDecimal
			}{
				{domain.RateTypeClosing, decimal.NewNullDecimal(agg.ClosingRate)},
				{domain.RateTypeMonthlyAverage, decimal.NewNullDecimal(agg.AverageRate)},
				{domain.RateTypePrudencyHigh, agg.HighRate},
				{domain.RateTypePrudencyLow, agg.LowRate},
			} {
				if !v.rate.Valid {
					continue
				}
				if err := r.logMonthly(ctx, p, agg, v.rt, v.rate.Decimal); err != nil {
					writeErrs++
					r.log.Warn("sync.backfill_month_failed", zap.String("pair", label), zap.Stringer("month", m), zap.Error(err))
				}
			}
		}
		monthsDone++
	}

	msg := fmt.Sprintf("Processed %d days, %d months", days, monthsDone)
	if writeErrs > 0 {
		msg += fmt.Sprintf(" (%d write errors)", writeErrs)
	}
	r.succeeded++
	r.record(ctx, domain.SyncAttempt{
		SyncType:     st,
		CurrencyPair: label,
		Status:       domain.SyncStatusSuccess,
		ExchangeRate: decimal.NullDecimal{Decimal: last, Valid: days > 0},
		ErrorMessage: msg,
	})
}

// writeCurrent upserts the forward rate and, when enabled, the reverse rate.
// Each direction is written independently.
func (r *run) writeCurrent(ctx context.Context, p domain.CurrencyPair, rate decimal.Decimal, date civil.Date) error {
	scope, err := r.resolveScope(ctx, p)
	if err != nil {
		return err
	}
	var errs []error
	errs = append(errs, r.upsertCurrent(ctx, domain.CurrentRate{
		From: p.From, To: p.To, Date: date, Rate: rate,
		ForBuying: true, ForSelling: true, Scope: scope,
	}))
	if r.settings.CreateBidirectionalRates {
		rev, err := domain.ReverseRate(rate)
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, r.upsertCurrent(ctx, domain.CurrentRate{
				From: p.To, To: p.From, Date: date, Rate: rev,
				ForBuying: true, ForSelling: true, Scope: scope,
			}))
		}
	}
	return errors.Join(errs...)
}

func (r *run) upsertCurrent(ctx context.Context, cr domain.CurrentRate) error {
	if !cr.Rate.IsPositive() {
		return &domain.PersistenceError{Op: "current rate upsert " + cr.From + "-" + cr.To, Err: domain.ErrNonPositiveRate}
	}
	if err := r.s.rates.Upsert(ctx, cr); err != nil {
		return &domain.PersistenceError{Op: "current rate upsert " + cr.From + "-" + cr.To, Err: err}
	}
	return nil
}

// resolveScope returns the pair scope, falling back to the default scope when
// the store requires one. The store is probed once per run.
func (r *run) resolveScope(ctx context.Context, p domain.CurrencyPair) (string, error) {
	if p.Scope != "" {
		return p.Scope, nil
	}
	if !r.scopeProbed {
		r.scopeRequired, r.scopeErr = r.s.rates.ScopeRequired(ctx)
		r.scopeProbed = true
	}
	if r.scopeErr != nil {
		return "", &domain.PersistenceError{Op: "probe scope", Err: r.scopeErr}
	}
	if !r.scopeRequired {
		return "", nil
	}
	if r.settings.DefaultScope == "" {
		return "", &domain.PersistenceError{Op: "resolve scope " + p.Label(), Err: domain.ErrScopeUnresolved}
	}
	return r.settings.DefaultScope, nil
}
