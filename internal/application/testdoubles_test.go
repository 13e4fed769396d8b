package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"forexsync/internal/domain"

	"cloud.google.com/go/civil"
)

var ErrRepo = errors.New("repo error")

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type fakeSettingsStore struct {
	st      domain.Settings
	missing bool
	err     error
	saved   int
}

func (f *fakeSettingsStore) Get(context.Context) (domain.Settings, error) {
	if f.err != nil {
		return domain.Settings{}, f.err
	}
	if f.missing {
		return domain.Settings{}, ErrNotFound
	}
	return f.st, nil
}

func (f *fakeSettingsStore) Save(_ context.Context, s domain.Settings) error {
	if f.err != nil {
		return f.err
	}
	f.st, f.missing = s, false
	f.saved++
	return nil
}

func (f *fakeSettingsStore) MarkDailySync(_ context.Context, at time.Time) error {
	f.st.LastDailySync = &at
	return nil
}

func (f *fakeSettingsStore) MarkMonthlySync(_ context.Context, at time.Time) error {
	f.st.LastMonthlySync = &at
	return nil
}

type currentKey struct {
	from, to string
	date     civil.Date
}

type fakeCurrentRates struct {
	rows          map[currentKey]domain.CurrentRate
	scopeRequired bool
	failTo        string
	upserts       int
}

func (f *fakeCurrentRates) Upsert(_ context.Context, r domain.CurrentRate) error {
	if r.To == f.failTo {
		return ErrRepo
	}
	if f.rows == nil {
		f.rows = map[currentKey]domain.CurrentRate{}
	}
	f.upserts++
	f.rows[currentKey{r.From, r.To, r.Date}] = r
	return nil
}

func (f *fakeCurrentRates) Get(_ context.Context, from, to string, date civil.Date) (domain.CurrentRate, error) {
	r, ok := f.rows[currentKey{from, to, date}]
	if !ok {
		return domain.CurrentRate{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeCurrentRates) ScopeRequired(context.Context) (bool, error) { return f.scopeRequired, nil }

type logKey struct {
	from, to string
	date     civil.Date
	rt       domain.RateType
}

type fakeRateLog struct {
	rows map[logKey]domain.RateLogEntry
	err  error
}

func (f *fakeRateLog) Upsert(_ context.Context, e domain.RateLogEntry) error {
	if f.err != nil {
		return f.err
	}
	if f.rows == nil {
		f.rows = map[logKey]domain.RateLogEntry{}
	}
	f.rows[logKey{e.From, e.To, e.RateDate, e.RateType}] = e
	return nil
}

func (f *fakeRateLog) Latest(_ context.Context, from, to string, rt domain.RateType) (domain.RateLogEntry, error) {
	var (
		out   domain.RateLogEntry
		found bool
	)
	for k, e := range f.rows {
		if k.from == from && k.to == to && k.rt == rt && (!found || e.RateDate.After(out.RateDate)) {
			out, found = e, true
		}
	}
	if !found {
		return domain.RateLogEntry{}, ErrNotFound
	}
	return out, nil
}

func (f *fakeRateLog) List(_ context.Context, flt domain.RateLogFilter) ([]domain.RateLogEntry, error) {
	var out []domain.RateLogEntry
	for _, e := range f.rows {
		if flt.From != "" && e.From != flt.From {
			continue
		}
		if flt.RateType != "" && e.RateType != flt.RateType {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RateDate.After(out[j].RateDate) })
	return out, nil
}

func (f *fakeRateLog) get(from, to string, date civil.Date, rt domain.RateType) (domain.RateLogEntry, bool) {
	e, ok := f.rows[logKey{from, to, date, rt}]
	return e, ok
}

type fakeSyncLog struct {
	attempts []domain.SyncAttempt
}

func (f *fakeSyncLog) Insert(_ context.Context, a domain.SyncAttempt) error {
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeSyncLog) List(_ context.Context, flt domain.SyncLogFilter) ([]domain.SyncAttempt, error) {
	var out []domain.SyncAttempt
	for _, a := range f.attempts {
		if flt.Status != "" && a.Status != flt.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeSyncLog) byStatus(st domain.SyncStatus) []domain.SyncAttempt {
	var out []domain.SyncAttempt
	for _, a := range f.attempts {
		if a.Status == st {
			out = append(out, a)
		}
	}
	return out
}

// fakeMarket answers per pair label; a pair with an error fails every fetch.
type fakeMarket struct {
	apiKey string
	spot   map[string]domain.Quote
	daily  map[string]domain.Series
	errs   map[string]error
	panics map[string]bool
	calls  []string
}

func (f *fakeMarket) factory() MarketDataFactory {
	return func(key string) MarketData {
		f.apiKey = key
		return f
	}
}

func (f *fakeMarket) lookup(op, from, to string) error {
	label := from + "-" + to
	f.calls = append(f.calls, op+" "+label)
	if f.panics[label] {
		panic("boom")
	}
	return f.errs[label]
}

func (f *fakeMarket) FetchSpot(_ context.Context, from, to string) (domain.Quote, error) {
	if err := f.lookup("spot", from, to); err != nil {
		return domain.Quote{}, err
	}
	q, ok := f.spot[from+"-"+to]
	if !ok {
		return domain.Quote{}, &domain.ParseError{Op: "spot", Err: errors.New("missing")}
	}
	return q, nil
}

func (f *fakeMarket) FetchDailySeries(_ context.Context, from, to string, _ domain.OutputSize) (domain.Series, error) {
	if err := f.lookup("daily", from, to); err != nil {
		return domain.Series{}, err
	}
	return f.daily[from+"-"+to], nil
}

func (f *fakeMarket) FetchMonthlySeries(_ context.Context, from, to string) (domain.Series, error) {
	if err := f.lookup("monthly", from, to); err != nil {
		return domain.Series{}, err
	}
	return f.daily[from+"-"+to], nil
}
