package alphavantage

import (
	"context"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var _ application.MarketData = (*Fake)(nil)

// Fake is an offline market returning one constant rate for every pair and
// date. It backs local runs without an API key budget.
type Fake struct {
	rate decimal.Decimal
	now  func() time.Time
}

func NewFake(rate decimal.Decimal) *Fake {
	return &Fake{rate: rate, now: time.Now}
}

func (f *Fake) Factory() application.MarketDataFactory {
	return func(string) application.MarketData { return f }
}

func (f *Fake) FetchSpot(_ context.Context, from, to string) (domain.Quote, error) {
	return domain.Quote{
		From:          from,
		To:            to,
		ExchangeRate:  f.rate,
		BidPrice:      f.rate,
		AskPrice:      f.rate,
		LastRefreshed: f.now().UTC().Format(time.DateTime),
	}, nil
}

func (f *Fake) FetchDailySeries(_ context.Context, from, to string, size domain.OutputSize) (domain.Series, error) {
	days := 100
	if size == domain.OutputSizeFull {
		days = 3 * 365
	}
	today := civil.DateOf(f.now().UTC())
	s := domain.Series{From: from, To: to, Points: make(map[civil.Date]domain.OHLC, days)}
	for i := 0; i < days; i++ {
		s.Points[today.AddDays(-i)] = domain.OHLC{Open: f.rate, High: f.rate, Low: f.rate, Close: f.rate}
	}
	return s, nil
}

func (f *Fake) FetchMonthlySeries(_ context.Context, from, to string) (domain.Series, error) {
	cur := domain.YearMonthOf(civil.DateOf(f.now().UTC()))
	s := domain.Series{From: from, To: to, Points: make(map[civil.Date]domain.OHLC, 24)}
	for i := 0; i < 24; i++ {
		s.Points[cur.AddMonths(-i).LastDay()] = domain.OHLC{Open: f.rate, High: f.rate, Low: f.rate, Close: f.rate}
	}
	return s, nil
}
