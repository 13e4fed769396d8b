package domain

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// SourceMarketDataAPI stamps rate log rows created by a sync.
const SourceMarketDataAPI = "market-data-api"

// CurrentRate is a row of the live exchange-rate table keyed by (From, To, Date).
type CurrentRate struct {
	From       string          `json:"from_currency"`
	To         string          `json:"to_currency"`
	Date       civil.Date      `json:"date"`
	Rate       decimal.Decimal `json:"exchange_rate"`
	ForBuying  bool            `json:"for_buying"`
	ForSelling bool            `json:"for_selling"`
	Scope      string          `json:"scope,omitempty"`
}

// RateLogEntry is a historical rate keyed by (From, To, RateDate, RateType).
type RateLogEntry struct {
	From         string              `json:"from_currency"`
	To           string              `json:"to_currency"`
	RateDate     civil.Date          `json:"rate_date"`
	RateType     RateType            `json:"rate_type"`
	ExchangeRate decimal.Decimal     `json:"exchange_rate"`
	Open         decimal.NullDecimal `json:"open_rate"`
	High         decimal.NullDecimal `json:"high_rate"`
	Low          decimal.NullDecimal `json:"low_rate"`
	Close        decimal.NullDecimal `json:"close_rate"`
	Source       string              `json:"source"`
	SyncedAt     time.Time           `json:"synced_at"`
	APIResponse  json.RawMessage     `json:"api_response,omitempty"`
}

// RateLogFilter selects rate log rows; zero fields do not filter.
type RateLogFilter struct {
	From     string
	To       string
	RateType RateType
	FromDate civil.Date
	ToDate   civil.Date
	Limit    int
}

// ReverseRate returns 1/rate. Callers must only pass a strictly positive rate.
func ReverseRate(rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, ErrNonPositiveRate
	}
	return decimal.NewFromInt(1).Div(rate), nil
}
