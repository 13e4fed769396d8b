package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Quote is a normalized realtime exchange rate. It is projected into the rate
// log and the current rate store, never persisted as is.
type Quote struct {
	From          string          `json:"from_currency"`
	To            string          `json:"to_currency"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	BidPrice      decimal.Decimal `json:"bid_price"`
	AskPrice      decimal.Decimal `json:"ask_price"`
	LastRefreshed string          `json:"last_refreshed"`
	Raw           json.RawMessage `json:"-"`
}
