package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type SyncType string

const (
	SyncTypeSpotDaily      SyncType = "Spot (Daily)"
	SyncTypeClosingMonthly SyncType = "Closing (Monthly)"
	SyncTypeMonthlyAverage SyncType = "Monthly Average"
	SyncTypePrudency       SyncType = "Prudency"
	SyncTypeBackfill       SyncType = "Backfill"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "Success"
	SyncStatusError   SyncStatus = "Error"
	SyncStatusSkipped SyncStatus = "Skipped"
)

// SyncAttempt is one audit record. It is written once and never updated.
type SyncAttempt struct {
	ID           string              `json:"id"`
	SyncTime     time.Time           `json:"sync_time"`
	SyncType     SyncType            `json:"sync_type"`
	CurrencyPair string              `json:"currency_pair"`
	Status       SyncStatus          `json:"status"`
	ExchangeRate decimal.NullDecimal `json:"exchange_rate"`
	ErrorMessage string              `json:"error_message,omitempty"`
	APIResponse  json.RawMessage     `json:"api_response,omitempty"`
}

type SyncLogFilter struct {
	SyncType SyncType
	Status   SyncStatus
	Limit    int
}
