package domain

import "regexp"

// CurrencyPair is one configured pair together with its per-cadence toggles.
type CurrencyPair struct {
	From                string `json:"from_currency" validate:"required,len=3,uppercase"`
	To                  string `json:"to_currency" validate:"required,len=3,uppercase,nefield=From"`
	Enabled             bool   `json:"enabled"`
	SyncSpotDaily       bool   `json:"sync_spot_daily"`
	SyncClosingMonthly  bool   `json:"sync_closing_monthly"`
	SyncAverageMonthly  bool   `json:"sync_average_monthly"`
	SyncPrudencyMonthly bool   `json:"sync_prudency_monthly"`
	// Scope is the owning scope (company) for Current Rate records. Empty means
	// the store default applies.
	Scope string `json:"scope,omitempty"`
}

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateCurrency reports whether code looks like an ISO 4217 code.
func ValidateCurrency(code string) bool {
	return currencyRe.MatchString(code)
}

// Label is the pair label used in the sync log, e.g. "USD-UGX".
func (p CurrencyPair) Label() string { return p.From + "-" + p.To }

func (p CurrencyPair) key() string { return p.From + "/" + p.To }

// SyncsMonthly reports whether any monthly sub-sync is switched on.
func (p CurrencyPair) SyncsMonthly() bool {
	return p.SyncClosingMonthly || p.SyncAverageMonthly || p.SyncPrudencyMonthly
}
