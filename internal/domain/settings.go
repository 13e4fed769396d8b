package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings is the integration configuration record. It is read once per sync run.
type Settings struct {
	Enabled                    bool           `json:"enabled"`
	APIKey                     string         `json:"-" validate:"required_if=Enabled true"`
	CreateBidirectionalRates   bool           `json:"create_bidirectional_rates"`
	AutoUpdateCurrencyExchange bool           `json:"auto_update_currency_exchange"`
	StoreHistoricalData        bool           `json:"store_historical_data"`
	DefaultScope               string         `json:"default_scope,omitempty"`
	Pairs                      []CurrencyPair `json:"currency_pairs" validate:"required,min=1,dive"`
	LastDailySync              *time.Time     `json:"last_daily_sync,omitempty"`
	LastMonthlySync            *time.Time     `json:"last_monthly_sync,omitempty"`
}

// Validate enforces the settings invariants: API key when enabled, at least
// one pair, well-formed codes and no duplicate (from, to) pair.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	seen := make(map[string]struct{}, len(s.Pairs))
	for _, p := range s.Pairs {
		if _, dup := seen[p.key()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePair, p.Label())
		}
		seen[p.key()] = struct{}{}
	}
	return nil
}

// CheckEnabled returns a *ConfigurationError when no sync may run.
func (s Settings) CheckEnabled() error {
	switch {
	case !s.Enabled:
		return &ConfigurationError{Reason: "forex integration is not enabled"}
	case s.APIKey == "":
		return &ConfigurationError{Reason: "market data API key is not configured"}
	}
	return nil
}

// EnabledPairs returns the pairs switched on, in configuration order.
func (s Settings) EnabledPairs() []CurrencyPair {
	out := make([]CurrencyPair, 0, len(s.Pairs))
	for _, p := range s.Pairs {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// DefaultSettings is the seed configuration for a fresh installation. The
// integration stays disabled until an API key is set.
func DefaultSettings() Settings {
	seed := [][2]string{
		{"GBP", "UGX"}, {"GBP", "ZMW"}, {"GBP", "GHS"}, {"GBP", "USD"},
		{"USD", "UGX"}, {"USD", "ZMW"}, {"DKK", "GBP"}, {"EUR", "GBP"},
	}
	pairs := make([]CurrencyPair, 0, len(seed))
	for _, s := range seed {
		pairs = append(pairs, CurrencyPair{
			From: s[0], To: s[1], Enabled: true,
			SyncSpotDaily: true, SyncClosingMonthly: true,
			SyncAverageMonthly: true, SyncPrudencyMonthly: true,
		})
	}
	return Settings{
		CreateBidirectionalRates:   true,
		AutoUpdateCurrencyExchange: true,
		StoreHistoricalData:        true,
		Pairs:                      pairs,
	}
}
