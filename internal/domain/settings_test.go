package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	s := DefaultSettings()
	s.Enabled = true
	s.APIKey = "demo"
	return s
}

func TestSettingsValidate_OK(t *testing.T) {
	require.NoError(t, validSettings().Validate())
	require.NoError(t, DefaultSettings().Validate())
}

func TestSettingsValidate_APIKeyRequiredWhenEnabled(t *testing.T) {
	s := validSettings()
	s.APIKey = ""
	require.ErrorIs(t, s.Validate(), ErrInvalidSettings)
}

func TestSettingsValidate_DuplicatePair(t *testing.T) {
	s := validSettings()
	s.Pairs = append(s.Pairs, CurrencyPair{From: "GBP", To: "UGX"})
	require.ErrorIs(t, s.Validate(), ErrDuplicatePair)
}

func TestSettingsValidate_BadCodes(t *testing.T) {
	s := validSettings()
	s.Pairs = []CurrencyPair{{From: "usd", To: "EUR"}}
	require.ErrorIs(t, s.Validate(), ErrInvalidSettings)

	s.Pairs = []CurrencyPair{{From: "USD", To: "USD"}}
	require.ErrorIs(t, s.Validate(), ErrInvalidSettings)

	s.Pairs = nil
	require.ErrorIs(t, s.Validate(), ErrInvalidSettings)
}

func TestSettingsCheckEnabled(t *testing.T) {
	s := validSettings()
	require.NoError(t, s.CheckEnabled())

	s.Enabled = false
	require.True(t, IsConfigurationError(s.CheckEnabled()))

	s.Enabled = true
	s.APIKey = ""
	require.True(t, IsConfigurationError(s.CheckEnabled()))
}

func TestEnabledPairs(t *testing.T) {
	s := validSettings()
	s.Pairs[1].Enabled = false
	pairs := s.EnabledPairs()
	require.Len(t, pairs, len(s.Pairs)-1)
	for _, p := range pairs {
		require.NotEqual(t, "GBP-ZMW", p.Label())
	}
}

func TestValidateCurrency(t *testing.T) {
	require.True(t, ValidateCurrency("USD"))
	require.False(t, ValidateCurrency("usd"))
	require.False(t, ValidateCurrency("USDT"))
}
