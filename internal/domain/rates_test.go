package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestReverseRate(t *testing.T) {
	for _, s := range []string{"1", "3750.50", "0.00026662", "1.0850", "20"} {
		r := dec(s)
		rev, err := ReverseRate(r)
		require.NoError(t, err)
		want, _ := decimal.NewFromInt(1).Div(r).Float64()
		got, _ := rev.Float64()
		require.InDelta(t, want, got, 1e-12, s)

		// forward * reverse stays within rounding of 1 across repeated resyncs
		product, _ := r.Mul(rev).Float64()
		require.InDelta(t, 1.0, product, 1e-12, s)

		again, err := ReverseRate(r)
		require.NoError(t, err)
		require.Equal(t, rev.String(), again.String(), s)
	}
}

func TestReverseRate_NonPositive(t *testing.T) {
	for _, s := range []string{"0", "-1.2"} {
		_, err := ReverseRate(dec(s))
		require.ErrorIs(t, err, ErrNonPositiveRate)
	}
}

func TestRateType(t *testing.T) {
	rt, err := ParseRateType("Prudency (High)")
	require.NoError(t, err)
	require.Equal(t, RateTypePrudencyHigh, rt)
	_, err = ParseRateType("Weekly")
	require.Error(t, err)
}

func TestRawPayload(t *testing.T) {
	raw := []byte(`{"Note":"slow down"}`)
	err := &APIError{Kind: APIErrorRateLimit, Message: "slow down", Raw: raw}
	require.JSONEq(t, string(raw), string(RawPayload(err)))
	require.Nil(t, RawPayload(ErrNotFound))
}
