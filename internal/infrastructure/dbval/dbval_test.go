package dbval

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNum_KeepsPrecision(t *testing.T) {
	rev := decimal.NewFromInt(1).Div(decimal.RequireFromString("3750.50"))
	back, err := ParseNum(Num(rev))
	require.NoError(t, err)
	require.True(t, rev.Equal(back))
}

func TestNullNum(t *testing.T) {
	require.Nil(t, NullNum(decimal.NullDecimal{}))
	got, err := ParseNullNum(NullNum(decimal.NewNullDecimal(decimal.RequireFromString("1.25"))))
	require.NoError(t, err)
	require.True(t, got.Valid)
	require.Equal(t, "1.25", got.Decimal.String())

	got, err = ParseNullNum(nil)
	require.NoError(t, err)
	require.False(t, got.Valid)

	bad := "x"
	_, err = ParseNullNum(&bad)
	require.Error(t, err)
}

func TestDate(t *testing.T) {
	d := civil.Date{Year: 2024, Month: 12, Day: 31}
	require.Equal(t, "2024-12-31", Date(d))
	got, err := ParseDate("2024-12-31T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestJSON(t *testing.T) {
	require.Nil(t, JSON(nil))
	require.Nil(t, ParseJSON(nil))
	s := JSON(json.RawMessage(`{"a":1}`))
	require.JSONEq(t, `{"a":1}`, string(ParseJSON(s)))
}
