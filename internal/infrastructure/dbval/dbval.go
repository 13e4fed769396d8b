// Package dbval converts domain values to and from the text forms both SQL
// backends store. Rates travel as decimal strings so no float rounding occurs.
package dbval

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func Num(d decimal.Decimal) string { return d.String() }

// NullNum returns nil for an invalid value.
func NullNum(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func ParseNum(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode numeric %q: %w", s, err)
	}
	return d, nil
}

func ParseNullNum(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := ParseNum(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func Date(d civil.Date) string { return d.String() }

func ParseDate(s string) (civil.Date, error) {
	// Some drivers hand back a full timestamp for DATE columns.
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("decode date %q: %w", s, err)
	}
	return d, nil
}

// JSON returns nil for an empty payload.
func JSON(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func ParseJSON(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	return json.RawMessage(*s)
}
