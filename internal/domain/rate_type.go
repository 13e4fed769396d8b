package domain

import "fmt"

type RateType string

const (
	RateTypeSpot           RateType = "Spot"
	RateTypeClosing        RateType = "Closing"
	RateTypeMonthlyAverage RateType = "Monthly Average"
	RateTypePrudencyHigh   RateType = "Prudency (High)"
	RateTypePrudencyLow    RateType = "Prudency (Low)"
)

var rateTypes = []RateType{
	RateTypeSpot,
	RateTypeClosing,
	RateTypeMonthlyAverage,
	RateTypePrudencyHigh,
	RateTypePrudencyLow,
}

func (t RateType) Valid() bool {
	for _, rt := range rateTypes {
		if rt == t {
			return true
		}
	}
	return false
}

func ParseRateType(s string) (RateType, error) {
	t := RateType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown rate type %q", s)
	}
	return t, nil
}
