package alphavantage

import (
	"encoding/json"
	"errors"

	"forexsync/internal/domain"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	spotKey    = "Realtime Currency Exchange Rate"
	dailyKey   = "Time Series FX (Daily)"
	monthlyKey = "Time Series FX (Monthly)"
)

var errMissing = errors.New("missing")

func parseSpot(root map[string]json.RawMessage, body json.RawMessage) (domain.Quote, error) {
	perr := func(field string, err error) error {
		return &domain.ParseError{Op: fnSpot, Field: field, Err: err, Raw: body}
	}
	node, ok := root[spotKey]
	if !ok {
		return domain.Quote{}, perr(spotKey, errMissing)
	}
	var fields map[string]string
	if err := json.Unmarshal(node, &fields); err != nil {
		return domain.Quote{}, perr(spotKey, err)
	}
	if fields == nil {
		return domain.Quote{}, perr(spotKey, errMissing)
	}

	q := domain.Quote{
		From:          fields["1. From_Currency Code"],
		To:            fields["3. To_Currency Code"],
		LastRefreshed: fields["6. Last Refreshed"],
		Raw:           body,
	}
	rate, err := required(fields, "5. Exchange Rate")
	if err != nil {
		return domain.Quote{}, perr("5. Exchange Rate", err)
	}
	q.ExchangeRate = rate
	for _, f := range []struct {
		key string
		dst *decimal.Decimal
	}{
		{"8. Bid Price", &q.BidPrice},
		{"9. Ask Price", &q.AskPrice},
	} {
		v, err := number(fields, f.key)
		if err != nil {
			return domain.Quote{}, perr(f.key, err)
		}
		*f.dst = v
	}
	return q, nil
}

func parseSeries(fn, key, from, to string, root map[string]json.RawMessage, body json.RawMessage) (domain.Series, error) {
	perr := func(field string, err error) error {
		return &domain.ParseError{Op: fn, Field: field, Err: err, Raw: body}
	}
	node, ok := root[key]
	if !ok {
		return domain.Series{}, perr(key, errMissing)
	}
	var points map[string]map[string]string
	if err := json.Unmarshal(node, &points); err != nil {
		return domain.Series{}, perr(key, err)
	}
	if points == nil {
		return domain.Series{}, perr(key, errMissing)
	}

	s := domain.Series{From: from, To: to, Points: make(map[civil.Date]domain.OHLC, len(points)), Raw: body}
	for k, fields := range points {
		d, err := civil.ParseDate(k)
		if err != nil {
			return domain.Series{}, perr(k, err)
		}
		var p domain.OHLC
		for _, f := range []struct {
			key string
			dst *decimal.Decimal
		}{
			{"1. open", &p.Open},
			{"2. high", &p.High},
			{"3. low", &p.Low},
			{"4. close", &p.Close},
		} {
			v, err := number(fields, f.key)
			if err != nil {
				return domain.Series{}, perr(k+" "+f.key, err)
			}
			*f.dst = v
		}
		s.Points[d] = p
	}
	return s, nil
}

// number parses fields[key]. Absent, empty and "-" values are zero.
func number(fields map[string]string, key string) (decimal.Decimal, error) {
	v, ok := fields[key]
	if !ok || v == "" || v == "-" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func required(fields map[string]string, key string) (decimal.Decimal, error) {
	if v := fields[key]; v == "" || v == "-" {
		return decimal.Zero, errMissing
	}
	return number(fields, key)
}
