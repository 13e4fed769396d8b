package domain

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MonthlyAggregate holds the statistics for one calendar month of a daily
// series. High and Low are not Valid when no positive high/low was observed.
type MonthlyAggregate struct {
	Month       YearMonth
	MonthEnd    civil.Date
	ClosingRate decimal.Decimal
	AverageRate decimal.Decimal
	HighRate    decimal.NullDecimal
	LowRate     decimal.NullDecimal
	DataPoints  int
}

// AggregateMonth computes closing, average, high and low for month from series.
//
// Points with a non-positive close are not trading observations and are left
// out of every statistic and of DataPoints. Highs and lows are taken only from
// positive values. ErrNoDataForMonth is returned when no valid point falls in
// the month.
func AggregateMonth(series Series, month YearMonth) (MonthlyAggregate, error) {
	type dated struct {
		date civil.Date
		ohlc OHLC
	}
	var in []dated
	for d, p := range series.Points {
		if month.Contains(d) && p.Close.IsPositive() {
			in = append(in, dated{date: d, ohlc: p})
		}
	}
	if len(in) == 0 {
		return MonthlyAggregate{}, ErrNoDataForMonth
	}
	sort.Slice(in, func(i, j int) bool { return in[i].date.After(in[j].date) })

	agg := MonthlyAggregate{
		Month:       month,
		MonthEnd:    month.LastDay(),
		ClosingRate: in[0].ohlc.Close,
		DataPoints:  len(in),
	}
	sum := decimal.Zero
	for _, e := range in {
		sum = sum.Add(e.ohlc.Close)
		if h := e.ohlc.High; h.IsPositive() && (!agg.HighRate.Valid || h.GreaterThan(agg.HighRate.Decimal)) {
			agg.HighRate = decimal.NewNullDecimal(h)
		}
		if l := e.ohlc.Low; l.IsPositive() && (!agg.LowRate.Valid || l.LessThan(agg.LowRate.Decimal)) {
			agg.LowRate = decimal.NewNullDecimal(l)
		}
	}
	agg.AverageRate = sum.Div(decimal.NewFromInt(int64(len(in))))
	return agg, nil
}
