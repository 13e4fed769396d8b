package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type OutputSize string

const (
	OutputSizeCompact OutputSize = "compact"
	OutputSizeFull    OutputSize = "full"
)

// OHLC is one time-series point. Values absent from the payload are zero.
type OHLC struct {
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// Series maps a calendar date to its OHLC point. Map order carries no meaning;
// use Dates for a stable order.
type Series struct {
	From   string
	To     string
	Points map[civil.Date]OHLC
	Raw    json.RawMessage
}

// Dates returns the series dates in ascending order.
func (s Series) Dates() []civil.Date {
	out := make([]civil.Date, 0, len(s.Points))
	for d := range s.Points {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(d civil.Date) YearMonth { return YearMonth{Year: d.Year, Month: d.Month} }

// AddMonths shifts the month by n, normalising across year boundaries.
func (m YearMonth) AddMonths(n int) YearMonth {
	t := time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (m YearMonth) FirstDay() civil.Date { return civil.Date{Year: m.Year, Month: m.Month, Day: 1} }

func (m YearMonth) LastDay() civil.Date { return m.AddMonths(1).FirstDay().AddDays(-1) }

func (m YearMonth) Contains(d civil.Date) bool { return d.Year == m.Year && d.Month == m.Month }

func (m YearMonth) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
