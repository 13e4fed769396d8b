package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/dbval"

	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func listLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	}
	return n
}

type RateLogRepo struct{ db *DB }

func NewRateLogRepo(db *DB) *RateLogRepo { return &RateLogRepo{db: db} }

var _ application.RateLogStore = (*RateLogRepo)(nil)

func (r *RateLogRepo) Upsert(ctx context.Context, e domain.RateLogEntry) error {
	_, err := r.db.q(ctx).ExecContext(ctx, `
        INSERT INTO forex_rate_log(from_currency, to_currency, rate_date, rate_type, exchange_rate,
            open_rate, high_rate, low_rate, close_rate, source, synced_at, api_response)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (from_currency, to_currency, rate_date, rate_type) DO UPDATE SET
            exchange_rate = excluded.exchange_rate,
            open_rate = excluded.open_rate,
            high_rate = excluded.high_rate,
            low_rate = excluded.low_rate,
            close_rate = excluded.close_rate,
            synced_at = excluded.synced_at,
            api_response = excluded.api_response`,
		e.From, e.To, dbval.Date(e.RateDate), string(e.RateType), dbval.Num(e.ExchangeRate),
		dbval.NullNum(e.Open), dbval.NullNum(e.High), dbval.NullNum(e.Low), dbval.NullNum(e.Close),
		e.Source, e.SyncedAt.UTC().Format(tsLayout), dbval.JSON(e.APIResponse),
	)
	return err
}

const rateLogCols = `from_currency, to_currency, rate_date, rate_type, exchange_rate,
    open_rate, high_rate, low_rate, close_rate, source, synced_at, api_response`

func (r *RateLogRepo) Latest(ctx context.Context, from, to string, rt domain.RateType) (domain.RateLogEntry, error) {
	e, err := scanRateLog(r.db.q(ctx).QueryRowContext(ctx, `SELECT `+rateLogCols+`
        FROM forex_rate_log WHERE from_currency = ? AND to_currency = ? AND rate_type = ?
        ORDER BY rate_date DESC LIMIT 1`, from, to, string(rt)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RateLogEntry{}, application.ErrNotFound
	}
	return e, err
}

func (r *RateLogRepo) List(ctx context.Context, f domain.RateLogFilter) ([]domain.RateLogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		where = append(where, cond)
		args = append(args, v)
	}
	if f.From != "" {
		add("from_currency = ?", f.From)
	}
	if f.To != "" {
		add("to_currency = ?", f.To)
	}
	if f.RateType != "" {
		add("rate_type = ?", string(f.RateType))
	}
	if !f.FromDate.IsZero() {
		add("rate_date >= ?", dbval.Date(f.FromDate))
	}
	if !f.ToDate.IsZero() {
		add("rate_date <= ?", dbval.Date(f.ToDate))
	}
	q := `SELECT ` + rateLogCols + ` FROM forex_rate_log`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY rate_date DESC, from_currency, to_currency, rate_type LIMIT ?`
	args = append(args, listLimit(f.Limit))

	rows, err := r.db.q(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.RateLogEntry{}
	for rows.Next() {
		e, err := scanRateLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanRateLog(row scanner) (domain.RateLogEntry, error) {
	var (
		e                        domain.RateLogEntry
		date, rate, rt, syncedAt string
		op, hi, lo, cl, raw      *string
	)
	if err := row.Scan(&e.From, &e.To, &date, &rt, &rate, &op, &hi, &lo, &cl, &e.Source, &syncedAt, &raw); err != nil {
		return domain.RateLogEntry{}, err
	}
	var err error
	if e.RateDate, err = dbval.ParseDate(date); err != nil {
		return domain.RateLogEntry{}, err
	}
	if e.ExchangeRate, err = dbval.ParseNum(rate); err != nil {
		return domain.RateLogEntry{}, err
	}
	for _, v := range []struct {
		src *string
		dst *decimal.NullDecimal
	}{{op, &e.Open}, {hi, &e.High}, {lo, &e.Low}, {cl, &e.Close}} {
		if *v.dst, err = dbval.ParseNullNum(v.src); err != nil {
			return domain.RateLogEntry{}, err
		}
	}
	if e.SyncedAt, err = time.Parse(tsLayout, syncedAt); err != nil {
		return domain.RateLogEntry{}, err
	}
	e.RateType = domain.RateType(rt)
	e.APIResponse = dbval.ParseJSON(raw)
	return e, nil
}
