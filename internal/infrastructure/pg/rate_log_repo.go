package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/dbval"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
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

// Upsert overwrites values and payload in place but never changes the source
// of an existing row.
func (r *RateLogRepo) Upsert(ctx context.Context, e domain.RateLogEntry) error {
	const up = `
        INSERT INTO forex_rate_log(from_currency, to_currency, rate_date, rate_type, exchange_rate,
            open_rate, high_rate, low_rate, close_rate, source, synced_at, api_response)
        VALUES ($1, $2, $3::text::date, $4, $5::text::numeric,
            $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric,
            $10, $11, $12::text::jsonb)
        ON CONFLICT (from_currency, to_currency, rate_date, rate_type) DO UPDATE SET
            exchange_rate = EXCLUDED.exchange_rate,
            open_rate = EXCLUDED.open_rate,
            high_rate = EXCLUDED.high_rate,
            low_rate = EXCLUDED.low_rate,
            close_rate = EXCLUDED.close_rate,
            synced_at = EXCLUDED.synced_at,
            api_response = EXCLUDED.api_response`
	log := sqlLog("rate_log", "Upsert", up,
		zap.String("from", e.From), zap.String("to", e.To),
		zap.Stringer("rate_date", e.RateDate), zap.String("rate_type", string(e.RateType)))
	log.Debug("sql.exec_start")
	_, err := r.db.q(ctx).Exec(ctx, up,
		e.From, e.To, dbval.Date(e.RateDate), string(e.RateType), dbval.Num(e.ExchangeRate),
		dbval.NullNum(e.Open), dbval.NullNum(e.High), dbval.NullNum(e.Low), dbval.NullNum(e.Close),
		e.Source, e.SyncedAt, dbval.JSON(e.APIResponse),
	)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Debug("sql.exec_success")
	return nil
}

const rateLogCols = `from_currency, to_currency, rate_date::text, rate_type, exchange_rate::text,
    open_rate::text, high_rate::text, low_rate::text, close_rate::text, source, synced_at, api_response::text`

func (r *RateLogRepo) Latest(ctx context.Context, from, to string, rt domain.RateType) (domain.RateLogEntry, error) {
	q := `SELECT ` + rateLogCols + `
        FROM forex_rate_log
        WHERE from_currency = $1 AND to_currency = $2 AND rate_type = $3
        ORDER BY rate_date DESC LIMIT 1`
	e, err := scanRateLog(r.db.q(ctx).QueryRow(ctx, q, from, to, string(rt)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RateLogEntry{}, application.ErrNotFound
	}
	if err != nil {
		sqlLog("rate_log", "Latest", q).Error("sql.query_failed", zap.Error(err))
		return domain.RateLogEntry{}, err
	}
	return e, nil
}

func (r *RateLogRepo) List(ctx context.Context, f domain.RateLogFilter) ([]domain.RateLogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != "" {
		add("from_currency = $%d", f.From)
	}
	if f.To != "" {
		add("to_currency = $%d", f.To)
	}
	if f.RateType != "" {
		add("rate_type = $%d", string(f.RateType))
	}
	if !f.FromDate.IsZero() {
		add("rate_date >= $%d::text::date", dbval.Date(f.FromDate))
	}
	if !f.ToDate.IsZero() {
		add("rate_date <= $%d::text::date", dbval.Date(f.ToDate))
	}
	q := `SELECT ` + rateLogCols + ` FROM forex_rate_log`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(f.Limit))
	q += fmt.Sprintf(` ORDER BY rate_date DESC, from_currency, to_currency, rate_type LIMIT $%d`, len(args))

	log := sqlLog("rate_log", "List", q)
	log.Debug("sql.query_start")
	rows, err := r.db.q(ctx).Query(ctx, q, args...)
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
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
	if err := rows.Err(); err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	log.Debug("sql.query_success", zap.Int("rows", len(out)))
	return out, nil
}

func scanRateLog(row pgx.Row) (domain.RateLogEntry, error) {
	var (
		e              domain.RateLogEntry
		date, rate, rt string
		op, hi, lo, cl *string
		raw            *string
		syncedAt       time.Time
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
	e.RateType = domain.RateType(rt)
	e.SyncedAt = syncedAt.UTC()
	e.APIResponse = dbval.ParseJSON(raw)
	return e, nil
}
