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

	"cloud.google.com/go/civil"
)

type CurrentRateRepo struct{ db *DB }

func NewCurrentRateRepo(db *DB) *CurrentRateRepo { return &CurrentRateRepo{db: db} }

var _ application.CurrentRateStore = (*CurrentRateRepo)(nil)

func (r *CurrentRateRepo) Upsert(ctx context.Context, cr domain.CurrentRate) error {
	_, err := r.db.q(ctx).ExecContext(ctx, `
        INSERT INTO currency_exchange(from_currency, to_currency, date, exchange_rate,
            for_buying, for_selling, scope, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
        ON CONFLICT (from_currency, to_currency, date) DO UPDATE SET
            exchange_rate = excluded.exchange_rate,
            for_buying = excluded.for_buying,
            for_selling = excluded.for_selling,
            scope = COALESCE(excluded.scope, currency_exchange.scope),
            updated_at = excluded.updated_at`,
		cr.From, cr.To, dbval.Date(cr.Date), dbval.Num(cr.Rate), cr.ForBuying, cr.ForSelling,
		cr.Scope, time.Now().UTC().Format(tsLayout))
	return err
}

func (r *CurrentRateRepo) Get(ctx context.Context, from, to string, date civil.Date) (domain.CurrentRate, error) {
	out := domain.CurrentRate{From: from, To: to, Date: date}
	var rate string
	err := r.db.q(ctx).QueryRowContext(ctx, `
        SELECT exchange_rate, for_buying, for_selling, COALESCE(scope, '')
        FROM currency_exchange WHERE from_currency = ? AND to_currency = ? AND date = ?`,
		from, to, dbval.Date(date)).Scan(&rate, &out.ForBuying, &out.ForSelling, &out.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CurrentRate{}, application.ErrNotFound
	}
	if err != nil {
		return domain.CurrentRate{}, err
	}
	if out.Rate, err = dbval.ParseNum(rate); err != nil {
		return domain.CurrentRate{}, err
	}
	return out, nil
}

// ScopeRequired inspects the table schema: scope is required when declared
// NOT NULL without a default.
func (r *CurrentRateRepo) ScopeRequired(ctx context.Context) (bool, error) {
	rows, err := r.db.q(ctx).QueryContext(ctx, `PRAGMA table_info(currency_exchange)`)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             *string
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, "scope") {
			return notNull == 1 && dflt == nil, nil
		}
	}
	return false, rows.Err()
}
