package pg

import (
	"context"
	"errors"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/dbval"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type CurrentRateRepo struct{ db *DB }

func NewCurrentRateRepo(db *DB) *CurrentRateRepo { return &CurrentRateRepo{db: db} }

var _ application.CurrentRateStore = (*CurrentRateRepo)(nil)

func (r *CurrentRateRepo) Upsert(ctx context.Context, cr domain.CurrentRate) error {
	const up = `
        INSERT INTO currency_exchange(from_currency, to_currency, date, exchange_rate,
            for_buying, for_selling, scope, updated_at)
        VALUES ($1, $2, $3::text::date, $4::text::numeric, $5, $6, NULLIF($7, ''), NOW())
        ON CONFLICT (from_currency, to_currency, date) DO UPDATE SET
            exchange_rate = EXCLUDED.exchange_rate,
            for_buying = EXCLUDED.for_buying,
            for_selling = EXCLUDED.for_selling,
            scope = COALESCE(EXCLUDED.scope, currency_exchange.scope),
            updated_at = NOW()`
	log := sqlLog("current_rate", "Upsert", up,
		zap.String("from", cr.From), zap.String("to", cr.To), zap.Stringer("date", cr.Date))
	log.Debug("sql.exec_start")
	tag, err := r.db.q(ctx).Exec(ctx, up, cr.From, cr.To, dbval.Date(cr.Date), dbval.Num(cr.Rate),
		cr.ForBuying, cr.ForSelling, cr.Scope)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Debug("sql.exec_success", zap.Int64("rows_affected", tag.RowsAffected()))
	return nil
}

func (r *CurrentRateRepo) Get(ctx context.Context, from, to string, date civil.Date) (domain.CurrentRate, error) {
	const q = `
        SELECT exchange_rate::text, for_buying, for_selling, COALESCE(scope, '')
        FROM currency_exchange
        WHERE from_currency = $1 AND to_currency = $2 AND date = $3::text::date`
	out := domain.CurrentRate{From: from, To: to, Date: date}
	var rate string
	err := r.db.q(ctx).QueryRow(ctx, q, from, to, dbval.Date(date)).Scan(&rate, &out.ForBuying, &out.ForSelling, &out.Scope)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CurrentRate{}, application.ErrNotFound
	}
	if err != nil {
		sqlLog("current_rate", "Get", q).Error("sql.query_failed", zap.Error(err))
		return domain.CurrentRate{}, err
	}
	if out.Rate, err = dbval.ParseNum(rate); err != nil {
		return domain.CurrentRate{}, err
	}
	return out, nil
}

// ScopeRequired reports whether currency_exchange.scope is NOT NULL without a
// default. A missing column means no scope is needed.
func (r *CurrentRateRepo) ScopeRequired(ctx context.Context) (bool, error) {
	const q = `
        SELECT is_nullable = 'NO' AND column_default IS NULL
        FROM information_schema.columns
        WHERE table_schema = current_schema()
          AND table_name = 'currency_exchange' AND column_name = 'scope'`
	var required bool
	err := r.db.q(ctx).QueryRow(ctx, q).Scan(&required)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		sqlLog("current_rate", "ScopeRequired", q).Error("sql.query_failed", zap.Error(err))
		return false, err
	}
	return required, nil
}
