package pg

import (
	"context"
	"errors"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SettingsRepo struct{ db *DB }

func NewSettingsRepo(db *DB) *SettingsRepo { return &SettingsRepo{db: db} }

var _ application.SettingsStore = (*SettingsRepo)(nil)

func (r *SettingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	const q = `
        SELECT enabled, api_key, create_bidirectional_rates, auto_update_currency_exchange,
               store_historical_data, default_scope, last_daily_sync, last_monthly_sync
        FROM forex_settings WHERE id = 1`
	log := sqlLog("settings", "Get", q)
	log.Debug("sql.query_start")
	var s domain.Settings
	err := r.db.q(ctx).QueryRow(ctx, q).Scan(
		&s.Enabled, &s.APIKey, &s.CreateBidirectionalRates, &s.AutoUpdateCurrencyExchange,
		&s.StoreHistoricalData, &s.DefaultScope, &s.LastDailySync, &s.LastMonthlySync,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info("sql.query_no_rows")
		return domain.Settings{}, application.ErrNotFound
	}
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.Settings{}, err
	}

	const qp = `
        SELECT from_currency, to_currency, enabled, sync_spot_daily, sync_closing_monthly,
               sync_average_monthly, sync_prudency_monthly, scope
        FROM forex_currency_pairs ORDER BY position`
	rows, err := r.db.q(ctx).Query(ctx, qp)
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.Settings{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.CurrencyPair
		if err := rows.Scan(&p.From, &p.To, &p.Enabled, &p.SyncSpotDaily, &p.SyncClosingMonthly,
			&p.SyncAverageMonthly, &p.SyncPrudencyMonthly, &p.Scope); err != nil {
			return domain.Settings{}, err
		}
		s.Pairs = append(s.Pairs, p)
	}
	if err := rows.Err(); err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.Settings{}, err
	}
	log.Debug("sql.query_success", zap.Int("pairs", len(s.Pairs)))
	return s, nil
}

// Save writes the configuration and replaces the pair list. Last-sync
// timestamps are left untouched.
func (r *SettingsRepo) Save(ctx context.Context, s domain.Settings) error {
	const up = `
        INSERT INTO forex_settings(id, enabled, api_key, create_bidirectional_rates,
            auto_update_currency_exchange, store_historical_data, default_scope)
        VALUES (1, $1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            enabled = EXCLUDED.enabled,
            api_key = EXCLUDED.api_key,
            create_bidirectional_rates = EXCLUDED.create_bidirectional_rates,
            auto_update_currency_exchange = EXCLUDED.auto_update_currency_exchange,
            store_historical_data = EXCLUDED.store_historical_data,
            default_scope = EXCLUDED.default_scope`
	const ins = `
        INSERT INTO forex_currency_pairs(from_currency, to_currency, position, enabled,
            sync_spot_daily, sync_closing_monthly, sync_average_monthly, sync_prudency_monthly, scope)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	log := sqlLog("settings", "Save", up, zap.Int("pairs", len(s.Pairs)))
	log.Info("sql.exec_start")
	err := r.db.inTx(ctx, func(q querier) error {
		if _, err := q.Exec(ctx, up, s.Enabled, s.APIKey, s.CreateBidirectionalRates,
			s.AutoUpdateCurrencyExchange, s.StoreHistoricalData, s.DefaultScope); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM forex_currency_pairs`); err != nil {
			return err
		}
		for i, p := range s.Pairs {
			if _, err := q.Exec(ctx, ins, p.From, p.To, i, p.Enabled, p.SyncSpotDaily,
				p.SyncClosingMonthly, p.SyncAverageMonthly, p.SyncPrudencyMonthly, p.Scope); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Info("sql.exec_success")
	return nil
}

func (r *SettingsRepo) MarkDailySync(ctx context.Context, at time.Time) error {
	return r.mark(ctx, "MarkDailySync", `UPDATE forex_settings SET last_daily_sync = $1 WHERE id = 1`, at)
}

func (r *SettingsRepo) MarkMonthlySync(ctx context.Context, at time.Time) error {
	return r.mark(ctx, "MarkMonthlySync", `UPDATE forex_settings SET last_monthly_sync = $1 WHERE id = 1`, at)
}

func (r *SettingsRepo) mark(ctx context.Context, op, up string, at time.Time) error {
	log := sqlLog("settings", op, up, zap.Time("at", at))
	tag, err := r.db.q(ctx).Exec(ctx, up, at)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		log.Warn("sql.exec_no_rows")
		return application.ErrNotFound
	}
	return nil
}
