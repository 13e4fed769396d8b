package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
)

type SettingsRepo struct{ db *DB }

func NewSettingsRepo(db *DB) *SettingsRepo { return &SettingsRepo{db: db} }

var _ application.SettingsStore = (*SettingsRepo)(nil)

func (r *SettingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	var (
		s             domain.Settings
		daily, monthly *string
	)
	err := r.db.q(ctx).QueryRowContext(ctx, `
        SELECT enabled, api_key, create_bidirectional_rates, auto_update_currency_exchange,
               store_historical_data, default_scope, last_daily_sync, last_monthly_sync
        FROM forex_settings WHERE id = 1`).Scan(
		&s.Enabled, &s.APIKey, &s.CreateBidirectionalRates, &s.AutoUpdateCurrencyExchange,
		&s.StoreHistoricalData, &s.DefaultScope, &daily, &monthly,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Settings{}, err
	}
	if s.LastDailySync, err = parseTime(daily); err != nil {
		return domain.Settings{}, err
	}
	if s.LastMonthlySync, err = parseTime(monthly); err != nil {
		return domain.Settings{}, err
	}

	rows, err := r.db.q(ctx).QueryContext(ctx, `
        SELECT from_currency, to_currency, enabled, sync_spot_daily, sync_closing_monthly,
               sync_average_monthly, sync_prudency_monthly, scope
        FROM forex_currency_pairs ORDER BY position`)
	if err != nil {
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
	return s, rows.Err()
}

func (r *SettingsRepo) Save(ctx context.Context, s domain.Settings) error {
	return r.db.inTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `
            INSERT INTO forex_settings(id, enabled, api_key, create_bidirectional_rates,
                auto_update_currency_exchange, store_historical_data, default_scope)
            VALUES (1, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET
                enabled = excluded.enabled,
                api_key = excluded.api_key,
                create_bidirectional_rates = excluded.create_bidirectional_rates,
                auto_update_currency_exchange = excluded.auto_update_currency_exchange,
                store_historical_data = excluded.store_historical_data,
                default_scope = excluded.default_scope`,
			s.Enabled, s.APIKey, s.CreateBidirectionalRates, s.AutoUpdateCurrencyExchange,
			s.StoreHistoricalData, s.DefaultScope); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM forex_currency_pairs`); err != nil {
			return err
		}
		for i, p := range s.Pairs {
			if _, err := q.ExecContext(ctx, `
                INSERT INTO forex_currency_pairs(from_currency, to_currency, position, enabled,
                    sync_spot_daily, sync_closing_monthly, sync_average_monthly, sync_prudency_monthly, scope)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.From, p.To, i, p.Enabled, p.SyncSpotDaily, p.SyncClosingMonthly,
				p.SyncAverageMonthly, p.SyncPrudencyMonthly, p.Scope); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SettingsRepo) MarkDailySync(ctx context.Context, at time.Time) error {
	return r.mark(ctx, `UPDATE forex_settings SET last_daily_sync = ? WHERE id = 1`, at)
}

func (r *SettingsRepo) MarkMonthlySync(ctx context.Context, at time.Time) error {
	return r.mark(ctx, `UPDATE forex_settings SET last_monthly_sync = ? WHERE id = 1`, at)
}

func (r *SettingsRepo) mark(ctx context.Context, up string, at time.Time) error {
	res, err := r.db.q(ctx).ExecContext(ctx, up, at.UTC().Format(tsLayout))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return application.ErrNotFound
	}
	return nil
}

func parseTime(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(tsLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
