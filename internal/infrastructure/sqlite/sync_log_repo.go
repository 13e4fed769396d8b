package sqlite

import (
	"context"
	"strings"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/dbval"
)

type SyncLogRepo struct{ db *DB }

func NewSyncLogRepo(db *DB) *SyncLogRepo { return &SyncLogRepo{db: db} }

var _ application.SyncLogStore = (*SyncLogRepo)(nil)

func (r *SyncLogRepo) Insert(ctx context.Context, a domain.SyncAttempt) error {
	_, err := r.db.q(ctx).ExecContext(ctx, `
        INSERT INTO forex_sync_log(id, sync_time, sync_type, currency_pair, status,
            exchange_rate, error_message, api_response)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SyncTime.UTC().Format(tsLayout), string(a.SyncType), a.CurrencyPair, string(a.Status),
		dbval.NullNum(a.ExchangeRate), a.ErrorMessage, dbval.JSON(a.APIResponse))
	return err
}

func (r *SyncLogRepo) List(ctx context.Context, f domain.SyncLogFilter) ([]domain.SyncAttempt, error) {
	var (
		where []string
		args  []any
	)
	if f.SyncType != "" {
		where, args = append(where, "sync_type = ?"), append(args, string(f.SyncType))
	}
	if f.Status != "" {
		where, args = append(where, "status = ?"), append(args, string(f.Status))
	}
	q := `SELECT id, sync_time, sync_type, currency_pair, status, exchange_rate, error_message, api_response
        FROM forex_sync_log`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY sync_time DESC LIMIT ?`
	args = append(args, listLimit(f.Limit))

	rows, err := r.db.q(ctx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.SyncAttempt{}
	for rows.Next() {
		var (
			a            domain.SyncAttempt
			at, st, stat string
			rate, raw    *string
		)
		if err := rows.Scan(&a.ID, &at, &st, &a.CurrencyPair, &stat, &rate, &a.ErrorMessage, &raw); err != nil {
			return nil, err
		}
		if a.SyncTime, err = time.Parse(tsLayout, at); err != nil {
			return nil, err
		}
		if a.ExchangeRate, err = dbval.ParseNullNum(rate); err != nil {
			return nil, err
		}
		a.SyncType, a.Status = domain.SyncType(st), domain.SyncStatus(stat)
		a.APIResponse = dbval.ParseJSON(raw)
		out = append(out, a)
	}
	return out, rows.Err()
}
