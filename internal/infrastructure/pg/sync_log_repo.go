package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forexsync/internal/application"
	"forexsync/internal/domain"
	"forexsync/internal/infrastructure/dbval"

	"go.uber.org/zap"
)

type SyncLogRepo struct{ db *DB }

func NewSyncLogRepo(db *DB) *SyncLogRepo { return &SyncLogRepo{db: db} }

var _ application.SyncLogStore = (*SyncLogRepo)(nil)

func (r *SyncLogRepo) Insert(ctx context.Context, a domain.SyncAttempt) error {
	const ins = `
        INSERT INTO forex_sync_log(id, sync_time, sync_type, currency_pair, status,
            exchange_rate, error_message, api_response)
        VALUES ($1::text::uuid, $2, $3, $4, $5, $6::text::numeric, $7, $8::text::jsonb)`
	log := sqlLog("sync_log", "Insert", ins,
		zap.String("id", a.ID), zap.String("pair", a.CurrencyPair), zap.String("status", string(a.Status)))
	log.Debug("sql.exec_start")
	_, err := r.db.q(ctx).Exec(ctx, ins, a.ID, a.SyncTime, string(a.SyncType), a.CurrencyPair,
		string(a.Status), dbval.NullNum(a.ExchangeRate), a.ErrorMessage, dbval.JSON(a.APIResponse))
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	log.Debug("sql.exec_success")
	return nil
}

func (r *SyncLogRepo) List(ctx context.Context, f domain.SyncLogFilter) ([]domain.SyncAttempt, error) {
	var (
		where []string
		args  []any
	)
	if f.SyncType != "" {
		args = append(args, string(f.SyncType))
		where = append(where, fmt.Sprintf("sync_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT id::text, sync_time, sync_type, currency_pair, status, exchange_rate::text,
        error_message, api_response::text FROM forex_sync_log`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, listLimit(f.Limit))
	q += fmt.Sprintf(` ORDER BY sync_time DESC LIMIT $%d`, len(args))

	log := sqlLog("sync_log", "List", q)
	log.Debug("sql.query_start")
	rows, err := r.db.q(ctx).Query(ctx, q, args...)
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	out := []domain.SyncAttempt{}
	for rows.Next() {
		var (
			a        domain.SyncAttempt
			st, stat string
			rate     *string
			raw      *string
			at       time.Time
		)
		if err := rows.Scan(&a.ID, &at, &st, &a.CurrencyPair, &stat, &rate, &a.ErrorMessage, &raw); err != nil {
			return nil, err
		}
		if a.ExchangeRate, err = dbval.ParseNullNum(rate); err != nil {
			return nil, err
		}
		a.SyncTime = at.UTC()
		a.SyncType, a.Status = domain.SyncType(st), domain.SyncStatus(stat)
		a.APIResponse = dbval.ParseJSON(raw)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return nil, err
	}
	log.Debug("sql.query_success", zap.Int("rows", len(out)))
	return out, nil
}
