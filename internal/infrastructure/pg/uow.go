package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

func txFromCtx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// UnitOfWork runs fn in one transaction. Stores called with the context
// passed to fn join it; a nested Do reuses the outer transaction.
type UnitOfWork struct {
	DB *DB
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromCtx(ctx) != nil {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, u.DB.Pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
