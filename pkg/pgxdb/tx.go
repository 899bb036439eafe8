package pgxdb

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. Both *pgxpool.Pool and pgx.Tx satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type txKey struct{}

// WithTx returns a context whose Begin calls join tx
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

// Begin starts a transaction on db, or a savepoint inside the transaction carried by ctx.
// Committing a savepoint only releases it: nothing lands until the outer transaction commits.
func Begin(ctx context.Context, db Beginner) (pgx.Tx, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Begin(ctx)
	}
	return db.Begin(ctx)
}
