// Package tx carries a SQL transaction through context so stores joined into
// one compliance operation share a single all-or-nothing boundary.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside one atomic transaction. The SQL runner
// wraps a real database transaction; the in-memory runner snapshots state and
// restores it on error so partial effects are never observable either way.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
