// Package tx carries open database transactions through context so stores can
// join a caller's transaction without widening their interfaces.
package tx

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

type (
	sqlKey    struct{}
	pgxKey    struct{}
	activeKey struct{}
	lockKey   struct{}
)

var (
	sqlTxKey    = sqlKey{}
	pgxTxKey    = pgxKey{}
	activeTxKey = activeKey{}
	lockKeyKey  = lockKey{}
)

// WithTx stores a database/sql transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, sqlTxKey, tx)
}

// From extracts a database/sql transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey).(*sql.Tx)
	return tx, ok
}

// WithPgx stores a pgx transaction in context for downstream store usage.
func WithPgx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, pgxTxKey, tx)
}

// FromPgx extracts a pgx transaction from context if present.
func FromPgx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxTxKey).(pgx.Tx)
	return tx, ok
}

// WithActive marks the context as running inside a logical transaction.
// Lock-based runners set this so nested RunInTx calls join instead of
// deadlocking on the shard they already hold.
func WithActive(ctx context.Context) context.Context {
	return context.WithValue(ctx, activeTxKey, true)
}

// IsActive reports whether the context carries an open transaction of any
// flavor: a database/sql or pgx transaction, or a lock-based runner's marker.
func IsActive(ctx context.Context) bool {
	if active, ok := ctx.Value(activeTxKey).(bool); ok && active {
		return true
	}
	if _, ok := From(ctx); ok {
		return true
	}
	if _, ok := FromPgx(ctx); ok {
		return true
	}
	return false
}

// WithLockKey records the key a lock-based runner should shard on, typically
// the identifier of the row set the transaction mutates.
func WithLockKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, lockKeyKey, key)
}

// LockKey extracts the shard key recorded by WithLockKey, if any.
func LockKey(ctx context.Context) string {
	key, _ := ctx.Value(lockKeyKey).(string)
	return key
}
