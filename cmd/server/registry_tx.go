package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
)

const defaultRegistryTxTimeout = 5 * time.Second

// registryPostgresTx runs the form and rewards services' transactions on the
// shared database/sql pool. The open transaction travels in the context so
// every store touched inside fn joins it; a nested RunInTx sees the active
// transaction and joins instead of opening a second one.
type registryPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRegistryPostgresTx(db *sql.DB) *registryPostgresTx {
	return &registryPostgresTx{db: db}
}

func (t *registryPostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if platformtx.IsActive(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRegistryTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(platformtx.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
