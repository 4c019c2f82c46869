// Package db wraps pgx transaction handling so services stay testable: the
// pool-backed runner opens a real transaction, test doubles call the function
// with a nil tx.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFunc runs inside a transaction. Returning an error rolls back.
type TxFunc func(tx pgx.Tx) error

// Runner executes a function within a transactional boundary.
type Runner interface {
	InTx(ctx context.Context, fn TxFunc) error
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(ctx context.Context, fn TxFunc) error

func (f RunnerFunc) InTx(ctx context.Context, fn TxFunc) error { return f(ctx, fn) }

// NoTx is a Runner for tests backed by in-memory stores: it invokes the
// function with a nil transaction.
var NoTx = RunnerFunc(func(_ context.Context, fn TxFunc) error { return fn(nil) })

// PoolRunner runs each function in its own database transaction.
type PoolRunner struct {
	pool *pgxpool.Pool
}

func NewPoolRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

func (r *PoolRunner) InTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
