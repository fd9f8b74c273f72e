package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// DBTX is the handle repositories execute against. Both *sql.DB and *sql.Tx
// satisfy it, so every query method works inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// DefaultTxOptions is read committed, the coordinator's default isolation.
// The correctness-critical invariants (single-use discount, unique delivery
// week) are arbitrated by storage uniqueness constraints, not isolation.
var DefaultTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// Handle returns the active transaction from ctx, or the bare connection when
// no transaction is open. Read paths that do not need a coordinator scope use
// it directly.
func (r *Repository) Handle(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// Run executes fn atomically. If a transaction is already open on ctx the call
// nests inline on that handle; commit/rollback stay with the outermost Run.
// Otherwise it opens a transaction with opts (DefaultTxOptions when nil),
// commits when fn returns nil and rolls back on any error, panic or
// cancellation. Rollback runs on a non-cancellable context so cleanup is never
// interrupted, and rollback failures are logged rather than returned so the
// original error is what callers see.
func (r *Repository) Run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q DBTX) error) error {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx, tx)
	}

	if opts == nil {
		opts = DefaultTxOptions
	}

	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
	}()

	if err := fn(txCtx, tx); err != nil {
		rollback(tx)
		return err
	}

	if err := ctx.Err(); err != nil {
		rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("transaction rollback failed: %v", err)
	}
}
