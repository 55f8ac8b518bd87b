package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// transactionContextKey keys the transaction stored in a context.
type transactionContextKey struct{}

var txContextKey = transactionContextKey{}

type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TransactionManager runs functions inside pgx transactions. Nested calls
// reuse the transaction already carried by the context.
type TransactionManager struct {
	pool txStarter
}

// NewTransactionManager creates a TransactionManager.
func NewTransactionManager(pool txStarter) *TransactionManager {
	if pool == nil {
		return nil
	}
	return &TransactionManager{pool: pool}
}

// WithinReadOnly runs fn inside a read-only transaction.
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithinReadWrite runs fn inside a read-write transaction.
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite}, fn)
}

func (m *TransactionManager) within(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}

	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	txCtx := contextWithTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if !errors.Is(err, pgx.ErrTxClosed) {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				return errors.Join(fmt.Errorf("postgres: commit: %w", err), fmt.Errorf("postgres: rollback after commit failure: %w", rbErr))
			}
		}
		return fmt.Errorf("postgres: commit: %w", err)
	}

	committed = true
	return nil
}

func contextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey, tx)
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey).(pgx.Tx)
	return tx, ok
}

// QueryerFromContext returns the transaction carried by the context when
// there is one, and fallback otherwise.
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return fallback
}

// Queryer is the query surface shared by pgx.Tx and pgxpool.Pool.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
