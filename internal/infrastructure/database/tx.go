package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txContextKey struct{}

// WithTxContext returns a context carrying the given transaction. Repositories
// resolve their executor from the context, so every statement issued under this
// context joins the same database transaction.
func WithTxContext(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext extracts a transaction from the context, if any.
func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sqlx.Tx)
	return tx, ok
}

// Executor resolves the statement executor for the context: the context-carried
// transaction when present, the pool otherwise.
func Executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return db
}

// TxManager runs functions inside a database transaction.
type TxManager interface {
	// WithTx executes fn inside a transaction. If the context already carries
	// one, fn joins it and commit/rollback is left to the outer call.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewTxManager creates a TxManager over the given connection pool.
func NewTxManager(db *sqlx.DB) TxManager {
	return &sqlTxManager{db: db}
}

type sqlTxManager struct {
	db *sqlx.DB
}

func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithTxContext(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
