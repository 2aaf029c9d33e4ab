package postgres

import (
	"context"
	"database/sql"
	"log/slog"
)

type txKeyType struct{}

var txKey = txKeyType{}

type execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func executor(ctx context.Context, db *sql.DB) execer {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return db
}

// TxManager implements contracts.Transactor over one *sql.DB. The open
// transaction is carried on the context so the repositories in this package
// join it transparently.
type TxManager struct {
	log *slog.Logger
	db  *sql.DB
}

func NewTxManager(log *slog.Logger, db *sql.DB) *TxManager {
	return &TxManager{log: log, db: db}
}

func (tm *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			tm.log.ErrorContext(ctx, "postgres - tx rollback failed", "err", rbErr)
		}
		return err
	}
	return tx.Commit()
}
