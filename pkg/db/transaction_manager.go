// pkg/db/transaction_manager.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// TxController defines methods for controlling a database transaction.
// *sqlx.Tx implicitly implements this interface.
type TxController interface {
	Commit() error
	Rollback() error
}

// DBTxBeginner defines the interface for beginning transactions.
// *sqlx.DB implements this.
type DBTxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Function types injected into services so tests can replace transaction handling.
type (
	BeginTxFunc    func(ctx context.Context, dbConn DBTxBeginner) (TxController, error)
	CommitTxFunc   func(tx TxController) error
	RollbackTxFunc func(tx TxController)
)

// ledgerTxOptions: wallet rows are locked explicitly with SELECT ... FOR UPDATE,
// so read committed is enough and avoids serialization retries.
var ledgerTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// BeginTx starts a read-committed ledger transaction.
func BeginTx(ctx context.Context, dbConn DBTxBeginner) (TxController, error) {
	tx, err := dbConn.BeginTxx(ctx, ledgerTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	return tx, nil
}

// CommitTx commits the transaction.
func CommitTx(tx TxController) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}

// RollbackTx rolls back the transaction. It is meant to be deferred, so a
// transaction that was already committed is not reported.
func RollbackTx(tx TxController) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("Error rolling back transaction", "error", err)
	}
}
