// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// WalletRepository implements repository.WalletRepository for PostgreSQL.
// It holds no connection; every method runs on the DBExecutor it is given.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// CreateWallet inserts a new wallet into the database using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (account_id, balance, created_at, updated_at) VALUES ($1, $2, $3, $4)`
	_, err := q.ExecContext(ctx, query, wallet.AccountID, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("wallet for account %s: %w", wallet.AccountID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create wallet for account %s: %w", wallet.AccountID, err)
	}
	return nil
}

// GetWallet retrieves a wallet by its account id using the provided DBExecutor.
func (r *WalletRepository) GetWallet(ctx context.Context, q repository.DBExecutor, accountID string) (*domain.Wallet, error) {
	query := `SELECT account_id, balance, created_at, updated_at FROM wallets WHERE account_id = $1`
	return r.get(ctx, q, query, accountID)
}

// GetWalletForUpdate retrieves a wallet and locks its row for the rest of the transaction.
func (r *WalletRepository) GetWalletForUpdate(ctx context.Context, q repository.DBExecutor, accountID string) (*domain.Wallet, error) {
	query := `SELECT account_id, balance, created_at, updated_at FROM wallets WHERE account_id = $1 FOR UPDATE`
	return r.get(ctx, q, query, accountID)
}

func (r *WalletRepository) get(ctx context.Context, q repository.DBExecutor, query, accountID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := q.GetContext(ctx, &wallet, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for account %s: %w", accountID, err)
	}
	return &wallet, nil
}

// ApplyDelta conditionally moves the balance. The guard in the WHERE clause keeps
// the balance non-negative even if the caller did not lock the row first.
func (r *WalletRepository) ApplyDelta(ctx context.Context, q repository.DBExecutor, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2
              WHERE account_id = $3 AND balance + $1 >= 0
              RETURNING balance`
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx, query, delta, time.Now().UTC(), accountID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to update wallet balance for account %s: %w", accountID, err)
	}

	// No row matched: either the wallet is missing or the guard refused the update.
	if _, getErr := r.GetWallet(ctx, q, accountID); getErr != nil {
		return decimal.Zero, getErr
	}
	return decimal.Zero, util.ErrInsufficientFunds
}
