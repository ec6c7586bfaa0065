// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
)

// WalletRepository defines the interface for wallet data operations.
// Every method receives the DBExecutor to run on, so callers decide whether it
// happens inside a transaction.
type WalletRepository interface {
	// CreateWallet adds a new wallet. util.ErrDuplicateEntry if the account already has one.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWallet retrieves the wallet of an account. util.ErrWalletNotFound if absent.
	GetWallet(ctx context.Context, q DBExecutor, accountID string) (*domain.Wallet, error)
	// GetWalletForUpdate is GetWallet holding a row lock until the transaction ends.
	GetWalletForUpdate(ctx context.Context, q DBExecutor, accountID string) (*domain.Wallet, error)
	// ApplyDelta adds delta to the balance unless the result would be negative,
	// in which case util.ErrInsufficientFunds is returned and nothing changes.
	ApplyDelta(ctx context.Context, q DBExecutor, accountID string, delta decimal.Decimal) (decimal.Decimal, error)
}
