// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"astrolive/internal/domain"
)

// TransactionRepository defines the interface for the append-only transaction log.
type TransactionRepository interface {
	// CreateTransaction appends a transaction record using the provided DBExecutor.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionsByAccountID returns a page of an account's history, newest first, and the total count.
	GetTransactionsByAccountID(ctx context.Context, q DBExecutor, accountID string, limit, offset int) ([]domain.Transaction, int64, error)
}
