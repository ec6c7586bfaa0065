// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"fmt"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
)

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new transaction record into the database using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (id, account_id, direction, category, amount, balance_after, description, reference, correlation_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := q.ExecContext(ctx, query,
		transaction.ID,
		transaction.AccountID,
		transaction.Direction,
		transaction.Category,
		transaction.Amount,
		transaction.BalanceAfter,
		transaction.Description,
		transaction.Reference,
		transaction.CorrelationID,
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionsByAccountID retrieves a paginated list of transactions for an account.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByAccountID(ctx context.Context, q repository.DBExecutor, accountID string, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}

	query := `
		SELECT id, account_id, direction, category, amount, balance_after, description, reference, correlation_id, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &transactions, query, accountID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for account %s: %w", accountID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, accountID); err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for account %s: %w", accountID, err)
	}

	return transactions, totalCount, nil
}
