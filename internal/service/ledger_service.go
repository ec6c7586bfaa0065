// internal/service/ledger_service.go
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
	"astrolive/pkg/db"
)

// LedgerService defines the wallet ledger: atomic credits, debits and split transfers.
// util.ErrInsufficientFunds is an expected outcome and never leaves partial state.
type LedgerService interface {
	CreateWallet(ctx context.Context, accountID string) (*domain.Wallet, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error)
	SplitTransfer(ctx context.Context, req domain.SplitTransferRequest) (*domain.SplitTransferResult, error)
	GetWallet(ctx context.Context, accountID string) (*domain.Wallet, error)
	GetTransactionHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int64, error)
}

// ledgerService implements LedgerService on top of SQL transactions.
type ledgerService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
}

// NewLedgerService creates a new SQL-backed LedgerService.
func NewLedgerService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) LedgerService {
	return &ledgerService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
	}
}

// CreateWallet opens a zero-balance wallet for an account.
func (s *ledgerService) CreateWallet(ctx context.Context, accountID string) (*domain.Wallet, error) {
	if accountID == "" {
		return nil, util.ErrInvalidInput
	}
	wallet := domain.NewWallet(accountID)
	if err := s.walletRepo.CreateWallet(ctx, s.dbExecutor, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

// Credit adds money to an account's wallet.
func (s *ledgerService) Credit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	return s.post(ctx, "credit", domain.DirectionCredit, accountID, amount, category, description, reference)
}

// Debit takes money from an account's wallet, or fails with util.ErrInsufficientFunds.
func (s *ledgerService) Debit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	return s.post(ctx, "debit", domain.DirectionDebit, accountID, amount, category, description, reference)
}

func (s *ledgerService) post(
	ctx context.Context,
	op string,
	direction domain.Direction,
	accountID string,
	amount decimal.Decimal,
	category domain.Category,
	description, reference string,
) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}

	wallet, err := s.walletRepo.GetWalletForUpdate(ctx, txExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to lock wallet %s: %w", op, accountID, err)
	}

	delta := amount
	if direction == domain.DirectionDebit {
		if !wallet.CanDebit(amount) {
			return nil, util.ErrInsufficientFunds
		}
		delta = amount.Neg()
	}

	transaction, err := s.apply(ctx, txExecutor, accountID, delta, direction, category, amount, description, reference, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return transaction, nil
}

// SplitTransfer debits the payer once and credits every allocation within one
// SQL transaction. Rows are locked in ascending account order so concurrent
// transfers touching the same wallets cannot deadlock.
func (s *ledgerService) SplitTransfer(ctx context.Context, req domain.SplitTransferRequest) (*domain.SplitTransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("split transfer: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("split transfer: transaction controller does not implement DBExecutor")
	}

	locked := make(map[string]*domain.Wallet, len(req.Allocations)+1)
	for _, id := range lockOrder(req) {
		wallet, err := s.walletRepo.GetWalletForUpdate(ctx, txExecutor, id)
		if err != nil {
			return nil, fmt.Errorf("split transfer: failed to lock wallet %s: %w", id, err)
		}
		locked[id] = wallet
	}
	if !locked[req.PayerID].CanDebit(req.Amount) {
		return nil, util.ErrInsufficientFunds
	}

	correlationID := uuid.NewString()
	debit, err := s.apply(ctx, txExecutor, req.PayerID, req.Amount.Neg(), domain.DirectionDebit, req.DebitCategory, req.Amount, req.Description, req.Reference, &correlationID)
	if err != nil {
		return nil, fmt.Errorf("split transfer: %w", err)
	}

	credits := make([]domain.Transaction, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		credit, err := s.apply(ctx, txExecutor, a.AccountID, a.Amount, domain.DirectionCredit, a.Category, a.Amount, req.Description, req.Reference, &correlationID)
		if err != nil {
			return nil, fmt.Errorf("split transfer: %w", err)
		}
		credits = append(credits, *credit)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("split transfer: failed to commit transaction: %w", err)
	}
	return &domain.SplitTransferResult{CorrelationID: correlationID, Debit: *debit, Credits: credits}, nil
}

// apply moves one balance and appends the matching transaction record.
func (s *ledgerService) apply(
	ctx context.Context,
	q repository.DBExecutor,
	accountID string,
	delta decimal.Decimal,
	direction domain.Direction,
	category domain.Category,
	amount decimal.Decimal,
	description, reference string,
	correlationID *string,
) (*domain.Transaction, error) {
	balance, err := s.walletRepo.ApplyDelta(ctx, q, accountID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet %s: %w", accountID, err)
	}

	transaction := domain.NewTransaction(accountID, direction, category, amount, description, reference, correlationID)
	transaction.BalanceAfter = balance
	if err := s.transactionRepo.CreateTransaction(ctx, q, transaction); err != nil {
		return nil, fmt.Errorf("failed to record transaction for %s: %w", accountID, err)
	}
	return transaction, nil
}

// GetWallet returns the current wallet of an account.
func (s *ledgerService) GetWallet(ctx context.Context, accountID string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetWallet(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return wallet, nil
}

// GetTransactionHistory retrieves a paginated list of transactions for an account.
func (s *ledgerService) GetTransactionHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int64, error) {
	if _, err := s.walletRepo.GetWallet(ctx, s.dbExecutor, accountID); err != nil {
		return nil, 0, fmt.Errorf("get transaction history: %w", err)
	}

	transactions, totalCount, err := s.transactionRepo.GetTransactionsByAccountID(ctx, s.dbExecutor, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return transactions, totalCount, nil
}

// lockOrder returns every account touched by req, sorted and de-duplicated.
func lockOrder(req domain.SplitTransferRequest) []string {
	ids := make([]string, 0, len(req.Allocations)+1)
	ids = append(ids, req.PayerID)
	for _, a := range req.Allocations {
		ids = append(ids, a.AccountID)
	}
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
