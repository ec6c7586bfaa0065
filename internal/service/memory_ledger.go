// internal/service/memory_ledger.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
	"astrolive/internal/util"
)

// MemoryLedger is an in-process LedgerService. Each wallet carries its own
// mutex; multi-account operations take the mutexes in ascending account order.
type MemoryLedger struct {
	mu      sync.RWMutex // guards the wallets map, not the wallets
	wallets map[string]*memoryWallet
}

type memoryWallet struct {
	mu      sync.Mutex
	wallet  domain.Wallet
	history []domain.Transaction // oldest first
}

var _ LedgerService = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{wallets: make(map[string]*memoryWallet)}
}

func (l *MemoryLedger) CreateWallet(_ context.Context, accountID string) (*domain.Wallet, error) {
	if accountID == "" {
		return nil, util.ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.wallets[accountID]; exists {
		return nil, fmt.Errorf("create wallet: wallet for account %s: %w", accountID, util.ErrDuplicateEntry)
	}
	w := domain.NewWallet(accountID)
	l.wallets[accountID] = &memoryWallet{wallet: *w}
	return w, nil
}

func (l *MemoryLedger) lookup(accountID string) (*memoryWallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.wallets[accountID]
	if !ok {
		return nil, util.ErrWalletNotFound
	}
	return w, nil
}

func (l *MemoryLedger) Credit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	return l.post(ctx, domain.DirectionCredit, accountID, amount, category, description, reference)
}

func (l *MemoryLedger) Debit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	return l.post(ctx, domain.DirectionDebit, accountID, amount, category, description, reference)
}

func (l *MemoryLedger) post(_ context.Context, direction domain.Direction, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, util.ErrInvalidAmount
	}
	w, err := l.lookup(accountID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if direction == domain.DirectionDebit && !w.wallet.CanDebit(amount) {
		return nil, util.ErrInsufficientFunds
	}
	t := w.append(direction, category, amount, description, reference, nil)
	return &t, nil
}

// append mutates the balance and history together. Callers hold w.mu.
func (w *memoryWallet) append(direction domain.Direction, category domain.Category, amount decimal.Decimal, description, reference string, correlationID *string) domain.Transaction {
	t := domain.NewTransaction(w.wallet.AccountID, direction, category, amount, description, reference, correlationID)
	w.wallet.Balance = w.wallet.Balance.Add(t.Signed())
	w.wallet.UpdatedAt = time.Now().UTC()
	t.BalanceAfter = w.wallet.Balance
	w.history = append(w.history, *t)
	return *t
}

func (l *MemoryLedger) SplitTransfer(_ context.Context, req domain.SplitTransferRequest) (*domain.SplitTransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids := lockOrder(req)
	wallets := make(map[string]*memoryWallet, len(ids))
	for _, id := range ids {
		w, err := l.lookup(id)
		if err != nil {
			return nil, fmt.Errorf("split transfer: wallet %s: %w", id, err)
		}
		wallets[id] = w
	}
	for _, id := range ids {
		wallets[id].mu.Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			wallets[ids[i]].mu.Unlock()
		}
	}()

	payer := wallets[req.PayerID]
	if !payer.wallet.CanDebit(req.Amount) {
		return nil, util.ErrInsufficientFunds
	}

	correlationID := uuid.NewString()
	result := &domain.SplitTransferResult{CorrelationID: correlationID}
	result.Debit = payer.append(domain.DirectionDebit, req.DebitCategory, req.Amount, req.Description, req.Reference, &correlationID)
	for _, a := range req.Allocations {
		credit := wallets[a.AccountID].append(domain.DirectionCredit, a.Category, a.Amount, req.Description, req.Reference, &correlationID)
		result.Credits = append(result.Credits, credit)
	}
	return result, nil
}

func (l *MemoryLedger) GetWallet(_ context.Context, accountID string) (*domain.Wallet, error) {
	w, err := l.lookup(accountID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	wallet := w.wallet
	return &wallet, nil
}

// GetTransactionHistory returns the newest transactions first.
func (l *MemoryLedger) GetTransactionHistory(_ context.Context, accountID string, limit, offset int) ([]domain.Transaction, int64, error) {
	w, err := l.lookup(accountID)
	if err != nil {
		return nil, 0, fmt.Errorf("get transaction history: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	total := len(w.history)
	out := []domain.Transaction{}
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.history[i])
	}
	return out, int64(total), nil
}
