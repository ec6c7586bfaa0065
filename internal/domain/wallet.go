// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Wallet holds the balance of exactly one account.
// Balance is only ever changed through the ledger's credit/debit operations.
type Wallet struct {
	AccountID string          `db:"account_id" json:"account_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"` // NUMERIC(20, 4) in DB
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates a new Wallet instance with a zero balance.
func NewWallet(accountID string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		AccountID: accountID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether amount can be taken without the balance going negative.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
