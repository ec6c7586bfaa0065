// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Direction tells whether a transaction added to or removed from a balance.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Category classifies what a transaction paid for.
type Category string

const (
	CategoryChat       Category = "chat"
	CategoryAudioCall  Category = "audio_call"
	CategoryVideoCall  Category = "video_call"
	CategoryCommission Category = "commission"
	CategoryRecharge   Category = "recharge"
)

// Transaction is one immutable line of a wallet's history.
type Transaction struct {
	ID            string          `db:"id" json:"id"`
	AccountID     string          `db:"account_id" json:"account_id"`
	Direction     Direction       `db:"direction" json:"direction"`
	Category      Category        `db:"category" json:"category"`
	Amount        decimal.Decimal `db:"amount" json:"amount"` // Always positive
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description   string          `db:"description" json:"description"`
	Reference     string          `db:"reference" json:"reference"` // e.g. room id
	CorrelationID *string         `db:"correlation_id" json:"correlation_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// NewTransaction creates a new Transaction instance with a fresh id.
func NewTransaction(
	accountID string,
	direction Direction,
	category Category,
	amount decimal.Decimal,
	description string,
	reference string,
	correlationID *string,
) *Transaction {
	return &Transaction{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Direction:     direction,
		Category:      category,
		Amount:        amount,
		Description:   description,
		Reference:     reference,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Signed returns the amount with the sign of its direction.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// SumSigned folds a history into the balance it implies.
func SumSigned(history []Transaction) decimal.Decimal {
	total := decimal.Zero
	for i := range history {
		total = total.Add(history[i].Signed())
	}
	return total
}
