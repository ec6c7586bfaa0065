// internal/domain/split.go
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"astrolive/internal/util"
)

// Share is one payee's proportional cut of a split.
type Share struct {
	AccountID string
	Category  Category
	Ratio     decimal.Decimal
}

// Allocation is one payee's credited amount.
type Allocation struct {
	AccountID string          `json:"account_id"`
	Category  Category        `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
}

// ComputeSplit divides amount between shares. Every share except the one owned by
// remainderAccount is rounded down to places; the remainder account receives
// whatever is left so that the allocations always sum exactly to amount.
// Allocations that round to zero are omitted.
func ComputeSplit(amount decimal.Decimal, shares []Share, remainderAccount string, places int32) ([]Allocation, error) {
	if !amount.IsPositive() {
		return nil, util.ErrInvalidAmount
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares", util.ErrInvalidSplit)
	}

	ratioSum := decimal.Zero
	remainderIdx := -1
	for i, s := range shares {
		if !s.Ratio.IsPositive() {
			return nil, fmt.Errorf("%w: ratio for %s must be positive", util.ErrInvalidSplit, s.AccountID)
		}
		ratioSum = ratioSum.Add(s.Ratio)
		if s.AccountID == remainderAccount {
			remainderIdx = i
		}
	}
	if !ratioSum.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: ratios sum to %s", util.ErrInvalidSplit, ratioSum)
	}
	if remainderIdx < 0 {
		return nil, fmt.Errorf("%w: remainder account %s has no share", util.ErrInvalidSplit, remainderAccount)
	}

	allocations := make([]Allocation, 0, len(shares))
	allocated := decimal.Zero
	for i, s := range shares {
		if i == remainderIdx {
			continue
		}
		part := amount.Mul(s.Ratio).RoundFloor(places)
		allocated = allocated.Add(part)
		if part.IsPositive() {
			allocations = append(allocations, Allocation{AccountID: s.AccountID, Category: s.Category, Amount: part})
		}
	}
	rest := amount.Sub(allocated)
	if rest.IsPositive() {
		r := shares[remainderIdx]
		allocations = append(allocations, Allocation{AccountID: r.AccountID, Category: r.Category, Amount: rest})
	}
	return allocations, nil
}

// SplitTransferRequest debits one payer and credits every allocation.
type SplitTransferRequest struct {
	PayerID       string
	Amount        decimal.Decimal
	DebitCategory Category
	Description   string
	Reference     string
	Allocations   []Allocation
}

// Validate checks that the request is well-formed and conserves money.
func (r SplitTransferRequest) Validate() error {
	if r.PayerID == "" {
		return fmt.Errorf("%w: payer is required", util.ErrInvalidInput)
	}
	if !r.Amount.IsPositive() {
		return util.ErrInvalidAmount
	}
	if len(r.Allocations) == 0 {
		return fmt.Errorf("%w: no allocations", util.ErrInvalidSplit)
	}
	sum := decimal.Zero
	seen := make(map[string]struct{}, len(r.Allocations))
	for _, a := range r.Allocations {
		if !a.Amount.IsPositive() {
			return fmt.Errorf("%w: allocation for %s must be positive", util.ErrInvalidSplit, a.AccountID)
		}
		if a.AccountID == r.PayerID {
			return fmt.Errorf("%w: payer cannot be a payee", util.ErrInvalidSplit)
		}
		if _, dup := seen[a.AccountID]; dup {
			return fmt.Errorf("%w: duplicate payee %s", util.ErrInvalidSplit, a.AccountID)
		}
		seen[a.AccountID] = struct{}{}
		sum = sum.Add(a.Amount)
	}
	if !sum.Equal(r.Amount) {
		return fmt.Errorf("%w: allocations sum to %s, expected %s", util.ErrInvalidSplit, sum, r.Amount)
	}
	return nil
}

// SplitTransferResult holds the records produced by one split-transfer.
type SplitTransferResult struct {
	CorrelationID string        `json:"correlation_id"`
	Debit         Transaction   `json:"debit"`
	Credits       []Transaction `json:"credits"`
}
