// internal/service/breaker_ledger.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	gobreaker "github.com/sony/gobreaker/v2"

	"astrolive/internal/domain"
	"astrolive/internal/metrics"
	"astrolive/internal/util"
)

// ErrLedgerUnavailable is returned while the ledger circuit breaker is open.
var ErrLedgerUnavailable = errors.New("ledger temporarily unavailable")

// BreakerConfig configures the ledger circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// BreakerLedger decorates a LedgerService with a circuit breaker. Only
// infrastructure failures count against the breaker; domain outcomes such as
// insufficient funds are reported as successes.
type BreakerLedger struct {
	next LedgerService
	cb   *gobreaker.CircuitBreaker[any]
}

var _ LedgerService = (*BreakerLedger)(nil)

// NewBreakerLedger wraps next with a circuit breaker.
func NewBreakerLedger(next LedgerService, cfg BreakerConfig, logger *slog.Logger) *BreakerLedger {
	settings := gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || util.IsDomainError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.SetLedgerBreakerState(int(to))
		},
	}
	return &BreakerLedger{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State exposes the breaker state for health reporting.
func (b *BreakerLedger) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerLedger) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return res, err
}

func (b *BreakerLedger) CreateWallet(ctx context.Context, accountID string) (*domain.Wallet, error) {
	res, err := b.execute(func() (any, error) { return b.next.CreateWallet(ctx, accountID) })
	if err != nil {
		return nil, err
	}
	return res.(*domain.Wallet), nil
}

func (b *BreakerLedger) Credit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Credit(ctx, accountID, amount, category, description, reference)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Transaction), nil
}

func (b *BreakerLedger) Debit(ctx context.Context, accountID string, amount decimal.Decimal, category domain.Category, description, reference string) (*domain.Transaction, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Debit(ctx, accountID, amount, category, description, reference)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.Transaction), nil
}

func (b *BreakerLedger) SplitTransfer(ctx context.Context, req domain.SplitTransferRequest) (*domain.SplitTransferResult, error) {
	res, err := b.execute(func() (any, error) { return b.next.SplitTransfer(ctx, req) })
	if err != nil {
		return nil, err
	}
	return res.(*domain.SplitTransferResult), nil
}

func (b *BreakerLedger) GetWallet(ctx context.Context, accountID string) (*domain.Wallet, error) {
	res, err := b.execute(func() (any, error) { return b.next.GetWallet(ctx, accountID) })
	if err != nil {
		return nil, err
	}
	return res.(*domain.Wallet), nil
}

func (b *BreakerLedger) GetTransactionHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.Transaction, int64, error) {
	type page struct {
		items []domain.Transaction
		total int64
	}
	res, err := b.execute(func() (any, error) {
		items, total, err := b.next.GetTransactionHistory(ctx, accountID, limit, offset)
		if err != nil {
			return nil, err
		}
		return page{items: items, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	p := res.(page)
	return p.items, p.total, nil
}
