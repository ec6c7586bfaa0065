// internal/service/account_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// AccountService onboards wallet holders: an account record plus its wallet.
type AccountService interface {
	OpenAccount(ctx context.Context, id string, role domain.Role, name string) (*domain.Account, *domain.Wallet, error)
	RegisterProvider(ctx context.Context, id, name string, prices domain.ChannelPrices) (*domain.Provider, *domain.Wallet, error)
	// EnsureOperator creates the operator account and wallet if they are missing.
	EnsureOperator(ctx context.Context, id string) error
}

type accountService struct {
	profiles repository.ProfileRepository
	ledger   LedgerService
}

// NewAccountService creates a new AccountService.
func NewAccountService(profiles repository.ProfileRepository, ledger LedgerService) AccountService {
	return &accountService{profiles: profiles, ledger: ledger}
}

func (s *accountService) OpenAccount(ctx context.Context, id string, role domain.Role, name string) (*domain.Account, *domain.Wallet, error) {
	if id == "" || !role.Valid() {
		return nil, nil, util.ErrInvalidInput
	}
	account := domain.NewAccount(id, role, name)
	if err := s.profiles.CreateAccount(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("open account: %w", err)
	}
	wallet, err := s.ledger.CreateWallet(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("open account: %w", err)
	}
	return account, wallet, nil
}

func (s *accountService) RegisterProvider(ctx context.Context, id, name string, prices domain.ChannelPrices) (*domain.Provider, *domain.Wallet, error) {
	for _, p := range []decimal.Decimal{prices.Text, prices.Audio, prices.Video} {
		if p.IsNegative() {
			return nil, nil, util.ErrInvalidAmount
		}
	}
	_, wallet, err := s.OpenAccount(ctx, id, domain.RoleProvider, name)
	if err != nil {
		return nil, nil, err
	}
	provider := &domain.Provider{
		ID:           id,
		Name:         name,
		Prices:       prices,
		Availability: domain.AvailabilityOffline,
	}
	if err := s.profiles.CreateProvider(ctx, provider); err != nil {
		return nil, nil, fmt.Errorf("register provider: %w", err)
	}
	return provider, wallet, nil
}

func (s *accountService) EnsureOperator(ctx context.Context, id string) error {
	err := s.profiles.CreateAccount(ctx, domain.NewAccount(id, domain.RoleOperator, "operator"))
	if err != nil && !errors.Is(err, util.ErrDuplicateEntry) {
		return fmt.Errorf("ensure operator: %w", err)
	}
	if _, err := s.ledger.CreateWallet(ctx, id); err != nil && !errors.Is(err, util.ErrDuplicateEntry) {
		return fmt.Errorf("ensure operator: %w", err)
	}
	return nil
}
