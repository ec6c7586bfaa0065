// internal/repository/profile_repo.go
package repository

import (
	"context"

	"astrolive/internal/domain"
)

// ProfileRepository is the read side of account and provider profiles the
// session engine depends on, plus the minimal writes needed to onboard them.
type ProfileRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	// GetAccount returns util.ErrAccountNotFound if the account does not exist.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	// CreateProvider stores the profile of an existing provider account.
	CreateProvider(ctx context.Context, provider *domain.Provider) error
	// GetProvider returns util.ErrProviderNotFound if no provider profile exists.
	GetProvider(ctx context.Context, id string) (*domain.Provider, error)
}

// AvailabilityRepository stores provider availability. Writes are compare-and-set only.
type AvailabilityRepository interface {
	GetAvailability(ctx context.Context, providerID string) (domain.Availability, error)
	// CompareAndSetAvailability sets to only if the current value is from.
	// It reports whether the swap happened.
	CompareAndSetAvailability(ctx context.Context, providerID string, from, to domain.Availability) (bool, error)
}
