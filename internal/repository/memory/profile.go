// internal/repository/memory/profile.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// ProfileStore is an in-process ProfileRepository and AvailabilityRepository.
type ProfileStore struct {
	mu        sync.RWMutex
	accounts  map[string]domain.Account
	providers map[string]domain.Provider
}

var (
	_ repository.ProfileRepository      = (*ProfileStore)(nil)
	_ repository.AvailabilityRepository = (*ProfileStore)(nil)
)

// NewProfileStore creates an empty ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		accounts:  make(map[string]domain.Account),
		providers: make(map[string]domain.Provider),
	}
}

func (s *ProfileStore) CreateAccount(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("account %s: %w", account.ID, util.ErrDuplicateEntry)
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *ProfileStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, util.ErrAccountNotFound
	}
	return &account, nil
}

func (s *ProfileStore) CreateProvider(_ context.Context, provider *domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[provider.ID]; !ok {
		return fmt.Errorf("provider %s: %w", provider.ID, util.ErrAccountNotFound)
	}
	if _, exists := s.providers[provider.ID]; exists {
		return fmt.Errorf("provider %s: %w", provider.ID, util.ErrDuplicateEntry)
	}
	p := *provider
	if p.Availability == "" {
		p.Availability = domain.AvailabilityOffline
	}
	s.providers[provider.ID] = p
	return nil
}

func (s *ProfileStore) GetProvider(_ context.Context, id string) (*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, util.ErrProviderNotFound
	}
	return &p, nil
}

func (s *ProfileStore) GetAvailability(_ context.Context, providerID string) (domain.Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[providerID]
	if !ok {
		return "", util.ErrProviderNotFound
	}
	return p.Availability, nil
}

func (s *ProfileStore) CompareAndSetAvailability(_ context.Context, providerID string, from, to domain.Availability) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return false, util.ErrProviderNotFound
	}
	if p.Availability != from {
		return false, nil
	}
	p.Availability = to
	s.providers[providerID] = p
	return true, nil
}
