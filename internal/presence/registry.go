// internal/presence/registry.go
package presence

import (
	"context"
	"sync"
)

// Registry maps an account to the transport address of its live connection.
// Writes are last-write-wins. A missing address is not an error: the account
// simply cannot be notified right now.
type Registry interface {
	SetAddress(ctx context.Context, accountID, address string) error
	GetAddress(ctx context.Context, accountID string) (string, bool, error)
	Clear(ctx context.Context, accountID string) error
	// ClearIfMatch clears the entry only while it still holds address, so the
	// late disconnect of a replaced connection cannot erase its successor.
	ClearIfMatch(ctx context.Context, accountID, address string) (bool, error)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu        sync.RWMutex
	addresses map[string]string
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{addresses: make(map[string]string)}
}

func (r *MemoryRegistry) SetAddress(_ context.Context, accountID, address string) error {
	r.mu.Lock()
	r.addresses[accountID] = address
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) GetAddress(_ context.Context, accountID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	address, ok := r.addresses[accountID]
	return address, ok, nil
}

func (r *MemoryRegistry) Clear(_ context.Context, accountID string) error {
	r.mu.Lock()
	delete(r.addresses, accountID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) ClearIfMatch(_ context.Context, accountID, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addresses[accountID] != address {
		return false, nil
	}
	delete(r.addresses, accountID)
	return true, nil
}
