// internal/session/availability.go
package session

import (
	"context"
	"fmt"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
)

// AvailabilityGuard is the only writer of provider availability. Every
// transition is a compare-and-set, so two negotiations can never both win
// the same provider.
type AvailabilityGuard struct {
	repo repository.AvailabilityRepository
}

// NewAvailabilityGuard creates an AvailabilityGuard.
func NewAvailabilityGuard(repo repository.AvailabilityRepository) *AvailabilityGuard {
	return &AvailabilityGuard{repo: repo}
}

// Current returns the provider's availability.
func (g *AvailabilityGuard) Current(ctx context.Context, providerID string) (domain.Availability, error) {
	return g.repo.GetAvailability(ctx, providerID)
}

// MarkBusy claims an available provider for a session.
func (g *AvailabilityGuard) MarkBusy(ctx context.Context, providerID string) (bool, error) {
	return g.swap(ctx, providerID, domain.AvailabilityAvailable, domain.AvailabilityBusy)
}

// MarkAvailable releases a provider when its session ends.
func (g *AvailabilityGuard) MarkAvailable(ctx context.Context, providerID string) (bool, error) {
	return g.swap(ctx, providerID, domain.AvailabilityBusy, domain.AvailabilityAvailable)
}

// MarkOnline makes an offline provider available when it connects.
func (g *AvailabilityGuard) MarkOnline(ctx context.Context, providerID string) (bool, error) {
	return g.swap(ctx, providerID, domain.AvailabilityOffline, domain.AvailabilityAvailable)
}

// MarkOffline takes an idle provider offline when it disconnects. A busy
// provider stays busy: billing does not depend on live connectivity.
func (g *AvailabilityGuard) MarkOffline(ctx context.Context, providerID string) (bool, error) {
	return g.swap(ctx, providerID, domain.AvailabilityAvailable, domain.AvailabilityOffline)
}

func (g *AvailabilityGuard) swap(ctx context.Context, providerID string, from, to domain.Availability) (bool, error) {
	ok, err := g.repo.CompareAndSetAvailability(ctx, providerID, from, to)
	if err != nil {
		return false, fmt.Errorf("availability %s -> %s for %s: %w", from, to, providerID, err)
	}
	return ok, nil
}
