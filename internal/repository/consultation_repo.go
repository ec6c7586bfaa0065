// internal/repository/consultation_repo.go
package repository

import (
	"context"

	"astrolive/internal/domain"
)

// ConsultationRepository persists ConsultationRequests for audit and negotiation.
type ConsultationRepository interface {
	CreateRequest(ctx context.Context, req *domain.ConsultationRequest) error
	// GetRequest returns util.ErrRequestNotFound if the request does not exist.
	GetRequest(ctx context.Context, id string) (*domain.ConsultationRequest, error)
	// ResolveRequest moves a pending request to status. It returns
	// util.ErrRequestNotFound when the request is missing or no longer pending.
	ResolveRequest(ctx context.Context, id string, status domain.RequestStatus, roomID *string, reason string) (*domain.ConsultationRequest, error)
	// RevokeAcceptance moves an accepted request to rejected and clears its room.
	// It returns util.ErrRequestNotFound when the request is not accepted.
	RevokeAcceptance(ctx context.Context, id string, reason string) (*domain.ConsultationRequest, error)
	// ListRequests returns a provider's requests in the given status, oldest first.
	ListRequests(ctx context.Context, providerID string, status domain.RequestStatus) ([]domain.ConsultationRequest, error)
}
