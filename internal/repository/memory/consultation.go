// internal/repository/memory/consultation.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// ConsultationStore is an in-process ConsultationRepository.
type ConsultationStore struct {
	mu       sync.RWMutex
	requests map[string]domain.ConsultationRequest
}

var _ repository.ConsultationRepository = (*ConsultationStore)(nil)

// NewConsultationStore creates an empty ConsultationStore.
func NewConsultationStore() *ConsultationStore {
	return &ConsultationStore{requests: make(map[string]domain.ConsultationRequest)}
}

func (s *ConsultationStore) CreateRequest(_ context.Context, req *domain.ConsultationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("consultation request %s: %w", req.ID, util.ErrDuplicateEntry)
	}
	s.requests[req.ID] = *req
	return nil
}

func (s *ConsultationStore) GetRequest(_ context.Context, id string) (*domain.ConsultationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, util.ErrRequestNotFound
	}
	return &req, nil
}

func (s *ConsultationStore) ResolveRequest(_ context.Context, id string, status domain.RequestStatus, roomID *string, reason string) (*domain.ConsultationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != domain.RequestPending {
		return nil, util.ErrRequestNotFound
	}
	req.Status = status
	if roomID != nil {
		room := *roomID
		req.RoomID = &room
	}
	req.Reason = reason
	req.UpdatedAt = time.Now().UTC()
	s.requests[id] = req
	return &req, nil
}

func (s *ConsultationStore) RevokeAcceptance(_ context.Context, id string, reason string) (*domain.ConsultationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != domain.RequestAccepted {
		return nil, util.ErrRequestNotFound
	}
	req.Status = domain.RequestRejected
	req.RoomID = nil
	req.Reason = reason
	req.UpdatedAt = time.Now().UTC()
	s.requests[id] = req
	return &req, nil
}

func (s *ConsultationStore) ListRequests(_ context.Context, providerID string, status domain.RequestStatus) ([]domain.ConsultationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.ConsultationRequest{}
	for _, req := range s.requests {
		if req.ProviderID == providerID && req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
