// internal/repository/postgres/consultation_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// ConsultationRepository implements repository.ConsultationRepository for PostgreSQL.
type ConsultationRepository struct {
	db repository.DBExecutor
}

// NewConsultationRepository creates a new ConsultationRepository.
func NewConsultationRepository(db repository.DBExecutor) repository.ConsultationRepository {
	return &ConsultationRepository{db: db}
}

const consultationColumns = `id, client_id, provider_id, channel_type, status, room_id, reason, created_at, updated_at`

// CreateRequest inserts a new consultation request.
func (r *ConsultationRepository) CreateRequest(ctx context.Context, req *domain.ConsultationRequest) error {
	query := `INSERT INTO consultation_requests (` + consultationColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.ClientID,
		req.ProviderID,
		req.Channel,
		req.Status,
		req.RoomID,
		req.Reason,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consultation request: %w", err)
	}
	return nil
}

// GetRequest retrieves a consultation request by id.
func (r *ConsultationRepository) GetRequest(ctx context.Context, id string) (*domain.ConsultationRequest, error) {
	var req domain.ConsultationRequest
	query := `SELECT ` + consultationColumns + ` FROM consultation_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get consultation request %s: %w", id, err)
	}
	return &req, nil
}

// ResolveRequest performs the single pending -> terminal transition.
func (r *ConsultationRepository) ResolveRequest(ctx context.Context, id string, status domain.RequestStatus, roomID *string, reason string) (*domain.ConsultationRequest, error) {
	var req domain.ConsultationRequest
	query := `UPDATE consultation_requests
              SET status = $1, room_id = $2, reason = $3, updated_at = $4
              WHERE id = $5 AND status = 'pending'
              RETURNING ` + consultationColumns
	err := r.db.GetContext(ctx, &req, query, status, roomID, reason, time.Now().UTC(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to resolve consultation request %s: %w", id, err)
	}
	return &req, nil
}

// RevokeAcceptance turns an accepted request into a rejected one.
func (r *ConsultationRepository) RevokeAcceptance(ctx context.Context, id string, reason string) (*domain.ConsultationRequest, error) {
	var req domain.ConsultationRequest
	query := `UPDATE consultation_requests
              SET status = 'rejected', room_id = NULL, reason = $1, updated_at = $2
              WHERE id = $3 AND status = 'accepted'
              RETURNING ` + consultationColumns
	err := r.db.GetContext(ctx, &req, query, reason, time.Now().UTC(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to revoke consultation request %s: %w", id, err)
	}
	return &req, nil
}

// ListRequests returns a provider's requests in the given status.
func (r *ConsultationRepository) ListRequests(ctx context.Context, providerID string, status domain.RequestStatus) ([]domain.ConsultationRequest, error) {
	requests := []domain.ConsultationRequest{}
	query := `SELECT ` + consultationColumns + ` FROM consultation_requests
              WHERE provider_id = $1 AND status = $2
              ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &requests, query, providerID, status); err != nil {
		return nil, fmt.Errorf("failed to list consultation requests of provider %s: %w", providerID, err)
	}
	return requests, nil
}
