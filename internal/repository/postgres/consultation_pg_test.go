// internal/repository/postgres/consultation_pg_test.go
package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrolive/internal/domain"
	"astrolive/internal/util"
)

var requestColumns = []string{"id", "client_id", "provider_id", "channel_type", "status", "room_id", "reason", "created_at", "updated_at"}

func TestConsultationRepository_Create(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewConsultationRepository(db)
	req := domain.NewConsultationRequest("client-1", "astro-1", domain.ChannelText)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consultation_requests")).
		WithArgs(req.ID, "client-1", "astro-1", domain.ChannelText, domain.RequestPending, nil, "", req.CreatedAt, req.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateRequest(context.Background(), req))
}

func TestConsultationRepository_ResolveRequest(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewConsultationRepository(db)
	room := domain.RoomIDFor("client-1", "astro-1")
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $5 AND status = 'pending'")).
		WithArgs(domain.RequestAccepted, &room, "", sqlmock.AnyArg(), "req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("req-1", "client-1", "astro-1", "text", "accepted", room, "", now, now))

	req, err := repo.ResolveRequest(context.Background(), "req-1", domain.RequestAccepted, &room, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestAccepted, req.Status)
	require.NotNil(t, req.RoomID)
	assert.Equal(t, room, *req.RoomID)
}

func TestConsultationRepository_ResolveRequest_AlreadyResolved(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewConsultationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE consultation_requests")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveRequest(context.Background(), "req-1", domain.RequestRejected, nil, "")
	assert.ErrorIs(t, err, util.ErrRequestNotFound)
}

func TestConsultationRepository_RevokeAcceptance(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewConsultationRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $3 AND status = 'accepted'")).
		WithArgs("provider busy", sqlmock.AnyArg(), "req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("req-1", "client-1", "astro-1", "text", "rejected", nil, "provider busy", now, now))

	req, err := repo.RevokeAcceptance(context.Background(), "req-1", "provider busy")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, req.Status)
	assert.Nil(t, req.RoomID)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE consultation_requests")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.RevokeAcceptance(context.Background(), "req-1", "provider busy")
	assert.ErrorIs(t, err, util.ErrRequestNotFound)
}

func TestConsultationRepository_ListRequests(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewConsultationRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE provider_id = $1 AND status = $2")).
		WithArgs("astro-1", domain.RequestPending).
		WillReturnRows(sqlmock.NewRows(requestColumns).
			AddRow("req-1", "client-1", "astro-1", "video", "pending", nil, "", now, now).
			AddRow("req-2", "client-2", "astro-1", "text", "pending", nil, "", now, now))

	reqs, err := repo.ListRequests(context.Background(), "astro-1", domain.RequestPending)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.ChannelVideo, reqs[0].Channel)
	assert.Nil(t, reqs[0].RoomID)
}
