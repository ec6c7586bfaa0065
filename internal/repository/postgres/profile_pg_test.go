// internal/repository/postgres/profile_pg_test.go
package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrolive/internal/domain"
	"astrolive/internal/util"
)

func TestProfileRepository_GetProvider(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM providers p JOIN accounts a")).
		WithArgs("astro-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "price_text", "price_audio", "price_video", "availability"}).
			AddRow("astro-1", "Vega", "100", "150", "0", "available"))

	p, err := repo.GetProvider(context.Background(), "astro-1")
	require.NoError(t, err)
	assert.Equal(t, "Vega", p.Name)
	assert.Equal(t, domain.AvailabilityAvailable, p.Availability)

	price, ok := p.PriceFor(domain.ChannelAudio)
	assert.True(t, ok)
	assert.True(t, decimal.NewFromInt(150).Equal(price))
	_, ok = p.PriceFor(domain.ChannelVideo)
	assert.False(t, ok)
}

func TestProfileRepository_GetProvider_NotFound(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM providers p")).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProvider(context.Background(), "ghost")
	assert.ErrorIs(t, err, util.ErrProviderNotFound)
}

func TestProfileRepository_GetAccount_NotFound(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, util.ErrAccountNotFound)
}

func TestProfileRepository_CompareAndSetAvailability(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE providers SET availability = $1, updated_at = $2 WHERE id = $3 AND availability = $4")).
		WithArgs(domain.AvailabilityBusy, sqlmock.AnyArg(), "astro-1", domain.AvailabilityAvailable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	swapped, err := repo.CompareAndSetAvailability(ctx, "astro-1", domain.AvailabilityAvailable, domain.AvailabilityBusy)
	require.NoError(t, err)
	assert.True(t, swapped)

	// A second accept for the same provider loses the race.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE providers SET availability")).
		WithArgs(domain.AvailabilityBusy, sqlmock.AnyArg(), "astro-1", domain.AvailabilityAvailable).
		WillReturnResult(sqlmock.NewResult(0, 0))
	swapped, err = repo.CompareAndSetAvailability(ctx, "astro-1", domain.AvailabilityAvailable, domain.AvailabilityBusy)
	require.NoError(t, err)
	assert.False(t, swapped)
}
