// internal/repository/postgres/profile_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"astrolive/internal/domain"
	"astrolive/internal/repository"
	"astrolive/internal/util"
)

// ProfileRepository implements repository.ProfileRepository and
// repository.AvailabilityRepository for PostgreSQL.
type ProfileRepository struct {
	db repository.DBExecutor
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db repository.DBExecutor) *ProfileRepository {
	return &ProfileRepository{db: db}
}

var (
	_ repository.ProfileRepository      = (*ProfileRepository)(nil)
	_ repository.AvailabilityRepository = (*ProfileRepository)(nil)
)

type providerRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"display_name"`
	PriceText    decimal.Decimal `db:"price_text"`
	PriceAudio   decimal.Decimal `db:"price_audio"`
	PriceVideo   decimal.Decimal `db:"price_video"`
	Availability string          `db:"availability"`
}

func (r providerRow) toDomain() *domain.Provider {
	return &domain.Provider{
		ID:   r.ID,
		Name: r.Name,
		Prices: domain.ChannelPrices{
			Text:  r.PriceText,
			Audio: r.PriceAudio,
			Video: r.PriceVideo,
		},
		Availability: domain.Availability(r.Availability),
	}
}

// CreateAccount inserts a new account.
func (r *ProfileRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `INSERT INTO accounts (id, role, display_name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, account.ID, account.Role, account.Name, account.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", account.ID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (r *ProfileRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, role, display_name, created_at FROM accounts WHERE id = $1`
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return &account, nil
}

// CreateProvider inserts the provider profile of an existing account.
func (r *ProfileRepository) CreateProvider(ctx context.Context, provider *domain.Provider) error {
	query := `INSERT INTO providers (id, price_text, price_audio, price_video, availability, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		provider.ID,
		provider.Prices.Text,
		provider.Prices.Audio,
		provider.Prices.Video,
		provider.Availability,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider %s: %w", provider.ID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create provider %s: %w", provider.ID, err)
	}
	return nil
}

// GetProvider retrieves a provider profile with its current availability.
func (r *ProfileRepository) GetProvider(ctx context.Context, id string) (*domain.Provider, error) {
	var row providerRow
	query := `SELECT p.id, a.display_name, p.price_text, p.price_audio, p.price_video, p.availability
              FROM providers p JOIN accounts a ON a.id = p.id
              WHERE p.id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrProviderNotFound
		}
		return nil, fmt.Errorf("failed to get provider %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// GetAvailability returns a provider's availability.
func (r *ProfileRepository) GetAvailability(ctx context.Context, providerID string) (domain.Availability, error) {
	var availability string
	query := `SELECT availability FROM providers WHERE id = $1`
	if err := r.db.GetContext(ctx, &availability, query, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", util.ErrProviderNotFound
		}
		return "", fmt.Errorf("failed to get availability of provider %s: %w", providerID, err)
	}
	return domain.Availability(availability), nil
}

// CompareAndSetAvailability is a single conditional UPDATE, so two concurrent
// callers can never both observe a successful swap.
func (r *ProfileRepository) CompareAndSetAvailability(ctx context.Context, providerID string, from, to domain.Availability) (bool, error) {
	query := `UPDATE providers SET availability = $1, updated_at = $2 WHERE id = $3 AND availability = $4`
	result, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), providerID, from)
	if err != nil {
		return false, fmt.Errorf("failed to set availability of provider %s: %w", providerID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected for provider %s: %w", providerID, err)
	}
	return rowsAffected == 1, nil
}
