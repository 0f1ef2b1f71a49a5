package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nutritrack-signaling/internal/domain"
)

// UserRepository resolves caller identities from the dashboard's admins table.
// The table is owned by the dashboard and is only read here.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetIdentity returns the display identity of userID
func (r *UserRepository) GetIdentity(ctx context.Context, userID uuid.UUID) (*domain.Identity, error) {
	query := `
		SELECT id, COALESCE(NULLIF(full_name, ''), email)
		FROM admins
		WHERE id = $1
	`

	identity := &domain.Identity{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&identity.UserID, &identity.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return identity, nil
}
