package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cryptocop/internal/domain/auth"
)

const (
	issueCredentialSQL = `INSERT INTO credentials (user_id) VALUES ($1) RETURNING id`

	// revoked only ever moves from false to true.
	revokeCredentialSQL = `UPDATE credentials
	SET revoked = TRUE, revoked_at = COALESCE(revoked_at, now())
	WHERE id = $1`

	isRevokedSQL = `SELECT revoked FROM credentials WHERE id = $1`
)

var _ auth.CredentialStore = (*CredentialRepository)(nil)

// CredentialRepository implements auth.CredentialStore backed by PostgreSQL.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository returns a CredentialRepository that uses the given
// pool.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Issue inserts a fresh credential for userID.
func (r *CredentialRepository) Issue(ctx context.Context, userID int64) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, issueCredentialSQL, userID).Scan(&id); err != nil {
		return 0, fmt.Errorf("issuing credential for user %d: %w", userID, err)
	}
	return id, nil
}

// Revoke marks id revoked. Unknown ids are ignored.
func (r *CredentialRepository) Revoke(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, revokeCredentialSQL, id); err != nil {
		return fmt.Errorf("revoking credential %d: %w", id, err)
	}
	return nil
}

// IsRevoked is a single primary key lookup. Unknown ids are not revoked.
func (r *CredentialRepository) IsRevoked(ctx context.Context, id int64) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx, isRevokedSQL, id).Scan(&revoked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking credential %d: %w", id, err)
	}
	return revoked, nil
}
