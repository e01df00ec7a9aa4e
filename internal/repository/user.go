package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/profile"
)

const (
	createUserSQL = `INSERT INTO users (email, full_name, password_hash)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

	userColumns = `id, email, full_name, password_hash, created_at`

	userByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	userByIDSQL    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
)

var _ auth.UserStore = (*UserRepository)(nil)

// UserRepository implements auth.UserStore backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts u and fills in its ID and creation time.
func (r *UserRepository) CreateUser(ctx context.Context, u *profile.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL, u.Email, u.FullName, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return auth.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// UserByEmail looks up a user by email.
func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*profile.User, error) {
	return scanUser(r.pool.QueryRow(ctx, userByEmailSQL, email))
}

func scanUser(row pgx.Row) (*profile.User, error) {
	var u profile.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}
