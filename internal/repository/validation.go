package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cryptocop/internal/validation"
)

// Redeliveries overwrite the outcome and count how often it was seen.
const recordValidationSQL = `INSERT INTO card_validations (order_id, brand, valid, checked_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (order_id) DO UPDATE SET
	brand = EXCLUDED.brand,
	valid = EXCLUDED.valid,
	checked_at = EXCLUDED.checked_at,
	deliveries = card_validations.deliveries + 1`

var _ validation.Recorder = (*ValidationRepository)(nil)

// ValidationRepository stores card validation results.
type ValidationRepository struct {
	pool *pgxpool.Pool
}

// NewValidationRepository returns a ValidationRepository that uses the
// given pool.
func NewValidationRepository(pool *pgxpool.Pool) *ValidationRepository {
	return &ValidationRepository{pool: pool}
}

// Record upserts the result for its order.
func (r *ValidationRepository) Record(ctx context.Context, res validation.Result) error {
	_, err := r.pool.Exec(ctx, recordValidationSQL, res.OrderID, string(res.Brand), res.Valid, res.CheckedAt)
	if err != nil {
		return fmt.Errorf("recording validation of order %d: %w", res.OrderID, err)
	}
	return nil
}
