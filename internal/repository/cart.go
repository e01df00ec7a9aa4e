package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/cryptocop/internal/domain/cart"
)

const (
	cartLineColumns = `l.id, l.product_identifier, l.quantity, l.unit_price`

	listCartLinesSQL = `SELECT ` + cartLineColumns + `
	FROM cart_lines l
	JOIN carts c ON c.id = l.cart_id
	WHERE c.user_id = $1
	ORDER BY l.id`

	// The cart row is created on first use. A repeated product adds to the
	// existing quantity and keeps the price it was first quoted at.
	addCartLineSQL = `WITH cart AS (
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	)
	INSERT INTO cart_lines AS l (cart_id, product_identifier, quantity, unit_price)
	SELECT cart.id, $2, $3, $4 FROM cart
	ON CONFLICT (cart_id, product_identifier)
	DO UPDATE SET quantity = l.quantity + EXCLUDED.quantity
	RETURNING ` + cartLineColumns

	updateCartLineSQL = `UPDATE cart_lines l SET quantity = $3
	FROM carts c
	WHERE c.id = l.cart_id AND c.user_id = $1 AND l.id = $2`

	removeCartLineSQL = `DELETE FROM cart_lines l
	USING carts c
	WHERE c.id = l.cart_id AND c.user_id = $1 AND l.id = $2`

	clearCartSQL = `DELETE FROM cart_lines l
	USING carts c
	WHERE c.id = l.cart_id AND c.user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) Lines(ctx context.Context, userID int64) ([]cart.Line, error) {
	return cartLines(ctx, r.pool, listCartLinesSQL, userID)
}

func (r *CartRepository) AddLine(ctx context.Context, userID int64, line cart.Line) (*cart.Line, error) {
	var l cart.Line
	err := r.pool.QueryRow(ctx, addCartLineSQL,
		userID, line.ProductIdentifier, line.Quantity, line.UnitPrice,
	).Scan(&l.ID, &l.ProductIdentifier, &l.Quantity, &l.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("adding cart line: %w", err)
	}
	return &l, nil
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, lineID int64, quantity decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, updateCartLineSQL, userID, lineID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart line %d: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

func (r *CartRepository) RemoveLine(ctx context.Context, userID, lineID int64) error {
	tag, err := r.pool.Exec(ctx, removeCartLineSQL, userID, lineID)
	if err != nil {
		return fmt.Errorf("removing cart line %d: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	return clearCart(ctx, r.pool, userID)
}

func clearCart(ctx context.Context, q querier, userID int64) error {
	if _, err := q.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func cartLines(ctx context.Context, q querier, sql string, arg int64) ([]cart.Line, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]cart.Line, 0)
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ID, &l.ProductIdentifier, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart lines: %w", err)
	}
	return lines, nil
}
