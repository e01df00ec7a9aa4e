package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cryptocop/internal/domain/profile"
)

const (
	createAddressSQL = `INSERT INTO addresses (user_id, street_name, house_number, zip_code, country, city)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	addressColumns = `id, user_id, street_name, house_number, zip_code, country, city`

	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY id`
	addressSQL       = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`
	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND user_id = $2`

	createPaymentCardSQL = `INSERT INTO payment_cards (user_id, cardholder_name, card_number, card_type, month, year)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	paymentCardColumns = `id, user_id, cardholder_name, card_number, card_type, month, year`

	listPaymentCardsSQL = `SELECT ` + paymentCardColumns + ` FROM payment_cards WHERE user_id = $1 ORDER BY id`
	paymentCardSQL      = `SELECT ` + paymentCardColumns + ` FROM payment_cards WHERE id = $1 AND user_id = $2`
	cardNumberSQL       = `SELECT card_number FROM payment_cards WHERE id = $1 AND user_id = $2`
)

var _ profile.Repository = (*ProfileRepository)(nil)

// ProfileRepository implements profile.Repository backed by PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a ProfileRepository that uses the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) CreateAddress(ctx context.Context, a *profile.Address) error {
	err := r.pool.QueryRow(ctx, createAddressSQL,
		a.UserID, a.StreetName, a.HouseNumber, a.ZipCode, a.Country, a.City,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("creating address: %w", err)
	}
	return nil
}

func (r *ProfileRepository) ListAddresses(ctx context.Context, userID int64) ([]profile.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("querying addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]profile.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating addresses: %w", err)
	}
	return addresses, nil
}

// DeleteAddress removes an address owned by userID. Orders keep their own
// snapshot and are unaffected.
func (r *ProfileRepository) DeleteAddress(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteAddressSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting address %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) CreatePaymentCard(ctx context.Context, c *profile.PaymentCard) error {
	err := r.pool.QueryRow(ctx, createPaymentCardSQL,
		c.UserID, c.CardholderName, c.CardNumber, c.CardType, c.Month, c.Year,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("creating payment card: %w", err)
	}
	return nil
}

// ListPaymentCards returns stored cards unmasked. Masking is the caller's job.
func (r *ProfileRepository) ListPaymentCards(ctx context.Context, userID int64) ([]profile.PaymentCard, error) {
	rows, err := r.pool.Query(ctx, listPaymentCardsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("querying payment cards: %w", err)
	}
	defer rows.Close()

	cards := make([]profile.PaymentCard, 0)
	for rows.Next() {
		c, err := scanPaymentCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment cards: %w", err)
	}
	return cards, nil
}

func scanAddress(row pgx.Row) (*profile.Address, error) {
	var a profile.Address
	err := row.Scan(&a.ID, &a.UserID, &a.StreetName, &a.HouseNumber, &a.ZipCode, &a.Country, &a.City)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning address: %w", err)
	}
	return &a, nil
}

func scanPaymentCard(row pgx.Row) (*profile.PaymentCard, error) {
	var c profile.PaymentCard
	err := row.Scan(&c.ID, &c.UserID, &c.CardholderName, &c.CardNumber, &c.CardType, &c.Month, &c.Year)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning payment card: %w", err)
	}
	return &c, nil
}
