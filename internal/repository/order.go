package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cryptocop/internal/domain/cart"
	"github.com/xenking/cryptocop/internal/domain/order"
	"github.com/xenking/cryptocop/internal/domain/profile"
)

const (
	// Locking the cart row serializes concurrent checkouts and cart writes
	// of the same user until the transaction ends.
	lockCartSQL = `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`

	lockedCartLinesSQL = `SELECT l.id, l.product_identifier, l.quantity, l.unit_price
	FROM cart_lines l
	WHERE l.cart_id = $1
	ORDER BY l.id`

	insertOrderSQL = `INSERT INTO orders (
		user_id, email, full_name, street_name, house_number, zip_code, country, city,
		cardholder_name, masked_card_number, payment_card_id, order_date, total_price
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, position, product_identifier, quantity, unit_price, total_price)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	orderColumns = `id, user_id, email, full_name, street_name, house_number, zip_code, country, city,
	cardholder_name, masked_card_number, payment_card_id, order_date, total_price`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE user_id = $1
	ORDER BY order_date DESC, id DESC`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	orderLinesSQL = `SELECT order_id, id, product_identifier, quantity, unit_price, total_price
	FROM order_lines
	WHERE order_id = ANY($1)
	ORDER BY order_id, position`
)

var _ order.Store = (*OrderRepository)(nil)

// OrderRepository implements order.Store backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// InTx runs fn inside a read committed transaction.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

func (r *OrderRepository) List(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	orders := make([]order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	rows.Close()

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		return nil, err
	}
	orders := []order.Order{*o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) CardNumber(ctx context.Context, userID, paymentCardID int64) (string, error) {
	var number string
	err := r.pool.QueryRow(ctx, cardNumberSQL, paymentCardID, userID).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", profile.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying card number: %w", err)
	}
	return number, nil
}

// attachLines loads the lines of all orders in one query.
func (r *OrderRepository) attachLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Lines = make([]order.Line, 0)
	}

	rows, err := r.pool.Query(ctx, orderLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("querying order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ID, &l.ProductIdentifier, &l.Quantity, &l.UnitPrice, &l.TotalPrice); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating order lines: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Email, &o.FullName,
		&o.StreetName, &o.HouseNumber, &o.ZipCode, &o.Country, &o.City,
		&o.CardholderName, &o.MaskedCardNumber, &o.PaymentCardID,
		&o.OrderDate, &o.Total,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	o.OrderDate = o.OrderDate.UTC()
	return &o, nil
}

var _ order.Tx = (*orderTx)(nil)

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) User(ctx context.Context, userID int64) (*profile.User, error) {
	return scanUser(t.tx.QueryRow(ctx, userByIDSQL, userID))
}

func (t *orderTx) Address(ctx context.Context, userID, id int64) (*profile.Address, error) {
	return scanAddress(t.tx.QueryRow(ctx, addressSQL, id, userID))
}

func (t *orderTx) PaymentCard(ctx context.Context, userID, id int64) (*profile.PaymentCard, error) {
	return scanPaymentCard(t.tx.QueryRow(ctx, paymentCardSQL, id, userID))
}

func (t *orderTx) LockCart(ctx context.Context, userID int64) ([]cart.Line, error) {
	var cartID int64
	err := t.tx.QueryRow(ctx, lockCartSQL, userID).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking cart: %w", err)
	}
	return cartLines(ctx, t.tx, lockedCartLinesSQL, cartID)
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.UserID, o.Email, o.FullName,
		o.StreetName, o.HouseNumber, o.ZipCode, o.Country, o.City,
		o.CardholderName, o.MaskedCardNumber, o.PaymentCardID,
		o.OrderDate, o.Total,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(insertOrderLineSQL, o.ID, i, l.ProductIdentifier, l.Quantity, l.UnitPrice, l.TotalPrice)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := range o.Lines {
		if err := br.QueryRow().Scan(&o.Lines[i].ID); err != nil {
			return fmt.Errorf("inserting order line %d: %w", i, err)
		}
	}
	return br.Close()
}

func (t *orderTx) ClearCart(ctx context.Context, userID int64) error {
	return clearCart(ctx, t.tx, userID)
}
