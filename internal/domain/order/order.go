// Package order turns a user's cart into a committed, priced order and
// announces it to downstream consumers.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cryptocop/internal/domain/cart"
	"github.com/xenking/cryptocop/internal/domain/profile"
	"github.com/xenking/cryptocop/internal/event"
)

// ErrEmptyCart is returned when checkout finds no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrNotFound is returned by order lookups.
var ErrNotFound = errors.New("order not found")

// NotFoundError reports which checkout precondition failed to resolve.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// Order is an immutable snapshot of a completed checkout.
type Order struct {
	ID               int64
	UserID           int64
	Email            string
	FullName         string
	StreetName       string
	HouseNumber      string
	ZipCode          string
	Country          string
	City             string
	CardholderName   string
	MaskedCardNumber string
	// PaymentCardID references the card used, while it still exists.
	PaymentCardID *int64
	OrderDate     time.Time
	Total         decimal.Decimal
	Lines         []Line
}

// Line is one priced order line.
type Line struct {
	ID                int64
	ProductIdentifier string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	TotalPrice        decimal.Decimal
}

// CheckoutRequest selects the address and payment card to use.
type CheckoutRequest struct {
	AddressID     int64
	PaymentCardID int64
}

// Tx is the set of operations checkout runs inside one transaction. Lookups
// are owner scoped and return profile.ErrNotFound when nothing matches.
type Tx interface {
	User(ctx context.Context, userID int64) (*profile.User, error)
	Address(ctx context.Context, userID, id int64) (*profile.Address, error)
	PaymentCard(ctx context.Context, userID, id int64) (*profile.PaymentCard, error)
	// LockCart locks the cart of userID until the transaction ends and
	// returns its lines. A missing cart yields no lines.
	LockCart(ctx context.Context, userID int64) ([]cart.Line, error)
	// InsertOrder stores o with its lines and sets their IDs.
	InsertOrder(ctx context.Context, o *Order) error
	ClearCart(ctx context.Context, userID int64) error
}

// Store persists orders.
type Store interface {
	// InTx runs fn in a transaction that commits only when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// List returns the orders of userID with lines, newest first.
	List(ctx context.Context, userID int64) ([]Order, error)
	// Get returns an order by id or ErrNotFound.
	Get(ctx context.Context, id int64) (*Order, error)
	// CardNumber returns the stored number of a payment card, or
	// profile.ErrNotFound once the card is gone.
	CardNumber(ctx context.Context, userID, paymentCardID int64) (string, error)
}

// Publisher announces committed orders.
type Publisher interface {
	PublishOrderCompleted(ctx context.Context, e *event.OrderCompleted) error
}

// Event builds the order-completed payload. cardNumber is the unmasked
// number of the card used.
func (o *Order) Event(cardNumber string) *event.OrderCompleted {
	items := make([]event.Item, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = event.Item{
			ProductIdentifier: l.ProductIdentifier,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
			TotalPrice:        l.TotalPrice,
		}
	}
	addr := profile.Address{StreetName: o.StreetName, HouseNumber: o.HouseNumber}
	return &event.OrderCompleted{
		OrderID:        o.ID,
		Email:          o.Email,
		FullName:       o.FullName,
		Address:        addr.Line(),
		City:           o.City,
		ZipCode:        o.ZipCode,
		Country:        o.Country,
		CardholderName: o.CardholderName,
		CreditCard:     cardNumber,
		TotalPrice:     o.Total,
		OrderDate:      o.OrderDate,
		Items:          items,
	}
}
