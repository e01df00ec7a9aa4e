// Package profile holds the account-owned records a checkout draws from:
// the user, their shipping addresses and their stored payment cards.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/cryptocop/internal/domain/card"
)

// ErrNotFound is returned when a record does not exist or belongs to another
// user.
var ErrNotFound = errors.New("not found")

// InvalidFieldError reports a missing or malformed input field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// User is a registered account.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
}

// Address is a shipping address owned by a user.
type Address struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"-"`
	StreetName  string `json:"streetName" validate:"required"`
	HouseNumber string `json:"houseNumber" validate:"required"`
	ZipCode     string `json:"zipCode" validate:"required"`
	Country     string `json:"country" validate:"required"`
	City        string `json:"city" validate:"required"`
}

// Line returns the single-line street form used in notifications.
func (a *Address) Line() string {
	return strings.TrimSpace(a.StreetName + " " + a.HouseNumber)
}

// PaymentCard is a stored payment card. CardNumber is kept as entered; it is
// masked on every read path except the order-completed event.
type PaymentCard struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"-"`
	CardholderName string `json:"cardholderName" validate:"required"`
	CardNumber     string `json:"cardNumber" validate:"required,numeric,min=12,max=19"`
	CardType       string `json:"cardType"`
	Month          int    `json:"month" validate:"min=1,max=12"`
	Year           int    `json:"year" validate:"min=2000"`
}

// Masked returns a copy of c with the card number masked.
func (c PaymentCard) Masked() PaymentCard {
	c.CardNumber = card.Mask(c.CardNumber)
	return c
}

// Repository persists addresses and payment cards. Every lookup is scoped by
// owner.
type Repository interface {
	CreateAddress(ctx context.Context, a *Address) error
	ListAddresses(ctx context.Context, userID int64) ([]Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
	CreatePaymentCard(ctx context.Context, c *PaymentCard) error
	ListPaymentCards(ctx context.Context, userID int64) ([]PaymentCard, error)
}
