// Package cart manages the per-user shopping cart that checkout consumes.
package cart

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MinQuantity is the smallest quantity a cart line may hold.
var MinQuantity = decimal.RequireFromString("0.01")

// Sentinel errors for cart operations.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 0.01")
	ErrInvalidProduct  = errors.New("product identifier required")
	ErrLineNotFound    = errors.New("cart line not found")
)

// Line is one product position in a cart. UnitPrice is captured when the
// line is first created.
type Line struct {
	ID                int64
	ProductIdentifier string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
}

// Total is the line total. It is never stored.
func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Total sums the line totals.
func Total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Repository persists cart lines. The cart itself is created on first add
// and is never deleted.
type Repository interface {
	Lines(ctx context.Context, userID int64) ([]Line, error)
	// AddLine inserts a line or, when the product is already in the cart,
	// adds to its quantity and keeps the existing unit price.
	AddLine(ctx context.Context, userID int64, line Line) (*Line, error)
	UpdateQuantity(ctx context.Context, userID, lineID int64, quantity decimal.Decimal) error
	RemoveLine(ctx context.Context, userID, lineID int64) error
	Clear(ctx context.Context, userID int64) error
}

// PriceSource quotes the current unit price of a product.
type PriceSource interface {
	Quote(ctx context.Context, productIdentifier string) (decimal.Decimal, error)
}

// Service implements cart operations.
type Service struct {
	repo   Repository
	prices PriceSource
}

// NewService creates a cart Service.
func NewService(repo Repository, prices PriceSource) *Service {
	return &Service{repo: repo, prices: prices}
}

func validQuantity(q decimal.Decimal) bool {
	return q.GreaterThanOrEqual(MinQuantity)
}

// NormalizeProduct upper-cases and trims a product identifier.
func NormalizeProduct(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Add puts quantity of product into the cart of userID at the current quote.
func (s *Service) Add(ctx context.Context, userID int64, product string, quantity decimal.Decimal) (*Line, error) {
	product = NormalizeProduct(product)
	if product == "" {
		return nil, ErrInvalidProduct
	}
	if !validQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	price, err := s.prices.Quote(ctx, product)
	if err != nil {
		return nil, errors.Wrapf(err, "quote %s", product)
	}

	line, err := s.repo.AddLine(ctx, userID, Line{
		ProductIdentifier: product,
		Quantity:          quantity,
		UnitPrice:         price,
	})
	if err != nil {
		return nil, errors.Wrap(err, "add line")
	}
	return line, nil
}

// Lines lists the cart of userID.
func (s *Service) Lines(ctx context.Context, userID int64) ([]Line, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list lines")
	}
	return lines, nil
}

// UpdateQuantity replaces the quantity of a line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, lineID int64, quantity decimal.Decimal) error {
	if !validQuantity(quantity) {
		return ErrInvalidQuantity
	}
	if err := s.repo.UpdateQuantity(ctx, userID, lineID, quantity); err != nil {
		return errors.Wrap(err, "update quantity")
	}
	return nil
}

// Remove deletes a line.
func (s *Service) Remove(ctx context.Context, userID, lineID int64) error {
	if err := s.repo.RemoveLine(ctx, userID, lineID); err != nil {
		return errors.Wrap(err, "remove line")
	}
	return nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
