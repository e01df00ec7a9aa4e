package profile

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Service validates and stores profile records.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a profile Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// AddAddress stores a new address for userID.
func (s *Service) AddAddress(ctx context.Context, userID int64, a Address) (*Address, error) {
	a.UserID = userID
	a.StreetName = strings.TrimSpace(a.StreetName)
	a.HouseNumber = strings.TrimSpace(a.HouseNumber)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Country = strings.TrimSpace(a.Country)
	a.City = strings.TrimSpace(a.City)

	if err := Validate(&a); err != nil {
		return nil, err
	}

	if err := s.repo.CreateAddress(ctx, &a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return &a, nil
}

// Addresses lists the addresses of userID.
func (s *Service) Addresses(ctx context.Context, userID int64) ([]Address, error) {
	list, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return list, nil
}

// DeleteAddress removes an address. Orders keep their own snapshot, so
// deleting never affects order history.
func (s *Service) DeleteAddress(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteAddress(ctx, userID, id); err != nil {
		return errors.Wrap(err, "delete address")
	}
	return nil
}

// AddPaymentCard stores a payment card for userID and returns it masked.
func (s *Service) AddPaymentCard(ctx context.Context, userID int64, c PaymentCard) (*PaymentCard, error) {
	c.UserID = userID
	c.CardholderName = strings.TrimSpace(c.CardholderName)
	c.CardType = strings.TrimSpace(c.CardType)

	c.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(c.CardNumber)
	if c.Year >= 0 && c.Year < 100 {
		c.Year += 2000
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	if c.Year < s.now().Year() {
		return nil, &InvalidFieldError{Field: "year", Reason: "card has expired"}
	}

	if err := s.repo.CreatePaymentCard(ctx, &c); err != nil {
		return nil, errors.Wrap(err, "create payment card")
	}
	masked := c.Masked()
	return &masked, nil
}

// PaymentCards lists the stored cards of userID with masked numbers.
func (s *Service) PaymentCards(ctx context.Context, userID int64) ([]PaymentCard, error) {
	list, err := s.repo.ListPaymentCards(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list payment cards")
	}
	for i := range list {
		list[i] = list[i].Masked()
	}
	return list, nil
}
