package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/domain/card"
	"github.com/xenking/cryptocop/internal/domain/cart"
	"github.com/xenking/cryptocop/internal/domain/profile"
)

// Service implements checkout.
type Service struct {
	store     Store
	publisher Publisher
	now       func() time.Time

	tracer          trace.Tracer
	checkouts       metric.Int64Counter
	publishFailures metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithTelemetry records spans and counters with the given providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("cryptocop/order")
		meter := mp.Meter("cryptocop/order")
		if c, err := meter.Int64Counter("cryptocop.checkout.count",
			metric.WithDescription("Completed checkouts"),
		); err == nil {
			s.checkouts = c
		}
		if c, err := meter.Int64Counter("cryptocop.checkout.publish_failures",
			metric.WithDescription("Committed orders whose event could not be published"),
		); err == nil {
			s.publishFailures = c
		}
	}
}

// NewService creates an order Service.
func NewService(store Store, publisher Publisher, opts ...Option) *Service {
	meter := metricnoop.NewMeterProvider().Meter("")
	checkouts, _ := meter.Int64Counter("")
	failures, _ := meter.Int64Counter("")

	s := &Service{
		store:           store,
		publisher:       publisher,
		now:             time.Now,
		tracer:          tracenoop.NewTracerProvider().Tracer(""),
		checkouts:       checkouts,
		publishFailures: failures,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// checkoutSubject is everything authorize resolves for one checkout.
type checkoutSubject struct {
	user    *profile.User
	address *profile.Address
	card    *profile.PaymentCard
}

// authorize resolves the user, and the address and payment card owned by
// that user, in precondition order.
func authorize(ctx context.Context, tx Tx, userID int64, req CheckoutRequest) (*checkoutSubject, error) {
	user, err := tx.User(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	address, err := tx.Address(ctx, userID, req.AddressID)
	if err != nil {
		return nil, notFound(err, "address")
	}
	pc, err := tx.PaymentCard(ctx, userID, req.PaymentCardID)
	if err != nil {
		return nil, notFound(err, "payment card")
	}
	return &checkoutSubject{user: user, address: address, card: pc}, nil
}

func notFound(err error, resource string) error {
	if errors.Is(err, profile.ErrNotFound) {
		return &NotFoundError{Resource: resource}
	}
	return errors.Wrapf(err, "get %s", resource)
}

// Checkout converts the cart of userID into an order, clears the cart, and
// publishes the order-completed event once the transaction has committed.
// A publish failure is logged and does not fail the checkout.
func (s *Service) Checkout(ctx context.Context, userID int64, req CheckoutRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	var (
		o          *Order
		cardNumber string
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		subject, err := authorize(ctx, tx, userID, req)
		if err != nil {
			return err
		}

		lines, err := tx.LockCart(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		o = s.build(subject, lines)
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		cardNumber = subject.card.CardNumber
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.checkouts.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.publish(ctx, o, cardNumber)
	return o, nil
}

func (s *Service) build(subject *checkoutSubject, lines []cart.Line) *Order {
	o := &Order{
		UserID:           subject.user.ID,
		Email:            subject.user.Email,
		FullName:         subject.user.FullName,
		StreetName:       subject.address.StreetName,
		HouseNumber:      subject.address.HouseNumber,
		ZipCode:          subject.address.ZipCode,
		Country:          subject.address.Country,
		City:             subject.address.City,
		CardholderName:   subject.card.CardholderName,
		MaskedCardNumber: card.Mask(subject.card.CardNumber),
		PaymentCardID:    &subject.card.ID,
		OrderDate:        s.now().UTC(),
		Total:            decimal.Zero,
		Lines:            make([]Line, len(lines)),
	}
	for i, l := range lines {
		total := l.Quantity.Mul(l.UnitPrice)
		o.Lines[i] = Line{
			ProductIdentifier: l.ProductIdentifier,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
			TotalPrice:        total,
		}
		o.Total = o.Total.Add(total)
	}
	return o
}

func (s *Service) publish(ctx context.Context, o *Order, cardNumber string) {
	// The order is committed; a caller that went away must not suppress it.
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.PublishOrderCompleted(ctx, o.Event(cardNumber)); err != nil {
		s.publishFailures.Add(ctx, 1)
		zctx.From(ctx).Error("Publish order event",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// List returns the orders of userID, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Replay publishes the order-completed event of an already committed order
// again. The card number is re-read from the stored card; when that card has
// been deleted the masked number is sent and validation will flag it.
func (s *Service) Replay(ctx context.Context, orderID int64) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", orderID)
	}

	number := o.MaskedCardNumber
	if o.PaymentCardID != nil {
		n, err := s.store.CardNumber(ctx, o.UserID, *o.PaymentCardID)
		switch {
		case err == nil:
			number = n
		case errors.Is(err, profile.ErrNotFound):
		default:
			return nil, errors.Wrap(err, "get card number")
		}
	}

	if err := s.publisher.PublishOrderCompleted(ctx, o.Event(number)); err != nil {
		return nil, errors.Wrap(err, "publish")
	}
	return o, nil
}
