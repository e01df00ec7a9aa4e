// Package validation checks the payment card of every completed order and
// records the outcome. It never changes the order.
package validation

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/broker"
	"github.com/xenking/cryptocop/internal/domain/card"
	"github.com/xenking/cryptocop/internal/event"
)

// Result is the outcome of one card check.
type Result struct {
	OrderID   int64
	Brand     card.Brand
	Valid     bool
	CheckedAt time.Time
	Attempt   int
}

// Recorder stores results. Record must be idempotent per order.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// LogRecorder writes results to the context logger.
type LogRecorder struct{}

// Record implements Recorder.
func (LogRecorder) Record(ctx context.Context, r Result) error {
	lg := zctx.From(ctx).With(
		zap.Int64("order_id", r.OrderID),
		zap.String("brand", string(r.Brand)),
		zap.Bool("valid", r.Valid),
	)
	if r.Valid {
		lg.Info("Payment card valid")
	} else {
		lg.Warn("Payment card invalid")
	}
	return nil
}

// Recorders records to every recorder in order.
type Recorders []Recorder

// Record implements Recorder.
func (rs Recorders) Record(ctx context.Context, r Result) error {
	var err error
	for _, rec := range rs {
		err = multierr.Append(err, rec.Record(ctx, r))
	}
	return err
}

var _ broker.Handler = (*Handler)(nil)

// Handler validates the card carried by order-completed messages.
type Handler struct {
	recorder Recorder
	now      func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(recorder Recorder) *Handler {
	return &Handler{recorder: recorder, now: time.Now}
}

// Handle implements broker.Handler.
func (h *Handler) Handle(ctx context.Context, msg broker.Message) error {
	e, err := event.Decode(msg.Body)
	if err != nil {
		return errors.Wrap(err, "decode")
	}

	res := card.Check(e.CreditCard)
	r := Result{
		OrderID:   e.OrderID,
		Brand:     res.Brand,
		Valid:     res.Valid,
		CheckedAt: h.now().UTC(),
		Attempt:   msg.Attempt,
	}
	if err := h.recorder.Record(ctx, r); err != nil {
		return errors.Wrap(err, "record result")
	}
	return nil
}
