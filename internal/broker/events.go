package broker

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/cryptocop/internal/event"
)

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 5 * time.Second

// OrderEvents publishes order-completed events through a Publisher.
type OrderEvents struct {
	pub     Publisher
	timeout time.Duration
	now     func() time.Time
}

// NewOrderEvents creates an OrderEvents. A non-positive timeout selects
// DefaultPublishTimeout.
func NewOrderEvents(pub Publisher, timeout time.Duration) *OrderEvents {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &OrderEvents{pub: pub, timeout: timeout, now: time.Now}
}

// PublishOrderCompleted encodes e and publishes it under the order-created
// routing key.
func (p *OrderEvents) PublishOrderCompleted(ctx context.Context, e *event.OrderCompleted) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := Message{
		ID:         e.MessageID(),
		RoutingKey: event.RoutingOrderCreated,
		Body:       event.Encode(e),
		Timestamp:  p.now().UTC(),
	}
	if err := p.pub.Publish(ctx, event.RoutingOrderCreated, msg); err != nil {
		return errors.Wrapf(err, "publish %s", msg.ID)
	}
	return nil
}
