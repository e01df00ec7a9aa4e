package amqp

import (
	"context"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/cryptocop/internal/broker"
)

var _ broker.Source = (*Consumer)(nil)

// Consumer consumes one queue with manual acknowledgement.
type Consumer struct {
	session *Session
	queue   string
	tag     string
}

// NewConsumer creates a Consumer for queue. The queue must be listed in the
// session config so that it is declared.
func NewConsumer(session *Session, queue, tag string) *Consumer {
	return &Consumer{session: session, queue: queue, tag: tag}
}

// Consume implements broker.Source.
func (c *Consumer) Consume(ctx context.Context) (<-chan broker.Delivery, error) {
	ch, err := c.session.Channel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "channel")
	}
	in, err := ch.ConsumeWithContext(ctx, c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "consume %s", c.queue)
	}

	out := make(chan broker.Delivery)
	go func() {
		defer close(out)
		for d := range in {
			select {
			case out <- &delivery{d: d}:
			case <-ctx.Done():
				// Unsettled deliveries return to the queue when the channel
				// closes.
				return
			}
		}
	}()
	return out, nil
}

// Close closes the underlying session.
func (c *Consumer) Close() error {
	return c.session.Close()
}

type delivery struct {
	d amqp.Delivery
}

func (d *delivery) Message() broker.Message {
	return broker.Message{
		ID:         d.d.MessageId,
		RoutingKey: d.d.RoutingKey,
		Body:       d.d.Body,
		Timestamp:  d.d.Timestamp,
		Attempt:    attempt(d.d),
	}
}

func (d *delivery) Ack(context.Context) error {
	return d.d.Ack(false)
}

func (d *delivery) Nack(_ context.Context, requeue bool) error {
	return d.d.Nack(false, requeue)
}

// attempt derives the delivery attempt from the quorum queue delivery count,
// falling back to the redelivered flag.
func attempt(d amqp.Delivery) int {
	switch n := d.Headers["x-delivery-count"].(type) {
	case int64:
		return int(n) + 1
	case int32:
		return int(n) + 1
	case int:
		return n + 1
	}
	if d.Redelivered {
		return 2
	}
	return 1
}
