package amqp

import (
	"context"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/cryptocop/internal/broker"
)

var _ broker.Publisher = (*Publisher)(nil)

// Publisher publishes persistent JSON messages and waits for the broker
// confirm.
type Publisher struct {
	session  *Session
	exchange string
}

// NewPublisher creates a Publisher on session.
func NewPublisher(session *Session) *Publisher {
	return &Publisher{session: session, exchange: session.cfg.Exchange}
}

// Publish implements broker.Publisher.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg broker.Message) error {
	ch, err := p.session.Channel(ctx)
	if err != nil {
		return errors.Wrap(err, "channel")
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	})
	if err != nil {
		return errors.Wrap(err, "publish")
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.Wrap(err, "wait confirm")
	}
	if !acked {
		return errors.New("broker nacked message")
	}
	return nil
}

// Close closes the underlying session.
func (p *Publisher) Close() error {
	return p.session.Close()
}
