// Package broker defines the transport-neutral contracts for publishing
// order events and consuming them with explicit acknowledgement.
//
// Drivers live in subpackages: amqp for RabbitMQ-compatible brokers and kafka
// for Kafka. Both give at-least-once delivery; handlers must tolerate
// duplicates.
package broker

import (
	"context"
	"time"
)

// Message is a single broker message.
type Message struct {
	ID         string
	RoutingKey string
	Body       []byte
	Timestamp  time.Time
	// Attempt is the 1-based delivery attempt as far as the driver can tell.
	// It is zero on publish.
	Attempt int
}

// Publisher sends messages to the order exchange.
type Publisher interface {
	// Publish returns once the broker has accepted msg.
	Publish(ctx context.Context, routingKey string, msg Message) error
	Close() error
}

// Delivery is a received message awaiting settlement. Exactly one of Ack or
// Nack must be called.
type Delivery interface {
	Message() Message
	Ack(ctx context.Context) error
	// Nack settles the delivery negatively. With requeue the message is
	// delivered again later; without it the message is dead-lettered.
	Nack(ctx context.Context, requeue bool) error
}

// Source produces deliveries for one queue.
type Source interface {
	// Consume starts consuming. The returned channel is closed when ctx is
	// done or the underlying connection fails.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// Handler processes one message. A nil error acks the message and any other
// error requeues it. Drivers bound redelivery and dead-letter what exceeds it.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
