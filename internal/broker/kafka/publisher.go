package kafka

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/cryptocop/internal/broker"
)

var _ broker.Publisher = (*Publisher)(nil)

// Publisher writes messages to the exchange topic, keyed by message id.
type Publisher struct {
	cfg Config

	mu sync.Mutex
	w  *kafka.Writer
}

// NewPublisher creates a Publisher. The writer is created on first publish.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{cfg: cfg.withDefaults()}
}

func (p *Publisher) writer() *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		p.w = newWriter(p.cfg.Brokers, p.cfg.Topic)
	}
	return p.w
}

// Publish implements broker.Publisher. It returns after all in-sync replicas
// have acknowledged the record.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg broker.Message) error {
	err := p.writer().WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: msg.Body,
		Time:  msg.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderRoutingKey, Value: []byte(routingKey)},
			{Key: HeaderMessageID, Value: []byte(msg.ID)},
		},
	})
	if err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}
