// Package kafka implements the broker contracts on Kafka.
//
// The exchange maps to a topic and each queue to a consumer group. Routing
// keys travel in a header and are matched by the consumer. Kafka has no
// per-message requeue, so a nacked record is retried in place with backoff
// and, once the delivery limit is reached or it is rejected, copied to
// "<topic>.dead" and committed.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"
)

// Record headers.
const (
	HeaderRoutingKey = "routing-key"
	HeaderMessageID  = "message-id"
	HeaderReason     = "dead-letter-reason"
)

// Config configures the Kafka driver.
type Config struct {
	Brokers       []string      `default:"localhost:9092"`
	Topic         string        `default:"cryptocop-exchange"`
	DeliveryLimit int           `default:"5"`
	RetryBackoff  time.Duration `default:"500ms"`
}

func (c Config) withDefaults() Config {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.DeliveryLimit <= 0 {
		c.DeliveryLimit = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// backoff doubles base per attempt up to a ceiling.
func backoff(base time.Duration, attempt int) time.Duration {
	const ceiling = 30 * time.Second
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

// Ping succeeds when any of brokers accepts a connection.
func Ping(ctx context.Context, brokers []string) error {
	var errs error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}
