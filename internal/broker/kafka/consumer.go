package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/broker"
)

var _ broker.Source = (*Consumer)(nil)

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the exchange topic as consumer group queue and yields
// records whose routing key matches bindingKey.
type Consumer struct {
	cfg        Config
	queue      string
	bindingKey string

	newReader func() fetcher
	newDead   func() writer

	mu     sync.Mutex
	reader fetcher
	dead   writer
}

// NewConsumer creates a Consumer. Connections are opened on Consume.
func NewConsumer(cfg Config, queue, bindingKey string) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		cfg:        cfg,
		queue:      queue,
		bindingKey: bindingKey,
		newReader: func() fetcher {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.Brokers,
				Topic:    cfg.Topic,
				GroupID:  queue,
				MinBytes: 1,
				MaxBytes: 1e6,
			})
		},
		newDead: func() writer {
			return newWriter(cfg.Brokers, cfg.Topic+".dead")
		},
	}
}

func (c *Consumer) clients() (fetcher, writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == nil {
		c.reader = c.newReader()
	}
	if c.dead == nil {
		c.dead = c.newDead()
	}
	return c.reader, c.dead
}

// Consume implements broker.Source. Each record is offered until it is
// acked, rejected or exhausts the delivery limit; the next record is not
// fetched before that.
func (c *Consumer) Consume(ctx context.Context) (<-chan broker.Delivery, error) {
	r, dead := c.clients()
	out := make(chan broker.Delivery)

	go func() {
		defer close(out)
		lg := zctx.From(ctx)
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					lg.Warn("Fetch failed", zap.Error(err))
					c.resetReader(r)
				}
				return
			}
			if header(m, HeaderRoutingKey) != c.bindingKey {
				if err := r.CommitMessages(ctx, m); err != nil {
					lg.Warn("Commit skipped record", zap.Error(err))
				}
				continue
			}
			if !c.offer(ctx, out, r, dead, m) {
				return
			}
		}
	}()
	return out, nil
}

// offer delivers m until it is settled. It returns false when ctx ends
// first; the record stays uncommitted and the group redelivers it.
func (c *Consumer) offer(ctx context.Context, out chan<- broker.Delivery, r fetcher, dead writer, m kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		d := &delivery{
			r:       r,
			dead:    dead,
			m:       m,
			attempt: attempt,
			settled: make(chan bool, 1),
		}
		select {
		case out <- d:
		case <-ctx.Done():
			return false
		}

		if requeue := <-d.settled; !requeue {
			return true
		}
		if attempt >= c.cfg.DeliveryLimit {
			// Settlement must survive shutdown.
			sctx := context.WithoutCancel(ctx)
			if err := deadLetter(sctx, dead, m, "delivery limit reached"); err != nil {
				zctx.From(ctx).Error("Dead-letter record", zap.Error(err))
				c.resetReader(r)
				return false
			}
			if err := r.CommitMessages(sctx, m); err != nil {
				zctx.From(ctx).Error("Commit dead-lettered record", zap.Error(err))
			}
			return true
		}

		select {
		case <-time.After(backoff(c.cfg.RetryBackoff, attempt)):
		case <-ctx.Done():
			return false
		}
	}
}

func (c *Consumer) resetReader(r fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == r {
		_ = r.Close()
		c.reader = nil
	}
}

// Close closes the reader and the dead-letter writer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.reader != nil {
		err = c.reader.Close()
		c.reader = nil
	}
	if c.dead != nil {
		if werr := c.dead.Close(); werr != nil && err == nil {
			err = werr
		}
		c.dead = nil
	}
	return err
}

func deadLetter(ctx context.Context, w writer, m kafka.Message, reason string) error {
	headers := append([]kafka.Header(nil), m.Headers...)
	headers = append(headers, kafka.Header{Key: HeaderReason, Value: []byte(reason)})
	if err := w.WriteMessages(ctx, kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Time:    m.Time,
		Headers: headers,
	}); err != nil {
		return errors.Wrap(err, "write dead letter")
	}
	return nil
}

type delivery struct {
	r       fetcher
	dead    writer
	m       kafka.Message
	attempt int
	settled chan bool
}

func (d *delivery) Message() broker.Message {
	return broker.Message{
		ID:         header(d.m, HeaderMessageID),
		RoutingKey: header(d.m, HeaderRoutingKey),
		Body:       d.m.Value,
		Timestamp:  d.m.Time,
		Attempt:    d.attempt,
	}
}

func (d *delivery) Ack(ctx context.Context) error {
	defer func() { d.settled <- false }()
	return d.r.CommitMessages(ctx, d.m)
}

func (d *delivery) Nack(ctx context.Context, requeue bool) error {
	if requeue {
		d.settled <- true
		return nil
	}
	if err := deadLetter(ctx, d.dead, d.m, "rejected"); err != nil {
		d.settled <- true
		return err
	}
	defer func() { d.settled <- false }()
	return d.r.CommitMessages(ctx, d.m)
}
