package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cryptocop/internal/broker"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		m := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func record(offset int64, id, routingKey string) kafka.Message {
	return kafka.Message{
		Offset: offset,
		Key:    []byte(id),
		Value:  []byte(`{}`),
		Headers: []kafka.Header{
			{Key: HeaderRoutingKey, Value: []byte(routingKey)},
			{Key: HeaderMessageID, Value: []byte(id)},
		},
	}
}

func newTestConsumer(r *fakeReader, w *fakeWriter, limit int) *Consumer {
	c := NewConsumer(Config{DeliveryLimit: limit, RetryBackoff: time.Millisecond}, "email-queue", "create-order")
	c.newReader = func() fetcher { return r }
	c.newDead = func() writer { return w }
	return c
}

func next(t *testing.T, ch <-chan broker.Delivery) broker.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "channel closed")
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
		return nil
	}
}

func TestConsumer_RetryInPlaceThenAck(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{
		record(0, "order-1", "other-key"),
		record(1, "order-2", "create-order"),
	}}
	c := newTestConsumer(r, &fakeWriter{}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.Consume(ctx)
	require.NoError(t, err)

	d := next(t, ch)
	assert.Equal(t, "order-2", d.Message().ID)
	assert.Equal(t, 1, d.Message().Attempt)
	require.NoError(t, d.Nack(ctx, true))

	d = next(t, ch)
	assert.Equal(t, "order-2", d.Message().ID)
	assert.Equal(t, 2, d.Message().Attempt)
	require.NoError(t, d.Ack(ctx))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int64{0, 1}, r.commits())
	}, time.Second, time.Millisecond)
}

func TestConsumer_RejectDeadLetters(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{record(7, "order-3", "create-order")}}
	w := &fakeWriter{}
	c := newTestConsumer(r, w, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, next(t, ch).Nack(ctx, false))

	assert.Equal(t, []int64{7}, r.commits())
	require.Len(t, w.written, 1)
	assert.Equal(t, "rejected", header(w.written[0], HeaderReason))
}

func TestConsumer_DeliveryLimit(t *testing.T) {
	r := &fakeReader{pending: []kafka.Message{record(3, "order-4", "create-order")}}
	w := &fakeWriter{}
	c := newTestConsumer(r, w, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := c.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, next(t, ch).Nack(ctx, true))
	require.NoError(t, next(t, ch).Nack(ctx, true))

	assert.Eventually(t, func() bool {
		return len(r.commits()) == 1
	}, time.Second, time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.written, 1)
	assert.Equal(t, "delivery limit reached", header(w.written[0], HeaderReason))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoff(100*time.Millisecond, 1))
	assert.Equal(t, 400*time.Millisecond, backoff(100*time.Millisecond, 3))
	assert.Equal(t, 30*time.Second, backoff(time.Second, 10))
}
