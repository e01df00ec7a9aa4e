package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memQueue is a single-queue broker with requeue-on-nack semantics.
type memQueue struct {
	mu       sync.Mutex
	ch       chan Delivery
	acked    []string
	rejected []string
	requeued int
	consumes int
}

func newMemQueue() *memQueue {
	return &memQueue{ch: make(chan Delivery, 16)}
}

type memDelivery struct {
	q   *memQueue
	msg Message
}

func (d *memDelivery) Message() Message { return d.msg }

func (d *memDelivery) Ack(context.Context) error {
	d.q.mu.Lock()
	defer d.q.mu.Unlock()
	d.q.acked = append(d.q.acked, d.msg.ID)
	return nil
}

func (d *memDelivery) Nack(_ context.Context, requeue bool) error {
	d.q.mu.Lock()
	defer d.q.mu.Unlock()
	if !requeue {
		d.q.rejected = append(d.q.rejected, d.msg.ID)
		return nil
	}
	d.q.requeued++
	next := d.msg
	next.Attempt++
	d.q.ch <- &memDelivery{q: d.q, msg: next}
	return nil
}

func (q *memQueue) push(id string) {
	q.ch <- &memDelivery{q: q, msg: Message{ID: id, Attempt: 1}}
}

func (q *memQueue) Consume(context.Context) (<-chan Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumes++
	return q.ch, nil
}

func (q *memQueue) Close() error { return nil }

func (q *memQueue) snapshot() (acked, rejected []string, requeued int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...), append([]string(nil), q.rejected...), q.requeued
}

func TestRunner_RedeliversUntilAck(t *testing.T) {
	q := newMemQueue()
	var attempts []int
	h := HandlerFunc(func(_ context.Context, msg Message) error {
		attempts = append(attempts, msg.Attempt)
		if msg.Attempt < 3 {
			return errors.New("smtp unavailable")
		}
		return nil
	})
	r := NewRunner(q, h, RunnerConfig{Queue: "email-queue"})

	q.push("order-1")
	ctx := context.Background()
	assert.Equal(t, Requeued, r.Process(ctx, <-q.ch))
	assert.Equal(t, Requeued, r.Process(ctx, <-q.ch))
	assert.Equal(t, Acked, r.Process(ctx, <-q.ch))

	acked, rejected, requeued := q.snapshot()
	assert.Equal(t, []string{"order-1"}, acked)
	assert.Empty(t, rejected)
	assert.Equal(t, 2, requeued)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Empty(t, q.ch)
}

func TestRunner_AnyErrorRequeues(t *testing.T) {
	q := newMemQueue()
	h := HandlerFunc(func(context.Context, Message) error {
		return errors.Wrap(errors.New("unexpected end of JSON input"), "decode")
	})
	r := NewRunner(q, h, RunnerConfig{})

	q.push("order-2")
	assert.Equal(t, Requeued, r.Process(context.Background(), <-q.ch))

	acked, rejected, requeued := q.snapshot()
	assert.Empty(t, acked)
	assert.Empty(t, rejected)
	assert.Equal(t, 1, requeued)
}

func TestRunner_Run(t *testing.T) {
	q := newMemQueue()
	done := make(chan struct{})
	var calls int
	h := HandlerFunc(func(context.Context, Message) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})
	r := NewRunner(q, h, RunnerConfig{Queue: "payment-queue"})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	q.push("order-3")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("message not acked")
	}
	cancel()
	require.NoError(t, <-errc)

	acked, _, requeued := q.snapshot()
	assert.Equal(t, []string{"order-3"}, acked)
	assert.Equal(t, 1, requeued)
}

func TestRunner_FinishesInFlightOnShutdown(t *testing.T) {
	q := newMemQueue()
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerCtxErr error
	h := HandlerFunc(func(ctx context.Context, _ Message) error {
		close(started)
		<-release
		handlerCtxErr = ctx.Err()
		return nil
	})
	r := NewRunner(q, h, RunnerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	q.push("order-4")
	<-started
	cancel()
	close(release)
	require.NoError(t, <-errc)

	require.NoError(t, handlerCtxErr)
	acked, _, _ := q.snapshot()
	assert.Equal(t, []string{"order-4"}, acked)
}

type flakySource struct {
	*memQueue
	mu    sync.Mutex
	fails int
}

func (f *flakySource) Consume(ctx context.Context) (<-chan Delivery, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	f.mu.Unlock()
	return f.memQueue.Consume(ctx)
}

func TestRunner_ReconnectsAfterConsumeFailure(t *testing.T) {
	src := &flakySource{memQueue: newMemQueue(), fails: 2}
	done := make(chan struct{})
	h := HandlerFunc(func(context.Context, Message) error {
		close(done)
		return nil
	})
	r := NewRunner(src, h, RunnerConfig{ReconnectDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	src.push("order-5")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not reconnect")
	}
}
