package broker

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Outcome is how a delivery was settled.
type Outcome string

// Delivery outcomes.
const (
	Acked    Outcome = "acked"
	Requeued Outcome = "requeued"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Queue names the consumed queue in logs and metrics.
	Queue string
	// ReconnectDelay is the pause before consuming again after the source
	// fails. Defaults to 2s.
	ReconnectDelay time.Duration
	// SettleTimeout bounds ack and nack calls. Defaults to 5s.
	SettleTimeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Runner drains a Source one delivery at a time and settles each delivery
// according to the handler result.
type Runner struct {
	source         Source
	handler        Handler
	queue          string
	reconnectDelay time.Duration
	settleTimeout  time.Duration

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// NewRunner creates a Runner.
func NewRunner(source Source, handler Handler, cfg RunnerConfig) *Runner {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 5 * time.Second
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	outcomes, err := cfg.MeterProvider.Meter("cryptocop/broker").Int64Counter("cryptocop.consumer.deliveries",
		metric.WithDescription("Settled deliveries by outcome"),
	)
	if err != nil {
		outcomes, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("")
	}

	return &Runner{
		source:         source,
		handler:        handler,
		queue:          cfg.Queue,
		reconnectDelay: cfg.ReconnectDelay,
		settleTimeout:  cfg.SettleTimeout,
		tracer:         cfg.TracerProvider.Tracer("cryptocop/broker"),
		outcomes:       outcomes,
	}
}

// Run consumes until ctx is done. A delivery being handled when ctx is
// cancelled is still handled and settled before Run returns. Source failures
// are retried after ReconnectDelay.
func (r *Runner) Run(ctx context.Context) error {
	lg := zctx.From(ctx).With(zap.String("queue", r.queue))
	ctx = zctx.Base(ctx, lg)

	for {
		deliveries, err := r.source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			lg.Warn("Consume failed, retrying", zap.Error(err), zap.Duration("delay", r.reconnectDelay))
		} else {
			lg.Info("Consuming")
			r.drain(ctx, deliveries)
			if ctx.Err() != nil {
				lg.Info("Consumer stopped")
				return nil
			}
			lg.Warn("Delivery stream closed, reconnecting", zap.Duration("delay", r.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.reconnectDelay):
		}
	}
}

func (r *Runner) drain(ctx context.Context, deliveries <-chan Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			r.Process(ctx, d)
		}
	}
}

// Process handles and settles a single delivery.
func (r *Runner) Process(ctx context.Context, d Delivery) Outcome {
	// In-flight work outlives shutdown.
	ctx = context.WithoutCancel(ctx)

	msg := d.Message()
	lg := zctx.From(ctx).With(
		zap.String("message_id", msg.ID),
		zap.Int("attempt", msg.Attempt),
	)
	ctx = zctx.Base(ctx, lg)

	ctx, span := r.tracer.Start(ctx, "broker.Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", r.queue),
			attribute.String("messaging.message.id", msg.ID),
		),
	)
	defer span.End()

	err := r.handler.Handle(ctx, msg)

	outcome := Acked
	if err != nil {
		outcome = Requeued
		span.SetStatus(codes.Error, err.Error())
		lg.Warn("Handler failed, requeueing", zap.Error(err))
	}

	settleCtx, cancel := context.WithTimeout(ctx, r.settleTimeout)
	defer cancel()

	var settleErr error
	switch outcome {
	case Acked:
		settleErr = d.Ack(settleCtx)
	case Requeued:
		settleErr = d.Nack(settleCtx, true)
	}
	if settleErr != nil {
		// The broker redelivers unsettled messages once the channel is gone.
		lg.Error("Settle delivery", zap.String("outcome", string(outcome)), zap.Error(errors.Wrap(settleErr, "settle")))
	}

	r.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", r.queue),
		attribute.String("outcome", string(outcome)),
	))
	lg.Debug("Settled", zap.String("outcome", string(outcome)))
	return outcome
}
