package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cryptocop/internal/broker"
	"github.com/xenking/cryptocop/internal/event"
	"github.com/xenking/cryptocop/internal/notify"
	"github.com/xenking/cryptocop/internal/repository"
	"github.com/xenking/cryptocop/internal/validation"
	"github.com/xenking/cryptocop/pkg/health"
	"github.com/xenking/cryptocop/pkg/httpmiddleware"
)

// RunEmailWorker consumes the email queue and sends order confirmations.
func RunEmailWorker(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	renderer, err := notify.NewRenderer()
	if err != nil {
		return err
	}
	sender, err := notify.NewSender(ctx, cfg.Mail)
	if err != nil {
		return errors.Wrap(err, "mail sender")
	}
	lg.Info("Mail transport selected", zap.String("transport", cfg.Mail.Resolve()))

	h := notify.NewHandler(renderer, sender, cfg.Mail.Timeout)
	return runWorker(ctx, lg, m, cfg, worker{
		name:    "email-worker",
		queue:   event.QueueEmail,
		handler: h,
	})
}

// RunPaymentWorker consumes the payment queue and validates order cards.
// Results go to the log and, when a database is configured, to Postgres.
func RunPaymentWorker(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	recorders := validation.Recorders{validation.LogRecorder{}}
	w := worker{
		name:  "payment-worker",
		queue: event.QueuePayment,
	}

	if cfg.DatabaseURL != "" {
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.Database)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()
		if err := repository.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		recorders = append(recorders, repository.NewValidationRepository(pool))
		w.checks = map[string]health.CheckFunc{"postgres": health.PingCheck(pool)}
	} else {
		lg.Info("No database configured, validation results are only logged")
	}

	w.handler = validation.NewHandler(recorders)
	return runWorker(ctx, lg, m, cfg, w)
}

type worker struct {
	name    string
	queue   string
	handler broker.Handler
	checks  map[string]health.CheckFunc
}

// runWorker consumes w.queue until ctx is done and serves the liveness and
// readiness probes next to it.
func runWorker(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config, w worker) error {
	lg = lg.With(zap.String("worker", w.name))
	ctx = zctx.Base(ctx, lg)

	source, sourceCheck, err := newSource(cfg.Broker, w.queue, w.name)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			lg.Warn("Close source", zap.Error(err))
		}
	}()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("broker", 5*time.Second, sourceCheck)
	for name, fn := range w.checks {
		healthSvc.AddReadinessCheck(name, 5*time.Second, fn)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(1000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	probe := &http.Server{
		ReadHeaderTimeout: time.Second,
		Addr:              cfg.Worker.ProbeAddr,
		Handler:           mux,
	}

	runner := broker.NewRunner(source, w.handler, broker.RunnerConfig{
		Queue:          w.queue,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		lg.Info("Probe listening", zap.String("addr", cfg.Worker.ProbeAddr))
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "probe server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		drain(lg, healthSvc, probe, cfg.Graceful)
		return nil
	})
	return g.Wait()
}
