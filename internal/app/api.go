// Package app wires the cryptocop processes together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/broker"
	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/domain/cart"
	"github.com/xenking/cryptocop/internal/domain/order"
	"github.com/xenking/cryptocop/internal/domain/profile"
	"github.com/xenking/cryptocop/internal/handler"
	"github.com/xenking/cryptocop/internal/pricing"
	"github.com/xenking/cryptocop/internal/repository"
	"github.com/xenking/cryptocop/pkg/health"
	"github.com/xenking/cryptocop/pkg/httpmiddleware"
)

// RunAPI creates all dependencies of the HTTP API, serves it and handles
// graceful shutdown.
func RunAPI(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	return runAPI(ctx, lg, m, cfg)
}

func runAPI(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("broker", cfg.Broker.Driver),
	)
	if err := cfg.requireDatabase(); err != nil {
		return err
	}

	signer, err := auth.NewSigner(cfg.Token)
	if err != nil {
		return errors.Wrap(err, "token signer")
	}
	prices, err := pricing.New(cfg.Pricing)
	if err != nil {
		return errors.Wrap(err, "price source")
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	pub, err := newPublisher(cfg.Broker, "cryptocop-api")
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			lg.Warn("Close publisher", zap.Error(err))
		}
	}()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	users := repository.NewUserRepository(pool)
	creds := repository.NewCredentialRepository(pool)

	authSvc := auth.NewService(users, creds, signer)
	profileSvc := profile.NewService(repository.NewProfileRepository(pool))
	cartSvc := cart.NewService(repository.NewCartRepository(pool), prices)
	orderSvc := order.NewService(
		repository.NewOrderRepository(pool),
		broker.NewOrderEvents(pub, cfg.Broker.PublishTimeout),
		order.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	)

	mux := http.NewServeMux()
	healthSvc.Register(mux)
	markets := pricing.NewMessari(cfg.Pricing.Messari, nil)
	handler.New(authSvc, profileSvc, cartSvc, orderSvc, markets).Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("cryptocop-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
			handler.Authenticate(signer),
			handler.RevocationGate(authSvc),
		),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		drain(lg, healthSvc, server, cfg.Graceful)
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// drain flips readiness off, waits for load balancers to notice, then shuts
// the server down.
func drain(lg *zap.Logger, healthSvc *health.Health, server *http.Server, cfg GracefulConfig) {
	healthSvc.SetReady(false)
	lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.ReadinessDelay))
	time.Sleep(cfg.ReadinessDelay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	lg.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", zap.Error(err))
	}
	healthSvc.Stop()
}
