package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/cryptocop/internal/broker"
	"github.com/xenking/cryptocop/internal/domain/order"
	"github.com/xenking/cryptocop/internal/repository"
)

func withPool(ctx context.Context, cfg *Config, fn func(pool *pgxpool.Pool) error) error {
	if err := cfg.requireDatabase(); err != nil {
		return err
	}
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.Database)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()
	return fn(pool)
}

// Migrate applies the database schema.
func Migrate(ctx context.Context, cfg *Config) error {
	return withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
		return repository.RunMigrations(ctx, pool)
	})
}

// Revoke revokes a credential, signing out every token issued with it.
func Revoke(ctx context.Context, cfg *Config, credentialID int64) error {
	return withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
		return repository.NewCredentialRepository(pool).Revoke(ctx, credentialID)
	})
}

// Replay publishes the order-completed event of a committed order again, for
// orders whose original publish failed.
func Replay(ctx context.Context, lg *zap.Logger, cfg *Config, orderID int64) error {
	return withPool(ctx, cfg, func(pool *pgxpool.Pool) error {
		pub, err := newPublisher(cfg.Broker, "cryptocopctl")
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()

		svc := order.NewService(
			repository.NewOrderRepository(pool),
			broker.NewOrderEvents(pub, cfg.Broker.PublishTimeout),
		)
		o, err := svc.Replay(ctx, orderID)
		if err != nil {
			return err
		}
		lg.Info("Order event published",
			zap.Int64("order_id", o.ID),
			zap.String("email", o.Email),
		)
		return nil
	})
}
