package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/cryptocop/internal/broker"
	"github.com/xenking/cryptocop/internal/broker/amqp"
	"github.com/xenking/cryptocop/internal/broker/kafka"
	"github.com/xenking/cryptocop/internal/event"
	"github.com/xenking/cryptocop/pkg/health"
)

// newPublisher creates the order event publisher of the API process. It
// connects lazily; checkout does not wait for the broker.
func newPublisher(cfg BrokerConfig, name string) (broker.Publisher, error) {
	switch cfg.Driver {
	case DriverAMQP:
		ac := cfg.AMQP
		ac.Name = name
		return amqp.NewPublisher(amqp.NewSession(ac)), nil
	case DriverKafka:
		return kafka.NewPublisher(cfg.Kafka), nil
	default:
		return nil, errors.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

// newSource creates a consumer of queue with its own connection and a
// readiness check for that connection.
func newSource(cfg BrokerConfig, queue, name string) (broker.Source, health.CheckFunc, error) {
	switch cfg.Driver {
	case DriverAMQP:
		ac := cfg.AMQP
		ac.Name = name
		session := amqp.NewSession(ac)
		return amqp.NewConsumer(session, queue, name), session.Check, nil
	case DriverKafka:
		return kafka.NewConsumer(cfg.Kafka, queue, event.RoutingOrderCreated), kafkaCheck(cfg.Kafka), nil
	default:
		return nil, nil, errors.Errorf("unknown broker driver %q", cfg.Driver)
	}
}

func kafkaCheck(cfg kafka.Config) health.CheckFunc {
	return func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Brokers)
	}
}
