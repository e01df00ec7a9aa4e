package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cryptocop/internal/broker/amqp"
	"github.com/xenking/cryptocop/internal/broker/kafka"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Run("database and port", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://db/cryptocop")
		t.Setenv("PORT", "9000")

		cfg := Config{Addr: defaultAddr}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://db/cryptocop", cfg.DatabaseURL)
		assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	})
	t.Run("explicit values win", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://db/other")
		t.Setenv("PORT", "9000")

		cfg := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://db/cryptocop"}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "postgres://db/cryptocop", cfg.DatabaseURL)
		assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	})
	t.Run("broker endpoints", func(t *testing.T) {
		t.Setenv("RABBITMQ_URL", "amqp://rabbit:5672/")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

		var cfg Config
		cfg.applyPlatformDefaults()
		assert.Equal(t, "amqp://rabbit:5672/", cfg.Broker.AMQP.URL)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
	})
	t.Run("prefixed broker variables win", func(t *testing.T) {
		t.Setenv("RABBITMQ_URL", "amqp://rabbit:5672/")
		t.Setenv("CRYPTOCOP_BROKER_AMQP_URL", "amqp://own:5672/")

		cfg := Config{Broker: BrokerConfig{AMQP: amqp.Config{URL: "amqp://own:5672/"}}}
		cfg.applyPlatformDefaults()
		assert.Equal(t, "amqp://own:5672/", cfg.Broker.AMQP.URL)
	})
}

func TestRequireDatabase(t *testing.T) {
	require.Error(t, (&Config{}).requireDatabase())
	require.NoError(t, (&Config{DatabaseURL: "postgres://db"}).requireDatabase())
}

func TestBrokerFactories(t *testing.T) {
	cfg := BrokerConfig{
		Driver: DriverKafka,
		Kafka:  kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "orders"},
	}
	pub, err := newPublisher(cfg, "test")
	require.NoError(t, err)
	assert.IsType(t, &kafka.Publisher{}, pub)

	src, check, err := newSource(cfg, "email-queue", "test")
	require.NoError(t, err)
	assert.IsType(t, &kafka.Consumer{}, src)
	assert.NotNil(t, check)

	cfg.Driver = DriverAMQP
	pub, err = newPublisher(cfg, "test")
	require.NoError(t, err)
	assert.IsType(t, &amqp.Publisher{}, pub)

	src, _, err = newSource(cfg, "payment-queue", "test")
	require.NoError(t, err)
	assert.IsType(t, &amqp.Consumer{}, src)

	cfg.Driver = "nats"
	_, err = newPublisher(cfg, "test")
	require.Error(t, err)
	_, _, err = newSource(cfg, "email-queue", "test")
	require.Error(t, err)
}
