package app

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/cryptocop/internal/broker/amqp"
	"github.com/xenking/cryptocop/internal/broker/kafka"
	"github.com/xenking/cryptocop/internal/domain/auth"
	"github.com/xenking/cryptocop/internal/notify"
	"github.com/xenking/cryptocop/internal/pricing"
	"github.com/xenking/cryptocop/internal/repository"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the configuration of every cryptocop process, loadable from
// environment variables (CRYPTOCOP_ prefix), flags, an optional .env file or
// YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CRYPTOCOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Database    repository.PoolConfig
	Token       auth.TokenConfig
	Pricing     pricing.Config
	Broker      BrokerConfig
	Mail        notify.Config
	Worker      WorkerConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// Broker drivers.
const (
	DriverAMQP  = "amqp"
	DriverKafka = "kafka"
)

// BrokerConfig selects and configures the message broker.
type BrokerConfig struct {
	Driver         string        `default:"amqp" usage:"message broker: amqp or kafka"`
	PublishTimeout time.Duration `default:"5s" usage:"Bound on one order event publish"`
	AMQP           amqp.Config
	Kafka          kafka.Config
}

// WorkerConfig configures the consumer processes.
type WorkerConfig struct {
	ProbeAddr string `default:"0.0.0.0:8081" usage:"Worker liveness and readiness listen address" flag:"probe-addr"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration for a service binary, flags included.
func LoadConfig() (*Config, error) {
	return load(false)
}

// LoadEnvConfig loads configuration without parsing command-line flags, for
// binaries that own their flags.
func LoadEnvConfig() (*Config, error) {
	return load(true)
}

func load(skipFlags bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CRYPTOCOP",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/cryptocop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables that hosting platforms
// and compose files commonly set.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" && os.Getenv("CRYPTOCOP_BROKER_AMQP_URL") == "" {
		c.Broker.AMQP.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" && os.Getenv("CRYPTOCOP_BROKER_KAFKA_BROKERS") == "" {
		c.Broker.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) requireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CRYPTOCOP_DATABASE_URL or DATABASE_URL")
	}
	return nil
}
