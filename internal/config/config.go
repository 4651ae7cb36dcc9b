package config

import (
	"fmt"
	"time"

	"github.com/sofi161/martapp/pkg/config"
	"github.com/sofi161/martapp/pkg/database"
	"github.com/sofi161/martapp/pkg/kafka"
	"github.com/sofi161/martapp/pkg/tracing"
)

// Config holds all configuration for the marketplace service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"martapp"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofCIDRs      []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"martapp"`
	PostgresPassword string        `env:"POSTGRES_PASSWORD" envDefault:"martapp"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"martapp"`
	PostgresSSLMode  string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"20"`
	PostgresMinConns int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	SlowQuery        time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: one day, the session lifetime)
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"24"`
	// How long a checkout Idempotency-Key keeps pointing at its order.
	IdempotencyTTL time.Duration `env:"CHECKOUT_IDEMPOTENCY_TTL" envDefault:"24h"`

	// Kafka
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"martapp-catalog"`
	ConsumerEnabled    bool          `env:"KAFKA_CONSUMER_ENABLED" envDefault:"true"`
	BreakerTimeout     time.Duration `env:"EVENT_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerMinRequests uint32        `env:"EVENT_BREAKER_MIN_REQUESTS" envDefault:"5"`

	Tracing tracing.Config `envPrefix:"OTEL_"`
}

// Load reads configuration from the environment, after an optional .env.
func Load(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. config.Load calls it.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("invalid postgres port: %d", c.PostgresPort)
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid redis port: %d", c.RedisPort)
	}
	if c.CartTTLHours < 1 {
		return fmt.Errorf("CART_TTL_HOURS must be positive, got %d", c.CartTTLHours)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("CHECKOUT_IDEMPOTENCY_TTL must be positive, got %s", c.IdempotencyTTL)
	}
	if c.PostgresMinConns > c.PostgresMaxConns {
		return fmt.Errorf("POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", c.PostgresMinConns, c.PostgresMaxConns)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}

func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	return pg
}

func (c *Config) Redis() database.RedisConfig {
	r := database.DefaultRedisConfig()
	r.Host = c.RedisHost
	r.Port = c.RedisPort
	r.Password = c.RedisPassword
	r.DB = c.RedisDB
	return r
}

func (c *Config) Breaker() kafka.BreakerConfig {
	b := kafka.DefaultBreakerConfig("kafka-producer")
	b.Timeout = c.BreakerTimeout
	b.MinRequests = c.BreakerMinRequests
	return b
}
