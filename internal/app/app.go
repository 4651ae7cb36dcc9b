package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sofi161/martapp/internal/config"
	"github.com/sofi161/martapp/internal/event"
	handler "github.com/sofi161/martapp/internal/handler/http"
	"github.com/sofi161/martapp/internal/repository/postgres"
	redisrepo "github.com/sofi161/martapp/internal/repository/redis"
	"github.com/sofi161/martapp/internal/service"
	"github.com/sofi161/martapp/migrations"
	"github.com/sofi161/martapp/pkg/database"
	"github.com/sofi161/martapp/pkg/health"
	"github.com/sofi161/martapp/pkg/kafka"
	"github.com/sofi161/martapp/pkg/tracing"
)

// consumedEventTTL is how long a processed event id is remembered for
// duplicate suppression.
const consumedEventTTL = 72 * time.Hour

// App wires together all dependencies and runs the marketplace service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *kafka.Producer
	dlq            *kafka.DLQProducer
	consumer       *kafka.Consumer
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	database.SetSlowQueryLogging(cfg.SlowQuery, logger)

	// Redis
	redisCfg := cfg.Redis()
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()), slog.Int("db", redisCfg.DB))

	// Kafka. Publishing goes through a circuit breaker so a broker outage
	// fails fast instead of stalling requests on write timeouts.
	producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	publisher := kafka.NewBreakerPublisher(producer, cfg.Breaker(), logger)
	events := event.NewProducer(publisher, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Repositories and services
	products := postgres.NewProductRepository(pool)
	orders := postgres.NewOrderRepository(pool)
	carts := redisrepo.NewCartStore(rdb, cfg.CartTTL())
	keys := redisrepo.NewCheckoutKeyStore(rdb, cfg.IdempotencyTTL)

	productService := service.NewProductService(products, logger)
	services := handler.Services{
		Carts:    service.NewCartService(carts, products, events, logger),
		Checkout: service.NewCheckoutService(carts, orders, keys, events, logger),
		Orders:   service.NewOrderService(orders, events, logger),
		Products: productService,
		Sellers:  service.NewSellerService(products, orders, logger),
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		shutdownTracer: shutdownTracer,
	}

	// order.created keeps catalog sales and stock current.
	if cfg.ConsumerEnabled {
		a.dlq = kafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		dedup := kafka.NewRedisIdempotencyStore(rdb, "consumed:"+cfg.KafkaConsumerGroup, consumedEventTTL)
		a.consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
			Topic:   event.TopicOrderCreated,
		}, kafka.IdempotentHandler(dedup, event.OrderCreatedHandler(productService, logger), logger), logger).
			WithDLQ(a.dlq)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	router := handler.NewRouter(services, healthHandler, handler.RouterConfig{
		ServiceName:    cfg.ServiceName,
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSOrigins,
		PprofCIDRs:     cfg.PprofCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and the event consumer, and blocks until ctx
// is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var wg sync.WaitGroup
	if a.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("starting event consumer",
				slog.String("topic", event.TopicOrderCreated),
				slog.String("group", a.cfg.KafkaConsumerGroup),
			)
			if err := a.consumer.Start(consumerCtx); err != nil {
				a.logger.Error("event consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	a.shutdown(stopConsumer, &wg)
	return runErr
}

// shutdown drains HTTP first, then stops the consumer, then releases the
// connections it and the handlers were using.
func (a *App) shutdown(stopConsumer context.CancelFunc, wg *sync.WaitGroup) {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	stopConsumer()
	wg.Wait()
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.shutdownTracer(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
}
