// Command server runs the consolidated service: it consumes transaction events
// from RabbitMQ into daily balances and serves the consolidated report API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/ivaldobatista/CashflowEngine/internal/adapter/http"
	"github.com/ivaldobatista/CashflowEngine/internal/adapter/http/handler"
	"github.com/ivaldobatista/CashflowEngine/internal/adapter/messaging"
	postgresRepo "github.com/ivaldobatista/CashflowEngine/internal/adapter/repository/postgres"
	redisRepo "github.com/ivaldobatista/CashflowEngine/internal/adapter/repository/redis"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/config"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/logger"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/postgres"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/redis"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

const serviceName = "consolidated"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: serviceName})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("consolidated service failed")
	}

	log.Info().Msg("consolidated service stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	consumerCfg, err := consumerConfig(cfg)
	if err != nil {
		return err
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return err
		}
	}

	// Connect to Redis
	redisClient, err := redis.NewClientWithOptions(ctx, cfg.RedisURL, redis.Options{
		PoolSize:     cfg.RedisPoolSize,
		DialTimeout:  cfg.RedisDialTimeout,
		ReadTimeout:  cfg.RedisReadTimeout,
		WriteTimeout: cfg.RedisWriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool).WithLockTimeout(cfg.LockTimeout)
	balanceRepo := postgresRepo.NewDailyBalanceRepository(pool)
	processedRepo := postgresRepo.NewProcessedEventRepository()
	cache := redisRepo.NewCache(redisClient)

	// Initialize use cases
	balanceUC := usecase.NewBalanceUseCase(txManager, balanceRepo, processedRepo, postgresRepo.NewULIDGenerator()).
		WithRetrier(postgresRepo.NewRetrier(log)).
		WithErrorClassifier(postgresRepo.IsTransientError).
		WithCache(cache).
		WithMetrics(m).
		WithLogger(log).
		WithAtomicUpsert(cfg.BalanceAtomicUpsert)
	reportUC := usecase.NewReportUseCase(balanceRepo).
		WithCache(cache, cfg.ReportCacheTTL).
		WithMetrics(m).
		WithLogger(log)

	// Broker
	manager := rabbitmq.NewManager(brokerConfig(cfg.RabbitMQ, true), log, m)
	defer manager.Close()
	consumer := messaging.NewConsumer(manager, balanceUC, consumerCfg, log, m)

	// HTTP
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ReportHandler: handler.NewReportHandler(reportUC),
		HealthHandler: handler.NewHealthHandler(
			handler.PostgresCheck(pool),
			handler.RedisCheck(redisClient),
			handler.BrokerCheck(func() bool { return manager.State() == rabbitmq.StateConnected }),
		),
		Metrics: m,
		Logger:  log,
	})
	server := newHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}

// consumerConfig maps environment settings onto the consumer.
func consumerConfig(cfg *config.Config) (messaging.ConsumerConfig, error) {
	policy, err := messaging.ParseFailurePolicy(cfg.ConsumerStoreFailurePolicy)
	if err != nil {
		return messaging.ConsumerConfig{}, err
	}

	c := messaging.DefaultConsumerConfig()
	c.FailurePolicy = policy
	if cfg.ConsumerTag != "" {
		c.ConsumerTag = cfg.ConsumerTag
	}
	if cfg.ConsumerResubscribeDelay > 0 {
		c.ResubscribeDelay = cfg.ConsumerResubscribeDelay
	}

	return c, nil
}

// brokerConfig maps environment settings onto the connection manager. The
// queue is declared and bound only when consume is set.
func brokerConfig(rc config.RabbitMQ, consume bool) rabbitmq.Config {
	topology := rabbitmq.Topology{
		Exchange: rc.Exchange,
		Prefetch: rc.Prefetch,
	}
	if consume {
		topology.Queue = rc.Queue
	}

	return rabbitmq.Config{
		URL:            rc.URL(),
		ConnectionName: rc.ConnectionName,
		ConnectTimeout: rc.ConnectTimeout,
		Heartbeat:      rc.Heartbeat,
		Topology:       topology,
		InitialBackoff: rc.InitialBackoff,
		MaxBackoff:     rc.MaxBackoff,
	}
}
