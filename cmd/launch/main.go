// Command launch runs the transaction launch service: it records transactions
// with their outbox events and relays those events to RabbitMQ.
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
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/eventpublisher"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/logger"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/postgres"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/redis"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

const (
	serviceName    = "launch"
	connectionName = "cashflow-launch-publisher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: serviceName})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("launch service failed")
	}

	log.Info().Msg("launch service stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
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

	txManager := postgresRepo.NewTxManager(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	transactionUC := usecase.NewTransactionUseCase(
		txManager,
		postgresRepo.NewTransactionRepository(pool),
		outboxRepo,
		postgresRepo.NewULIDGenerator(),
		m,
	)

	manager := rabbitmq.NewManager(publisherConfig(cfg.RabbitMQ), log, m)
	defer manager.Close()

	relay := eventpublisher.NewOutboxRelay(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  messaging.NewPublisher(manager, log),
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransactionHandler: handler.NewTransactionHandler(transactionUC),
		HealthHandler: handler.NewHealthHandler(
			handler.PostgresCheck(pool),
			handler.RedisCheck(redisClient),
		),
		IdempotencyStore: redisRepo.NewIdempotencyStore(redisClient),
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          m,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox relay: %w", err)
		}
		return nil
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

// publisherConfig declares the exchange only; the consolidated service owns
// the queue.
func publisherConfig(rc config.RabbitMQ) rabbitmq.Config {
	return rabbitmq.Config{
		URL:            rc.URL(),
		ConnectionName: connectionName,
		ConnectTimeout: rc.ConnectTimeout,
		Heartbeat:      rc.Heartbeat,
		Topology:       rabbitmq.Topology{Exchange: rc.Exchange},
		InitialBackoff: rc.InitialBackoff,
		MaxBackoff:     rc.MaxBackoff,
		// Outbox rows are marked published only after the broker confirms.
		PublisherConfirms: true,
	}
}
