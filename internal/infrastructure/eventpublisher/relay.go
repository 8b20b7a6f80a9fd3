package eventpublisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

// Publisher delivers one outbox event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for OutboxRelay.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	BatchSize  int           // Number of events to fetch per batch
	Interval   time.Duration // Polling interval
	Retention  time.Duration // Published events older than this are deleted; 0 keeps them
}

// OutboxRelay moves committed outbox events onto the message bus.
type OutboxRelay struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	batchSize  int
	interval   time.Duration
	retention  time.Duration
	now        func() time.Time
}

// NewOutboxRelay creates a new OutboxRelay.
func NewOutboxRelay(cfg Config) *OutboxRelay {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}

	return &OutboxRelay{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger.With().Str("component", "outbox_relay").Logger(),
		metrics:    cfg.Metrics,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
		now:        time.Now,
	}
}

// Start polls the outbox until the context is cancelled.
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.logger.Info().Int("batch_size", r.batchSize).Dur("interval", r.interval).Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *OutboxRelay) tick(ctx context.Context) {
	if err := r.relayBatch(ctx); err != nil {
		r.logger.Error().Err(err).Msg("error relaying outbox events")
	}
	if err := r.prune(ctx); err != nil {
		r.logger.Error().Err(err).Msg("error pruning published outbox events")
	}
}

// relayBatch publishes unpublished events oldest first. It stops at the first
// failure so later events never overtake an earlier one.
func (r *OutboxRelay) relayBatch(ctx context.Context) error {
	events, err := r.outboxRepo.GetUnpublished(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	r.logger.Debug().Int("count", len(events)).Msg("relaying outbox events")

	for _, event := range events {
		log := r.logger.With().
			Str("event_id", event.ID).
			Str("event_type", event.EventType).
			Str("aggregate_id", event.AggregateID).
			Logger()

		if err := r.publisher.Publish(ctx, event); err != nil {
			r.count("failure")
			log.Warn().Err(err).Msg("failed to publish outbox event, will retry")
			return nil
		}
		r.count("success")

		if err := r.outboxRepo.MarkPublished(ctx, event.ID, r.now().UTC()); err != nil {
			// The event goes out again next tick; consumers deduplicate by transaction id.
			log.Error().Err(err).Msg("failed to mark outbox event as published")
			return err
		}
		log.Info().Msg("outbox event published")
	}

	return nil
}

func (r *OutboxRelay) prune(ctx context.Context) error {
	if r.retention <= 0 {
		return nil
	}
	return r.outboxRepo.DeletePublished(ctx, r.now().Add(-r.retention))
}

func (r *OutboxRelay) count(result string) {
	if r.metrics != nil {
		r.metrics.OutboxPublished.WithLabelValues(result).Inc()
	}
}
