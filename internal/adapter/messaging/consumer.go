package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

//go:generate mockgen -source=consumer.go -destination=mocks/mock_consumer.go -package=mocks

// EventApplier folds a decoded event into the balance store.
type EventApplier interface {
	Apply(ctx context.Context, event domain.TransactionEvent) (*usecase.ApplyResult, error)
}

// Broker hands out sessions with the consumer topology declared.
type Broker interface {
	Connect(ctx context.Context) (*rabbitmq.Session, error)
}

// FailurePolicy decides how a delivery whose store write failed is settled.
type FailurePolicy string

const (
	// FailurePolicyRequeue negatively acknowledges the delivery so the broker
	// redelivers it. Permanent store errors are acked under either policy.
	FailurePolicyRequeue FailurePolicy = "requeue"
	// FailurePolicyAck acknowledges the delivery and drops the event.
	FailurePolicyAck FailurePolicy = "ack"
)

// ParseFailurePolicy parses CONSUMER_STORE_FAILURE_POLICY.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailurePolicyRequeue:
		return FailurePolicyRequeue, nil
	case FailurePolicyAck:
		return FailurePolicyAck, nil
	default:
		return "", fmt.Errorf("unknown store failure policy %q", s)
	}
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	ConsumerTag   string
	FailurePolicy FailurePolicy
	// ResubscribeDelay is the pause before reconnecting after Consume itself fails.
	ResubscribeDelay time.Duration
}

// DefaultConsumerConfig returns sensible defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		ConsumerTag:      "cashflow-consolidated",
		FailurePolicy:    FailurePolicyRequeue,
		ResubscribeDelay: 2 * time.Second,
	}
}

// Consumer reads transaction events one at a time and applies them.
type Consumer struct {
	broker  Broker
	applier EventApplier
	config  ConsumerConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewConsumer creates a new Consumer.
func NewConsumer(broker Broker, applier EventApplier, config ConsumerConfig, logger zerolog.Logger, m *metrics.Metrics) *Consumer {
	defaults := DefaultConsumerConfig()
	if config.ConsumerTag == "" {
		config.ConsumerTag = defaults.ConsumerTag
	}
	if config.FailurePolicy == "" {
		config.FailurePolicy = defaults.FailurePolicy
	}
	if config.ResubscribeDelay <= 0 {
		config.ResubscribeDelay = defaults.ResubscribeDelay
	}

	return &Consumer{
		broker:  broker,
		applier: applier,
		config:  config,
		logger:  logger.With().Str("component", "consumer").Logger(),
		metrics: m,
	}
}

// Run consumes until ctx is cancelled, reconnecting whenever the delivery
// stream ends. A delivery already being handled when ctx is cancelled is
// finished and settled before Run returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		session, err := c.broker.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("consumer stopped before connecting")
				return nil
			}
			return fmt.Errorf("connect: %w", err)
		}

		deliveries, err := session.Consume(c.config.ConsumerTag)
		if err != nil {
			c.logger.Error().Err(err).Msg("failed to register consumer")
			if !sleep(ctx, c.config.ResubscribeDelay) {
				return nil
			}
			continue
		}

		c.logger.Info().Str("consumer_tag", c.config.ConsumerTag).Msg("consumer started, waiting for messages")

		if stopped := c.consume(ctx, session, deliveries); stopped {
			if err := session.Cancel(c.config.ConsumerTag); err != nil {
				c.logger.Debug().Err(err).Msg("consumer cancel failed")
			}
			c.logger.Info().Msg("consumer stopped")
			return nil
		}

		c.logger.Warn().Msg("delivery stream closed, reconnecting")
	}
}

// consume returns true when ctx ended the loop and false when the stream closed.
func (c *Consumer) consume(ctx context.Context, session *rabbitmq.Session, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case amqpErr, ok := <-session.Closed():
			if ok && amqpErr != nil {
				c.logger.Warn().Int("code", amqpErr.Code).Str("reason", amqpErr.Reason).Msg("rabbitmq channel closed")
			}
			return false
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			c.Handle(context.WithoutCancel(ctx), d)
		}
	}
}

// Handle decodes, applies and settles one delivery.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	outcome, retry := c.process(ctx, d)
	c.settle(d, retry)

	if c.metrics != nil {
		c.metrics.ObserveMessage(outcome, time.Since(start))
	}
}

// process reports the outcome and whether the delivery should be retried.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) (string, bool) {
	event, err := DecodeTransactionEvent(d.Body)
	if err != nil {
		c.logger.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("discarding undecodable message")
		return metrics.OutcomeDecodeError, false
	}

	log := c.logger.With().Str("transaction_id", event.ID).Stringer("type", event.Type).Logger()
	log.Info().Str("amount", event.Amount.String()).Time("timestamp_utc", event.TimestampUTC).Msg("processing transaction event")

	result, err := c.applier.Apply(ctx, event)
	if err != nil {
		var se *usecase.StoreError
		switch {
		case errors.As(err, &se) && se.Permanent:
			log.Error().Err(se.Err).Str("operation", se.Op).Msg("store rejected transaction event, discarding")
			return metrics.OutcomeStoreError, false
		case se != nil:
			log.Error().Err(se.Err).Str("operation", se.Op).Msg("failed to persist daily balance")
		default:
			log.Error().Err(err).Msg("failed to apply transaction event")
		}
		return metrics.OutcomeStoreError, c.config.FailurePolicy == FailurePolicyRequeue
	}

	if result.Duplicate {
		log.Info().Msg("transaction event already applied, skipping")
		return metrics.OutcomeDuplicate, false
	}

	log.Info().
		Str("date", result.Balance.Date.Format(time.DateOnly)).
		Str("balance", result.Balance.Balance.String()).
		Bool("created", result.Created).
		Bool("mutated", result.Mutated).
		Msg("daily balance updated")
	return metrics.OutcomeApplied, false
}

func (c *Consumer) settle(d amqp.Delivery, retry bool) {
	var err error
	if retry {
		err = d.Nack(false, true)
	} else {
		err = d.Ack(false)
	}
	if err != nil {
		c.logger.Error().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("failed to settle delivery")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
