package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq"
)

// Publisher sends outbox events to the transactions exchange as persistent
// JSON messages. It connects lazily and reconnects after a failed publish.
type Publisher struct {
	broker Broker
	logger zerolog.Logger

	mu      sync.Mutex
	session *rabbitmq.Session
}

// NewPublisher creates a new Publisher.
func NewPublisher(broker Broker, logger zerolog.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		logger: logger.With().Str("component", "publisher").Logger(),
	}
}

// Publish implements eventpublisher.Publisher.
func (p *Publisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	body, err := marshalPayload(event.Payload)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || sessionClosed(p.session) {
		s, err := p.broker.Connect(ctx)
		if err != nil {
			return err
		}
		p.session = s
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.AggregateID,
		Type:         event.EventType,
		Timestamp:    event.CreatedAt,
		Body:         body,
	}
	if err := p.session.Publish(ctx, "", msg); err != nil {
		p.session = nil
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}

	p.logger.Debug().Str("event_id", event.ID).Str("aggregate_id", event.AggregateID).Msg("message published")
	return nil
}

func sessionClosed(s *rabbitmq.Session) bool {
	select {
	case <-s.Closed():
		return true
	default:
		return false
	}
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}
