package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Session is an open channel with the topology already declared.
type Session struct {
	channel  Channel
	topology Topology
	closed   <-chan *amqp.Error
	confirms <-chan amqp.Confirmation
}

// Consume subscribes to the topology queue with manual acknowledgement.
func (s *Session) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if s.topology.Queue == "" {
		return nil, fmt.Errorf("rabbitmq: session has no queue to consume from")
	}
	return s.channel.Consume(
		s.topology.Queue, // queue
		consumerTag,      // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
}

// Cancel stops the consumer registered under consumerTag.
func (s *Session) Cancel(consumerTag string) error {
	return s.channel.Cancel(consumerTag, false)
}

// Publish sends msg to the topology exchange. With publisher confirms enabled
// it waits for the broker's ack; callers must not publish concurrently on one
// session, and must drop the session after an error.
func (s *Session) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if err := s.channel.PublishWithContext(ctx, s.topology.Exchange, routingKey, false, false, msg); err != nil {
		return err
	}
	if s.confirms == nil {
		return nil
	}

	select {
	case c, ok := <-s.confirms:
		if !ok {
			return fmt.Errorf("%w: channel closed", ErrPublishNacked)
		}
		if !c.Ack {
			return fmt.Errorf("%w: delivery tag %d", ErrPublishNacked, c.DeliveryTag)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Closed yields once when the channel or its connection goes away.
func (s *Session) Closed() <-chan *amqp.Error {
	return s.closed
}
