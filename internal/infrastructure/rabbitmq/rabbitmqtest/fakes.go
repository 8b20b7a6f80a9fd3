// Package rabbitmqtest provides in-memory broker doubles for tests.
package rabbitmqtest

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq"
)

// Channel records topology calls and hands out a controllable delivery stream.
type Channel struct {
	mu sync.Mutex

	Exchanges []string
	Queues    []string
	Bindings  []string
	Prefetch  int
	Published []amqp.Publishing
	Consumers []string
	Closed    bool

	DeclareErr error
	PublishErr error
	// NackPublishes makes confirm mode reject every publish.
	NackPublishes bool
	// WithholdConfirms makes confirm mode never answer.
	WithholdConfirms bool
	ConfirmMode      bool

	Deliveries chan amqp.Delivery
	notify     []chan *amqp.Error
	confirms   []chan amqp.Confirmation
	seq        uint64
}

// NewChannel returns a channel whose Consume yields Deliveries.
func NewChannel() *Channel {
	return &Channel{Deliveries: make(chan amqp.Delivery, 16)}
}

func (c *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DeclareErr != nil {
		return c.DeclareErr
	}
	c.Exchanges = append(c.Exchanges, name+":"+kind)
	return nil
}

func (c *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queues = append(c.Queues, name)
	return amqp.Queue{Name: name}, nil
}

func (c *Channel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Bindings = append(c.Bindings, exchange+"->"+name)
	return nil
}

func (c *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prefetch = prefetchCount
	return nil
}

func (c *Channel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if autoAck {
		return nil, errors.New("rabbitmqtest: auto-ack is not expected")
	}
	c.Consumers = append(c.Consumers, consumer)
	return c.Deliveries, nil
}

func (c *Channel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.Published = append(c.Published, msg)
	if c.ConfirmMode && !c.WithholdConfirms {
		c.seq++
		for _, n := range c.confirms {
			n <- amqp.Confirmation{DeliveryTag: c.seq, Ack: !c.NackPublishes}
		}
	}
	return nil
}

func (c *Channel) Confirm(noWait bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConfirmMode = true
	return nil
}

func (c *Channel) NotifyPublish(ch chan amqp.Confirmation) chan amqp.Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirms = append(c.confirms, ch)
	return ch
}

func (c *Channel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, ch)
	return ch
}

func (c *Channel) Cancel(consumer string, noWait bool) error {
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Drop simulates a broker-side failure: close listeners fire and the delivery
// stream ends.
func (c *Channel) Drop(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notify {
		n <- &amqp.Error{Code: amqp.ConnectionForced, Reason: reason}
		close(n)
	}
	c.notify = nil
	for _, n := range c.confirms {
		close(n)
	}
	c.confirms = nil
	close(c.Deliveries)
}

// PublishedMessages returns a copy of everything published so far.
func (c *Channel) PublishedMessages() []amqp.Publishing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]amqp.Publishing(nil), c.Published...)
}

// Connection hands out a fixed channel.
type Connection struct {
	Ch     *Channel
	Closed bool
}

func (c *Connection) Channel() (rabbitmq.Channel, error) {
	return c.Ch, nil
}

func (c *Connection) Close() error {
	c.Closed = true
	return nil
}

// Dialer fails the first Failures dials, then returns the next channel from
// Channels (or a fresh one when none are queued).
type Dialer struct {
	mu       sync.Mutex
	Failures int
	Channels []*Channel
	Dials    int
}

func (d *Dialer) Dial(cfg rabbitmq.Config) (rabbitmq.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if d.Failures > 0 {
		d.Failures--
		return nil, errors.New("dial tcp: connection refused")
	}
	ch := NewChannel()
	if len(d.Channels) > 0 {
		ch, d.Channels = d.Channels[0], d.Channels[1:]
	}
	return &Connection{Ch: ch}, nil
}

// Timer fires immediately and records every requested wait.
type Timer struct {
	mu    sync.Mutex
	Waits []time.Duration
	c     chan time.Time
	// Block makes Start never fire, so only context cancellation ends the wait.
	Block bool
	// Started receives each requested wait when non-nil.
	Started chan time.Duration
}

func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	t.Waits = append(t.Waits, d)
	if t.c == nil {
		t.c = make(chan time.Time, 1)
	}
	block := t.Block
	t.mu.Unlock()

	if t.Started != nil {
		t.Started <- d
	}
	if !block {
		t.c <- time.Now()
	}
}

func (t *Timer) Stop() {}

func (t *Timer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.c == nil {
		t.c = make(chan time.Time, 1)
	}
	return t.c
}

// Recorded returns the waits requested so far.
func (t *Timer) Recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.Waits...)
}
