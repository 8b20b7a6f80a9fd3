package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultExchangeKind   = amqp.ExchangeFanout
	DefaultPrefetch       = 1
)

// Topology names the exchange, queue and binding declared on every connect.
// A Topology without a Queue is publish-only.
type Topology struct {
	Exchange     string
	ExchangeKind string
	Queue        string
	BindingKey   string
	Prefetch     int
}

// Config holds connection manager configuration.
type Config struct {
	URL            string
	ConnectionName string
	ConnectTimeout time.Duration
	Heartbeat      time.Duration
	Topology       Topology
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// PublisherConfirms puts the channel in confirm mode; Session.Publish then
	// returns only after the broker has taken the message.
	PublisherConfirms bool
	// Dialer defaults to DialAMQP.
	Dialer Dialer
	// Timer drives the wait between attempts. Nil uses a real timer.
	Timer backoff.Timer
}

// Manager owns one broker connection and channel and reconnects with
// exponential backoff.
type Manager struct {
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	conn    Connection
	channel Channel
	closed  bool

	state atomic.Int32
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Topology.ExchangeKind == "" {
		cfg.Topology.ExchangeKind = DefaultExchangeKind
	}
	if cfg.Topology.Prefetch <= 0 {
		cfg.Topology.Prefetch = DefaultPrefetch
	}
	if cfg.Dialer == nil {
		cfg.Dialer = DialAMQP
	}

	mgr := &Manager{
		cfg:     cfg,
		logger:  logger.With().Str("component", "rabbitmq").Logger(),
		metrics: m,
	}
	mgr.publishState(StateDisconnected)
	return mgr
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Connect establishes a fresh connection, declares the topology and returns a
// Session. It retries until it succeeds or ctx is done, in which case the
// manager is Aborted and the error wraps both ErrAborted and ctx.Err().
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.State() == StateAborted {
		return nil, ErrAborted
	}

	m.release()
	if err := m.transition(StateConnecting); err != nil {
		return nil, err
	}

	var (
		session *Session
		attempt int
	)

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		s, err := m.open()
		if err != nil {
			m.countAttempt("failure")
			return &ConnectError{Attempt: attempt, Err: err}
		}
		m.countAttempt("success")
		session = s
		return nil
	}

	notify := func(err error, delay time.Duration) {
		m.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("rabbitmq connection failed, retrying")
	}

	if err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(m.policy(), ctx), notify, m.cfg.Timer); err != nil {
		_ = m.transition(StateAborted)
		m.logger.Info().Int("attempts", attempt).Msg("rabbitmq connect aborted")
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	if err := m.transition(StateConnected); err != nil {
		return nil, err
	}
	m.logger.Info().Int("attempt", attempt).Str("exchange", m.cfg.Topology.Exchange).Str("queue", m.cfg.Topology.Queue).Msg("rabbitmq connected")

	return session, nil
}

// Close shuts down the channel and connection. Connect fails afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return m.release()
}

// policy is 2s, 4s, 8s, 16s, then 30s forever, without jitter.
func (m *Manager) policy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = m.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (m *Manager) open() (*Session, error) {
	conn, err := m.cfg.Dialer(m.cfg)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, m.cfg.Topology); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	var confirms <-chan amqp.Confirmation
	if m.cfg.PublisherConfirms {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("enable publisher confirms: %w", err)
		}
		// One publish is outstanding at a time.
		confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	m.conn = conn
	m.channel = ch

	return &Session{channel: ch, topology: m.cfg.Topology, closed: closed, confirms: confirms}, nil
}

func declare(ch Channel, t Topology) error {
	if err := ch.ExchangeDeclare(
		t.Exchange,     // name
		t.ExchangeKind, // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}

	if t.Queue == "" {
		return nil
	}

	if _, err := ch.QueueDeclare(
		t.Queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}

	if err := ch.QueueBind(t.Queue, t.BindingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", t.Queue, err)
	}

	if err := ch.Qos(t.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	return nil
}

// release closes whatever the previous session left open.
func (m *Manager) release() error {
	var errs []error
	if m.channel != nil {
		if err := m.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		m.channel = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		m.conn = nil
	}
	return errors.Join(errs...)
}

func (m *Manager) transition(to State) error {
	from := m.State()
	if !CanTransition(from, to) {
		return fmt.Errorf("rabbitmq: invalid state transition %s -> %s", from, to)
	}
	m.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("rabbitmq state change")
	m.publishState(to)
	return nil
}

func (m *Manager) publishState(s State) {
	m.state.Store(int32(s))
	if m.metrics != nil {
		m.metrics.ConnectionState.Set(float64(s))
	}
}

func (m *Manager) countAttempt(result string) {
	if m.metrics != nil {
		m.metrics.ConnectAttempts.WithLabelValues(result).Inc()
	}
}
