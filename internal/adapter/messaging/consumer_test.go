package messaging_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ivaldobatista/CashflowEngine/internal/adapter/messaging"
	"github.com/ivaldobatista/CashflowEngine/internal/adapter/messaging/mocks"
	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/rabbitmq/rabbitmqtest"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *ackRecorder) settled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked) + len(a.nacked)
}

func delivery(acker amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: []byte(body)}
}

const validBody = `{"transactionId":"tx-1","amount":"10.50","type":"Credit","timestampUtc":"2025-09-10T15:20:30Z"}`

func appliedResult() *usecase.ApplyResult {
	return &usecase.ApplyResult{
		Balance: &domain.DailyBalance{
			ID:      "b1",
			Date:    time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
			Balance: decimal.RequireFromString("10.50"),
		},
		Created: true,
		Mutated: true,
	}
}

func TestConsumer_Handle(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		policy      messaging.FailurePolicy
		setup       func(applier *mocks.MockEventApplier)
		wantAck     bool
		wantRequeue bool
		wantOutcome string
	}{
		{
			name: "applied event is acked",
			body: validBody,
			setup: func(applier *mocks.MockEventApplier) {
				applier.EXPECT().Apply(gomock.Any(), gomock.Any()).DoAndReturn(
					func(ctx context.Context, e domain.TransactionEvent) (*usecase.ApplyResult, error) {
						assert.Equal(t, "tx-1", e.ID)
						assert.True(t, e.Amount.Equal(decimal.RequireFromString("10.50")))
						return appliedResult(), nil
					})
			},
			wantAck:     true,
			wantOutcome: metrics.OutcomeApplied,
		},
		{
			name: "duplicate event is acked",
			body: validBody,
			setup: func(applier *mocks.MockEventApplier) {
				applier.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(&usecase.ApplyResult{Duplicate: true}, nil)
			},
			wantAck:     true,
			wantOutcome: metrics.OutcomeDuplicate,
		},
		{
			name:        "undecodable message is acked without applying",
			body:        `{"transactionId":"tx-1"`,
			setup:       func(applier *mocks.MockEventApplier) {},
			wantAck:     true,
			wantOutcome: metrics.OutcomeDecodeError,
		},
		{
			name:        "non-positive amount is acked without applying",
			body:        `{"transactionId":"tx-1","amount":0,"type":"Credit","timestampUtc":"2025-09-10T15:20:30Z"}`,
			setup:       func(applier *mocks.MockEventApplier) {},
			wantAck:     true,
			wantOutcome: metrics.OutcomeDecodeError,
		},
		{
			name:   "store failure is requeued by default",
			body:   validBody,
			policy: messaging.FailurePolicyRequeue,
			setup: func(applier *mocks.MockEventApplier) {
				applier.EXPECT().Apply(gomock.Any(), gomock.Any()).
					Return(nil, &usecase.StoreError{Op: "commit", Err: errors.New("connection reset")})
			},
			wantRequeue: true,
			wantOutcome: metrics.OutcomeStoreError,
		},
		{
			name:   "permanent store failure is acked under requeue policy",
			body:   validBody,
			policy: messaging.FailurePolicyRequeue,
			setup: func(applier *mocks.MockEventApplier) {
				applier.EXPECT().Apply(gomock.Any(), gomock.Any()).
					Return(nil, &usecase.StoreError{Op: "insert", Err: &pgconn.PgError{Code: "22003"}, Permanent: true})
			},
			wantAck:     true,
			wantOutcome: metrics.OutcomeStoreError,
		},
		{
			name: "non-store failure is requeued",
			body: validBody,
			setup: func(applier *mocks.MockEventApplier) {
				applier.EXPECT().Apply(gomock.Any(), gomock.Any()).Return(nil, errors.New("unexpected"))
			},
			wantRequeue: true,
			wantOutcome: metrics.OutcomeStoreError,
		},
		{
			name:        "amount beyond store precision is acked without applying",
			body:        `{"transactionId":"tx-1","amount":"1e30","type":"Credit","timestampUtc":"2025-09-10T15:20:30Z"}`,
			setup:       func(applier *mocks.MockEventApplier) {},
			wantAck:     true,
			wantOutcome: metrics.OutcomeDecodeError,
		},
		{
			name:   "store failure is acked under ack policy",
			body:   validBody,
			policy: messaging.FailurePolicyAck,
			setup: func(applier *mocks.MockEventApplier) {
				applier.EXPECT().Apply(gomock.Any(), gomock.Any()).
					Return(nil, &usecase.StoreError{Op: "update", Err: errors.New("timeout")})
			},
			wantAck:     true,
			wantOutcome: metrics.OutcomeStoreError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			applier := mocks.NewMockEventApplier(ctrl)
			tt.setup(applier)

			m := metrics.NewWithRegistry(prometheus.NewRegistry())
			consumer := messaging.NewConsumer(mocks.NewMockBroker(ctrl), applier,
				messaging.ConsumerConfig{FailurePolicy: tt.policy}, zerolog.Nop(), m)

			acker := &ackRecorder{}
			consumer.Handle(context.Background(), delivery(acker, 7, tt.body))

			if tt.wantAck {
				assert.Equal(t, []uint64{7}, acker.acked)
				assert.Empty(t, acker.nacked)
			} else {
				assert.Empty(t, acker.acked)
				assert.Equal(t, []uint64{7}, acker.nacked)
				assert.Equal(t, []bool{tt.wantRequeue}, acker.requeue)
			}
			assert.Equal(t, float64(1), testutil.ToFloat64(m.ConsumerMessages.WithLabelValues(tt.wantOutcome)))
		})
	}
}

func TestConsumer_PermanentStoreErrorIsNotRedelivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	applier := mocks.NewMockEventApplier(ctrl)
	applier.EXPECT().Apply(gomock.Any(), gomock.Any()).
		Return(nil, &usecase.StoreError{Op: "insert", Err: &pgconn.PgError{Code: "22003"}, Permanent: true}).
		Times(1)

	consumer := messaging.NewConsumer(mocks.NewMockBroker(ctrl), applier,
		messaging.DefaultConsumerConfig(), zerolog.Nop(), nil)

	acker := &ackRecorder{}
	consumer.Handle(context.Background(), delivery(acker, 9, validBody))

	assert.Equal(t, []uint64{9}, acker.acked)
	assert.Empty(t, acker.nacked)
	assert.Empty(t, acker.requeue)
}

func newBroker(channels ...*rabbitmqtest.Channel) *rabbitmq.Manager {
	return rabbitmq.NewManager(rabbitmq.Config{
		Topology: rabbitmq.Topology{Exchange: "transactions_exchange", Queue: "consolidated_transactions_queue"},
		Dialer:   (&rabbitmqtest.Dialer{Channels: channels}).Dial,
		Timer:    &rabbitmqtest.Timer{},
	}, zerolog.Nop(), nil)
}

func runConsumer(ctx context.Context, c *messaging.Consumer) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func TestConsumer_RunProcessesSequentially(t *testing.T) {
	ctrl := gomock.NewController(t)
	applier := mocks.NewMockEventApplier(ctrl)

	var mu sync.Mutex
	var seen []string
	applier.EXPECT().Apply(gomock.Any(), gomock.Any()).Times(3).DoAndReturn(
		func(ctx context.Context, e domain.TransactionEvent) (*usecase.ApplyResult, error) {
			mu.Lock()
			seen = append(seen, e.ID)
			mu.Unlock()
			return appliedResult(), nil
		})

	ch := rabbitmqtest.NewChannel()
	acker := &ackRecorder{}
	for i, id := range []string{"a", "b", "c"} {
		ch.Deliveries <- delivery(acker, uint64(i+1),
			`{"transactionId":"`+id+`","amount":1,"type":"Credit","timestampUtc":"2025-09-10T00:00:00Z"}`)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(ctx, messaging.NewConsumer(newBroker(ch), applier, messaging.ConsumerConfig{}, zerolog.Nop(), nil))

	require.Eventually(t, func() bool { return acker.settled() == 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []uint64{1, 2, 3}, acker.acked)
	assert.Equal(t, 1, ch.Prefetch)
}

func TestConsumer_RunReconnectsAfterDrop(t *testing.T) {
	ctrl := gomock.NewController(t)
	applier := mocks.NewMockEventApplier(ctrl)
	applier.EXPECT().Apply(gomock.Any(), gomock.Any()).Times(2).Return(appliedResult(), nil)

	first := rabbitmqtest.NewChannel()
	second := rabbitmqtest.NewChannel()
	acker := &ackRecorder{}
	first.Deliveries <- delivery(acker, 1, validBody)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runConsumer(ctx, messaging.NewConsumer(newBroker(first, second), applier, messaging.ConsumerConfig{}, zerolog.Nop(), nil))

	require.Eventually(t, func() bool { return acker.settled() == 1 }, 5*time.Second, 10*time.Millisecond)
	first.Drop("connection reset by peer")

	second.Deliveries <- delivery(acker, 1, validBody)
	require.Eventually(t, func() bool { return acker.settled() == 2 }, 5*time.Second, 10*time.Millisecond)

	assert.Len(t, second.Exchanges, 1, "topology must be declared on the new session")
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_InFlightMessageFinishesOnShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	applier := mocks.NewMockEventApplier(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applier.EXPECT().Apply(gomock.Any(), gomock.Any()).DoAndReturn(
		func(applyCtx context.Context, e domain.TransactionEvent) (*usecase.ApplyResult, error) {
			cancel()
			assert.NoError(t, applyCtx.Err(), "in-flight work must not see the shutdown")
			return appliedResult(), nil
		})

	ch := rabbitmqtest.NewChannel()
	acker := &ackRecorder{}
	ch.Deliveries <- delivery(acker, 42, validBody)

	err := messaging.NewConsumer(newBroker(ch), applier, messaging.ConsumerConfig{}, zerolog.Nop(), nil).Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, []uint64{42}, acker.acked)
}

func TestConsumer_RunStopsWhileConnecting(t *testing.T) {
	ctrl := gomock.NewController(t)
	timer := &rabbitmqtest.Timer{Block: true, Started: make(chan time.Duration, 1)}
	broker := rabbitmq.NewManager(rabbitmq.Config{
		Topology: rabbitmq.Topology{Exchange: "transactions_exchange", Queue: "q"},
		Dialer:   (&rabbitmqtest.Dialer{Failures: 100}).Dial,
		Timer:    timer,
	}, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runConsumer(ctx, messaging.NewConsumer(broker, mocks.NewMockEventApplier(ctrl), messaging.ConsumerConfig{}, zerolog.Nop(), nil))

	<-timer.Started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, rabbitmq.StateAborted, broker.State())
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    messaging.FailurePolicy
		wantErr bool
	}{
		{"", messaging.FailurePolicyRequeue, false},
		{"requeue", messaging.FailurePolicyRequeue, false},
		{"ACK", messaging.FailurePolicyAck, false},
		{"drop", "", true},
	}

	for _, tt := range tests {
		got, err := messaging.ParseFailurePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
