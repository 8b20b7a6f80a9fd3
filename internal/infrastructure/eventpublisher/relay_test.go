package eventpublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase/mocks"
)

type stubPublisher struct {
	published  []*domain.OutboxEvent
	errorsByID map[string]error
}

func (p *stubPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	if err := p.errorsByID[event.ID]; err != nil {
		return err
	}
	p.published = append(p.published, event)
	return nil
}

func newTestRelay(repo *mocks.MockOutboxRepository, pub Publisher, m *metrics.Metrics) *OutboxRelay {
	return NewOutboxRelay(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Logger:     zerolog.Nop(),
		Metrics:    m,
		BatchSize:  10,
		Interval:   time.Hour,
	})
}

func seedOutbox(repo *mocks.MockOutboxRepository, ids ...string) {
	for _, id := range ids {
		_ = repo.Create(context.Background(), nil, &domain.OutboxEvent{ID: id, EventType: domain.EventTypeTransactionCreated})
	}
}

func TestRelayBatchPublishesAndMarks(t *testing.T) {
	repo := mocks.NewMockOutboxRepository()
	seedOutbox(repo, "evt-1", "evt-2")
	pub := &stubPublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := newTestRelay(repo, pub, m)

	if err := r.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch failed: %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("expected two published events, got %d", len(pub.published))
	}
	for _, e := range repo.Events() {
		if !e.Published {
			t.Fatalf("expected %s to be marked published", e.ID)
		}
	}
	if got := testutil.ToFloat64(m.OutboxPublished.WithLabelValues("success")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
}

func TestRelayBatchStopsAtFirstFailure(t *testing.T) {
	repo := mocks.NewMockOutboxRepository()
	seedOutbox(repo, "evt-1", "evt-2")
	pub := &stubPublisher{errorsByID: map[string]error{"evt-1": errors.New("channel closed")}}
	r := newTestRelay(repo, pub, nil)

	if err := r.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch returned error: %v", err)
	}

	if len(pub.published) != 0 {
		t.Fatalf("expected evt-2 to wait behind evt-1, got %#v", pub.published)
	}
	for _, e := range repo.Events() {
		if e.Published {
			t.Fatalf("expected %s to stay unpublished", e.ID)
		}
	}
}

func TestRelayBatchReportsMarkFailure(t *testing.T) {
	repo := mocks.NewMockOutboxRepository()
	seedOutbox(repo, "evt-1")
	repo.MarkPublishedFunc = func(ctx context.Context, id string, at time.Time) error {
		return errors.New("db down")
	}
	r := newTestRelay(repo, &stubPublisher{}, nil)

	if err := r.relayBatch(context.Background()); err == nil {
		t.Fatal("expected mark failure to be returned")
	}
}

func TestPruneDeletesOldPublishedEvents(t *testing.T) {
	repo := mocks.NewMockOutboxRepository()
	var cutoff time.Time
	repo.DeletePublishedFunc = func(ctx context.Context, before time.Time) error {
		cutoff = before
		return nil
	}
	r := newTestRelay(repo, &stubPublisher{}, nil)
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if err := r.prune(context.Background()); err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !cutoff.IsZero() {
		t.Fatal("prune must be disabled without retention")
	}

	r.retention = 24 * time.Hour
	if err := r.prune(context.Background()); err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if !cutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("cutoff = %v, want %v", cutoff, now.Add(-24*time.Hour))
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	r := newTestRelay(mocks.NewMockOutboxRepository(), &stubPublisher{}, nil)
	r.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
