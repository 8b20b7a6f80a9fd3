package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
)

// DailyBalanceRepository defines data access for consolidated daily balances.
type DailyBalanceRepository interface {
	GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	GetByDateForUpdate(ctx context.Context, tx Transaction, date time.Time) (*domain.DailyBalance, error)
	Insert(ctx context.Context, tx Transaction, balance *domain.DailyBalance) error
	Update(ctx context.Context, tx Transaction, balance *domain.DailyBalance) error
	// UpsertAndApply inserts candidate or adds delta to the existing row for
	// candidate.Date in one statement. Reports whether the row was inserted.
	UpsertAndApply(ctx context.Context, tx Transaction, candidate *domain.DailyBalance, delta decimal.Decimal) (*domain.DailyBalance, bool, error)
	ListRange(ctx context.Context, from, to time.Time) ([]*domain.DailyBalance, error)
}

// ProcessedEventRepository records which transaction events were already applied.
type ProcessedEventRepository interface {
	// MarkProcessed returns false when the event was already recorded.
	MarkProcessed(ctx context.Context, tx Transaction, transactionID string, processedAt time.Time) (bool, error)
}

// TransactionRepository defines data access for launched transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation while it fails with a transient error.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments an integer counter, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
