package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

func dayKey(t time.Time) string {
	return domain.DateOf(t).Format(time.DateOnly)
}

func copyBalance(b *domain.DailyBalance) *domain.DailyBalance {
	c := *b
	return &c
}

// MockDailyBalanceRepository is a mock implementation of DailyBalanceRepository.
type MockDailyBalanceRepository struct {
	mu       sync.RWMutex
	balances map[string]*domain.DailyBalance

	InsertCalls int
	UpdateCalls int
	// Calls lists the repository methods invoked, in order.
	Calls []string

	GetByDateFunc          func(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	GetByDateForUpdateFunc func(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.DailyBalance, error)
	InsertFunc             func(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error
	UpdateFunc             func(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error
	UpsertAndApplyFunc     func(ctx context.Context, tx usecase.Transaction, candidate *domain.DailyBalance, delta decimal.Decimal) (*domain.DailyBalance, bool, error)
	ListRangeFunc          func(ctx context.Context, from, to time.Time) ([]*domain.DailyBalance, error)
}

func NewMockDailyBalanceRepository() *MockDailyBalanceRepository {
	return &MockDailyBalanceRepository{
		balances: make(map[string]*domain.DailyBalance),
	}
}

// Seed stores a balance directly.
func (m *MockDailyBalanceRepository) Seed(b *domain.DailyBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[dayKey(b.Date)] = copyBalance(b)
}

func (m *MockDailyBalanceRepository) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallSequence returns a copy of Calls.
func (m *MockDailyBalanceRepository) CallSequence() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Calls...)
}

// Stored returns the persisted balance for date, if any.
func (m *MockDailyBalanceRepository) Stored(date time.Time) (*domain.DailyBalance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[dayKey(date)]
	if !ok {
		return nil, false
	}
	return copyBalance(b), true
}

func (m *MockDailyBalanceRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	m.record("GetByDate")
	if m.GetByDateFunc != nil {
		return m.GetByDateFunc(ctx, date)
	}
	return m.lookup(date)
}

func (m *MockDailyBalanceRepository) GetByDateForUpdate(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.DailyBalance, error) {
	m.record("GetByDateForUpdate")
	if m.GetByDateForUpdateFunc != nil {
		return m.GetByDateForUpdateFunc(ctx, tx, date)
	}
	return m.lookup(date)
}

func (m *MockDailyBalanceRepository) lookup(date time.Time) (*domain.DailyBalance, error) {
	if b, ok := m.Stored(date); ok {
		return b, nil
	}
	return nil, domain.ErrDailyBalanceNotFound
}

func (m *MockDailyBalanceRepository) Insert(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error {
	m.mu.Lock()
	m.InsertCalls++
	m.Calls = append(m.Calls, "Insert")
	m.mu.Unlock()
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, balance)
	}
	m.Seed(balance)
	return nil
}

func (m *MockDailyBalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error {
	m.mu.Lock()
	m.UpdateCalls++
	m.Calls = append(m.Calls, "Update")
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, balance)
	}
	m.Seed(balance)
	return nil
}

func (m *MockDailyBalanceRepository) UpsertAndApply(ctx context.Context, tx usecase.Transaction, candidate *domain.DailyBalance, delta decimal.Decimal) (*domain.DailyBalance, bool, error) {
	m.record("UpsertAndApply")
	if m.UpsertAndApplyFunc != nil {
		return m.UpsertAndApplyFunc(ctx, tx, candidate, delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dayKey(candidate.Date)
	existing, ok := m.balances[key]
	if !ok {
		b := copyBalance(candidate)
		b.Balance = delta
		m.balances[key] = b
		return copyBalance(b), true, nil
	}
	existing.Balance = existing.Balance.Add(delta)
	if !delta.IsZero() && candidate.LastUpdateUTC.After(existing.LastUpdateUTC) {
		existing.LastUpdateUTC = candidate.LastUpdateUTC
	}
	return copyBalance(existing), false, nil
}

func (m *MockDailyBalanceRepository) ListRange(ctx context.Context, from, to time.Time) ([]*domain.DailyBalance, error) {
	m.record("ListRange")
	if m.ListRangeFunc != nil {
		return m.ListRangeFunc(ctx, from, to)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var balances []*domain.DailyBalance
	for _, b := range m.balances {
		if !b.Date.Before(from) && !b.Date.After(to) {
			balances = append(balances, copyBalance(b))
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Date.Before(balances[j].Date) })
	return balances, nil
}

// MockProcessedEventRepository is a mock implementation of ProcessedEventRepository.
type MockProcessedEventRepository struct {
	mu   sync.Mutex
	seen map[string]time.Time

	MarkProcessedFunc func(ctx context.Context, tx usecase.Transaction, transactionID string, processedAt time.Time) (bool, error)
}

func NewMockProcessedEventRepository() *MockProcessedEventRepository {
	return &MockProcessedEventRepository{
		seen: make(map[string]time.Time),
	}
}

func (m *MockProcessedEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, transactionID string, processedAt time.Time) (bool, error) {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, tx, transactionID, processedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[transactionID]; ok {
		return false, nil
	}
	m.seen[transactionID] = processedAt
	return true, nil
}

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction

	CreateFunc  func(ctx context.Context, tx usecase.Transaction, transaction *domain.Transaction) error
	GetByIDFunc func(ctx context.Context, id string) (*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, transaction *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, transaction)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[transaction.ID] = transaction
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transactions[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTransactionNotFound
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc          func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc  func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc   func(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublishedFunc func(ctx context.Context, before time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// Events returns every stored event.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published && len(events) < limit {
			events = append(events, e)
		}
	}
	return events, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			at := publishedAt
			e.PublishedAt = &at
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	if m.DeletePublishedFunc != nil {
		return m.DeletePublishedFunc(ctx, before)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	mu      sync.Mutex
	started []*MockTransaction
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	tx := &MockTransaction{}
	m.mu.Lock()
	m.started = append(m.started, tx)
	m.mu.Unlock()
	return tx, nil
}

// Transactions returns every transaction started through Begin.
func (m *MockTransactionManager) Transactions() []*MockTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockTransaction(nil), m.started...)
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	Committed bool
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	m.Committed = true
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "mock-id-" + strconv.Itoa(m.counter)
}

// MockRetrier runs the operation up to Attempts times while it fails.
type MockRetrier struct {
	Attempts int
	Calls    int
}

func (m *MockRetrier) Retry(ctx context.Context, op func() error) error {
	attempts := m.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		m.Calls++
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}

// MockCache is an in-memory implementation of Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, usecase.ErrCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCache) Incr(ctx context.Context, key string) (int64, error) {
	if m.IncrFunc != nil {
		return m.IncrFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.data[key]), 10, 64)
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// Has reports whether key is cached.
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	released []string

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

// Release drops a claimed key so it can be retried.
func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.released = append(m.released, key)
	return nil
}

// Released lists the keys passed to Release, in order.
func (m *MockIdempotencyStore) Released() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.released...)
}
