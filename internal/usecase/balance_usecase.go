package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
)

// ApplyResult describes what applying one event did to its day.
type ApplyResult struct {
	Balance   *domain.DailyBalance
	Created   bool
	Mutated   bool
	Duplicate bool
}

// BalanceUseCase folds transaction events into per-day balances.
type BalanceUseCase struct {
	txManager     TransactionManager
	balanceRepo   DailyBalanceRepository
	processedRepo ProcessedEventRepository
	idGen         IDGenerator
	retrier       Retrier
	isTransient   func(error) bool
	cache         Cache
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
	atomicUpsert  bool
}

func NewBalanceUseCase(
	txManager TransactionManager,
	balanceRepo DailyBalanceRepository,
	processedRepo ProcessedEventRepository,
	idGen IDGenerator,
) *BalanceUseCase {
	return &BalanceUseCase{
		txManager:     txManager,
		balanceRepo:   balanceRepo,
		processedRepo: processedRepo,
		idGen:         idGen,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
}

// WithRetrier retries the whole apply transaction on transient store errors.
func (uc *BalanceUseCase) WithRetrier(r Retrier) *BalanceUseCase {
	uc.retrier = r
	return uc
}

// WithErrorClassifier decides which store failures are worth redelivering.
// Failures it rejects come back as a Permanent StoreError.
func (uc *BalanceUseCase) WithErrorClassifier(isTransient func(error) bool) *BalanceUseCase {
	uc.isTransient = isTransient
	return uc
}

// WithCache invalidates cached reports for a day after its balance changes
// by bumping the day's report generation.
func (uc *BalanceUseCase) WithCache(c Cache) *BalanceUseCase {
	uc.cache = c
	return uc
}

func (uc *BalanceUseCase) WithMetrics(m *metrics.Metrics) *BalanceUseCase {
	uc.metrics = m
	return uc
}

func (uc *BalanceUseCase) WithLogger(l zerolog.Logger) *BalanceUseCase {
	uc.logger = l
	return uc
}

func (uc *BalanceUseCase) WithClock(now func() time.Time) *BalanceUseCase {
	uc.now = now
	return uc
}

// WithAtomicUpsert applies the delta with a single INSERT ... ON CONFLICT
// statement instead of lock, mutate and write back.
func (uc *BalanceUseCase) WithAtomicUpsert(enabled bool) *BalanceUseCase {
	uc.atomicUpsert = enabled
	return uc
}

// Apply folds one event into the balance of its UTC day. The inbox record,
// the balance change and the commit happen in one database transaction, so a
// redelivered event is reported as Duplicate and leaves the balance alone.
func (uc *BalanceUseCase) Apply(ctx context.Context, event domain.TransactionEvent) (*ApplyResult, error) {
	var result *ApplyResult
	op := func() error {
		r, err := uc.apply(ctx, event)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			if uc.isTransient != nil {
				se.Permanent = !uc.isTransient(se.Err)
			}
			if uc.metrics != nil {
				uc.metrics.BalanceErrors.WithLabelValues(se.Op).Inc()
			}
		}
		return nil, err
	}

	if result.Duplicate {
		return result, nil
	}

	uc.invalidate(ctx, result.Balance.Date)
	uc.metrics.SetDailyBalance(result.Balance.Date, result.Balance.Balance.InexactFloat64())

	return result, nil
}

func (uc *BalanceUseCase) apply(ctx context.Context, event domain.TransactionEvent) (*ApplyResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := uc.now().UTC()

	first, err := uc.processedRepo.MarkProcessed(txCtx, tx, event.ID, now)
	if err != nil {
		return nil, storeErr("mark processed", err)
	}
	if !first {
		return &ApplyResult{Duplicate: true}, nil
	}

	var result *ApplyResult
	if uc.atomicUpsert {
		result, err = uc.upsert(txCtx, tx, event, now)
	} else {
		result, err = uc.lockAndApply(txCtx, tx, event, now)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, storeErr("commit", err)
	}

	return result, nil
}

func (uc *BalanceUseCase) lockAndApply(ctx context.Context, tx Transaction, event domain.TransactionEvent, now time.Time) (*ApplyResult, error) {
	date := event.Date()

	balance, err := uc.balanceRepo.GetByDateForUpdate(ctx, tx, date)
	created := false
	switch {
	case errors.Is(err, domain.ErrDailyBalanceNotFound):
		balance = domain.NewDailyBalance(uc.idGen.Generate(), date, now)
		created = true
	case err != nil:
		return nil, storeErr("get", err)
	}

	mutated := balance.Apply(event, now)

	if created {
		if err := uc.balanceRepo.Insert(ctx, tx, balance); err != nil {
			return nil, storeErr("insert", err)
		}
	} else {
		if err := uc.balanceRepo.Update(ctx, tx, balance); err != nil {
			return nil, storeErr("update", err)
		}
	}

	return &ApplyResult{Balance: balance, Created: created, Mutated: mutated}, nil
}

func (uc *BalanceUseCase) upsert(ctx context.Context, tx Transaction, event domain.TransactionEvent, now time.Time) (*ApplyResult, error) {
	delta, mutated := event.Delta()
	candidate := domain.NewDailyBalance(uc.idGen.Generate(), event.Date(), now)

	balance, created, err := uc.balanceRepo.UpsertAndApply(ctx, tx, candidate, delta)
	if err != nil {
		return nil, storeErr("upsert", err)
	}

	return &ApplyResult{Balance: balance, Created: created, Mutated: mutated}, nil
}

func (uc *BalanceUseCase) invalidate(ctx context.Context, date time.Time) {
	if uc.cache == nil {
		return
	}
	if _, err := uc.cache.Incr(ctx, DailyReportGenerationKey(date)); err != nil {
		uc.logger.Warn().Err(err).Time("date", date).Msg("failed to invalidate report cache")
	}
}
