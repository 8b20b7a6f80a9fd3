package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/metrics"
)

// DailyReportGenerationKey holds a counter bumped after every committed change
// to the day. Cached reports are keyed by it, so an entry filled from a read
// that raced a change is never served.
func DailyReportGenerationKey(date time.Time) string {
	return "report:daily:gen:" + domain.DateOf(date).Format(time.DateOnly)
}

// DailyReportCacheKey is the cache key of one day's report at a generation.
func DailyReportCacheKey(date time.Time, generation int64) string {
	return "report:daily:" + domain.DateOf(date).Format(time.DateOnly) + ":" + strconv.FormatInt(generation, 10)
}

type cachedBalance struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Balance       decimal.Decimal `json:"balance"`
	LastUpdateUTC time.Time       `json:"last_update_utc"`
}

// ReportUseCase reads consolidated balances.
type ReportUseCase struct {
	balanceRepo DailyBalanceRepository
	cache       Cache
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewReportUseCase(balanceRepo DailyBalanceRepository) *ReportUseCase {
	return &ReportUseCase{
		balanceRepo: balanceRepo,
		cacheTTL:    DefaultReportCacheTTL,
		logger:      zerolog.Nop(),
	}
}

func (uc *ReportUseCase) WithCache(c Cache, ttl time.Duration) *ReportUseCase {
	uc.cache = c
	if ttl > 0 {
		uc.cacheTTL = ttl
	}
	return uc
}

func (uc *ReportUseCase) WithMetrics(m *metrics.Metrics) *ReportUseCase {
	uc.metrics = m
	return uc
}

func (uc *ReportUseCase) WithLogger(l zerolog.Logger) *ReportUseCase {
	uc.logger = l
	return uc
}

// GetDailyBalance returns the balance of the UTC day containing date.
// Days without activity report a zero balance and an empty ID.
func (uc *ReportUseCase) GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	date = domain.DateOf(date)

	// The generation is read before the store so a change committed after
	// this point bumps it past the key written below.
	key, cacheable := uc.cacheKey(ctx, date)
	if cacheable {
		if b, ok := uc.fromCache(ctx, key); ok {
			return b, nil
		}
	}

	balance, err := uc.balanceRepo.GetByDate(ctx, date)
	if errors.Is(err, domain.ErrDailyBalanceNotFound) {
		balance = &domain.DailyBalance{Date: date, Balance: decimal.Zero}
	} else if err != nil {
		return nil, err
	}

	if cacheable {
		uc.toCache(ctx, key, balance)
	}
	return balance, nil
}

// ListDailyBalances returns the stored balances in [from, to], oldest first.
// Days without activity are omitted.
func (uc *ReportUseCase) ListDailyBalances(ctx context.Context, from, to time.Time) ([]*domain.DailyBalance, error) {
	if err := domain.ValidateDateRange(from, to); err != nil {
		return nil, err
	}
	return uc.balanceRepo.ListRange(ctx, domain.DateOf(from), domain.DateOf(to))
}

func (uc *ReportUseCase) cacheKey(ctx context.Context, date time.Time) (string, bool) {
	if uc.cache == nil {
		return "", false
	}

	var generation int64
	data, err := uc.cache.Get(ctx, DailyReportGenerationKey(date))
	switch {
	case errors.Is(err, ErrCacheMiss):
	case err != nil:
		uc.logger.Warn().Err(err).Time("date", date).Msg("report cache generation read failed")
		return "", false
	default:
		generation, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			uc.logger.Warn().Err(err).Time("date", date).Msg("corrupt report cache generation")
			return "", false
		}
	}

	return DailyReportCacheKey(date, generation), true
}

func (uc *ReportUseCase) fromCache(ctx context.Context, key string) (*domain.DailyBalance, bool) {
	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
		}
		uc.countCache("miss")
		return nil, false
	}

	var c cachedBalance
	if err := json.Unmarshal(data, &c); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt report cache entry")
		uc.countCache("miss")
		return nil, false
	}

	uc.countCache("hit")
	return &domain.DailyBalance{
		ID:            c.ID,
		Date:          c.Date.UTC(),
		Balance:       c.Balance,
		LastUpdateUTC: c.LastUpdateUTC.UTC(),
	}, true
}

func (uc *ReportUseCase) toCache(ctx context.Context, key string, b *domain.DailyBalance) {
	data, err := json.Marshal(cachedBalance{
		ID:            b.ID,
		Date:          b.Date,
		Balance:       b.Balance,
		LastUpdateUTC: b.LastUpdateUTC,
	})
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, key, data, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
}

func (uc *ReportUseCase) countCache(result string) {
	if uc.metrics != nil {
		uc.metrics.ReportCache.WithLabelValues(result).Inc()
	}
}
