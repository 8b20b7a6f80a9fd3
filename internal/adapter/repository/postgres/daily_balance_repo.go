package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/postgres/generated"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

// DailyBalanceRepository implements usecase.DailyBalanceRepository.
type DailyBalanceRepository struct {
	queries *generated.Queries
}

// NewDailyBalanceRepository creates a new DailyBalanceRepository.
func NewDailyBalanceRepository(pool *pgxpool.Pool) *DailyBalanceRepository {
	return newDailyBalanceRepository(pool)
}

func newDailyBalanceRepository(db generated.DBTX) *DailyBalanceRepository {
	return &DailyBalanceRepository{queries: generated.New(db)}
}

// GetByDate returns the balance of the given day.
func (r *DailyBalanceRepository) GetByDate(ctx context.Context, date time.Time) (*domain.DailyBalance, error) {
	row, err := r.queries.GetDailyBalanceByDate(ctx, timeToPgDate(date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDailyBalanceNotFound
		}
		return nil, err
	}

	return rowToDailyBalance(row), nil
}

// GetByDateForUpdate returns the balance of the given day and locks its row
// until tx ends.
func (r *DailyBalanceRepository) GetByDateForUpdate(ctx context.Context, tx usecase.Transaction, date time.Time) (*domain.DailyBalance, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetDailyBalanceByDateForUpdate(ctx, timeToPgDate(date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDailyBalanceNotFound
		}
		return nil, err
	}

	return rowToDailyBalance(row), nil
}

// Insert stores a new daily balance. A concurrent insert for the same day
// fails with unique_violation.
func (r *DailyBalanceRepository) Insert(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	return queries.InsertDailyBalance(ctx, generated.InsertDailyBalanceParams{
		ID:            balance.ID,
		Date:          timeToPgDate(balance.Date),
		Balance:       decimalToNumeric(balance.Balance),
		LastUpdateUtc: timeToPgTimestamptz(balance.LastUpdateUTC),
	})
}

// Update persists balance and last update of an existing row.
func (r *DailyBalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.DailyBalance) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	affected, err := queries.UpdateDailyBalance(ctx, generated.UpdateDailyBalanceParams{
		ID:            balance.ID,
		Balance:       decimalToNumeric(balance.Balance),
		LastUpdateUtc: timeToPgTimestamptz(balance.LastUpdateUTC),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrDailyBalanceNotFound
	}

	return nil
}

// UpsertAndApply inserts candidate with delta as its balance, or adds delta to
// the row already stored for candidate.Date.
func (r *DailyBalanceRepository) UpsertAndApply(ctx context.Context, tx usecase.Transaction, candidate *domain.DailyBalance, delta decimal.Decimal) (*domain.DailyBalance, bool, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return nil, false, err
	}

	row, err := queries.UpsertDailyBalance(ctx, generated.UpsertDailyBalanceParams{
		ID:            candidate.ID,
		Date:          timeToPgDate(candidate.Date),
		Delta:         decimalToNumeric(delta),
		LastUpdateUtc: timeToPgTimestamptz(candidate.LastUpdateUTC),
	})
	if err != nil {
		return nil, false, err
	}

	return &domain.DailyBalance{
		ID:            row.ID,
		Date:          pgDateToTime(row.Date),
		Balance:       numericToDecimal(row.Balance),
		LastUpdateUTC: row.LastUpdateUtc.Time.UTC(),
	}, row.Inserted, nil
}

// ListRange returns stored balances with from <= date <= to, ordered by date.
func (r *DailyBalanceRepository) ListRange(ctx context.Context, from, to time.Time) ([]*domain.DailyBalance, error) {
	rows, err := r.queries.ListDailyBalancesByRange(ctx, generated.ListDailyBalancesByRangeParams{
		FromDate: timeToPgDate(from),
		ToDate:   timeToPgDate(to),
	})
	if err != nil {
		return nil, err
	}

	balances := make([]*domain.DailyBalance, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, rowToDailyBalance(row))
	}

	return balances, nil
}

func rowToDailyBalance(row generated.DailyBalance) *domain.DailyBalance {
	return &domain.DailyBalance{
		ID:            row.ID,
		Date:          pgDateToTime(row.Date),
		Balance:       numericToDecimal(row.Balance),
		LastUpdateUTC: row.LastUpdateUtc.Time.UTC(),
	}
}
