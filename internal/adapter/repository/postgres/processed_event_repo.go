package postgres

import (
	"context"
	"time"

	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/postgres/generated"
	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

// ProcessedEventRepository implements usecase.ProcessedEventRepository on the
// processed_events inbox table.
type ProcessedEventRepository struct{}

// NewProcessedEventRepository creates a new ProcessedEventRepository.
func NewProcessedEventRepository() *ProcessedEventRepository {
	return &ProcessedEventRepository{}
}

// MarkProcessed records transactionID inside tx. It returns false when the
// transaction was already recorded by an earlier delivery.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, tx usecase.Transaction, transactionID string, processedAt time.Time) (bool, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return false, err
	}

	affected, err := queries.InsertProcessedEvent(ctx, generated.InsertProcessedEventParams{
		TransactionID: transactionID,
		ProcessedAt:   timeToPgTimestamptz(processedAt),
	})
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
