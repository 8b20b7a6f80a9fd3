package domain

import "time"

// Event types
const (
	EventTypeTransactionCreated = "transaction.created"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionCreatedPayload builds the outbox payload for a new transaction.
// Amounts travel as strings so JSONB storage keeps their exact scale.
func TransactionCreatedPayload(e TransactionEvent) map[string]any {
	return map[string]any{
		"transactionId": e.ID,
		"amount":        e.Amount.String(),
		"type":          e.Type.String(),
		"timestampUtc":  e.TimestampUTC.UTC().Format(time.RFC3339Nano),
	}
}
