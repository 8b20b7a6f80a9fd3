package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a financial movement recorded by the launch service.
type Transaction struct {
	ID           string
	Amount       decimal.Decimal
	Type         TransactionType
	Description  string
	TimestampUTC time.Time
}

// NewTransaction validates the input and stamps the transaction with now.
func NewTransaction(id string, amount decimal.Decimal, txType TransactionType, description string, now time.Time) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if txType == TransactionTypeUnknown {
		return nil, ErrInvalidTransactionType
	}
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}

	return &Transaction{
		ID:           id,
		Amount:       amount,
		Type:         txType,
		Description:  description,
		TimestampUTC: now.UTC(),
	}, nil
}

// Event returns the event published for this transaction.
func (t *Transaction) Event() TransactionEvent {
	return TransactionEvent{
		ID:           t.ID,
		Amount:       t.Amount,
		Type:         t.Type,
		TimestampUTC: t.TimestampUTC,
	}
}
