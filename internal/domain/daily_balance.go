package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBalance is the running consolidated balance of one UTC calendar day.
type DailyBalance struct {
	ID            string
	Date          time.Time
	Balance       decimal.Decimal
	LastUpdateUTC time.Time
}

// NewDailyBalance starts a zero balance for the day containing date.
func NewDailyBalance(id string, date, now time.Time) *DailyBalance {
	return &DailyBalance{
		ID:            id,
		Date:          DateOf(date),
		Balance:       decimal.Zero,
		LastUpdateUTC: now.UTC(),
	}
}

// ApplyCredit adds amount to the balance. Non-positive amounts are ignored.
// Reports whether the balance changed.
func (b *DailyBalance) ApplyCredit(amount decimal.Decimal, at time.Time) bool {
	if !amount.IsPositive() {
		return false
	}
	b.Balance = b.Balance.Add(amount)
	b.touch(at)
	return true
}

// ApplyDebit subtracts amount from the balance. Non-positive amounts are ignored.
// Reports whether the balance changed.
func (b *DailyBalance) ApplyDebit(amount decimal.Decimal, at time.Time) bool {
	if !amount.IsPositive() {
		return false
	}
	b.Balance = b.Balance.Sub(amount)
	b.touch(at)
	return true
}

// Apply dispatches on the event type. Unknown types leave the balance untouched.
func (b *DailyBalance) Apply(e TransactionEvent, at time.Time) bool {
	switch e.Type {
	case TransactionTypeCredit:
		return b.ApplyCredit(e.Amount, at)
	case TransactionTypeDebit:
		return b.ApplyDebit(e.Amount, at)
	default:
		return false
	}
}

// LastUpdateUTC never moves backwards.
func (b *DailyBalance) touch(at time.Time) {
	at = at.UTC()
	if at.After(b.LastUpdateUTC) {
		b.LastUpdateUTC = at
	}
}
