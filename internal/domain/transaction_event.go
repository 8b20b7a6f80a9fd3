package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of movement carried by a transaction event.
type TransactionType int

const (
	TransactionTypeUnknown TransactionType = iota
	TransactionTypeCredit
	TransactionTypeDebit
)

// ParseTransactionType maps a wire name to a TransactionType, ignoring case.
// Anything other than credit or debit is Unknown.
func ParseTransactionType(s string) TransactionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit":
		return TransactionTypeCredit
	case "debit":
		return TransactionTypeDebit
	default:
		return TransactionTypeUnknown
	}
}

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeCredit:
		return "Credit"
	case TransactionTypeDebit:
		return "Debit"
	default:
		return "Unknown"
	}
}

// TransactionEvent is a single financial movement published by the launch service.
type TransactionEvent struct {
	ID           string
	Amount       decimal.Decimal
	Type         TransactionType
	TimestampUTC time.Time
}

// Date returns the UTC calendar day the event belongs to.
func (e TransactionEvent) Date() time.Time {
	return DateOf(e.TimestampUTC)
}

// Delta returns the signed balance change for the event. The second result is
// false when the event does not move the balance (unknown type or non-positive amount).
func (e TransactionEvent) Delta() (decimal.Decimal, bool) {
	if !e.Amount.IsPositive() {
		return decimal.Zero, false
	}
	switch e.Type {
	case TransactionTypeCredit:
		return e.Amount, true
	case TransactionTypeDebit:
		return e.Amount.Neg(), true
	default:
		return decimal.Zero, false
	}
}

// DateOf truncates t to midnight of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
