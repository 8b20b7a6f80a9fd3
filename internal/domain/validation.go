package domain

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall     = errors.New("amount below minimum allowed")
	ErrAmountPrecision    = errors.New("amount has too many decimal places")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrDateRangeTooWide   = errors.New("date range too wide")
)

// Validation constants
const (
	MaxDescriptionLength = 255
	MaxTransactionAmount = "9999999999999999.99" // numeric(18,2)
	MinTransactionAmount = "0.01"
	AmountScale          = 2
	MaxReportRangeDays   = 366
)

// ValidateAmount validates a transaction amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinTransactionAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinTransactionAmount)
	}

	if !amount.Round(AmountScale).Equal(amount) {
		return fmt.Errorf("%w: at most %d allowed", ErrAmountPrecision, AmountScale)
	}

	maxAmount, _ := decimal.NewFromString(MaxTransactionAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransactionAmount)
	}

	return nil
}

// ValidateDescription limits the free-text description
func ValidateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLength {
		return fmt.Errorf("%w: %d characters exceeds %d", ErrDescriptionTooLong, n, MaxDescriptionLength)
	}
	return nil
}

// ValidateDateRange checks an inclusive [from, to] report range
func ValidateDateRange(from, to time.Time) error {
	from, to = DateOf(from), DateOf(to)
	if to.Before(from) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidDateRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	days := int(to.Sub(from).Hours()/24) + 1
	if days > MaxReportRangeDays {
		return fmt.Errorf("%w: %d days exceeds %d", ErrDateRangeTooWide, days, MaxReportRangeDays)
	}

	return nil
}
