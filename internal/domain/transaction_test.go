package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTransaction(t *testing.T) {
	now := time.Date(2025, 9, 10, 15, 20, 30, 0, time.UTC)

	t.Run("valid credit", func(t *testing.T) {
		tx, err := NewTransaction("01J", decimal.RequireFromString("150.75"), TransactionTypeCredit, "coffee", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !tx.TimestampUTC.Equal(now) {
			t.Errorf("timestamp = %v, want %v", tx.TimestampUTC, now)
		}

		e := tx.Event()
		if e.ID != "01J" || e.Type != TransactionTypeCredit || !e.Amount.Equal(tx.Amount) {
			t.Errorf("unexpected event %+v", e)
		}
	})

	tests := []struct {
		name        string
		amount      decimal.Decimal
		txType      TransactionType
		description string
		wantErr     error
	}{
		{"zero amount", decimal.Zero, TransactionTypeCredit, "", ErrInvalidAmount},
		{"negative amount", decimal.NewFromInt(-1), TransactionTypeDebit, "", ErrInvalidAmount},
		{"sub-cent amount", decimal.RequireFromString("0.001"), TransactionTypeDebit, "", ErrAmountTooSmall},
		{"fraction of a cent", decimal.RequireFromString("1.005"), TransactionTypeCredit, "", ErrAmountPrecision},
		{"above column capacity", decimal.RequireFromString("1e30"), TransactionTypeCredit, "", ErrAmountTooLarge},
		{"unknown type", decimal.NewFromInt(1), TransactionTypeUnknown, "", ErrInvalidTransactionType},
		{"description too long", decimal.NewFromInt(1), TransactionTypeCredit, strings.Repeat("x", MaxDescriptionLength+1), ErrDescriptionTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransaction("id", tt.amount, tt.txType, tt.description, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateDateRange(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := ValidateDateRange(from, from); err != nil {
		t.Errorf("single day: unexpected error %v", err)
	}
	if err := ValidateDateRange(from, from.AddDate(0, 0, MaxReportRangeDays-1)); err != nil {
		t.Errorf("max range: unexpected error %v", err)
	}
	if err := ValidateDateRange(from, from.AddDate(0, 0, MaxReportRangeDays)); !errors.Is(err, ErrDateRangeTooWide) {
		t.Errorf("expected ErrDateRangeTooWide, got %v", err)
	}
	if err := ValidateDateRange(from, from.AddDate(0, 0, -1)); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}
