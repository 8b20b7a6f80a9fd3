package domain

import "errors"

var (
	// Event errors
	ErrDecode = errors.New("invalid transaction event")

	// Balance errors
	ErrDailyBalanceNotFound = errors.New("daily balance not found")
	ErrInvalidDateRange     = errors.New("invalid date range")

	// Transaction errors
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("transaction type must be Credit or Debit")
)
