package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/domain"
)

// DailyBalanceResponse represents a consolidated day in API responses.
type DailyBalanceResponse struct {
	Date          string          `json:"date"`
	Balance       decimal.Decimal `json:"balance"`
	LastUpdateUTC *time.Time      `json:"lastUpdateUtc,omitempty"`
}

// DailyBalanceFromDomain converts a domain daily balance to a response. Days
// without activity carry no last update.
func DailyBalanceFromDomain(b *domain.DailyBalance) *DailyBalanceResponse {
	resp := &DailyBalanceResponse{
		Date:    b.Date.Format(time.DateOnly),
		Balance: b.Balance.Round(2),
	}
	if b.ID != "" && !b.LastUpdateUTC.IsZero() {
		t := b.LastUpdateUTC.UTC()
		resp.LastUpdateUTC = &t
	}

	return resp
}

// DailyBalancesResponse represents a consolidated date range.
type DailyBalancesResponse struct {
	From     string                  `json:"from"`
	To       string                  `json:"to"`
	Total    decimal.Decimal         `json:"total"`
	Balances []*DailyBalanceResponse `json:"balances"`
}

// DailyBalancesFromDomain converts stored balances of a range to a response.
func DailyBalancesFromDomain(from, to time.Time, balances []*domain.DailyBalance) *DailyBalancesResponse {
	result := &DailyBalancesResponse{
		From:     from.Format(time.DateOnly),
		To:       to.Format(time.DateOnly),
		Total:    decimal.Zero,
		Balances: make([]*DailyBalanceResponse, len(balances)),
	}

	for i, b := range balances {
		result.Balances[i] = DailyBalanceFromDomain(b)
		result.Total = result.Total.Add(b.Balance)
	}
	result.Total = result.Total.Round(2)

	return result
}

// TransactionResponse represents a launched transaction in API responses.
type TransactionResponse struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Description  string          `json:"description,omitempty"`
	TimestampUTC time.Time       `json:"timestampUtc"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:           t.ID,
		Amount:       t.Amount,
		Type:         t.Type.String(),
		Description:  t.Description,
		TimestampUTC: t.TimestampUTC,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
