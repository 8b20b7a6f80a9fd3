package dto

import (
	"github.com/shopspring/decimal"

	"github.com/ivaldobatista/CashflowEngine/internal/usecase"
)

// CreateTransactionRequest represents a request to launch a transaction.
type CreateTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransactionRequest) ToUseCaseInput() usecase.CreateTransactionInput {
	return usecase.CreateTransactionInput{
		Amount:      r.Amount,
		Type:        r.Type,
		Description: r.Description,
	}
}
