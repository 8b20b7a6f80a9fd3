package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivaldobatista/CashflowEngine/internal/adapter/http/dto"
	"github.com/ivaldobatista/CashflowEngine/internal/domain"
)

// ReportService defines the behavior needed by ReportHandler.
type ReportService interface {
	GetDailyBalance(ctx context.Context, date time.Time) (*domain.DailyBalance, error)
	ListDailyBalances(ctx context.Context, from, to time.Time) ([]*domain.DailyBalance, error)
}

// ReportHandler serves consolidated daily balance reports.
type ReportHandler struct {
	reportUC ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportUC ReportService) *ReportHandler {
	return &ReportHandler{reportUC: reportUC}
}

// GetDaily returns the consolidated balance of the day in the {date} path
// parameter.
func (h *ReportHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	balance, err := h.reportUC.GetDailyBalance(r.Context(), date)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get daily balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.DailyBalanceFromDomain(balance))
}

// ListRange returns the stored balances between the from and to query
// parameters, both inclusive.
func (h *ReportHandler) ListRange(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from", err.Error())
		return
	}

	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to", err.Error())
		return
	}

	balances, err := h.reportUC.ListDailyBalances(r.Context(), from, to)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list daily balances", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.DailyBalancesFromDomain(from, to, balances))
}
