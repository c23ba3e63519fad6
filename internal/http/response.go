package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"blockbudget/internal/budget"
	"blockbudget/internal/core"
	"blockbudget/internal/log"
	"blockbudget/internal/ports"
	"blockbudget/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes. Store failures are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errMalformedBody):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, services.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, ports.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

type categoryResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MonthlyBudget string `json:"monthly_budget"`
	Archived      bool   `json:"archived"`
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:            c.ID,
		Name:          c.Name,
		MonthlyBudget: core.FormatAmount(c.MonthlyBudget),
		Archived:      c.Archived,
	}
}

type expenseResponse struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Amount     string `json:"amount"`
	Note       string `json:"note"`
	Date       string `json:"date"`
	Recurring  bool   `json:"recurring,omitempty"`
}

func newExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:         e.ID,
		CategoryID: e.CategoryID,
		Amount:     core.FormatAmount(e.Amount),
		Note:       e.Note,
		Date:       e.Date,
		Recurring:  e.Recurring,
	}
}

type recurringResponse struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Amount     string `json:"amount"`
	Note       string `json:"note"`
	DayOfMonth int    `json:"day_of_month"`
	Active     bool   `json:"active"`
}

func newRecurringResponse(rule core.RecurringRule) recurringResponse {
	return recurringResponse{
		ID:         rule.ID,
		CategoryID: rule.CategoryID,
		Amount:     core.FormatAmount(rule.Amount),
		Note:       rule.Note,
		DayOfMonth: rule.DayOfMonth,
		Active:     rule.Active,
	}
}

type incomeResponse struct {
	Income *string `json:"income"`
}

func newIncomeResponse(m *core.Money) incomeResponse {
	if m == nil {
		return incomeResponse{}
	}
	s := core.FormatAmount(*m)
	return incomeResponse{Income: &s}
}

type analysisRowResponse struct {
	CategoryID string        `json:"category_id"`
	Category   string        `json:"category"`
	Budget     string        `json:"budget"`
	Actual     string        `json:"actual"`
	Delta      string        `json:"delta"`
	Status     budget.Status `json:"status"`
}

type analysisResponse struct {
	Month       string                `json:"month"`
	Rows        []analysisRowResponse `json:"rows"`
	TotalBudget string                `json:"total_budget"`
	TotalActual string                `json:"total_actual"`
	Leftover    string                `json:"leftover"`
	PercentUsed int64                 `json:"percent_used"`
	Unallocated string                `json:"unallocated"`
	HasIncome   bool                  `json:"has_income"`
}

func newAnalysisResponse(month core.Month, a budget.Analysis) analysisResponse {
	rows := make([]analysisRowResponse, 0, len(a.Rows))
	for _, row := range a.Rows {
		rows = append(rows, analysisRowResponse{
			CategoryID: row.Category.ID,
			Category:   row.Category.Name,
			Budget:     core.FormatAmount(row.Category.MonthlyBudget),
			Actual:     core.FormatAmount(row.Actual),
			Delta:      core.FormatAmount(row.Delta),
			Status:     row.Status,
		})
	}
	return analysisResponse{
		Month:       month.String(),
		Rows:        rows,
		TotalBudget: core.FormatAmount(a.TotalBudget),
		TotalActual: core.FormatAmount(a.TotalActual),
		Leftover:    core.FormatAmount(a.Leftover),
		PercentUsed: a.PercentUsed,
		Unallocated: core.FormatAmount(a.Unallocated),
		HasIncome:   a.HasIncome,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
