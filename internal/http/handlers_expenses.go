package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"blockbudget/internal/services"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.budget.ListExpenses(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(expenses, newExpenseResponse))
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req recordExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.budget.RecordExpense(r.Context(), userID(r), services.ExpenseInput{
		CategoryID:    req.CategoryID,
		Amount:        string(req.Amount),
		Note:          req.Note,
		Date:          req.Date,
		MakeRecurring: req.MakeRecurring,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExpenseResponse(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.DeleteExpense(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules, err := s.budget.ListRecurring(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(rules, newRecurringResponse))
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req createRecurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rule, err := s.budget.CreateRecurring(r.Context(), userID(r), services.RecurringInput{
		CategoryID: req.CategoryID,
		Amount:     string(req.Amount),
		Note:       req.Note,
		DayOfMonth: req.DayOfMonth,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecurringResponse(rule))
}

func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	rule, err := s.budget.ToggleRecurring(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(rule))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.DeleteRecurring(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
