package http

import (
	"bytes"
	"net/http"
	"strings"

	"blockbudget/internal/core"
	"blockbudget/internal/log"
)

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	income, err := s.budget.GetIncome(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncomeResponse(income))
}

// handleSetIncome stores the monthly income. An empty or null value clears
// it.
func (s *Server) handleSetIncome(w http.ResponseWriter, r *http.Request) {
	var req setIncomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	income, err := s.budget.SetIncome(r.Context(), userID(r), string(req.Income))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncomeResponse(income))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	month := s.budget.CurrentMonth()
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		m, err := core.ParseMonth(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		month = m
	}

	user := userID(r)
	if a, ok := s.analysisCache.get(user, month); ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Analysis cache hit", log.FieldMonth, month.String())
		writeJSON(w, http.StatusOK, newAnalysisResponse(month, a))
		return
	}

	gen := s.analysisCache.generation(user)
	a, err := s.budget.AnalyzeMonth(r.Context(), user, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !s.analysisCache.set(user, month, gen, a) {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Skipped caching analysis invalidated by a write", log.FieldMonth, month.String())
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(month, a))
}

// handleExportCSV renders into memory first so a store failure still
// yields a clean 500.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.budget.ExportCSV(r.Context(), &buf, userID(r)); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="blockbudget.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write CSV export", log.FieldError, err)
	}
}
