package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"blockbudget/internal/core"
	"blockbudget/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.budget.ListCategories(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(cats, newCategoryResponse))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := s.budget.CreateCategory(r.Context(), userID(r), req.Name, string(req.MonthlyBudget))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryResponse(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := services.CategoryPatch{Name: req.Name}
	if req.MonthlyBudget != nil {
		b := string(*req.MonthlyBudget)
		patch.Budget = &b
	}

	c, err := s.budget.UpdateCategory(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(c))
}

func (s *Server) handleArchiveCategory(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, s.budget.ArchiveCategory)
}

func (s *Server) handleUnarchiveCategory(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, s.budget.UnarchiveCategory)
}

type categoryOp func(ctx context.Context, userID, id string) (core.Category, error)

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request, op categoryOp) {
	c, err := op(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.budget.DeleteCategory(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
