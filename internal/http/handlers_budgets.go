package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type budgetRequest struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	CategoryID int64           `json:"category_id,omitempty"`
}

func (s *Server) budgetFromRequest(r *http.Request, req budgetRequest) (core.Budget, int, string) {
	ownerID := userIDFrom(r)
	if req.CategoryID != 0 {
		if _, err := s.repo.GetCategory(r.Context(), req.CategoryID, ownerID); err != nil {
			return core.Budget{}, http.StatusNotFound, fmt.Sprintf("category %d not found", req.CategoryID)
		}
	}

	budget := core.Budget{
		Year:       req.Year,
		Month:      req.Month,
		Amount:     req.Amount,
		OwnerID:    ownerID,
		CategoryID: req.CategoryID,
	}
	if err := budget.Validate(); err != nil {
		return core.Budget{}, http.StatusBadRequest, err.Error()
	}
	return budget, 0, ""
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	budget, status, detail := s.budgetFromRequest(r, req)
	if status != 0 {
		writeError(w, status, detail)
		return
	}

	created, err := s.repo.CreateBudget(r.Context(), budget)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	var filter storage.BudgetFilter
	if year, ok := queryInt(r, "year"); ok {
		filter.Year = year
	}
	if month, ok := queryInt(r, "month"); ok {
		if month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
		filter.Month = month
	}
	if id, ok := queryInt64(r, "category_id"); ok {
		filter.CategoryID = id
	}

	budgets, err := s.repo.ListBudgets(r.Context(), userIDFrom(r), filter)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []core.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	budget, err := s.repo.GetBudget(r.Context(), id, userIDFrom(r))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	budget, status, detail := s.budgetFromRequest(r, req)
	if status != 0 {
		writeError(w, status, detail)
		return
	}
	budget.ID = id

	updated, err := s.repo.UpdateBudget(r.Context(), budget)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.repo.DeleteBudget(r.Context(), id, userIDFrom(r)); err != nil {
		writeStorageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
