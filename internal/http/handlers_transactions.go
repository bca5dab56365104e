package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        core.Date       `json:"date"`
	Description string          `json:"description"`
	CategoryID  int64           `json:"category_id"`
}

// transactionFromRequest resolves the category and derives the transaction
// type from it, the same way the generation engine does.
func (s *Server) transactionFromRequest(r *http.Request, req transactionRequest) (core.Transaction, int, string) {
	ownerID := userIDFrom(r)
	category, err := s.repo.GetCategory(r.Context(), req.CategoryID, ownerID)
	if err != nil {
		return core.Transaction{}, http.StatusNotFound, fmt.Sprintf("category %d not found", req.CategoryID)
	}

	tx := core.Transaction{
		Amount:      req.Amount,
		Type:        category.Type,
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
		CategoryID:  category.ID,
		OwnerID:     ownerID,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, http.StatusBadRequest, err.Error()
	}
	return tx, 0, ""
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tx, status, detail := s.transactionFromRequest(r, req)
	if status != 0 {
		writeError(w, status, detail)
		return
	}

	created, err := s.repo.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	s.invalidateReports(created.OwnerID)
	s.notifier.ExpenseRecorded(r.Context(), created, core.Transaction{})
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := storage.TransactionFilter{Limit: 100}

	if from, ok, err := queryDate(r, "start_date"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	} else if ok {
		filter.From = from
	}
	if to, ok, err := queryDate(r, "end_date"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	} else if ok {
		filter.To = to
	}
	if id, ok := queryInt64(r, "category_id"); ok {
		filter.CategoryID = id
	}
	if typ := strings.TrimSpace(r.URL.Query().Get("type")); typ != "" {
		t := core.CategoryType(typ)
		if !t.Valid() {
			writeError(w, http.StatusBadRequest, "invalid type")
			return
		}
		filter.Type = t
	}
	if limit, ok := queryInt(r, "limit"); ok && limit > 0 && limit <= 500 {
		filter.Limit = limit
	}
	if offset, ok := queryInt(r, "skip"); ok && offset > 0 {
		filter.Offset = offset
	}

	transactions, err := s.repo.ListTransactions(r.Context(), userIDFrom(r), filter)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tx, err := s.repo.GetTransaction(r.Context(), id, userIDFrom(r))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tx, status, detail := s.transactionFromRequest(r, req)
	if status != 0 {
		writeError(w, status, detail)
		return
	}
	tx.ID = id

	// The threshold check needs the pre-write amount to tell a genuine
	// crossing from one this transaction had already caused.
	previous, err := s.repo.GetTransaction(r.Context(), id, userIDFrom(r))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	updated, err := s.repo.UpdateTransaction(r.Context(), tx)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	s.invalidateReports(updated.OwnerID)
	s.notifier.ExpenseRecorded(r.Context(), updated, previous)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ownerID := userIDFrom(r)
	if err := s.repo.DeleteTransaction(r.Context(), id, ownerID); err != nil {
		writeStorageError(w, r, err)
		return
	}
	s.invalidateReports(ownerID)
	w.WriteHeader(http.StatusNoContent)
}
