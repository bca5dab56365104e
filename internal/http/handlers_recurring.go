package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

type ruleRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	StartDate   core.Date       `json:"start_date"`
	EndDate     core.Date       `json:"end_date,omitempty"`
	Frequency   core.Frequency  `json:"frequency"`
	IsActive    *bool           `json:"is_active,omitempty"`
	CategoryID  int64           `json:"category_id"`
}

func (s *Server) ruleFromRequest(r *http.Request, req ruleRequest) (core.RecurringRule, int, string) {
	ownerID := userIDFrom(r)
	if _, err := s.repo.GetCategory(r.Context(), req.CategoryID, ownerID); err != nil {
		return core.RecurringRule{}, http.StatusNotFound, fmt.Sprintf("category %d not found", req.CategoryID)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule := core.RecurringRule{
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Frequency:   req.Frequency,
		IsActive:    active,
		OwnerID:     ownerID,
		CategoryID:  req.CategoryID,
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, http.StatusBadRequest, err.Error()
	}
	return rule, 0, ""
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rule, status, detail := s.ruleFromRequest(r, req)
	if status != 0 {
		writeError(w, status, detail)
		return
	}

	created, err := s.repo.CreateRule(r.Context(), rule)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.repo.ListRules(r.Context(), userIDFrom(r))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	rule, err := s.repo.GetRule(r.Context(), id, userIDFrom(r))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleUpdateRule rewrites a rule's definition. The generation cursor is
// never touched here: occurrences already created stay counted even when
// the start date moves.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	rule, status, detail := s.ruleFromRequest(r, req)
	if status != 0 {
		writeError(w, status, detail)
		return
	}
	rule.ID = id

	updated, err := s.repo.UpdateRule(r.Context(), rule)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.repo.DeleteRule(r.Context(), id, userIDFrom(r)); err != nil {
		writeStorageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateDue starts a generation run in the background and answers
// immediately. An optional run_date query parameter replays the run as if
// it happened on that day.
func (s *Server) handleGenerateDue(w http.ResponseWriter, r *http.Request) {
	runDate := core.Today()
	if v := strings.TrimSpace(r.URL.Query().Get("run_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid run_date, use YYYY-MM-DD")
			return
		}
		runDate = d
	}

	s.scheduler.Trigger(runDate)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "recurring transaction generation accepted",
	})
}
