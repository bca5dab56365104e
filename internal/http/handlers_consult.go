package http

import (
	"net/http"
	"strings"
)

type consultRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider,omitempty"`
}

// handleConsult answers financial questions through an external model
// provider. No provider integration is wired up yet, so it reports the
// feature as unavailable once the input has been validated.
func (s *Server) handleConsult(w http.ResponseWriter, r *http.Request) {
	var req consultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	writeError(w, http.StatusServiceUnavailable, "no consultation provider configured")
}
