package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	filter := storage.NotificationFilter{Limit: 100}

	if v := strings.TrimSpace(r.URL.Query().Get("is_read")); v != "" {
		switch v {
		case "true":
			t := true
			filter.IsRead = &t
		case "false":
			f := false
			filter.IsRead = &f
		default:
			writeError(w, http.StatusBadRequest, "is_read must be true or false")
			return
		}
	}
	if limit, ok := queryInt(r, "limit"); ok && limit > 0 && limit <= 200 {
		filter.Limit = limit
	}
	if offset, ok := queryInt(r, "skip"); ok && offset > 0 {
		filter.Offset = offset
	}

	notifications, err := s.repo.ListNotifications(r.Context(), userIDFrom(r), filter)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []core.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (s *Server) handleSetNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		IsRead bool `json:"is_read"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.repo.SetNotificationRead(r.Context(), id, userIDFrom(r), req.IsRead); err != nil {
		writeStorageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.MarkAllNotificationsRead(r.Context(), userIDFrom(r)); err != nil {
		writeStorageError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
