package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"bilancio/internal/core"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, userID int64) {
	access, err := s.auth.GenerateAccessToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to sign access token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	refresh, err := s.auth.GenerateRefreshToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to sign refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	req.Email = sanitizeInput(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.repo.CreateUser(r.Context(), req.Email, hash)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		writeStorageError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "User registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// handleToken exchanges credentials for a token pair. Both JSON bodies and
// form posts are accepted.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	email, password, ok := credentials(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.repo.GetUserByEmail(r.Context(), sanitizeInput(email))
	if err != nil {
		// Same answer for unknown email and wrong password.
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "inactive user")
		return
	}
	if err := s.auth.CompareHashAndPassword(user.HashedPassword, password); err != nil {
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}

	s.issueTokens(w, r, user.ID)
}

func credentials(r *http.Request) (email, password string, ok bool) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return "", "", false
		}
		// The form field is called username in the usual password flow.
		email = r.Form.Get("username")
		if email == "" {
			email = r.Form.Get("email")
		}
		return email, r.Form.Get("password"), email != ""
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return "", "", false
	}
	return req.Email, req.Password, req.Email != ""
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	userID, err := s.auth.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	user, err := s.repo.GetUserByID(r.Context(), userID)
	if err != nil || !user.IsActive {
		writeError(w, http.StatusUnauthorized, "inactive or unknown user")
		return
	}

	s.issueTokens(w, r, userID)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.repo.GetUserByID(r.Context(), userIDFrom(r))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	userID := userIDFrom(r)
	user, err := s.repo.GetUserByID(r.Context(), userID)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if err := s.auth.CompareHashAndPassword(user.HashedPassword, req.CurrentPassword); err != nil {
		writeError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}

	hash, err := s.auth.HashPassword(req.NewPassword)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.repo.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		writeStorageError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
