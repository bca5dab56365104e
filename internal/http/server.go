package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"bilancio/internal/auth"
	"bilancio/internal/scheduler"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUserID    ctxKey = "user_id"
)

type Server struct {
	http.Server

	repo      *storage.SQLiteRepository
	auth      *auth.Service
	scheduler *scheduler.Scheduler
	notifier  *services.Notifier

	rateLimiter *rateLimiter

	// Report responses are cached briefly; any write by the owner
	// invalidates their entries.
	reportCache *gocache.Cache

	shutdownOnce sync.Once
}

func NewServer(addr string, repo *storage.SQLiteRepository, authService *auth.Service, sched *scheduler.Scheduler, notifier *services.Notifier) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		repo:        repo,
		auth:        authService,
		scheduler:   sched,
		notifier:    notifier,
		rateLimiter: newRateLimiter(),
		reportCache: gocache.New(5*time.Minute, 10*time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Auth endpoints are rate limited per client IP.
	mux.HandleFunc("POST /api/auth/register", s.public(s.handleRegister, true))
	mux.HandleFunc("POST /api/auth/token", s.public(s.handleToken, true))
	mux.HandleFunc("POST /api/auth/refresh", s.public(s.handleRefresh, true))
	mux.HandleFunc("GET /api/users/me", s.protected(s.handleMe))
	mux.HandleFunc("PUT /api/users/me/password", s.protected(s.handleChangePassword))

	mux.HandleFunc("POST /api/categories", s.protected(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories", s.protected(s.handleListCategories))
	mux.HandleFunc("GET /api/categories/{id}", s.protected(s.handleGetCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.protected(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.protected(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.protected(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protected(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/budgets", s.protected(s.handleCreateBudget))
	mux.HandleFunc("GET /api/budgets", s.protected(s.handleListBudgets))
	mux.HandleFunc("GET /api/budgets/{id}", s.protected(s.handleGetBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", s.protected(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.protected(s.handleDeleteBudget))

	mux.HandleFunc("POST /api/recurring", s.protected(s.handleCreateRule))
	mux.HandleFunc("GET /api/recurring", s.protected(s.handleListRules))
	mux.HandleFunc("GET /api/recurring/{id}", s.protected(s.handleGetRule))
	mux.HandleFunc("PUT /api/recurring/{id}", s.protected(s.handleUpdateRule))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.protected(s.handleDeleteRule))
	mux.HandleFunc("POST /api/recurring/generate-due", s.protected(s.handleGenerateDue))

	mux.HandleFunc("GET /api/notifications", s.protected(s.handleListNotifications))
	mux.HandleFunc("PATCH /api/notifications/{id}", s.protected(s.handleSetNotificationRead))
	mux.HandleFunc("POST /api/notifications/mark-all-read", s.protected(s.handleMarkAllRead))

	mux.HandleFunc("GET /api/reports/monthly", s.protected(s.handleMonthlyReport))
	mux.HandleFunc("GET /api/reports/yearly", s.protected(s.handleYearlyReport))
	mux.HandleFunc("GET /api/reports/custom", s.protected(s.handleCustomReport))

	mux.HandleFunc("POST /api/consult", s.protected(s.handleConsult))

	return s
}

// public wraps unauthenticated endpoints with logging, security headers and
// optional per-IP rate limiting.
func (s *Server) public(next http.HandlerFunc, limited bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientAddr(r)
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if limited && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		setSecurityHeaders(w)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// protected additionally requires a valid Bearer access token and rejects
// inactive users.
func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return s.public(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.auth.ValidateAccessToken(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := s.repo.GetUserByID(r.Context(), userID)
		if err != nil || !user.IsActive {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "inactive or unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		next(w, r.WithContext(ctx))
	}, false)
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKeyUserID).(int64)
	return id
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the HTTP server and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
