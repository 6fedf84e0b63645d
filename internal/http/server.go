package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"financeai/internal/insights"
	"financeai/internal/store"
)

// InsightsAdvisor generates AI spending analysis. Nil when no API key
// was configured, the endpoint then reports service unavailable.
type InsightsAdvisor interface {
	Generate(ctx context.Context, req insights.Request) (insights.Insights, error)
}

// Server exposes the finance store as a JSON API.
type Server struct {
	http.Server
	store       *store.FinanceStore
	advisor     InsightsAdvisor
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// ServerOption configures optional server collaborators.
type ServerOption func(*Server)

// WithAdvisor attaches an insights advisor.
func WithAdvisor(a InsightsAdvisor) ServerOption {
	return func(s *Server) { s.advisor = a }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, st *store.FinanceStore, opts ...ServerOption) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		store:       st,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/data", s.secured(s.handleData))
	mux.HandleFunc("/api/export", s.secured(s.handleExport))
	mux.HandleFunc("/api/import", s.secured(s.handleImport))
	mux.HandleFunc("/api/transactions", s.secured(s.handleTransactions))
	mux.HandleFunc("/api/transactions/", s.secured(s.handleTransactionByID))
	mux.HandleFunc("/api/spending", s.secured(s.handleSpending))
	mux.HandleFunc("/api/goals", s.secured(s.handleGoals))
	mux.HandleFunc("/api/goals/", s.secured(s.handleGoalByID))
	mux.HandleFunc("/api/onboarding", s.secured(s.handleOnboarding))
	mux.HandleFunc("/api/insights", s.secured(s.handleInsights))
	mux.HandleFunc("/api/reports/csv", s.secured(s.handleReportCSV))
	mux.HandleFunc("/api/reports/summary", s.secured(s.handleReportSummary))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type contextKey string

const requestIDKey contextKey = "request_id"

// secured adds security headers, rate limiting, and request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := "req_" + uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request blocked",
				"request_id", requestID,
				"client_ip", clientIP,
				"url", r.URL.String())
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		// Rate limit writes only, reads are cheap.
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// A load never fails, it falls back to defaults. Reaching this far
	// means the store wiring is intact.
	s.store.UserData(r.Context())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
