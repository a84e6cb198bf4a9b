// Package web exposes the Operator HTTP API: streaming agent runs,
// session lifecycle endpoints, run history, health, and metrics.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/operator/internal/operator"
	"github.com/haasonsaas/operator/internal/runs"
	"github.com/haasonsaas/operator/pkg/models"
)

// AgentRunner starts agent runs. The operator.Loop provides the
// production implementation.
type AgentRunner interface {
	Run(ctx context.Context, req *operator.RunRequest) <-chan models.AgentEvent
}

// SessionService manages hosted browser sessions for the session
// lifecycle endpoints.
type SessionService interface {
	Create(ctx context.Context, timezone, contextID string) (*models.Session, error)
	Terminate(ctx context.Context, sessionID string) error
	Describe(ctx context.Context, sessionID string) (*models.Session, error)
}

// Config wires the handler's collaborators.
type Config struct {
	// AuthToken is the static credential required on API routes. Empty
	// means the server is misconfigured; API requests are rejected.
	AuthToken string

	// Sessions manages hosted browser sessions.
	Sessions SessionService

	// Loop runs agent goals.
	Loop AgentRunner

	// RunStore serves run history. Nil disables /api/runs.
	RunStore *runs.Store

	// Logger for request and handler logging.
	Logger *slog.Logger
}

// Handler is the Operator HTTP API handler.
type Handler struct {
	config *Config
	mux    *http.ServeMux
}

// NewHandler builds the API handler and its routes.
func NewHandler(cfg *Config) *Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Handler{config: cfg, mux: http.NewServeMux()}

	authed := func(fn http.HandlerFunc) http.Handler {
		return AuthMiddleware(cfg.AuthToken, cfg.Logger)(fn)
	}

	h.mux.Handle("POST /api/agent", authed(h.handleAgent))
	h.mux.Handle("POST /api/sessions", authed(h.handleSessionCreate))
	h.mux.Handle("DELETE /api/sessions", authed(h.handleSessionDelete))
	h.mux.Handle("GET /api/runs", authed(h.handleRuns))
	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

// Mount returns the handler with request logging applied.
func (h *Handler) Mount() http.Handler {
	return LoggingMiddleware(h.config.Logger)(h.mux)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.config.Logger.Error("json encode error", "error", err)
	}
}

// jsonError writes a JSON error response.
func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
