package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/haasonsaas/operator/internal/operator"
	"github.com/haasonsaas/operator/pkg/models"
)

// agentRequest is the body of POST /api/agent.
type agentRequest struct {
	Goal      string `json:"goal"`
	SessionID string `json:"sessionId"`
	Timezone  string `json:"timezone"`
	ContextID string `json:"contextId"`
}

// sessionRequest is the body of the session lifecycle endpoints.
type sessionRequest struct {
	SessionID string `json:"sessionId"`
	Timezone  string `json:"timezone"`
	ContextID string `json:"contextId"`
}

// sessionResponse is the success body of POST /api/sessions.
type sessionResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"sessionUrl"`
	ContextID  string `json:"contextId"`
}

// failureResponse is the error body of the session endpoints.
type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleAgent starts an agent run and streams its events. Input
// validation happens before any remote call; once streaming has begun,
// all failures surface as a terminal error event, never as a broken
// response.
func (h *Handler) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		h.jsonError(w, "goal is required", http.StatusBadRequest)
		return
	}

	// A caller-supplied session is reused verbatim and never torn down
	// by this run. Its metadata is enriched best-effort.
	var supplied *models.Session
	if req.SessionID != "" {
		supplied = h.describeSession(r.Context(), req.SessionID)
	}

	emitter, err := NewStreamEmitter(w, h.config.Logger)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := h.config.Loop.Run(ctx, &operator.RunRequest{
		Goal:      req.Goal,
		Session:   supplied,
		Timezone:  req.Timezone,
		ContextID: req.ContextID,
	})

	terminal := false
	for ev := range events {
		if err := emitter.Emit(ev); err != nil {
			h.config.Logger.Debug("stream consumer gone", "error", err)
			cancel()
			for range events {
				// Drain so the producer observes cancellation and exits.
			}
			return
		}
		switch ev.EventType() {
		case models.EventComplete, models.EventError:
			terminal = true
		}
	}

	// The producer should always end with a terminal event; if it did
	// not, close the stream with a synthetic one.
	if !terminal {
		_ = emitter.Emit(models.ErrorEvent{
			Type:  models.EventError,
			Error: "agent run ended unexpectedly",
		})
	}
}

// describeSession fetches live metadata for a caller-supplied session.
// Failure degrades to the bare identifier; the run can still proceed.
func (h *Handler) describeSession(ctx context.Context, sessionID string) *models.Session {
	session, err := h.config.Sessions.Describe(ctx, sessionID)
	if err != nil {
		h.config.Logger.Warn("failed to describe session", "session_id", sessionID, "error", err)
		return &models.Session{SessionID: sessionID}
	}
	return session
}

// handleSessionCreate provisions a hosted browser session.
func (h *Handler) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.config.Sessions.Create(r.Context(), req.Timezone, req.ContextID)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(failureResponse{
			Error:   "failed to create session",
			Details: err.Error(),
		})
		return
	}

	h.jsonResponse(w, sessionResponse{
		Success:    true,
		SessionID:  session.SessionID,
		SessionURL: session.SessionURL,
		ContextID:  session.ContextID,
	})
}

// handleSessionDelete releases a hosted browser session.
func (h *Handler) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		h.jsonError(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	if err := h.config.Sessions.Terminate(r.Context(), req.SessionID); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(failureResponse{
			Error:   "failed to terminate session",
			Details: err.Error(),
		})
		return
	}

	h.jsonResponse(w, map[string]bool{"success": true})
}

// handleRuns serves the recorded run history, newest first.
func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if h.config.RunStore == nil {
		h.jsonError(w, "run history is not configured", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.config.RunStore.List(r.Context(), limit)
	if err != nil {
		h.config.Logger.Error("failed to list runs", "error", err)
		h.jsonError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, map[string]any{"runs": records, "total": len(records)})
}
