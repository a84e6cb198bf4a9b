// Package sessions manages the lifecycle of remote hosted browser
// sessions: creation with region placement and context persistence, and
// best-effort termination.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/operator/internal/browserbase"
	"github.com/haasonsaas/operator/internal/observability"
	"github.com/haasonsaas/operator/internal/regions"
	"github.com/haasonsaas/operator/pkg/models"
)

// CreationStage names the step at which session creation failed.
type CreationStage string

const (
	StageCredentials CreationStage = "credentials"
	StageContext     CreationStage = "context"
	StageSession     CreationStage = "session"
	StageDebug       CreationStage = "debug"
)

// CreationError reports a failed session creation and the stage that
// failed.
type CreationError struct {
	Stage CreationStage
	Err   error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("session creation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// TerminationError reports a failed session release. Callers treat it as
// best-effort: log and continue, never abort a broader cleanup sequence.
type TerminationError struct {
	SessionID string
	Err       error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("session %s termination failed: %v", e.SessionID, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }

// Manager creates and terminates hosted browser sessions. It keeps no
// local state beyond its configuration; the returned identifiers are the
// only handles.
type Manager struct {
	client    *browserbase.Client
	projectID string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewManager constructs a session manager for the given project.
func NewManager(client *browserbase.Client, projectID string, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:    client,
		projectID: projectID,
		logger:    logger,
		metrics:   metrics,
	}
}

// Create provisions a new hosted browser session placed near the caller's
// timezone. When contextID is empty a fresh persisted context is minted
// first and returned with the session so the caller can reuse it later.
// The session is created with keep-alive so the provider does not reclaim
// it mid-run.
func (m *Manager) Create(ctx context.Context, timezone, contextID string) (*models.Session, error) {
	if m.client == nil || strings.TrimSpace(m.projectID) == "" {
		return nil, &CreationError{
			Stage: StageCredentials,
			Err:   fmt.Errorf("browserbase credentials are not configured"),
		}
	}

	if contextID == "" {
		created, err := m.client.CreateContext(ctx, m.projectID)
		if err != nil {
			return nil, &CreationError{Stage: StageContext, Err: err}
		}
		contextID = created.ID
	}

	region := regions.Select(timezone)
	session, err := m.client.CreateSession(ctx, browserbase.CreateSessionRequest{
		ProjectID: m.projectID,
		Region:    string(region),
		KeepAlive: true,
		BrowserSettings: &browserbase.BrowserSettings{
			Context: &browserbase.ContextSettings{ID: contextID, Persist: true},
		},
	})
	if err != nil {
		return nil, &CreationError{Stage: StageSession, Err: err}
	}

	debug, err := m.client.Debug(ctx, session.ID)
	if err != nil {
		return nil, &CreationError{Stage: StageDebug, Err: err}
	}

	if m.metrics != nil {
		m.metrics.SessionsCreated.WithLabelValues(string(region)).Inc()
	}
	m.logger.Info("session created",
		"session_id", session.ID,
		"region", region,
		"context_id", contextID,
	)

	return &models.Session{
		SessionID:  session.ID,
		SessionURL: debug.DebuggerFullscreenURL,
		ContextID:  contextID,
	}, nil
}

// Terminate requests release of the session from the hosting provider.
// Failure is reported but must never abort the caller's cleanup.
func (m *Manager) Terminate(ctx context.Context, sessionID string) error {
	if err := m.client.ReleaseSession(ctx, m.projectID, sessionID); err != nil {
		if m.metrics != nil {
			m.metrics.SessionTerminations.WithLabelValues("error").Inc()
		}
		return &TerminationError{SessionID: sessionID, Err: err}
	}
	if m.metrics != nil {
		m.metrics.SessionTerminations.WithLabelValues("success").Inc()
	}
	m.logger.Info("session released", "session_id", sessionID)
	return nil
}

// Describe returns a caller-facing view of an existing session: its
// live-view URL and bound context.
func (m *Manager) Describe(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := m.client.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	debug, err := m.client.Debug(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		SessionID:  sessionID,
		SessionURL: debug.DebuggerFullscreenURL,
		ContextID:  session.ContextID,
	}, nil
}

// ConnectURL returns the CDP connect URL for an existing session.
func (m *Manager) ConnectURL(ctx context.Context, sessionID string) (string, error) {
	session, err := m.client.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.ConnectURL == "" {
		return "", fmt.Errorf("session %s has no connect URL", sessionID)
	}
	return session.ConnectURL, nil
}
