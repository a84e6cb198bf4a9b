// Package executor performs single primitive browser operations against a
// named remote session. Every execution opens a fresh automation handle
// bound to the existing session and releases it on every exit path.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/haasonsaas/operator/internal/automation"
	"github.com/haasonsaas/operator/internal/observability"
	"github.com/haasonsaas/operator/pkg/models"
)

// ErrNavigationTimeout is re-exported so callers can classify GOTO
// timeouts without importing the automation package.
var ErrNavigationTimeout = automation.ErrNavigationTimeout

// defaultWaitDuration applies when a WAIT instruction does not parse as
// milliseconds.
const defaultWaitDuration = time.Second

// ExecutionError wraps any failure from the underlying automation
// capability with the tool that failed.
type ExecutionError struct {
	Tool models.Tool
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Result is the tool-dependent outcome of one execution. EXTRACT sets
// Extraction, OBSERVE sets Observations, SCREENSHOT sets Screenshot; all
// other tools return an empty result.
type Result struct {
	Extraction   *string
	Observations []automation.Observation
	Screenshot   []byte
}

// SessionDialer resolves a session identifier to its automation connect
// URL. The session manager provides the production implementation.
type SessionDialer interface {
	ConnectURL(ctx context.Context, sessionID string) (string, error)
}

// Executor runs one primitive browser operation at a time against a
// remote session. It holds no per-session state; the session identifier
// is the only handle.
type Executor struct {
	connector automation.Connector
	dialer    SessionDialer
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New constructs an executor.
func New(connector automation.Connector, dialer SessionDialer, logger *slog.Logger, metrics *observability.Metrics) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		connector: connector,
		dialer:    dialer,
		logger:    logger,
		metrics:   metrics,
	}
}

// Execute performs one operation of the given tool against sessionID.
// The automation handle is acquired fresh and released unconditionally,
// success or failure. Failures are wrapped as ExecutionError carrying the
// tool name.
func (e *Executor) Execute(ctx context.Context, sessionID string, tool models.Tool, instruction string) (*Result, error) {
	result, err := e.execute(ctx, sessionID, tool, instruction)
	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.StepsExecuted.WithLabelValues(string(tool), status).Inc()
	}
	if err != nil {
		return nil, &ExecutionError{Tool: tool, Err: err}
	}
	return result, nil
}

func (e *Executor) execute(ctx context.Context, sessionID string, tool models.Tool, instruction string) (*Result, error) {
	// WAIT never touches the remote session; no handle is acquired.
	if tool == models.ToolWait {
		return &Result{}, e.wait(ctx, instruction)
	}

	connectURL, err := e.dialer.ConnectURL(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session %s: %w", sessionID, err)
	}

	driver, err := e.connector.Connect(ctx, connectURL)
	if err != nil {
		return nil, fmt.Errorf("acquire handle: %w", err)
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			e.logger.Warn("failed to release automation handle",
				"session_id", sessionID, "tool", tool, "error", cerr)
		}
	}()

	switch tool {
	case models.ToolGoto:
		return &Result{}, driver.Navigate(ctx, instruction)
	case models.ToolAct:
		return &Result{}, driver.Act(ctx, instruction)
	case models.ToolExtract:
		extraction, err := driver.Extract(ctx, instruction)
		if err != nil {
			return nil, err
		}
		return &Result{Extraction: &extraction}, nil
	case models.ToolObserve:
		observations, err := driver.Observe(ctx, instruction)
		if err != nil {
			return nil, err
		}
		return &Result{Observations: observations}, nil
	case models.ToolScreenshot:
		shot, err := driver.Screenshot(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Screenshot: shot}, nil
	case models.ToolNavback:
		return &Result{}, driver.Back(ctx)
	case models.ToolClose:
		// Closing the handle is the whole operation; the deferred
		// release does it.
		return &Result{}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", tool)
	}
}

// CurrentURL reports the session page's URL, best-effort.
func (e *Executor) CurrentURL(ctx context.Context, sessionID string) (string, error) {
	connectURL, err := e.dialer.ConnectURL(ctx, sessionID)
	if err != nil {
		return "", err
	}
	driver, err := e.connector.Connect(ctx, connectURL)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			e.logger.Warn("failed to release automation handle",
				"session_id", sessionID, "error", cerr)
		}
	}()
	return driver.CurrentURL(ctx)
}

// wait pauses for the instruction's duration in milliseconds without
// touching the session. Unparsable durations fall back to one second.
func (e *Executor) wait(ctx context.Context, instruction string) error {
	duration := defaultWaitDuration
	if ms, err := strconv.Atoi(instruction); err == nil && ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
		return nil
	}
}

// IsNavigationTimeout reports whether err stems from a GOTO that did not
// commit in time.
func IsNavigationTimeout(err error) bool {
	return errors.Is(err, ErrNavigationTimeout)
}
