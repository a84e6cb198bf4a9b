// Package operator runs the agent loop: resolve a browser session, pick a
// starting URL, then alternate planning and execution until the planner
// closes the run or an error ends it. Progress is emitted as a stream of
// typed events.
//
// The loop is an explicit state machine:
//
//	STARTING ──▶ NAVIGATING ──▶ STEPPING ──▶ COMPLETE
//	    │             │             │
//	    └─────────────┴─────────────┴──────▶ FAILED
//
// One run owns one session for its whole duration; no two actions for the
// same session ever execute concurrently. Failed steps are never retried
// internally; retry is a caller decision made by re-invoking with the
// same session.
package operator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/operator/internal/executor"
	"github.com/haasonsaas/operator/internal/observability"
	"github.com/haasonsaas/operator/internal/planner"
	"github.com/haasonsaas/operator/internal/runs"
	"github.com/haasonsaas/operator/pkg/models"
)

// SessionStore resolves and reclaims hosted browser sessions. The
// sessions.Manager provides the production implementation.
type SessionStore interface {
	Create(ctx context.Context, timezone, contextID string) (*models.Session, error)
	Terminate(ctx context.Context, sessionID string) error
}

// StepExecutor performs one primitive browser operation.
type StepExecutor interface {
	Execute(ctx context.Context, sessionID string, tool models.Tool, instruction string) (*executor.Result, error)
}

// StepPlanner produces the next step and the starting URL.
type StepPlanner interface {
	NextStep(ctx context.Context, sc *planner.StepContext) (models.Step, error)
	StartingURL(ctx context.Context, goal string) (url, reasoning string, err error)
}

// state tags the loop's current phase. Control flow is driven by this
// tag, not by error propagation alone.
type state int

const (
	stateStarting state = iota
	stateNavigating
	stateStepping
	stateComplete
	stateFailed
)

// terminateTimeout bounds best-effort session cleanup after the run's own
// context may already be gone.
const terminateTimeout = 30 * time.Second

// eventBuffer decouples the producer from a slow stream consumer.
const eventBuffer = 16

// RunRequest describes one agent run.
type RunRequest struct {
	// Goal is the immutable natural-language objective.
	Goal string

	// Session, when non-nil, is a caller-supplied session that the run
	// uses verbatim and never terminates.
	Session *models.Session

	// Timezone hints session placement when a session is created.
	Timezone string

	// ContextID selects an existing persisted browser profile when a
	// session is created. Empty mints a new one.
	ContextID string
}

// Loop orchestrates agent runs.
type Loop struct {
	sessions SessionStore
	executor StepExecutor
	planner  StepPlanner
	store    *runs.Store
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New constructs the agent loop. store may be nil to disable run history.
func New(sm SessionStore, ex StepExecutor, pl StepPlanner, store *runs.Store, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		sessions: sm,
		executor: ex,
		planner:  pl,
		store:    store,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run starts one agent run and returns its event stream. The channel
// carries every event in emission order and is closed exactly once after
// the terminal event (complete or error). Cancelling ctx stops the run at
// its next suspension point; in-flight remote effects are not rolled back.
func (l *Loop) Run(ctx context.Context, req *RunRequest) <-chan models.AgentEvent {
	events := make(chan models.AgentEvent, eventBuffer)

	go func() {
		defer close(events)

		emit := func(ev models.AgentEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		l.run(ctx, req, emit)
	}()

	return events
}

// run drives the state machine. emit returns false when the consumer is
// gone, at which point the run stops producing further work.
func (l *Loop) run(ctx context.Context, req *RunRequest, emit func(models.AgentEvent) bool) {
	runID := uuid.NewString()
	startedAt := time.Now()
	logger := l.logger.With("run_id", runID)

	current := stateStarting
	var (
		session *models.Session
		owned   bool
		history []models.Step
		runErr  error
	)

	// Cleanup always runs: an internally created session is terminated
	// exactly once, whatever the outcome. Termination failure is logged
	// and swallowed so it cannot mask the run's true result.
	defer func() {
		if session == nil || !owned {
			return
		}
		cleanupCtx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
		defer cancel()
		if err := l.sessions.Terminate(cleanupCtx, session.SessionID); err != nil {
			logger.Warn("session cleanup failed", "session_id", session.SessionID, "error", err)
		}
	}()
	defer func() {
		l.record(runID, req, session, history, current, runErr, startedAt)
	}()

	// STARTING: resolve the session. Ownership is carried explicitly so
	// cleanup never has to re-derive it.
	if req.Session != nil {
		session = req.Session
	} else {
		created, err := l.sessions.Create(ctx, req.Timezone, req.ContextID)
		if err != nil {
			runErr = err
			current = stateFailed
			logger.Error("session creation failed", "error", err)
			emit(errorEvent(err.Error()))
			return
		}
		session = created
		owned = true
	}
	if l.metrics != nil {
		l.metrics.RunsStarted.WithLabelValues(sessionOrigin(owned)).Inc()
	}
	logger.Info("run started", "goal", req.Goal, "session_id", session.SessionID, "owned", owned)

	if !emit(sessionStartEvent(session)) {
		return
	}

	// NAVIGATING: single-shot starting URL, synthesized first GOTO.
	current = stateNavigating
	url, reasoning, err := l.planner.StartingURL(ctx, req.Goal)
	if err != nil {
		runErr = err
		current = stateFailed
		logger.Error("starting url selection failed", "error", err)
		emit(errorEvent(err.Error()))
		return
	}
	if !emit(startingURLEvent(url, reasoning)) {
		return
	}

	firstStep := models.Step{
		Text:        fmt.Sprintf("Navigating to %s", url),
		Reasoning:   reasoning,
		Tool:        models.ToolGoto,
		Instruction: url,
	}
	history = append(history, firstStep)
	if _, err := l.executor.Execute(ctx, session.SessionID, firstStep.Tool, firstStep.Instruction); err != nil {
		runErr = err
		current = stateFailed
		logger.Error("initial navigation failed", "url", url, "error", err)
		emit(errorEvent(err.Error()))
		return
	}
	if !emit(stepCompleteEvent(firstStep)) {
		return
	}

	// STEPPING: plan, then execute, until the planner closes the run.
	current = stateStepping
	var lastResult *executor.Result
	for {
		step, err := l.planner.NextStep(ctx, &planner.StepContext{
			Goal:       req.Goal,
			SessionID:  session.SessionID,
			History:    history,
			LastResult: lastResult,
		})
		if err != nil {
			runErr = err
			current = stateFailed
			logger.Error("planning failed", "error", err)
			emit(errorEvent(err.Error()))
			return
		}
		history = append(history, step)

		done := step.Tool == models.ToolClose
		if !emit(stepPlannedEvent(step, done)) {
			return
		}
		if done {
			break
		}

		result, err := l.executor.Execute(ctx, session.SessionID, step.Tool, step.Instruction)
		if err != nil {
			runErr = err
			current = stateFailed
			logger.Error("step execution failed", "tool", step.Tool, "error", err)
			emit(errorEvent(err.Error()))
			return
		}
		lastResult = result

		var extraction any
		switch {
		case result.Extraction != nil:
			extraction = *result.Extraction
		case len(result.Observations) > 0:
			extraction = result.Observations
		}
		var navigatedURL *string
		if step.Tool == models.ToolGoto {
			navigatedURL = &step.Instruction
		}
		if !emit(stepExecutedEvent(step, extraction, navigatedURL)) {
			return
		}
	}

	// COMPLETE: the CLOSE step is final and is never executed.
	current = stateComplete
	final := history[len(history)-1]
	logger.Info("run complete", "steps", len(history))
	emit(completeEvent(history, final))
}

// record persists the finished run, best-effort.
func (l *Loop) record(runID string, req *RunRequest, session *models.Session, history []models.Step, current state, runErr error, startedAt time.Time) {
	if l.metrics != nil {
		outcome := "complete"
		if current != stateComplete {
			outcome = "error"
		}
		l.metrics.RunsFinished.WithLabelValues(outcome).Inc()
	}
	if l.store == nil {
		return
	}

	rec := &runs.RunRecord{
		ID:         runID,
		Goal:       req.Goal,
		Outcome:    runs.OutcomeComplete,
		Steps:      history,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if session != nil {
		rec.SessionID = session.SessionID
		rec.ContextID = session.ContextID
	}
	if current != stateComplete {
		rec.Outcome = runs.OutcomeError
		if runErr != nil {
			rec.Error = runErr.Error()
		} else {
			rec.Error = "run interrupted"
		}
	}

	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Record(recordCtx, rec); err != nil {
		l.logger.Warn("failed to record run", "run_id", runID, "error", err)
	}
}

func sessionOrigin(owned bool) string {
	if owned {
		return "created"
	}
	return "supplied"
}
