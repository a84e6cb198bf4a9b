package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/operator/internal/executor"
	"github.com/haasonsaas/operator/internal/observability"
	"github.com/haasonsaas/operator/pkg/models"
)

const stepSystemPrompt = `You are controlling a real web browser to accomplish a user's goal.
You decide exactly one next step at a time. Rules:
- Each step performs a single atomic action. Never combine actions.
- If the goal has been achieved, return the CLOSE tool. Do not keep browsing.
- The reasoning field must justify why the chosen action advances the goal.
Break down complex tasks into small, individually verifiable actions.`

const startingURLSystemPrompt = `Given a user's goal, choose the single best URL to start a browser
session at. Prefer the site most likely to contain the answer directly;
fall back to https://www.google.com for open-ended research. Return the
full URL including the scheme, and the reasoning for the choice.`

// BrowserObserver gives the planner best-effort access to the live page:
// a screenshot for vision context and the current URL. The action
// executor provides the production implementation.
type BrowserObserver interface {
	Execute(ctx context.Context, sessionID string, tool models.Tool, instruction string) (*executor.Result, error)
	CurrentURL(ctx context.Context, sessionID string) (string, error)
}

// StepContext is the planning input: the immutable goal, the ordered
// history of produced steps, and the result of the most recently executed
// tool, if any.
type StepContext struct {
	Goal      string
	SessionID string
	History   []models.Step

	// LastResult carries the previous step's extraction or observation
	// output. Nil when the previous tool produced neither.
	LastResult *executor.Result
}

// Planner produces the agent's next step from the run state.
type Planner struct {
	provider Provider
	browser  BrowserObserver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New constructs a planner on the given reasoning-model provider.
func New(provider Provider, browser BrowserObserver, logger *slog.Logger, metrics *observability.Metrics) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		provider: provider,
		browser:  browser,
		logger:   logger,
		metrics:  metrics,
	}
}

// NextStep asks the reasoning model for exactly one next step. The model
// output must conform to the fixed step schema; violations propagate as
// PlanError and are never repaired locally.
func (p *Planner) NextStep(ctx context.Context, sc *StepContext) (models.Step, error) {
	prompt := p.buildPrompt(ctx, sc)

	// A screenshot is attached only once a navigation has occurred;
	// before the first GOTO there is nothing meaningful to show.
	var screenshot []byte
	if historyHasNavigation(sc.History) {
		result, err := p.browser.Execute(ctx, sc.SessionID, models.ToolScreenshot, "")
		if err != nil {
			return models.Step{}, err
		}
		screenshot = result.Screenshot
	}

	raw, err := p.structuredCompletion(ctx, &StructuredRequest{
		System:     stepSystemPrompt,
		Prompt:     prompt,
		ImagePNG:   screenshot,
		SchemaName: "next_step",
		Schema:     []byte(stepSchema),
	})
	if err != nil {
		return models.Step{}, &PlanError{Err: err}
	}

	var step models.Step
	if err := validateAgainst(compiledStepSchema, raw, &step); err != nil {
		return models.Step{}, &PlanError{Err: err}
	}
	if !step.Tool.Plannable() {
		return models.Step{}, &PlanError{Err: fmt.Errorf("model produced unknown tool %q", step.Tool)}
	}

	p.logger.Debug("step planned",
		"tool", step.Tool,
		"instruction", step.Instruction,
		"history_len", len(sc.History),
	)
	return step, nil
}

// StartingURL asks the model for a starting URL and its justification
// given only the goal text. It uses a restricted single-shot prompt, not
// the full history machinery.
func (p *Planner) StartingURL(ctx context.Context, goal string) (string, string, error) {
	raw, err := p.structuredCompletion(ctx, &StructuredRequest{
		System:     startingURLSystemPrompt,
		Prompt:     fmt.Sprintf("Goal: %s", goal),
		SchemaName: "starting_url",
		Schema:     []byte(startingURLSchema),
	})
	if err != nil {
		return "", "", &PlanError{Err: err}
	}

	var choice struct {
		URL       string `json:"url"`
		Reasoning string `json:"reasoning"`
	}
	if err := validateAgainst(compiledStartingURLSchema, raw, &choice); err != nil {
		return "", "", &PlanError{Err: err}
	}
	return choice.URL, choice.Reasoning, nil
}

func (p *Planner) structuredCompletion(ctx context.Context, req *StructuredRequest) ([]byte, error) {
	start := time.Now()
	raw, err := p.provider.StructuredCompletion(ctx, req)
	if p.metrics != nil {
		p.metrics.PlannerDuration.WithLabelValues(p.provider.Name()).Observe(time.Since(start).Seconds())
	}
	return raw, err
}

// buildPrompt renders the planning request: goal, best-effort current
// URL, the full step history in execution order, and a description of the
// last extraction or observation result.
func (p *Planner) buildPrompt(ctx context.Context, sc *StepContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", sc.Goal)

	if url, err := p.browser.CurrentURL(ctx, sc.SessionID); err == nil && url != "" {
		fmt.Fprintf(&b, "\nCurrent page: %s\n", url)
	}

	if len(sc.History) > 0 {
		b.WriteString("\nSteps taken so far:\n")
		for i, step := range sc.History {
			fmt.Fprintf(&b, "%d. %s\n   reasoning: %s\n   tool: %s (%s)\n",
				i+1, step.Text, step.Reasoning, step.Tool, step.Instruction)
		}
	}

	if sc.LastResult != nil {
		switch {
		case sc.LastResult.Extraction != nil:
			fmt.Fprintf(&b, "\nResult of the last extraction:\n%s\n", *sc.LastResult.Extraction)
		case len(sc.LastResult.Observations) > 0:
			b.WriteString("\nResult of the last observation:\n")
			for _, obs := range sc.LastResult.Observations {
				fmt.Fprintf(&b, "- %s [%s] %s\n", obs.Selector, obs.Role, obs.Description)
			}
		}
	}

	b.WriteString("\nDecide the single next step.")
	return b.String()
}

func historyHasNavigation(history []models.Step) bool {
	for _, step := range history {
		if step.Tool == models.ToolGoto {
			return true
		}
	}
	return false
}
