package models

// Event type constants as they appear on the wire.
const (
	EventSessionStart = "session_start"
	EventStartingURL  = "starting_url"
	EventStepComplete = "step_complete"
	EventStepPlanned  = "step_planned"
	EventStepExecuted = "step_executed"
	EventComplete     = "complete"
	EventError        = "error"
)

// AgentEvent is one progress record emitted by an agent run. Each concrete
// event marshals to a single self-contained JSON object whose "type" field
// names it; the stream writer emits one object per line in emission order.
type AgentEvent interface {
	// EventType returns the wire value of the event's "type" field.
	EventType() string
}

// SessionStartEvent is emitted exactly once per run, before any other
// event, after the run's session has been resolved.
type SessionStartEvent struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	SessionURL string `json:"sessionUrl"`
	ContextID  string `json:"contextId"`
}

func (e SessionStartEvent) EventType() string { return e.Type }

// StartingURLEvent carries the model-selected starting URL and its
// justification.
type StartingURLEvent struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Reasoning string `json:"reasoning"`
}

func (e StartingURLEvent) EventType() string { return e.Type }

// StepCompleteEvent reports the synthesized first GOTO step after it has
// been executed.
type StepCompleteEvent struct {
	Type   string `json:"type"`
	Result Step   `json:"result"`
	Done   bool   `json:"done"`
}

func (e StepCompleteEvent) EventType() string { return e.Type }

// StepPlannedEvent reports a freshly planned step. Done is true iff the
// planned tool is CLOSE, in which case no execution follows.
type StepPlannedEvent struct {
	Type   string `json:"type"`
	Result Step   `json:"result"`
	Done   bool   `json:"done"`
}

func (e StepPlannedEvent) EventType() string { return e.Type }

// StepExecutedEvent reports the outcome of executing a planned step.
// Extraction and URL are explicit nulls when the tool produced neither.
type StepExecutedEvent struct {
	Type        string  `json:"type"`
	Extraction  any     `json:"extraction"`
	CurrentStep Step    `json:"currentStep"`
	URL         *string `json:"url"`
}

func (e StepExecutedEvent) EventType() string { return e.Type }

// CompleteEvent terminates a successful run with the full step history.
type CompleteEvent struct {
	Type        string `json:"type"`
	Steps       []Step `json:"steps"`
	FinalResult Step   `json:"finalResult"`
}

func (e CompleteEvent) EventType() string { return e.Type }

// ErrorEvent terminates a failed run. No further events follow it.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (e ErrorEvent) EventType() string { return e.Type }
