// Package models defines the shared wire types for the Operator service:
// agent steps, browser sessions, and the streamed run events.
package models

// Tool identifies the kind of browser action a step performs.
type Tool string

const (
	// ToolGoto navigates the page to a URL. Instruction is the URL.
	ToolGoto Tool = "GOTO"

	// ToolAct performs one atomic page interaction described in natural
	// language (click, fill, press).
	ToolAct Tool = "ACT"

	// ToolExtract pulls content off the current page per the instruction.
	ToolExtract Tool = "EXTRACT"

	// ToolObserve lists candidate elements matching the instruction.
	ToolObserve Tool = "OBSERVE"

	// ToolClose signals the goal has been achieved and ends the run.
	ToolClose Tool = "CLOSE"

	// ToolWait pauses for the instruction's duration in milliseconds.
	ToolWait Tool = "WAIT"

	// ToolNavback navigates back one history entry.
	ToolNavback Tool = "NAVBACK"

	// ToolScreenshot captures the current page as PNG bytes. It is used
	// internally to give the planner vision context and is never produced
	// by planning itself.
	ToolScreenshot Tool = "SCREENSHOT"
)

// PlannableTools is the closed set of tools the planner may produce,
// in the order they appear in the step schema.
var PlannableTools = []Tool{
	ToolGoto, ToolAct, ToolExtract, ToolObserve, ToolClose, ToolWait, ToolNavback,
}

// Plannable reports whether t belongs to the planner's closed enumeration.
func (t Tool) Plannable() bool {
	for _, p := range PlannableTools {
		if t == p {
			return true
		}
	}
	return false
}

// Step is one planned atomic browser action together with its rationale.
// Steps are immutable once produced; a run's history is the ordered
// sequence of produced steps and is never reordered or deduplicated.
type Step struct {
	// Text is a short human-readable description of the action.
	Text string `json:"text"`

	// Reasoning justifies why this action advances the goal.
	Reasoning string `json:"reasoning"`

	// Tool is the action kind.
	Tool Tool `json:"tool"`

	// Instruction is the tool-specific payload: a URL for GOTO, a
	// natural-language action for ACT/EXTRACT/OBSERVE, a millisecond
	// duration for WAIT, and unused for CLOSE/NAVBACK.
	Instruction string `json:"instruction"`
}
