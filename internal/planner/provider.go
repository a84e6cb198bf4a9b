// Package planner asks the reasoning model for the agent's next browser
// step. Every model response is schema-constrained and validated before
// use; a response that does not conform is a PlanError, never coerced.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
)

// StructuredRequest is one schema-constrained completion request.
type StructuredRequest struct {
	// System is the system prompt.
	System string

	// Prompt is the user message text.
	Prompt string

	// ImagePNG optionally attaches a PNG screenshot to the user message.
	ImagePNG []byte

	// SchemaName labels the output schema for the provider API.
	SchemaName string

	// Schema is the JSON Schema the response must conform to.
	Schema json.RawMessage
}

// Provider produces schema-constrained structured completions. The raw
// response is returned unvalidated; callers own schema validation.
type Provider interface {
	// Name identifies the backend for logs and metrics.
	Name() string

	// StructuredCompletion performs one completion constrained to the
	// request's schema and returns the raw JSON output.
	StructuredCompletion(ctx context.Context, req *StructuredRequest) (json.RawMessage, error)
}

// PlanError reports a reasoning-model failure or a schema violation in
// its output.
type PlanError struct {
	Err error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("planning failed: %v", e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }
