package planner

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// stepSchema is the fixed output schema for planned steps. The tool enum
// is closed; the planner never accepts a tool outside it.
const stepSchema = `{
	"type": "object",
	"properties": {
		"text": {
			"type": "string",
			"description": "Short description of the action to take"
		},
		"reasoning": {
			"type": "string",
			"description": "Why this action advances the goal"
		},
		"tool": {
			"type": "string",
			"enum": ["GOTO", "ACT", "EXTRACT", "OBSERVE", "CLOSE", "WAIT", "NAVBACK"]
		},
		"instruction": {
			"type": "string",
			"description": "Tool payload: URL for GOTO, action text for ACT/EXTRACT/OBSERVE, milliseconds for WAIT, empty for CLOSE/NAVBACK"
		}
	},
	"required": ["text", "reasoning", "tool", "instruction"],
	"additionalProperties": false
}`

// startingURLSchema constrains the single-shot starting URL selection.
const startingURLSchema = `{
	"type": "object",
	"properties": {
		"url": {
			"type": "string",
			"description": "The full URL to start at, including the scheme"
		},
		"reasoning": {
			"type": "string",
			"description": "Why this site is the right starting point"
		}
	},
	"required": ["url", "reasoning"],
	"additionalProperties": false
}`

// elementActionSchema constrains the act decision: one candidate element
// and the method to apply.
const elementActionSchema = `{
	"type": "object",
	"properties": {
		"selector": {
			"type": "string",
			"description": "Selector of the chosen candidate, copied exactly"
		},
		"method": {
			"type": "string",
			"enum": ["click", "fill", "press"]
		},
		"value": {
			"type": "string",
			"description": "Text to fill or key to press; empty for click"
		}
	},
	"required": ["selector", "method", "value"],
	"additionalProperties": false
}`

// extractAnswerSchema constrains page-text extraction answers.
const extractAnswerSchema = `{
	"type": "object",
	"properties": {
		"answer": {
			"type": "string",
			"description": "The extracted content, or an explanation of why it is absent"
		}
	},
	"required": ["answer"],
	"additionalProperties": false
}`

var (
	compiledStepSchema          = jsonschema.MustCompileString("step.schema.json", stepSchema)
	compiledStartingURLSchema   = jsonschema.MustCompileString("starting_url.schema.json", startingURLSchema)
	compiledElementActionSchema = jsonschema.MustCompileString("element_action.schema.json", elementActionSchema)
	compiledExtractAnswerSchema = jsonschema.MustCompileString("extract_answer.schema.json", extractAnswerSchema)
)

// validateAgainst checks raw against the compiled schema and decodes it
// into out. Violations surface unmodified; the caller wraps them.
func validateAgainst(schema *jsonschema.Schema, raw json.RawMessage, out any) error {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("model output is not valid JSON: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("model output violates schema: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
