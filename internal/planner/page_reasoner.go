package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/operator/internal/automation"
)

const chooseElementSystemPrompt = `You map a natural-language browser action onto one element from a
list of candidates observed on the live page. Pick exactly one candidate
and the method to apply: "click" for links and buttons, "fill" for text
inputs (with the text as value), "press" for key presses (with the key as
value). Copy the chosen candidate's selector exactly.`

const extractAnswerSystemPrompt = `You answer an extraction instruction from the visible text of a web
page. Answer only from the given text. If the text does not contain the
requested content, say so in the answer.`

// PageReasoner resolves natural-language page instructions through the
// reasoning model. It implements automation.Reasoner.
type PageReasoner struct {
	provider Provider
}

// NewPageReasoner builds a reasoner on the given provider.
func NewPageReasoner(provider Provider) *PageReasoner {
	return &PageReasoner{provider: provider}
}

// ChooseElement picks one candidate element and a method for the
// instruction. The chosen selector must come from the candidate list.
func (r *PageReasoner) ChooseElement(ctx context.Context, instruction string, candidates []automation.Observation) (*automation.ElementAction, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Action to perform: %s\n\nCandidate elements:\n", instruction)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. selector: %s\n   role: %s\n   text: %s\n", i+1, c.Selector, c.Role, c.Description)
	}

	raw, err := r.provider.StructuredCompletion(ctx, &StructuredRequest{
		System:     chooseElementSystemPrompt,
		Prompt:     b.String(),
		SchemaName: "element_action",
		Schema:     []byte(elementActionSchema),
	})
	if err != nil {
		return nil, err
	}

	var action automation.ElementAction
	if err := validateAgainst(compiledElementActionSchema, raw, &action); err != nil {
		return nil, err
	}

	if !selectorKnown(action.Selector, candidates) {
		return nil, fmt.Errorf("model chose selector %q not among candidates", action.Selector)
	}
	return &action, nil
}

// ExtractAnswer answers the instruction from the page's visible text.
func (r *PageReasoner) ExtractAnswer(ctx context.Context, instruction, pageText string) (string, error) {
	prompt := fmt.Sprintf("Instruction: %s\n\nPage text:\n%s", instruction, pageText)
	raw, err := r.provider.StructuredCompletion(ctx, &StructuredRequest{
		System:     extractAnswerSystemPrompt,
		Prompt:     prompt,
		SchemaName: "extract_answer",
		Schema:     []byte(extractAnswerSchema),
	})
	if err != nil {
		return "", err
	}

	var answer struct {
		Answer string `json:"answer"`
	}
	if err := validateAgainst(compiledExtractAnswerSchema, raw, &answer); err != nil {
		return "", err
	}
	return answer.Answer, nil
}

func selectorKnown(selector string, candidates []automation.Observation) bool {
	for _, c := range candidates {
		if c.Selector == selector {
			return true
		}
	}
	return false
}
