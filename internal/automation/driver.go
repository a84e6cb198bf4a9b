// Package automation binds browser primitives to a remote hosted session
// over CDP. A Driver handle is opened per action and released afterward;
// the remote session itself outlives every handle.
//
// Natural-language actions (act, extract, observe) gather candidate
// elements or text from the live page and delegate the language-to-DOM
// decision to a reasoning model through the Reasoner interface.
package automation

import (
	"context"
	"errors"
)

// ErrNavigationTimeout reports that a navigation did not commit within the
// driver's navigation timeout.
var ErrNavigationTimeout = errors.New("navigation timed out")

// Observation describes one candidate interactive element on the page.
type Observation struct {
	// Selector locates the element.
	Selector string `json:"selector"`

	// Role is the element's tag or ARIA role.
	Role string `json:"role"`

	// Description is the element's visible text or accessible name.
	Description string `json:"description"`
}

// ElementAction is a reasoning-model decision mapping an instruction onto
// one candidate element.
type ElementAction struct {
	// Selector is the chosen candidate's selector.
	Selector string `json:"selector"`

	// Method is one of "click", "fill", or "press".
	Method string `json:"method"`

	// Value is the text to fill or key to press, when applicable.
	Value string `json:"value"`
}

// Reasoner resolves natural-language instructions against page content.
// The planner package provides the production implementation.
type Reasoner interface {
	// ChooseElement picks one candidate and the method to apply to it.
	ChooseElement(ctx context.Context, instruction string, candidates []Observation) (*ElementAction, error)

	// ExtractAnswer answers the instruction from the page's visible text.
	ExtractAnswer(ctx context.Context, instruction, pageText string) (string, error)
}

// Driver is an open automation handle bound to one remote browser session.
// Handles are single-use per action and must be closed on every path.
type Driver interface {
	// Navigate loads the URL, waiting at least until navigation commits.
	Navigate(ctx context.Context, url string) error

	// Act performs one atomic page interaction described in natural
	// language.
	Act(ctx context.Context, instruction string) error

	// Extract pulls content off the current page per the instruction.
	Extract(ctx context.Context, instruction string) (string, error)

	// Observe lists candidate elements relevant to the instruction.
	Observe(ctx context.Context, instruction string) ([]Observation, error)

	// Screenshot captures the current page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Back navigates one history entry back.
	Back(ctx context.Context) error

	// CurrentURL reports the page's current URL.
	CurrentURL(ctx context.Context) (string, error)

	// Close releases the handle. The remote session stays alive.
	Close() error
}

// Connector opens Driver handles against an existing remote session.
type Connector interface {
	Connect(ctx context.Context, connectURL string) (Driver, error)
}
