package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// navigationTimeout bounds GOTO; a navigation that has not committed by
// then fails with ErrNavigationTimeout.
const navigationTimeout = 60 * time.Second

// maxExtractChars caps the page text handed to the reasoning model.
const maxExtractChars = 12000

// PlaywrightConnector opens automation handles against hosted sessions by
// attaching Playwright to the session's CDP endpoint. One Playwright
// driver process is shared across handles; each Connect dials a fresh
// connection that Close releases.
type PlaywrightConnector struct {
	reasoner Reasoner
	logger   *slog.Logger

	once   sync.Once
	pw     *playwright.Playwright
	runErr error
}

// NewPlaywrightConnector creates a connector that resolves language
// instructions through the given reasoner.
func NewPlaywrightConnector(reasoner Reasoner, logger *slog.Logger) *PlaywrightConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaywrightConnector{reasoner: reasoner, logger: logger}
}

// Connect attaches to the remote session's CDP endpoint and returns a
// handle on its active page. It never creates a new remote session.
func (c *PlaywrightConnector) Connect(ctx context.Context, connectURL string) (Driver, error) {
	c.once.Do(func() {
		c.pw, c.runErr = playwright.Run()
	})
	if c.runErr != nil {
		return nil, fmt.Errorf("start playwright driver: %w", c.runErr)
	}

	browser, err := c.pw.Chromium.ConnectOverCDP(connectURL)
	if err != nil {
		return nil, fmt.Errorf("connect to session: %w", err)
	}

	page, err := activePage(browser)
	if err != nil {
		// The connection is open even though no page was found; release
		// it so the handle does not leak.
		if cerr := browser.Close(); cerr != nil {
			c.logger.Warn("failed to release automation handle", "error", cerr)
		}
		return nil, err
	}

	return &playwrightDriver{
		browser:  browser,
		page:     page,
		reasoner: c.reasoner,
		logger:   c.logger,
	}, nil
}

func activePage(browser playwright.Browser) (playwright.Page, error) {
	contexts := browser.Contexts()
	if len(contexts) == 0 {
		return nil, fmt.Errorf("session has no browser context")
	}
	pages := contexts[0].Pages()
	if len(pages) == 0 {
		return contexts[0].NewPage()
	}
	return pages[0], nil
}

type playwrightDriver struct {
	browser  playwright.Browser
	page     playwright.Page
	reasoner Reasoner
	logger   *slog.Logger
}

func (d *playwrightDriver) Navigate(ctx context.Context, url string) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(float64(navigationTimeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
		}
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (d *playwrightDriver) Act(ctx context.Context, instruction string) error {
	candidates, err := d.candidates()
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no interactive elements found for %q", instruction)
	}

	action, err := d.reasoner.ChooseElement(ctx, instruction, candidates)
	if err != nil {
		return fmt.Errorf("resolve action %q: %w", instruction, err)
	}

	switch action.Method {
	case "click":
		err = d.page.Click(action.Selector)
	case "fill":
		err = d.page.Fill(action.Selector, action.Value)
	case "press":
		err = d.page.Press(action.Selector, action.Value)
	default:
		return fmt.Errorf("unsupported action method %q", action.Method)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", action.Method, action.Selector, err)
	}
	return nil
}

func (d *playwrightDriver) Extract(ctx context.Context, instruction string) (string, error) {
	text, err := d.page.TextContent("body")
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	text = collapseWhitespace(text)
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}
	answer, err := d.reasoner.ExtractAnswer(ctx, instruction, text)
	if err != nil {
		return "", fmt.Errorf("extract %q: %w", instruction, err)
	}
	return answer, nil
}

func (d *playwrightDriver) Observe(ctx context.Context, instruction string) ([]Observation, error) {
	candidates, err := d.candidates()
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (d *playwrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

func (d *playwrightDriver) Back(ctx context.Context) error {
	if _, err := d.page.GoBack(); err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return nil
}

func (d *playwrightDriver) CurrentURL(ctx context.Context) (string, error) {
	return d.page.URL(), nil
}

func (d *playwrightDriver) Close() error {
	return d.browser.Close()
}

// candidateScript walks the DOM for interactive elements and builds a
// short unique-enough CSS path for each. Hidden elements are skipped.
const candidateScript = `() => {
	const selectorFor = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		let node = el;
		while (node && node.nodeType === 1 && parts.length < 5) {
			let part = node.tagName.toLowerCase();
			const parent = node.parentElement;
			if (parent) {
				const siblings = Array.from(parent.children).filter(c => c.tagName === node.tagName);
				if (siblings.length > 1) {
					part += ':nth-of-type(' + (siblings.indexOf(node) + 1) + ')';
				}
			}
			parts.unshift(part);
			if (node.id) { parts[0] = '#' + CSS.escape(node.id); break; }
			node = parent;
		}
		return parts.join(' > ');
	};
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	};
	const describe = (el) => {
		const text = (el.innerText || el.value || el.getAttribute('aria-label') ||
			el.getAttribute('placeholder') || el.getAttribute('title') || '').trim();
		return text.slice(0, 120);
	};
	const nodes = document.querySelectorAll(
		'a[href], button, input, select, textarea, [role="button"], [role="link"], [role="textbox"], [onclick]');
	const out = [];
	for (const el of nodes) {
		if (!visible(el)) continue;
		out.push({
			selector: selectorFor(el),
			role: el.getAttribute('role') || el.tagName.toLowerCase(),
			description: describe(el),
		});
		if (out.length >= 25) break;
	}
	return out;
}`

func (d *playwrightDriver) candidates() ([]Observation, error) {
	raw, err := d.page.Evaluate(candidateScript)
	if err != nil {
		return nil, fmt.Errorf("gather page elements: %w", err)
	}
	return parseObservations(raw)
}

// parseObservations converts the element scan's eval result into
// observations, dropping malformed entries and entries with no selector.
func parseObservations(raw any) ([]Observation, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected element scan result %T", raw)
	}
	observations := make([]Observation, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		obs := Observation{
			Selector:    stringField(fields, "selector"),
			Role:        stringField(fields, "role"),
			Description: stringField(fields, "description"),
		}
		if obs.Selector != "" {
			observations = append(observations, obs)
		}
	}
	return observations, nil
}

func stringField(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
