// Package browserbase is a minimal REST client for the Browserbase session
// hosting API: persisted contexts, session creation and release, and
// live-view debug URLs.
package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/operator/internal/retry"
)

const defaultBaseURL = "https://api.browserbase.com"

// Client talks to the Browserbase REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig overrides the transient-failure retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Browserbase client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retryCfg:   retry.DefaultConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a terminal (non-retryable) provider response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserbase: %s (status %d)", e.Message, e.StatusCode)
}

// Context is a persisted browser profile reusable across sessions.
type Context struct {
	ID string `json:"id"`
}

// Session is the provider's view of a hosted browser session.
type Session struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Region     string `json:"region"`
	ConnectURL string `json:"connectUrl"`
	ContextID  string `json:"contextId,omitempty"`
}

// DebugInfo carries the live-view URLs for a running session.
type DebugInfo struct {
	DebuggerFullscreenURL string `json:"debuggerFullscreenUrl"`
	DebuggerURL           string `json:"debuggerUrl"`
	WSURL                 string `json:"wsUrl"`
}

// CreateSessionRequest is the payload for creating a session.
type CreateSessionRequest struct {
	ProjectID       string           `json:"projectId"`
	Region          string           `json:"region,omitempty"`
	KeepAlive       bool             `json:"keepAlive,omitempty"`
	BrowserSettings *BrowserSettings `json:"browserSettings,omitempty"`
}

// BrowserSettings binds a session to a persisted context.
type BrowserSettings struct {
	Context *ContextSettings `json:"context,omitempty"`
}

// ContextSettings selects the context and whether changes persist back.
type ContextSettings struct {
	ID      string `json:"id"`
	Persist bool   `json:"persist"`
}

// CreateContext requests a new persisted browser context in the project.
func (c *Client) CreateContext(ctx context.Context, projectID string) (*Context, error) {
	var out Context
	err := c.do(ctx, http.MethodPost, "/v1/contexts", map[string]string{"projectId": projectID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession requests a new hosted browser session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches the current provider state of a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Debug fetches the live-view debug URLs for a session.
func (c *Client) Debug(ctx context.Context, sessionID string) (*DebugInfo, error) {
	var out DebugInfo
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/debug", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReleaseSession asks the provider to release a session. The provider
// treats release as an update with a REQUEST_RELEASE status.
func (c *Client) ReleaseSession(ctx context.Context, projectID, sessionID string) error {
	body := map[string]string{
		"projectId": projectID,
		"status":    "REQUEST_RELEASE",
	}
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID, body, nil)
}

// do performs one API call with JSON encoding on both sides, retrying
// rate limits and server errors under the client's retry policy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("encode request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("X-BB-API-Key", c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Transient(fmt.Errorf("browserbase: %s %s: %w", method, path, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    decodeErrorMessage(resp.Body),
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Debug("browserbase transient failure",
				"method", method, "path", path, "status", resp.StatusCode)
			return retry.Transient(apiErr)
		}
		return apiErr
	})
}

func decodeErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "request failed"
	}
	return msg
}
