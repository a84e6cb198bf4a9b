package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/haasonsaas/operator/internal/operator"
	"github.com/haasonsaas/operator/pkg/models"
)

const testToken = "secret-token"

// fakeRunner replays scripted events and records the requests it saw.
type fakeRunner struct {
	mu       sync.Mutex
	events   []models.AgentEvent
	requests []*operator.RunRequest
}

func (f *fakeRunner) Run(ctx context.Context, req *operator.RunRequest) <-chan models.AgentEvent {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	out := make(chan models.AgentEvent, len(f.events))
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out
}

// fakeSessionService is an in-memory SessionService.
type fakeSessionService struct {
	session      *models.Session
	createErr    error
	terminateErr error
	describeErr  error
	terminated   []string
	created      int
}

func (f *fakeSessionService) Create(ctx context.Context, timezone, contextID string) (*models.Session, error) {
	f.created++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.session, nil
}

func (f *fakeSessionService) Terminate(ctx context.Context, sessionID string) error {
	f.terminated = append(f.terminated, sessionID)
	return f.terminateErr
}

func (f *fakeSessionService) Describe(ctx context.Context, sessionID string) (*models.Session, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return f.session, nil
}

func testSession() *models.Session {
	return &models.Session{SessionID: "sess-1", SessionURL: "https://live/sess-1", ContextID: "ctx-1"}
}

func newTestHandler(runner *fakeRunner, svc *fakeSessionService) http.Handler {
	return NewHandler(&Config{
		AuthToken: testToken,
		Sessions:  svc,
		Loop:      runner,
	}).Mount()
}

func authedRequest(method, path, body string) *http.Request {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestAgentStreamsEvents(t *testing.T) {
	runner := &fakeRunner{events: []models.AgentEvent{
		models.SessionStartEvent{Type: models.EventSessionStart, SessionID: "sess-1", SessionURL: "https://live/sess-1", ContextID: "ctx-1"},
		models.StartingURLEvent{Type: models.EventStartingURL, URL: "https://example.com", Reasoning: "why not"},
		models.CompleteEvent{Type: models.EventComplete, Steps: []models.Step{}, FinalResult: models.Step{Tool: models.ToolClose}},
	}}
	handler := newTestHandler(runner, &fakeSessionService{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/agent", `{"goal":"find the answer","timezone":"Europe/Berlin"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/x-ndjson" {
		t.Errorf("Content-Type = %q, want application/x-ndjson", got)
	}

	// One JSON object per line, in emission order, each with a type tag.
	var types []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line is not valid JSON: %q: %v", scanner.Text(), err)
		}
		types = append(types, ev.Type)
	}
	want := []string{models.EventSessionStart, models.EventStartingURL, models.EventComplete}
	if len(types) != len(want) {
		t.Fatalf("stream lines = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("line %d type = %q, want %q", i, types[i], want[i])
		}
	}

	if len(runner.requests) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(runner.requests))
	}
	req := runner.requests[0]
	if req.Goal != "find the answer" || req.Timezone != "Europe/Berlin" || req.Session != nil {
		t.Errorf("run request = %+v", req)
	}
}

func TestAgentRejectsMissingGoal(t *testing.T) {
	runner := &fakeRunner{}
	svc := &fakeSessionService{}
	handler := newTestHandler(runner, svc)

	tests := []struct {
		name string
		body string
	}{
		{"empty goal", `{"goal":"  "}`},
		{"no goal", `{}`},
		{"bad json", `{goal`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/agent", tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	// Validation rejects the request before any run starts or any remote
	// call is made.
	if len(runner.requests) != 0 || svc.created != 0 {
		t.Errorf("remote work happened for invalid requests: runs=%d creates=%d", len(runner.requests), svc.created)
	}
}

func TestAgentSuppliedSessionPassedThrough(t *testing.T) {
	runner := &fakeRunner{events: []models.AgentEvent{
		models.ErrorEvent{Type: models.EventError, Error: "boom"},
	}}
	svc := &fakeSessionService{session: testSession()}
	handler := newTestHandler(runner, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/agent", `{"goal":"g","sessionId":"sess-1"}`))

	req := runner.requests[0]
	if req.Session == nil || req.Session.SessionID != "sess-1" || req.Session.ContextID != "ctx-1" {
		t.Errorf("supplied session = %+v", req.Session)
	}
}

func TestAgentDescribeFailureDegradesToBareID(t *testing.T) {
	runner := &fakeRunner{events: []models.AgentEvent{
		models.ErrorEvent{Type: models.EventError, Error: "boom"},
	}}
	svc := &fakeSessionService{describeErr: errors.New("provider down")}
	handler := newTestHandler(runner, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/agent", `{"goal":"g","sessionId":"sess-9"}`))

	req := runner.requests[0]
	if req.Session == nil || req.Session.SessionID != "sess-9" || req.Session.SessionURL != "" {
		t.Errorf("degraded session = %+v", req.Session)
	}
}

func TestAgentSynthesizesTerminalErrorEvent(t *testing.T) {
	// A producer that ends without a terminal event gets one appended so
	// the stream always closes cleanly.
	runner := &fakeRunner{events: []models.AgentEvent{
		models.SessionStartEvent{Type: models.EventSessionStart, SessionID: "sess-1"},
	}}
	handler := newTestHandler(runner, &fakeSessionService{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/agent", `{"goal":"g"}`))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("stream has %d lines, want 2: %q", len(lines), rec.Body.String())
	}
	var last models.ErrorEvent
	if err := json.Unmarshal([]byte(lines[1]), &last); err != nil {
		t.Fatalf("decode last line: %v", err)
	}
	if last.Type != models.EventError {
		t.Errorf("last event type = %q, want error", last.Type)
	}
}

func TestSessionCreate(t *testing.T) {
	svc := &fakeSessionService{session: testSession()}
	handler := newTestHandler(&fakeRunner{}, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/sessions", `{"timezone":"Asia/Tokyo"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.SessionID != "sess-1" || resp.SessionURL != "https://live/sess-1" || resp.ContextID != "ctx-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSessionCreateFailure(t *testing.T) {
	svc := &fakeSessionService{createErr: errors.New("no capacity")}
	handler := newTestHandler(&fakeRunner{}, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/sessions", `{}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp failureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Error != "failed to create session" || !strings.Contains(resp.Details, "no capacity") {
		t.Errorf("response = %+v", resp)
	}
}

func TestSessionDelete(t *testing.T) {
	svc := &fakeSessionService{}
	handler := newTestHandler(&fakeRunner{}, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/sessions", `{"sessionId":"sess-1"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(svc.terminated) != 1 || svc.terminated[0] != "sess-1" {
		t.Errorf("terminated = %v", svc.terminated)
	}
	var resp map[string]bool
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp["success"] {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSessionDeleteRequiresID(t *testing.T) {
	svc := &fakeSessionService{}
	handler := newTestHandler(&fakeRunner{}, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/sessions", `{}`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(svc.terminated) != 0 {
		t.Errorf("terminate called for missing id: %v", svc.terminated)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	handler := newTestHandler(&fakeRunner{}, &fakeSessionService{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/runs", ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealthzIsOpen(t *testing.T) {
	handler := newTestHandler(&fakeRunner{}, &fakeSessionService{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without credentials", rec.Code)
	}
}
