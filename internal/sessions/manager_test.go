package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haasonsaas/operator/internal/browserbase"
	"github.com/haasonsaas/operator/internal/retry"
)

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := browserbase.NewClient("test-key",
		browserbase.WithBaseURL(server.URL),
		browserbase.WithRetryConfig(retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, Factor: 2}),
	)
	return NewManager(client, "proj-1", nil, nil)
}

// fakeProvider serves the three endpoints a successful creation touches.
func fakeProvider(t *testing.T) (*http.ServeMux, *browserbase.CreateSessionRequest) {
	t.Helper()
	var sessionReq browserbase.CreateSessionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/contexts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(browserbase.Context{ID: "ctx-minted"})
	})
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&sessionReq); err != nil {
			t.Fatalf("decode session request: %v", err)
		}
		json.NewEncoder(w).Encode(browserbase.Session{ID: "sess-1", Status: "RUNNING"})
	})
	mux.HandleFunc("GET /v1/sessions/sess-1/debug", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(browserbase.DebugInfo{DebuggerFullscreenURL: "https://live/sess-1"})
	})
	return mux, &sessionReq
}

func TestCreateMintsContextWhenAbsent(t *testing.T) {
	mux, sessionReq := fakeProvider(t)
	m := newTestManager(t, mux)

	session, err := m.Create(context.Background(), "Europe/Berlin", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.SessionID != "sess-1" {
		t.Errorf("session ID = %q, want sess-1", session.SessionID)
	}
	if session.SessionURL != "https://live/sess-1" {
		t.Errorf("session URL = %q", session.SessionURL)
	}
	if session.ContextID != "ctx-minted" {
		t.Errorf("context ID = %q, want ctx-minted", session.ContextID)
	}

	if sessionReq.Region != "eu-central-1" {
		t.Errorf("region = %q, want eu-central-1", sessionReq.Region)
	}
	if !sessionReq.KeepAlive {
		t.Error("keepAlive not set on session creation")
	}
	if sessionReq.BrowserSettings == nil || sessionReq.BrowserSettings.Context == nil {
		t.Fatal("context settings missing from session creation")
	}
	if got := sessionReq.BrowserSettings.Context; got.ID != "ctx-minted" || !got.Persist {
		t.Errorf("context settings = %+v", got)
	}
}

func TestCreateReusesSuppliedContext(t *testing.T) {
	mux, sessionReq := fakeProvider(t)
	m := newTestManager(t, mux)

	session, err := m.Create(context.Background(), "", "ctx-existing")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.ContextID != "ctx-existing" {
		t.Errorf("context ID = %q, want ctx-existing", session.ContextID)
	}
	if sessionReq.BrowserSettings.Context.ID != "ctx-existing" {
		t.Errorf("bound context = %q", sessionReq.BrowserSettings.Context.ID)
	}
	// Empty timezone falls back to the default region.
	if sessionReq.Region != "us-west-2" {
		t.Errorf("region = %q, want us-west-2", sessionReq.Region)
	}
}

func TestCreateStageErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   func(mux *http.ServeMux)
		contextID string
		wantStage CreationStage
	}{
		{
			name: "context stage",
			handler: func(mux *http.ServeMux) {
				mux.HandleFunc("POST /v1/contexts", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusForbidden)
				})
			},
			wantStage: StageContext,
		},
		{
			name:      "session stage",
			contextID: "ctx-1",
			handler: func(mux *http.ServeMux) {
				mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadRequest)
				})
			},
			wantStage: StageSession,
		},
		{
			name:      "debug stage",
			contextID: "ctx-1",
			handler: func(mux *http.ServeMux) {
				mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
					json.NewEncoder(w).Encode(browserbase.Session{ID: "sess-1"})
				})
				mux.HandleFunc("GET /v1/sessions/sess-1/debug", func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusNotFound)
				})
			},
			wantStage: StageDebug,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			tt.handler(mux)
			m := newTestManager(t, mux)

			_, err := m.Create(context.Background(), "", tt.contextID)
			var creationErr *CreationError
			if !errors.As(err, &creationErr) {
				t.Fatalf("error = %v, want *CreationError", err)
			}
			if creationErr.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", creationErr.Stage, tt.wantStage)
			}
		})
	}
}

func TestCreateWithoutCredentials(t *testing.T) {
	m := NewManager(nil, "", nil, nil)
	_, err := m.Create(context.Background(), "", "")
	var creationErr *CreationError
	if !errors.As(err, &creationErr) {
		t.Fatalf("error = %v, want *CreationError", err)
	}
	if creationErr.Stage != StageCredentials {
		t.Errorf("stage = %q, want %q", creationErr.Stage, StageCredentials)
	}
}

func TestTerminate(t *testing.T) {
	released := false
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "REQUEST_RELEASE" {
			t.Errorf("status = %q, want REQUEST_RELEASE", body["status"])
		}
		released = true
	})
	m := newTestManager(t, mux)

	if err := m.Terminate(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if !released {
		t.Error("release request never reached the provider")
	}
}

func TestTerminateWrapsFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	m := newTestManager(t, mux)

	err := m.Terminate(context.Background(), "sess-1")
	var termErr *TerminationError
	if !errors.As(err, &termErr) {
		t.Fatalf("error = %v, want *TerminationError", err)
	}
	if termErr.SessionID != "sess-1" {
		t.Errorf("session ID = %q, want sess-1", termErr.SessionID)
	}
}

func TestDescribe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(browserbase.Session{ID: "sess-1", ContextID: "ctx-9"})
	})
	mux.HandleFunc("GET /v1/sessions/sess-1/debug", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(browserbase.DebugInfo{DebuggerFullscreenURL: "https://live/sess-1"})
	})
	m := newTestManager(t, mux)

	session, err := m.Describe(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if session.SessionID != "sess-1" || session.ContextID != "ctx-9" || session.SessionURL != "https://live/sess-1" {
		t.Errorf("session = %+v", session)
	}
}

func TestConnectURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(browserbase.Session{ID: "sess-1", ConnectURL: "wss://connect/sess-1"})
	})
	mux.HandleFunc("GET /v1/sessions/sess-2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(browserbase.Session{ID: "sess-2"})
	})
	m := newTestManager(t, mux)

	url, err := m.ConnectURL(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ConnectURL: %v", err)
	}
	if url != "wss://connect/sess-1" {
		t.Errorf("connect URL = %q", url)
	}

	if _, err := m.ConnectURL(context.Background(), "sess-2"); err == nil {
		t.Error("expected error for session without connect URL")
	}
}
