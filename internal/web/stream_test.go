package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/operator/pkg/models"
)

// plainWriter is a ResponseWriter without Flush support.
type plainWriter struct {
	http.ResponseWriter
}

func TestNewStreamEmitterRequiresFlusher(t *testing.T) {
	w := plainWriter{httptest.NewRecorder()}
	if _, err := NewStreamEmitter(w, nil); err == nil {
		t.Fatal("expected error for non-flushable writer")
	}
}

func TestStreamEmitterHeadersAndFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	emitter, err := NewStreamEmitter(rec, nil)
	if err != nil {
		t.Fatalf("NewStreamEmitter: %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	if err := emitter.Emit(models.ErrorEvent{Type: models.EventError, Error: "x"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !rec.Flushed {
		t.Error("event not flushed")
	}
	if got := rec.Body.String(); got != "{\"type\":\"error\",\"error\":\"x\"}\n" {
		t.Errorf("body = %q", got)
	}
}
