package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/haasonsaas/operator/pkg/models"
)

// StreamEmitter serializes agent events as newline-delimited JSON over a
// long-lived response. Each event is one self-contained record terminated
// by a line break and flushed immediately; no record mixes two events.
type StreamEmitter struct {
	enc     *json.Encoder
	flusher http.Flusher
	logger  *slog.Logger
}

// NewStreamEmitter prepares w for NDJSON streaming and writes the
// response headers. It fails when the response cannot be flushed
// incrementally.
func NewStreamEmitter(w http.ResponseWriter, logger *slog.Logger) (*StreamEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &StreamEmitter{
		enc:     json.NewEncoder(w),
		flusher: flusher,
		logger:  logger,
	}, nil
}

// Emit writes one event record and flushes it. A write error means the
// consumer is gone; the caller stops the run.
func (s *StreamEmitter) Emit(ev models.AgentEvent) error {
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("write %s event: %w", ev.EventType(), err)
	}
	s.flusher.Flush()
	return nil
}
