package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter streams JSON events to the client in Server-Sent Events
// framing. The frontend consumes data-only events: no event names, one
// JSON object per "data:" line.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter sets the SSE headers and returns a writer bound to the
// response.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent marshals payload and sends it as one SSE event, flushing
// immediately so chunks reach the client without buffering delay.
func (s *sseWriter) writeEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
