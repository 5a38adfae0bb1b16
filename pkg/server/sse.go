package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shepherd/pkg/events"
)

// sseWriter writes every event as one `data: <json>` frame and flushes it
// immediately.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) PublishEvent(e events.Event) error {
	payload, err := e.Payload()
	if err != nil {
		return errors.Wrap(err, "could not marshal event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return errors.Wrap(err, "could not write SSE frame")
	}
	s.flusher.Flush()
	return nil
}

// comment writes an SSE comment line, used as keepalive.
func (s *sseWriter) comment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

var _ events.EventSink = (*sseWriter)(nil)
