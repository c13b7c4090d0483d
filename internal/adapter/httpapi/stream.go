package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"gitduel/internal/domain"
)

var errNoFlusher = errors.New("response writer cannot flush")

// eventWriter writes relay events as event-stream frames, flushing each one.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newEventWriter sends the event-stream headers. It fails before writing
// anything when w cannot flush.
func newEventWriter(w http.ResponseWriter) (*eventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errNoFlusher
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventWriter{w: w, flusher: flusher}, nil
}

// Send writes one frame and flushes it.
func (e *eventWriter) Send(ev domain.RelayEvent) error {
	frame, err := domain.EncodeFrame(ev)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	e.flusher.Flush()
	return nil
}
