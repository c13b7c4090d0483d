// Package consumer reads a relay event stream from the wire and dispatches
// its events in arrival order.
package consumer

import (
	"bytes"
	"context"
	"errors"
	"io"

	"gitduel/internal/domain"
)

// MsgConnectionClosed is reported when the stream ends without a terminal event.
const MsgConnectionClosed = "connection closed before completion"

const readSize = 4096

// Outcome is how a consumed stream ended.
type Outcome int

const (
	// OutcomeDone means a Done event was received.
	OutcomeDone Outcome = iota
	// OutcomeFailed means an Error event was received or synthesized.
	OutcomeFailed
	// OutcomeCancelled means the context ended the loop first.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeFailed:
		return "failed"
	}
	return "cancelled"
}

// Handler receives dispatched events. Nil callbacks are skipped.
type Handler struct {
	OnContent func(text string)
	OnError   func(message string)
	OnDone    func()
}

// Consume reads r until a terminal event, EOF or cancellation. Exactly one
// of OnDone or OnError is called unless ctx is cancelled first; nothing is
// dispatched after it. Bytes following the terminal frame are ignored.
//
// The returned error is ctx.Err() on cancellation or the read error that cut
// the stream short; a received Error event is not a Go error.
func Consume(ctx context.Context, r io.Reader, h Handler) (Outcome, error) {
	var pending []byte
	buf := make([]byte, readSize)

	for {
		if err := ctx.Err(); err != nil {
			return OutcomeCancelled, err
		}

		n, readErr := r.Read(buf)
		pending = append(pending, buf[:n]...)

		// Dispatch every complete line of this read before reading again.
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := pending[:i]
			pending = pending[i+1:]

			if err := ctx.Err(); err != nil {
				return OutcomeCancelled, err
			}
			if outcome, terminal := dispatch(line, h); terminal {
				return outcome, nil
			}
		}

		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return OutcomeCancelled, ctxErr
			}
			// A final frame without its trailing newline still counts.
			if len(pending) > 0 {
				if outcome, terminal := dispatch(pending, h); terminal {
					return outcome, nil
				}
			}
			if h.OnError != nil {
				h.OnError(MsgConnectionClosed)
			}
			if errors.Is(readErr, io.EOF) {
				return OutcomeFailed, nil
			}
			return OutcomeFailed, readErr
		}
	}
}

// dispatch handles one complete line and reports whether it was terminal.
func dispatch(line []byte, h Handler) (Outcome, bool) {
	ev, ok := Decode(line)
	if !ok {
		return OutcomeDone, false
	}
	switch ev.Kind {
	case domain.EventError:
		if h.OnError != nil {
			h.OnError(ev.Message)
		}
		return OutcomeFailed, true
	case domain.EventDone:
		if h.OnDone != nil {
			h.OnDone()
		}
		return OutcomeDone, true
	default:
		if h.OnContent != nil {
			h.OnContent(ev.Text)
		}
		return OutcomeDone, false
	}
}

// Decode parses one wire line. Lines that are not data frames, or whose
// payload does not decode, report ok=false.
func Decode(line []byte) (domain.RelayEvent, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	payload, found := bytes.CutPrefix(line, []byte("data:"))
	if !found {
		return domain.RelayEvent{}, false
	}
	payload = bytes.TrimPrefix(payload, []byte(" "))
	ev, ok, err := domain.DecodeFrame(payload)
	if err != nil || !ok {
		return domain.RelayEvent{}, false
	}
	return ev, true
}

// Forward runs Consume on its own goroutine and delivers the events on the
// returned channel, which always ends with one terminal event unless ctx is
// cancelled. The channel is closed when consumption stops.
func Forward(ctx context.Context, r io.Reader) <-chan domain.RelayEvent {
	out := make(chan domain.RelayEvent, 16)
	go func() {
		defer close(out)
		send := func(ev domain.RelayEvent) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
		Consume(ctx, r, Handler{
			OnContent: func(text string) { send(domain.ContentEvent(text)) },
			OnError:   func(msg string) { send(domain.ErrorEvent(msg)) },
			OnDone:    func() { send(domain.DoneEvent()) },
		})
	}()
	return out
}
