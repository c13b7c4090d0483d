package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies the variant of a RelayEvent.
type EventKind string

const (
	EventContent EventKind = "content"
	EventDone    EventKind = "done"
	EventError   EventKind = "error"
)

// RelayEvent is one normalized item of a generation stream.
// Exactly one Done or Error terminates every stream.
type RelayEvent struct {
	Kind    EventKind
	Text    string // set for EventContent
	Message string // set for EventError
}

// ContentEvent returns a content delta event.
func ContentEvent(text string) RelayEvent { return RelayEvent{Kind: EventContent, Text: text} }

// DoneEvent returns the successful terminal event.
func DoneEvent() RelayEvent { return RelayEvent{Kind: EventDone} }

// ErrorEvent returns the failed terminal event.
func ErrorEvent(msg string) RelayEvent { return RelayEvent{Kind: EventError, Message: msg} }

// Terminal reports whether the event ends its stream.
func (e RelayEvent) Terminal() bool { return e.Kind == EventDone || e.Kind == EventError }

// frame is the JSON payload carried by one "data:" line on the wire.
type frame struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FramePrefix starts every event line on the wire.
const FramePrefix = "data: "

// EncodeFrame renders ev as a complete event-stream frame, blank line included.
func EncodeFrame(ev RelayEvent) ([]byte, error) {
	var f frame
	switch ev.Kind {
	case EventContent:
		f.Content = ev.Text
	case EventDone:
		f.Done = true
	case EventError:
		f.Error = ev.Message
	default:
		return nil, fmt.Errorf("encode frame: unknown event kind %q", ev.Kind)
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	out := make([]byte, 0, len(FramePrefix)+len(payload)+2)
	out = append(out, FramePrefix...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

// DecodeFrame parses the JSON payload of one wire frame (without the prefix).
// An error wins over done, and done over content. A frame with none of the
// three fields set yields ok=false.
func DecodeFrame(payload []byte) (ev RelayEvent, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return RelayEvent{}, false, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	switch {
	case f.Error != "":
		return ErrorEvent(f.Error), true, nil
	case f.Done:
		return DoneEvent(), true, nil
	case f.Content != "":
		return ContentEvent(f.Content), true, nil
	}
	return RelayEvent{}, false, nil
}
