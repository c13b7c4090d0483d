package domain

import (
	"context"
	"fmt"
	"io"
)

// Mode selects the framing of a generation.
type Mode int

const (
	ModeNeutral Mode = iota
	ModeRoastFirst
	ModeRoastSecond
	ModeRoastBoth
)

// Roast type identifiers as they appear on the wire and in the action gate.
const (
	RoastUser1 = "user1"
	RoastUser2 = "user2"
	RoastBoth  = "both"
)

// ParseRoastType maps a wire roast type onto a Mode.
func ParseRoastType(s string) (Mode, error) {
	switch s {
	case RoastUser1:
		return ModeRoastFirst, nil
	case RoastUser2:
		return ModeRoastSecond, nil
	case RoastBoth:
		return ModeRoastBoth, nil
	}
	return ModeNeutral, fmt.Errorf("%w: roast type %q", ErrInvalidInput, s)
}

// RoastType is the inverse of ParseRoastType; it is empty for ModeNeutral.
func (m Mode) RoastType() string {
	switch m {
	case ModeRoastFirst:
		return RoastUser1
	case ModeRoastSecond:
		return RoastUser2
	case ModeRoastBoth:
		return RoastBoth
	}
	return ""
}

func (m Mode) String() string {
	if m == ModeNeutral {
		return "neutral"
	}
	return "roast-" + m.RoastType()
}

// IsRoast reports whether m is one of the adversarial modes.
func (m Mode) IsRoast() bool { return m != ModeNeutral }

// GenerationRequest is the immutable input of one generation.
type GenerationRequest struct {
	Profiles ProfilePair
	Mode     Mode
}

// GenerationParams is the provider-facing form of a GenerationRequest.
type GenerationParams struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
	Stream       bool
}

// Sampling defaults per mode.
const (
	NeutralTemperature = 0.7
	NeutralMaxTokens   = 1000
	RoastTemperature   = 0.9
	RoastMaxTokens     = 1500
)

// SamplingFor returns the temperature and token ceiling for m.
func SamplingFor(m Mode) (temperature float64, maxTokens int) {
	if m.IsRoast() {
		return RoastTemperature, RoastMaxTokens
	}
	return NeutralTemperature, NeutralMaxTokens
}

// StreamSource opens a raw chunked generation stream and understands its
// per-chunk payload format.
type StreamSource interface {
	Name() string
	// OpenStream issues the upstream request. The caller owns the returned body.
	OpenStream(ctx context.Context, params GenerationParams) (io.ReadCloser, error)
	// ParseChunk extracts the text delta from one framed payload.
	// An empty string with a nil error means the chunk carried no text.
	ParseChunk(payload []byte) (string, error)
}
