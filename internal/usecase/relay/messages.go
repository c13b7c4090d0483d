package relay

import (
	"errors"

	"gitduel/internal/domain"
)

// Client-facing error messages. They are part of the wire contract and must
// not change.
const (
	MsgInsufficientQuota = "Insufficient API credits. Please add credits to your account."
	MsgComparisonFailed  = "Failed to generate AI comparison. Please try again."
	MsgRoastFailed       = "Failed to generate roast. Please try again."
	MsgStreamError       = "Stream error occurred"
	MsgPrematureEOF      = "Stream ended before completion"
	MsgIdleTimeout       = "Upstream stopped responding"
)

// OpenFailureMessage is the message sent when the upstream request could not
// be started. A billing fault is reported as such; every other cause gets the
// mode's generic message.
func OpenFailureMessage(err error, mode domain.Mode) string {
	if errors.Is(err, domain.ErrInsufficientQuota) {
		return MsgInsufficientQuota
	}
	if mode.IsRoast() {
		return MsgRoastFailed
	}
	return MsgComparisonFailed
}

// midStreamMessage is the message for a failure after the stream started.
func midStreamMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientQuota):
		return MsgInsufficientQuota
	case errors.Is(err, domain.ErrTimeout):
		return MsgIdleTimeout
	case errors.Is(err, domain.ErrPrematureEOF):
		return MsgPrematureEOF
	}
	return MsgStreamError
}
