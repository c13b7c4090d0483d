// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gitduel/internal/adapter/tui/theme"
	"gitduel/internal/domain"
	"gitduel/internal/usecase/consumer"
	"gitduel/internal/usecase/relay"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "User Not Found"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for the error banner.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n")
		sb.WriteString(fe.Message)
	}
	for _, h := range fe.Hints {
		sb.WriteString(fmt.Sprintf("\n  %s %s", theme.SymbolBullet, h))
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinels first so errors.Is works through wrapping.
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrRateLimit) },
		produce: func(err error) FriendlyError {
			fe := FriendlyError{
				Title:   "GitHub Rate Limit",
				Message: "GitHub is throttling profile lookups.",
				Hints:   []string{"Wait for the limit to reset", "Configure a GitHub token with a higher quota"},
				Raw:     err.Error(),
			}
			var rl *domain.RateLimitError
			if errors.As(err, &rl) && !rl.ResetAt.IsZero() {
				fe.Message = "GitHub is throttling profile lookups until " + rl.ResetAt.Local().Format(time.Kitchen) + "."
			}
			return fe
		},
	},
	{
		match:   func(err error) bool { return errors.Is(err, domain.ErrNotFound) },
		produce: detailError("User Not Found", []string{"Check the spelling of both usernames"}),
	},
	{
		match:   func(err error) bool { return errors.Is(err, domain.ErrInvalidInput) },
		produce: detailError("Invalid Input", []string{"Enter two different GitHub usernames"}),
	},
	{
		match:   func(err error) bool { return errors.Is(err, domain.ErrAuthInvalid) },
		produce: detailError("Authentication Failed", []string{"Check github.token in the server config", "Verify the token hasn't expired"}),
	},

	// Stream outcomes arrive as plain messages.
	{
		match:   containsAny(strings.ToLower(relay.MsgInsufficientQuota), "402", "quota", "insufficient"),
		produce: constantError("Out of Credits", relay.MsgInsufficientQuota, []string{"Add credits to the LLM provider account", "Switch llm.default_provider in the server config"}),
	},
	{
		match:   containsAny(strings.ToLower(relay.MsgIdleTimeout)),
		produce: constantError("Narration Stalled", "The language model stopped sending text.", []string{"Try again in a moment", "Raise llm.stream_idle_timeout if the model is slow"}),
	},
	{
		match:   containsAny(strings.ToLower(relay.MsgPrematureEOF), consumer.MsgConnectionClosed),
		produce: constantError("Stream Interrupted", "The narration ended before it was complete.", []string{"Try again"}),
	},

	// Network / connectivity.
	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Server Unreachable", "Could not reach the gitduel API.", []string{"Start it with 'gitduel serve'", "Check client.api_base_url in config"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "context deadline"),
		produce: constantError("Request Timed Out", "The request took too long to complete.", []string{"Check your network connection", "Increase client.timeout in config"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Something Went Wrong",
		Message: err.Error(),
		Hints:   []string{"Try again"},
		Raw:     err.Error(),
	}
}

// containsAny returns a match func that checks if the error string contains
// any of the given lowercase substrings.
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}

// detailError uses the server's detail text as the message when present.
func detailError(title string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		msg := err.Error()
		var de *domain.DomainError
		if errors.As(err, &de) && de.Detail != "" {
			msg = de.Detail
		}
		return FriendlyError{Title: title, Message: msg, Hints: hints, Raw: err.Error()}
	}
}
