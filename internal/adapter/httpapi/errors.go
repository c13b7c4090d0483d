package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gitduel/internal/domain"
)

const (
	msgRateLimited = "GitHub API rate limit exceeded. Please try again later."
	msgGeneric     = "An error occurred while comparing profiles"
)

type errorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	ResetTime string `json:"resetTime,omitempty"`
}

// errorResponseFor picks the status and body for err. The user-facing text
// comes from the DomainError detail when there is one.
func errorResponseFor(err error) (int, errorResponse) {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		body := errorResponse{Error: msgRateLimited}
		if !rl.ResetAt.IsZero() {
			body.ResetTime = rl.ResetAt.UTC().Format(time.RFC3339)
		}
		return http.StatusTooManyRequests, body
	}

	msg := msgGeneric
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		msg = de.Detail
	}
	body := errorResponse{Error: msg}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, body
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrRateLimit):
		body.Error = msgRateLimited
		return http.StatusTooManyRequests, body
	case errors.Is(err, domain.ErrAuthInvalid):
		return http.StatusUnauthorized, body
	case errors.Is(err, context.Canceled):
		return statusClientClosed, body
	}
	body.Details = err.Error()
	return http.StatusBadGateway, body
}

// statusClientClosed is the de facto status for a request the client abandoned.
const statusClientClosed = 499

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return strconv.Itoa(max(secs, 1))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
