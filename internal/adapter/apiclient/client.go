// Package apiclient talks to a running gitduel API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
	"gitduel/internal/infra/tracer"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Client calls the comparison and streaming endpoints.
type Client struct {
	baseURL string
	client  *http.Client // non-streaming calls, bounded by Timeout
	stream  *http.Client // streaming calls, bounded only by the caller's context
	logger  *slog.Logger
}

// New creates a client for cfg.APIBaseURL.
func New(cfg config.ClientConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		stream:  &http.Client{},
		logger:  logger,
	}
}

type compareRequest struct {
	Username1 string `json:"username1"`
	Username2 string `json:"username2"`
}

type compareResponse struct {
	Success bool           `json:"success"`
	User1   domain.Profile `json:"user1"`
	User2   domain.Profile `json:"user2"`
}

type streamRequest struct {
	User1     domain.Profile `json:"user1"`
	User2     domain.Profile `json:"user2"`
	RoastType string         `json:"roastType,omitempty"`
}

type errorBody struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	ResetTime string `json:"resetTime"`
}

// CompareProfiles fetches both profiles through the API.
func (c *Client) CompareProfiles(ctx context.Context, username1, username2 string) (domain.ProfilePair, error) {
	const op = "apiclient.CompareProfiles"

	ctx, span := tracer.StartSpan(ctx, "apiclient.compare")
	defer span.End()

	resp, err := c.post(ctx, c.client, "/api/compare", compareRequest{Username1: username1, Username2: username2})
	if err != nil {
		tracer.RecordError(span, err)
		return domain.ProfilePair{}, domain.WrapOp(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := responseError(op, resp)
		tracer.RecordError(span, err)
		return domain.ProfilePair{}, err
	}

	var out compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		tracer.RecordError(span, err)
		return domain.ProfilePair{}, domain.WrapOp(op, fmt.Errorf("%w: decode response: %v", domain.ErrProviderError, err))
	}
	tracer.SetOK(span)
	return domain.ProfilePair{First: out.User1, Second: out.User2}, nil
}

// StreamComparison opens the neutral narration stream. The caller closes
// the returned body.
func (c *Client) StreamComparison(ctx context.Context, pair domain.ProfilePair) (io.ReadCloser, error) {
	return c.openStream(ctx, "apiclient.StreamComparison", "/api/compare/stream",
		streamRequest{User1: pair.First, User2: pair.Second})
}

// StreamRoast opens a roast stream for roastType ("user1", "user2" or "both").
func (c *Client) StreamRoast(ctx context.Context, pair domain.ProfilePair, roastType string) (io.ReadCloser, error) {
	return c.openStream(ctx, "apiclient.StreamRoast", "/api/roast/stream",
		streamRequest{User1: pair.First, User2: pair.Second, RoastType: roastType})
}

func (c *Client) openStream(ctx context.Context, op, path string, body streamRequest) (io.ReadCloser, error) {
	resp, err := c.post(ctx, c.stream, path, body)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(op, resp)
	}
	c.logger.Debug("narration stream opened", "path", path, "roast_type", body.RoastType)
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return resp, nil
}

// responseError maps an error response onto the domain error taxonomy,
// keeping the server's message as the detail.
func responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		rl := &domain.RateLimitError{Op: op}
		if t, err := time.Parse(time.RFC3339, body.ResetTime); err == nil {
			rl.ResetAt = t
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
		return rl
	case http.StatusBadRequest:
		return domain.NewDomainError(op, domain.ErrInvalidInput, body.Error)
	case http.StatusNotFound:
		return domain.NewDomainError(op, domain.ErrNotFound, body.Error)
	case http.StatusUnauthorized:
		return domain.NewDomainError(op, domain.ErrAuthInvalid, body.Error)
	}
	return domain.NewDomainError(op, domain.ErrProviderError, body.Error)
}
