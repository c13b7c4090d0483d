package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"gitduel/internal/domain"
)

// maxErrorBody caps how much of a failed response we read for classification.
const maxErrorBody = 4096

// doStreamRequest performs a JSON POST request for SSE streaming.
// It returns the open *http.Response (caller must close Body).
// Returns a domain error for non-2xx responses and transport failures.
func doStreamRequest(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, mapHTTPError(httpResp.StatusCode, respBody)
	}

	return httpResp, nil
}

// apiErrorBody is the error envelope used by OpenAI-compatible APIs. OpenRouter
// reports numeric codes, OpenAI string codes, so Code stays raw.
type apiErrorBody struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

// code returns the error code as a plain string ("402", "insufficient_quota").
func (e *apiError) code() string {
	if e == nil || len(e.Code) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Code, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(e.Code, &n); err == nil {
		return n.String()
	}
	return ""
}

// isQuotaFault reports whether the provider blamed billing or credits.
func (e *apiError) isQuotaFault() bool {
	if e == nil {
		return false
	}
	switch e.code() {
	case "402", "insufficient_quota":
		return true
	}
	return e.Type == "insufficient_quota"
}

// parseAPIError extracts the provider error envelope, if the body carries one.
func parseAPIError(body []byte) *apiError {
	var env apiErrorBody
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return env.Error
}

// mapHTTPError maps an HTTP status code + response body to a domain error.
func mapHTTPError(statusCode int, body []byte) error {
	apiErr := parseAPIError(body)
	detail := fmt.Sprintf("API error %d: %s", statusCode, strings.TrimSpace(string(body)))
	if apiErr != nil && apiErr.Message != "" {
		detail = fmt.Sprintf("API error %d: %s", statusCode, apiErr.Message)
	}
	return classify(statusCode, apiErr, detail)
}

// classify picks the domain sentinel for a failed call. A billing fault wins
// over the status code: some providers report it with a 400 or 403 and the
// code only in the body.
func classify(statusCode int, apiErr *apiError, detail string) error {
	switch {
	case statusCode == http.StatusPaymentRequired || apiErr.isQuotaFault(): // 402
		return fmt.Errorf("%w: %s", domain.ErrInsufficientQuota, detail)
	case statusCode == http.StatusTooManyRequests: // 429
		return fmt.Errorf("%w: %s", domain.ErrRateLimit, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden: // 401, 403
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, detail)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", domain.ErrProviderError, detail)
	default:
		return fmt.Errorf("%w: %s", domain.ErrTransport, detail)
	}
}

// mapStreamError classifies an error object delivered inside a stream chunk.
func mapStreamError(e *apiError) error {
	status, err := strconv.Atoi(e.code())
	if err != nil {
		status = http.StatusInternalServerError
	}
	return classify(status, e, "stream error: "+e.Message)
}

// isCallerAbort reports whether err came from the caller giving up rather
// than from the provider failing.
func isCallerAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}
