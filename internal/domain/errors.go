package domain

import (
	"errors"
	"fmt"
	"time"
)

// Category sentinels shared by the aggregation and streaming layers.
var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrProviderError     = fmt.Errorf("provider error")
	ErrRateLimit         = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid       = fmt.Errorf("authentication failed")
	ErrInsufficientQuota = fmt.Errorf("insufficient quota")
	ErrTransport         = fmt.Errorf("transport failure")
	ErrTimeout           = fmt.Errorf("operation timed out")
)

// Sentinel errors for the streaming pipeline and bootstrapping.
var (
	// ErrMalformedChunk is recovered inside the relay and never surfaced to clients.
	ErrMalformedChunk   = fmt.Errorf("malformed stream chunk")
	ErrPrematureEOF     = fmt.Errorf("stream ended before completion")
	ErrProviderNotFound = fmt.Errorf("llm provider not found")
	ErrCircuitOpen      = fmt.Errorf("circuit breaker open")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")
	ErrDecryption       = fmt.Errorf("decryption failed")
	ErrEncryption       = fmt.Errorf("encryption operation failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "GitHub.FetchProfile")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RateLimitError carries the retry hint reported by an upstream that throttled us.
// It unwraps to ErrRateLimit.
type RateLimitError struct {
	Op         string
	ResetAt    time.Time     // zero when the upstream did not report one
	RetryAfter time.Duration // zero when unknown
}

func (e *RateLimitError) Error() string {
	if !e.ResetAt.IsZero() {
		return fmt.Sprintf("%s: %s (resets at %s)", e.Op, ErrRateLimit, e.ResetAt.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s: %s", e.Op, ErrRateLimit)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimit }

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout)
}

// ErrorCode is a machine-parseable error category for logs and API responses.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeProviderError     ErrorCode = "PROVIDER_ERROR"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
	CodeInsufficientQuota ErrorCode = "INSUFFICIENT_QUOTA"
	CodeTransport         ErrorCode = "TRANSPORT"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeMalformedChunk    ErrorCode = "MALFORMED_CHUNK"
	CodePrematureEOF      ErrorCode = "PREMATURE_EOF"
	CodeProviderNotFound  ErrorCode = "PROVIDER_NOT_FOUND"
	CodeCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeDecryption        ErrorCode = "DECRYPTION"
	CodeEncryption        ErrorCode = "ENCRYPTION"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:          CodeNotFound,
	ErrInvalidInput:      CodeInvalidInput,
	ErrProviderError:     CodeProviderError,
	ErrRateLimit:         CodeRateLimit,
	ErrAuthInvalid:       CodeAuthInvalid,
	ErrInsufficientQuota: CodeInsufficientQuota,
	ErrTransport:         CodeTransport,
	ErrTimeout:           CodeTimeout,
	ErrMalformedChunk:    CodeMalformedChunk,
	ErrPrematureEOF:      CodePrematureEOF,
	ErrProviderNotFound:  CodeProviderNotFound,
	ErrCircuitOpen:       CodeCircuitOpen,
	ErrConfigLoad:        CodeConfigLoad,
	ErrDecryption:        CodeDecryption,
	ErrEncryption:        CodeEncryption,
}

// codePriority fixes the order in which wrapped chains are matched so that a
// chain carrying several sentinels resolves deterministically.
var codePriority = []error{
	ErrInsufficientQuota,
	ErrRateLimit,
	ErrAuthInvalid,
	ErrNotFound,
	ErrInvalidInput,
	ErrCircuitOpen,
	ErrPrematureEOF,
	ErrMalformedChunk,
	ErrTimeout,
	ErrTransport,
	ErrProviderNotFound,
	ErrConfigLoad,
	ErrDecryption,
	ErrEncryption,
	ErrProviderError,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	for _, sentinel := range codePriority {
		if errors.Is(err, sentinel) {
			return errorCodeMap[sentinel]
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
