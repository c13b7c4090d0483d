package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
)

type mockSource struct {
	name     string
	openFunc func(ctx context.Context, params domain.GenerationParams) (io.ReadCloser, error)
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) OpenStream(ctx context.Context, params domain.GenerationParams) (io.ReadCloser, error) {
	if m.openFunc != nil {
		return m.openFunc(ctx, params)
	}
	return io.NopCloser(strings.NewReader("data: [DONE]\n\n")), nil
}

func (m *mockSource) ParseChunk(payload []byte) (string, error) { return string(payload), nil }

func TestCircuitBreakerPassesThrough(t *testing.T) {
	cb := NewCircuitBreakerSource(&mockSource{name: "test"}, config.CircuitBreakerConfig{}, slog.Default())

	body, err := cb.OpenStream(context.Background(), domain.GenerationParams{})
	require.NoError(t, err)
	raw, _ := io.ReadAll(body)
	assert.Equal(t, "data: [DONE]\n\n", string(raw))

	text, err := cb.ParseChunk([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", text)
}

func TestCircuitBreakerName(t *testing.T) {
	cb := NewCircuitBreakerSource(&mockSource{name: "openrouter"}, config.CircuitBreakerConfig{}, slog.Default())
	assert.Equal(t, "openrouter", cb.Name())
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	callCount := 0
	inner := &mockSource{
		name: "flaky",
		openFunc: func(context.Context, domain.GenerationParams) (io.ReadCloser, error) {
			callCount++
			return nil, fmt.Errorf("%w: upstream 503", domain.ErrProviderError)
		},
	}

	cb := NewCircuitBreakerSource(inner, config.CircuitBreakerConfig{
		MaxFailures: 3,
		Timeout:     5 * time.Second,
		Interval:    60 * time.Second,
	}, slog.Default())

	for i := 0; i < 3; i++ {
		_, err := cb.OpenStream(context.Background(), domain.GenerationParams{})
		require.ErrorIs(t, err, domain.ErrProviderError)
	}
	assert.Equal(t, 3, callCount)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.OpenStream(context.Background(), domain.GenerationParams{})
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 3, callCount, "source should not be called when circuit is open")
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	shouldFail := true
	inner := &mockSource{
		name: "recovering",
		openFunc: func(context.Context, domain.GenerationParams) (io.ReadCloser, error) {
			if shouldFail {
				return nil, errors.New("temporary failure")
			}
			return io.NopCloser(strings.NewReader("")), nil
		},
	}

	cb := NewCircuitBreakerSource(inner, config.CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     50 * time.Millisecond,
		Interval:    time.Minute,
	}, slog.Default())

	for i := 0; i < 2; i++ {
		_, _ = cb.OpenStream(context.Background(), domain.GenerationParams{})
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)
	shouldFail = false

	_, err := cb.OpenStream(context.Background(), domain.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCallerAbortAndQuota(t *testing.T) {
	errs := []error{
		context.Canceled,
		fmt.Errorf("%w: API error 402", domain.ErrInsufficientQuota),
	}
	for _, want := range errs {
		inner := &mockSource{
			name: "src",
			openFunc: func(context.Context, domain.GenerationParams) (io.ReadCloser, error) {
				return nil, want
			},
		}
		cb := NewCircuitBreakerSource(inner, config.CircuitBreakerConfig{MaxFailures: 1}, slog.Default())

		for i := 0; i < 3; i++ {
			_, err := cb.OpenStream(context.Background(), domain.GenerationParams{})
			assert.ErrorIs(t, err, want)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State(), "breaker tripped on %v", want)
		assert.Equal(t, uint32(0), cb.Counts().TotalFailures)
	}
}

func TestNewPooledTransportDefaults(t *testing.T) {
	tr := NewPooledTransport(0, 0, config.PoolConfig{})
	assert.Equal(t, defaultRespTimeout, tr.ResponseHeaderTimeout)
	assert.Equal(t, defaultMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, defaultMaxConnsPerHost, tr.MaxConnsPerHost)
	assert.Equal(t, defaultIdleConnTimeout, tr.IdleConnTimeout)

	tr = NewPooledTransport(time.Second, 5*time.Second, config.PoolConfig{MaxIdleConns: 3})
	assert.Equal(t, 5*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, 3, tr.MaxIdleConns)
}

func TestNewHTTPClientHasNoOverallTimeout(t *testing.T) {
	c := NewHTTPClient(config.ProviderConfig{})
	assert.Zero(t, c.Timeout)
}

func TestRegistryFromConfig(t *testing.T) {
	reg, err := NewRegistryFromConfig(config.LLMConfig{
		Providers: []config.ProviderConfig{
			{Name: "openrouter", Type: "openrouter"},
			{Name: "local", Type: "openai", BaseURL: "http://localhost:11434/v1"},
		},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "openrouter"}, reg.List())

	src, err := reg.Get("openrouter")
	require.NoError(t, err)
	_, wrapped := src.(*CircuitBreakerSource)
	assert.True(t, wrapped)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestRegistryRejectsDuplicatesAndUnknownTypes(t *testing.T) {
	_, err := NewRegistryFromConfig(config.LLMConfig{
		Providers: []config.ProviderConfig{{Name: "a"}, {Name: "a"}},
	}, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	_, err = NewSource(config.ProviderConfig{Name: "b", Type: "bedrock"}, config.CircuitBreakerConfig{}, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}
