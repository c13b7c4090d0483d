package llm

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&mockSource{name: "b"}))
	require.NoError(t, reg.Register(&mockSource{name: "a"}))

	err := reg.Register(&mockSource{name: "a"})
	assert.ErrorContains(t, err, "already registered")

	src, err := reg.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", src.Name())
	assert.Equal(t, []string{"a", "b"}, reg.List())

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.LLMConfig{
		Providers: []config.ProviderConfig{
			{Name: "openrouter", Type: "openrouter", Model: "m1"},
			{Name: "local", Type: "openai", BaseURL: "http://localhost:11434/v1"},
		},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}
	reg, err := NewRegistryFromConfig(cfg, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "openrouter"}, reg.List())

	src, err := reg.Get("openrouter")
	require.NoError(t, err)
	assert.IsType(t, &CircuitBreakerSource{}, src)
}

func TestNewSourceTypes(t *testing.T) {
	src, err := NewSource(config.ProviderConfig{Name: "x"}, config.CircuitBreakerConfig{}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, src)

	src, err = NewSource(config.ProviderConfig{Name: "y", Type: "openrouter"}, config.CircuitBreakerConfig{}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterProvider{}, src)

	_, err = NewSource(config.ProviderConfig{Name: "z", Type: "bedrock"}, config.CircuitBreakerConfig{}, slog.Default())
	assert.ErrorContains(t, err, "unsupported type")
}

func TestNewRegistryFromConfigDuplicate(t *testing.T) {
	cfg := config.LLMConfig{Providers: []config.ProviderConfig{{Name: "a"}, {Name: "a"}}}
	_, err := NewRegistryFromConfig(cfg, slog.Default())
	assert.Error(t, err)
}
