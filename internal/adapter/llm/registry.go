package llm

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
)

// Registry holds named stream sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]domain.StreamSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]domain.StreamSource),
	}
}

// Register adds a source. Returns error if name already registered.
func (r *Registry) Register(src domain.StreamSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.sources[name] = src
	return nil
}

// Get retrieves a source by name.
func (r *Registry) Get(name string) (domain.StreamSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.sources[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns all registered source names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSource builds the source for one provider config, wrapped in a circuit
// breaker when enabled.
func NewSource(pc config.ProviderConfig, cb config.CircuitBreakerConfig, logger *slog.Logger) (domain.StreamSource, error) {
	var src domain.StreamSource
	switch pc.Type {
	case "openrouter":
		src = NewOpenRouterProvider(pc, logger)
	case "openai", "":
		src = NewOpenAIProvider(pc, logger)
	default:
		return nil, fmt.Errorf("provider %q: unsupported type %q", pc.Name, pc.Type)
	}
	if cb.Enabled {
		src = NewCircuitBreakerSource(src, cb, logger)
	}
	return src, nil
}

// NewRegistryFromConfig registers every configured provider.
func NewRegistryFromConfig(cfg config.LLMConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, pc := range cfg.Providers {
		src, err := NewSource(pc, cfg.CircuitBreaker, logger)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(src); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
