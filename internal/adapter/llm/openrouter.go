package llm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
)

// Compile-time interface assertion.
var _ domain.StreamSource = (*OpenRouterProvider)(nil)

// Attribution sent when the config leaves it empty.
const (
	defaultOpenRouterReferer = "https://github.com/gitduel/gitduel"
	defaultOpenRouterTitle   = "GitHub Profile Comparer"
)

// openrouterTransport is a custom http.RoundTripper that injects
// OpenRouter-specific headers (HTTP-Referer and X-Title) into every request.
type openrouterTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *openrouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the original.
	clone := req.Clone(req.Context())
	clone.Header.Set("HTTP-Referer", t.referer)
	clone.Header.Set("X-Title", t.title)
	return t.base.RoundTrip(clone)
}

// OpenRouterProvider wraps OpenAIProvider to work with the OpenRouter API.
type OpenRouterProvider struct {
	inner *OpenAIProvider
}

// NewOpenRouterProvider creates an OpenRouter provider that delegates to OpenAIProvider
// with a custom transport for OpenRouter-specific headers.
func NewOpenRouterProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenRouterProvider {
	client := NewHTTPClient(cfg)
	tr := &openrouterTransport{
		base:    client.Transport,
		referer: cfg.SiteURL,
		title:   cfg.AppTitle,
	}
	if tr.referer == "" {
		tr.referer = defaultOpenRouterReferer
	}
	if tr.title == "" {
		tr.title = defaultOpenRouterTitle
	}
	client.Transport = tr

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	return &OpenRouterProvider{
		inner: &OpenAIProvider{
			name:    cfg.Name,
			model:   cfg.Model,
			apiKey:  cfg.APIKey,
			baseURL: baseURL,
			client:  client,
			logger:  logger,
		},
	}
}

// OpenStream implements domain.StreamSource.
func (p *OpenRouterProvider) OpenStream(ctx context.Context, params domain.GenerationParams) (io.ReadCloser, error) {
	return p.inner.OpenStream(ctx, params)
}

// ParseChunk implements domain.StreamSource.
func (p *OpenRouterProvider) ParseChunk(payload []byte) (string, error) {
	return p.inner.ParseChunk(payload)
}

// Name implements domain.StreamSource.
func (p *OpenRouterProvider) Name() string { return p.inner.Name() }

// Model returns the configured model.
func (p *OpenRouterProvider) Model() string { return p.inner.Model() }
