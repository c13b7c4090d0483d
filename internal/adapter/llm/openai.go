package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
	"gitduel/internal/infra/tracer"
)

// Compile-time interface assertion.
var _ domain.StreamSource = (*OpenAIProvider)(nil)

// OpenAIProvider streams chat completions from any OpenAI-compatible API.
type OpenAIProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAIProvider creates a provider with configured timeouts.
func NewOpenAIProvider(cfg config.ProviderConfig, logger *slog.Logger) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &OpenAIProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
	}
}

// Name implements domain.StreamSource.
func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the model used when GenerationParams leaves it empty.
func (p *OpenAIProvider) Model() string { return p.model }

// --- OpenAI wire types ---

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiStreamChunk struct {
	ID      string               `json:"id"`
	Choices []openaiStreamChoice `json:"choices"`
	Error   *apiError            `json:"error,omitempty"`
}

type openaiStreamChoice struct {
	Delta        openaiStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

type openaiStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

func toOpenAIRequest(params domain.GenerationParams, defaultModel string) openaiRequest {
	model := params.Model
	if model == "" {
		model = defaultModel
	}
	req := openaiRequest{
		Model:     model,
		MaxTokens: params.MaxTokens,
		Stream:    params.Stream,
	}
	if params.SystemPrompt != "" {
		req.Messages = append(req.Messages, openaiMessage{Role: "system", Content: params.SystemPrompt})
	}
	req.Messages = append(req.Messages, openaiMessage{Role: "user", Content: params.Prompt})
	if params.Temperature > 0 {
		t := params.Temperature
		req.Temperature = &t
	}
	return req
}

// OpenStream implements domain.StreamSource. The returned body yields the
// raw event stream; the caller must close it.
func (p *OpenAIProvider) OpenStream(ctx context.Context, params domain.GenerationParams) (io.ReadCloser, error) {
	params.Stream = true
	oaiReq := toOpenAIRequest(params, p.model)

	ctx, span := tracer.StartSpan(ctx, "llm.open_stream",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", oaiReq.Model),
			tracer.IntAttr("llm.max_tokens", oaiReq.MaxTokens),
		),
	)
	defer span.End()

	body, err := json.Marshal(oaiReq)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	httpResp, err := doStreamRequest(ctx, p.client, p.baseURL+"/chat/completions", body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("llm.OpenStream", err)
	}

	p.logger.Debug("llm stream opened",
		"provider", p.name,
		"model", oaiReq.Model,
		"status", httpResp.StatusCode,
	)
	tracer.SetOK(span)
	return httpResp.Body, nil
}

// ParseChunk implements domain.StreamSource. It returns the first choice's
// content delta. Invalid JSON wraps domain.ErrMalformedChunk; an error object
// sent by the provider mid-stream maps to the matching domain error.
func (p *OpenAIProvider) ParseChunk(payload []byte) (string, error) {
	var chunk openaiStreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedChunk, err)
	}
	if chunk.Error != nil {
		return "", mapStreamError(chunk.Error)
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
