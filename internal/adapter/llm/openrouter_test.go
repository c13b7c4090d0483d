package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitduel/internal/infra/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestOpenRouterTransport(t *testing.T) {
	var capturedReq *http.Request
	inner := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedReq = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Header:     make(http.Header),
		}, nil
	})

	transport := &openrouterTransport{
		base:    inner,
		referer: "http://localhost:3000",
		title:   "GitHub Profile Comparer",
	}

	origReq, _ := http.NewRequest("POST", "https://example.com", nil)
	origReq.Header.Set("Authorization", "Bearer test-key")

	if _, err := transport.RoundTrip(origReq); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if capturedReq.Header.Get("HTTP-Referer") != "http://localhost:3000" {
		t.Errorf("HTTP-Referer = %q", capturedReq.Header.Get("HTTP-Referer"))
	}
	if capturedReq.Header.Get("X-Title") != "GitHub Profile Comparer" {
		t.Errorf("X-Title = %q", capturedReq.Header.Get("X-Title"))
	}
	if capturedReq.Header.Get("Authorization") != "Bearer test-key" {
		t.Errorf("Authorization = %q", capturedReq.Header.Get("Authorization"))
	}

	if origReq.Header.Get("HTTP-Referer") != "" {
		t.Error("original request was mutated: HTTP-Referer set")
	}
	if origReq.Header.Get("X-Title") != "" {
		t.Error("original request was mutated: X-Title set")
	}
}

func TestOpenRouterProviderOpenStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Title") != "GitHub Profile Comparer" {
			t.Errorf("X-Title = %q", r.Header.Get("X-Title"))
		}
		if r.Header.Get("HTTP-Referer") == "" {
			t.Error("missing HTTP-Referer")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewOpenRouterProvider(config.ProviderConfig{
		Name:    "openrouter",
		Type:    "openrouter",
		BaseURL: server.URL,
		APIKey:  "or-key",
		Model:   "openai/gpt-4o-mini",
	}, newTestLogger())

	if p.Name() != "openrouter" {
		t.Errorf("Name = %q", p.Name())
	}
	if p.Model() != "openai/gpt-4o-mini" {
		t.Errorf("Model = %q", p.Model())
	}

	body, err := p.OpenStream(context.Background(), testParams())
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) == 0 {
		t.Error("empty stream body")
	}

	text, err := p.ParseChunk([]byte(`{"choices":[{"delta":{"content":"Hi"}}]}`))
	if err != nil || text != "Hi" {
		t.Errorf("ParseChunk = %q, %v", text, err)
	}
}

func TestOpenRouterDefaultBaseURL(t *testing.T) {
	p := NewOpenRouterProvider(config.ProviderConfig{Name: "openrouter"}, newTestLogger())
	if p.inner.baseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("baseURL = %q", p.inner.baseURL)
	}
	tr, ok := p.inner.client.Transport.(*openrouterTransport)
	if !ok {
		t.Fatalf("transport = %T", p.inner.client.Transport)
	}
	if tr.title != defaultOpenRouterTitle || tr.referer != defaultOpenRouterReferer {
		t.Errorf("attribution = %q / %q", tr.referer, tr.title)
	}
}
