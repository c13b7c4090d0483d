package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func send(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/compare", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsNormalTraffic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 60, 10)(okHandler())

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, send(h, "192.168.1.1:12345").Code, "request %d", i+1)
	}
}

func TestRateLimit_BlocksExcessiveTraffic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 6, 3)(okHandler())

	success, blocked := 0, 0
	var last *httptest.ResponseRecorder
	for i := 0; i < 10; i++ {
		w := send(h, "192.168.1.1:12345")
		switch w.Code {
		case http.StatusOK:
			success++
		case http.StatusTooManyRequests:
			blocked++
			last = w
		}
	}

	assert.Equal(t, 3, success)
	assert.Equal(t, 7, blocked)
	if assert.NotNil(t, last) {
		assert.NotEmpty(t, last.Header().Get("Retry-After"))
		assert.Contains(t, last.Body.String(), "Too many requests")
	}
}

func TestRateLimit_SeparatesClientsByIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 6, 2)(okHandler())

	codes := []int{
		send(h, "192.168.1.1:1").Code,
		send(h, "192.168.1.1:2").Code,
		send(h, "192.168.1.1:3").Code,
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)

	assert.Equal(t, http.StatusOK, send(h, "192.168.1.2:1").Code)
	assert.Equal(t, http.StatusOK, send(h, "192.168.1.2:2").Code)
}

func TestLimiterSetSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &limiterSet{
		clients: make(map[string]*clientLimiter),
		limit:   1,
		burst:   1,
		now:     func() time.Time { return now },
	}
	s.get("a")
	now = now.Add(2 * time.Minute)
	s.get("b")
	now = now.Add(2 * time.Minute)

	s.sweep(3 * time.Minute)
	_, hasA := s.clients["a"]
	_, hasB := s.clients["b"]
	assert.False(t, hasA, "stale client should be removed")
	assert.True(t, hasB, "recent client should be kept")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		xff     string
		xri     string
		trusted []string
		want    string
	}{
		{"direct", "198.51.100.7:4242", "", "", nil, "198.51.100.7"},
		{"ipv6", "[2001:db8::1]:443", "", "", nil, "2001:db8::1"},
		{"spoofed header ignored", "198.51.100.7:1", "203.0.113.1", "", nil, "198.51.100.7"},
		{"untrusted peer", "198.51.100.7:1", "203.0.113.1", "", []string{"10.0.0.1"}, "198.51.100.7"},
		{"trusted xff", "10.0.0.1:1", "203.0.113.1, 198.51.100.1", "", []string{"10.0.0.1"}, "203.0.113.1"},
		{"trusted x-real-ip", "10.0.0.1:1", "", "203.0.113.9", []string{"10.0.0.1"}, "203.0.113.9"},
		{"trusted no headers", "10.0.0.1:1", "", "", []string{"10.0.0.1"}, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, getClientIP(req, tt.trusted))
		})
	}
}
