package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitduel/internal/infra/config"
	"gitduel/internal/infra/logger"
)

func fakeAPI(t *testing.T, roastBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/compare", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"user1":{"username":"octocat","name":"The Octocat","followers":9},"user2":{"username":"torvalds","name":"Linus","followers":200}}`))
	})
	mux.HandleFunc("POST /api/compare/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"content\":\"Both are\"}\n\ndata: {\"content\":\" prolific.\"}\n\ndata: {\"done\":true}\n\n"))
	})
	mux.HandleFunc("POST /api/roast/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(roastBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *config.Config {
	cfg := config.Defaults()
	cfg.Client.APIBaseURL = url
	cfg.Pacing.Cadence = time.Millisecond
	return cfg
}

func TestRunPlain(t *testing.T) {
	srv := fakeAPI(t, "data: {\"content\":\"Nice README.\"}\n\ndata: {\"done\":true}\n\n")

	var out bytes.Buffer
	err := runPlain(context.Background(), testConfig(srv.URL), logger.Discard(), &out, "octocat", "torvalds", "user1")
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "The Octocat (@octocat): 9 followers")
	assert.Contains(t, got, "Linus (@torvalds): 200 followers")
	assert.Contains(t, got, "Both are prolific.\n")
	assert.True(t, strings.HasSuffix(got, "Nice README.\n"))
}

func TestRunPlainRoastError(t *testing.T) {
	srv := fakeAPI(t, "data: {\"error\":\"Failed to generate roast. Please try again.\"}\n\n")

	var out bytes.Buffer
	err := runPlain(context.Background(), testConfig(srv.URL), logger.Discard(), &out, "octocat", "torvalds", "both")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to generate roast. Please try again.")
	assert.Contains(t, out.String(), "Both are prolific.")
}

func TestEncryptCommand(t *testing.T) {
	t.Setenv(config.EnvPrefix+"CONFIG_KEY", "correct horse battery staple")

	var out bytes.Buffer
	encryptCmd.SetOut(&out)
	encryptCmd.SetIn(strings.NewReader("sk-secret\n"))
	require.NoError(t, encryptCmd.RunE(encryptCmd, nil))

	enc := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(enc, "enc:"))
	plain, err := config.DecryptValue(strings.TrimPrefix(enc, "enc:"), "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", plain)
}

func TestEncryptCommandNeedsPassphrase(t *testing.T) {
	t.Setenv(config.EnvPrefix+"CONFIG_KEY", "")
	err := encryptCmd.RunE(encryptCmd, []string{"x"})
	assert.ErrorContains(t, err, "CONFIG_KEY is not set")
}
