package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// Missing credentials are not structural problems: they are reported by the
// commands that need them.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateLLM(cfg, ve)
	validateGitHub(cfg, ve)
	validatePacing(cfg, ve)
	validateClient(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	s := cfg.Server
	if s.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", s.Addr)
	}
	if s.RateLimitPerMin < 0 {
		ve.Add("server.rate_limit_per_min must be >= 0")
	}
	if s.RateLimitPerMin > 0 && s.RateLimitBurst <= 0 {
		ve.Add("server.rate_limit_burst must be > 0 when rate limiting is enabled")
	}
	if s.ShutdownTimeout <= 0 {
		ve.Add("server.shutdown_timeout must be > 0")
	}
}

var validProviderTypes = map[string]bool{
	"openai":     true,
	"openrouter": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}
	if cfg.LLM.StreamIdleTimeout < 0 {
		ve.Add("llm.stream_idle_timeout must be >= 0")
	}
	if cb := cfg.LLM.CircuitBreaker; cb.Enabled {
		if cb.MaxFailures == 0 {
			ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if cb.Timeout <= 0 {
			ve.Add("llm.circuit_breaker.timeout must be > 0 when enabled")
		}
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, openrouter)", i, p.Type)
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d] (%s): model must not be empty", i, p.Name)
		}
		if p.BaseURL != "" {
			if _, err := url.ParseRequestURI(p.BaseURL); err != nil {
				ve.Add("llm.providers[%d] (%s): base_url %q is not a valid URL", i, p.Name, p.BaseURL)
			}
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

func validateGitHub(cfg *Config, ve *ValidationError) {
	g := cfg.GitHub
	if g.Endpoint == "" {
		ve.Add("github.endpoint must not be empty")
	} else if _, err := url.ParseRequestURI(g.Endpoint); err != nil {
		ve.Add("github.endpoint %q is not a valid URL", g.Endpoint)
	}
	if g.RequestsPerSecond < 0 {
		ve.Add("github.requests_per_second must be >= 0")
	}
	if g.RequestsPerSecond > 0 && g.Burst <= 0 {
		ve.Add("github.burst must be > 0 when requests_per_second is set")
	}
	if g.ContributionsSince != "" {
		if _, err := time.Parse(time.DateOnly, g.ContributionsSince); err != nil {
			ve.Add("github.contributions_since %q must be YYYY-MM-DD", g.ContributionsSince)
		}
	}
}

func validatePacing(cfg *Config, ve *ValidationError) {
	if cfg.Pacing.Cadence <= 0 {
		ve.Add("pacing.cadence must be > 0")
	}
}

func validateClient(cfg *Config, ve *ValidationError) {
	if cfg.Client.APIBaseURL == "" {
		ve.Add("client.api_base_url must not be empty")
	} else if _, err := url.ParseRequestURI(cfg.Client.APIBaseURL); err != nil {
		ve.Add("client.api_base_url %q is not a valid URL", cfg.Client.APIBaseURL)
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if f := cfg.Logger.Format; f != "text" && f != "json" {
		ve.Add("logger.format %q is invalid (want: text, json)", f)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	if e := cfg.Tracer.Exporter; e != "noop" && e != "stdout" {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", e)
	}
}
