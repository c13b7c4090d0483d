package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gitduel/internal/adapter/github"
	"gitduel/internal/adapter/httpapi"
	"gitduel/internal/adapter/llm"
	"gitduel/internal/infra/config"
	"gitduel/internal/infra/logger"
	"gitduel/internal/infra/middleware"
	"gitduel/internal/infra/tracer"
	"gitduel/internal/usecase"
	"gitduel/internal/usecase/relay"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.

Endpoints:
  GET  /api/health          liveness
  GET  /api/stats           relay counters
  POST /api/compare         fetch two profiles
  POST /api/compare/stream  stream a neutral comparison
  POST /api/roast/stream    stream a roast (roastType: user1, user2, both)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	// 1. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 2. Generation relay
	rl, err := initRelay(cfg, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// 3. Profile aggregation
	gh, err := github.NewClient(cfg.GitHub, log)
	if err != nil {
		return fmt.Errorf("github: %w", err)
	}
	if cfg.GitHub.Token == "" {
		log.Warn("no GitHub token configured; the GraphQL API will reject profile lookups")
	}
	comparer := usecase.NewComparer(gh, log)

	// 4. HTTP
	mws := []func(http.Handler) http.Handler{
		middleware.SecurityHeaders,
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins}),
	}
	if cfg.Server.RateLimitPerMin > 0 {
		mws = append(mws, middleware.RateLimitWithConfig(ctx, middleware.RateLimitConfig{
			RequestsPerMin: cfg.Server.RateLimitPerMin,
			BurstSize:      cfg.Server.RateLimitBurst,
		}))
	}
	handler := httpapi.New(comparer, rl, log, mws...)

	return httpapi.NewServer(cfg.Server, handler, log).Start(ctx)
}

// initRelay builds the relay over the default provider.
func initRelay(cfg *config.Config, log *slog.Logger) (*relay.Relay, error) {
	reg, err := llm.NewRegistryFromConfig(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	src, err := reg.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		return nil, err
	}

	pc, _ := cfg.Provider(cfg.LLM.DefaultProvider)
	if pc.APIKey == "" {
		log.Warn("no API key for the default provider; generations will fail",
			"provider", pc.Name, "providers", reg.List())
	}
	log.Info("llm provider ready",
		"provider", src.Name(),
		"model", pc.Model,
		"stream_idle_timeout", cfg.LLM.StreamIdleTimeout,
	)

	return relay.New(src, log, relay.Options{
		Model:       pc.Model,
		IdleTimeout: cfg.LLM.StreamIdleTimeout,
	}), nil
}
