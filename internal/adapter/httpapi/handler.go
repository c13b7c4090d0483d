// Package httpapi exposes comparisons and narration streams over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitduel/internal/domain"
	"gitduel/internal/usecase/relay"
)

const maxBodyBytes = 1 << 20

// PairFetcher resolves two usernames into profiles.
type PairFetcher interface {
	FetchPair(ctx context.Context, id1, id2 string) (domain.ProfilePair, error)
}

// EventStreamer relays one generation as events.
type EventStreamer interface {
	Stream(ctx context.Context, req domain.GenerationRequest) <-chan domain.RelayEvent
	Stats() relay.Stats
}

// Handler serves the HTTP API.
type Handler struct {
	profiles PairFetcher
	streamer EventStreamer
	logger   *slog.Logger
	started  time.Time
	router   chi.Router
}

// New creates the handler. mws wrap every route, outermost first.
func New(profiles PairFetcher, streamer EventStreamer, logger *slog.Logger, mws ...func(http.Handler) http.Handler) *Handler {
	h := &Handler{
		profiles: profiles,
		streamer: streamer,
		logger:   logger,
		started:  time.Now(),
	}
	h.router = h.buildRouter(mws)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) buildRouter(mws []func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(mws...)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/stats", h.handleStats)
		r.Post("/compare", h.handleCompare)
		r.Post("/compare/stream", h.handleCompareStream)
		r.Post("/roast/stream", h.handleRoastStream)
	})
	return r
}

// --- Request/Response types ---

type compareRequest struct {
	Username1 string `json:"username1"`
	Username2 string `json:"username2"`
}

type compareResponse struct {
	Success bool            `json:"success"`
	User1   *domain.Profile `json:"user1"`
	User2   *domain.Profile `json:"user2"`
}

type streamRequest struct {
	User1     *domain.Profile `json:"user1"`
	User2     *domain.Profile `json:"user2"`
	RoastType string          `json:"roastType,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statsResponse struct {
	Relay         relay.Stats `json:"relay"`
	UptimeSeconds int64       `json:"uptime_seconds"`
}

// --- Handlers ---

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Message: "gitduel API is running"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Relay:         h.streamer.Stats(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := h.profiles.FetchPair(r.Context(), req.Username1, req.Username2)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Success: true, User1: &pair.First, User2: &pair.Second})
}

func (h *Handler) handleCompareStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.User1 == nil || req.User2 == nil {
		writeError(w, http.StatusBadRequest, "Both user1 and user2 data are required", "")
		return
	}
	h.stream(w, r, domain.GenerationRequest{
		Profiles: domain.ProfilePair{First: *req.User1, Second: *req.User2},
		Mode:     domain.ModeNeutral,
	})
}

func (h *Handler) handleRoastStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.User1 == nil || req.User2 == nil || strings.TrimSpace(req.RoastType) == "" {
		writeError(w, http.StatusBadRequest, "user1, user2, and roastType are required", "")
		return
	}
	mode, err := domain.ParseRoastType(req.RoastType)
	if err != nil {
		writeError(w, http.StatusBadRequest, `roastType must be "user1", "user2", or "both"`, "")
		return
	}
	h.stream(w, r, domain.GenerationRequest{
		Profiles: domain.ProfilePair{First: *req.User1, Second: *req.User2},
		Mode:     mode,
	})
}

// stream relays one generation as an event stream. Once headers are sent
// every failure travels in-band as an error frame.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, req domain.GenerationRequest) {
	sw, err := newEventWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	logger := h.logger.With("request_id", middleware.GetReqID(r.Context()), "mode", req.Mode.String())
	events := h.streamer.Stream(r.Context(), req)

	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue // drain until the relay notices the disconnect
		}
		if writeErr = sw.Send(ev); writeErr != nil {
			logger.Debug("client gone during stream", "error", writeErr)
		}
	}
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// writeDomainError maps an aggregation failure onto a status and body.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponseFor(err)
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		wait := rl.RetryAfter
		if wait == 0 && !rl.ResetAt.IsZero() {
			wait = time.Until(rl.ResetAt)
		}
		if wait > 0 {
			w.Header().Set("Retry-After", retryAfterSeconds(wait))
		}
	}
	if status >= 500 {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "code", domain.ErrorCodeOf(err))
	} else {
		h.logger.Info("request rejected", "path", r.URL.Path, "status", status, "code", domain.ErrorCodeOf(err))
	}
	writeJSON(w, status, body)
}
