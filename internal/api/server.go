package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deskpilot/settings-gateway/internal/config"
	"github.com/deskpilot/settings-gateway/internal/settings"
)

// Server exposes the settings service to the extension UI over
// loopback HTTP plus a WebSocket event channel.
type Server struct {
	cfg  config.ServerConfig
	svc  *settings.Service
	hub  *EventHub
	http *http.Server
}

// New wires the server around an already constructed settings service.
func New(cfg config.ServerConfig, svc *settings.Service) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		hub: NewEventHub(),
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// routes builds the HTTP mux. Kept separate so tests can drive the
// handler tree without a listener.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /v1/settings/general", s.handleGetGeneral)
	mux.HandleFunc("PATCH /v1/settings/general", s.handlePatchGeneral)
	mux.HandleFunc("GET /v1/settings/features", s.handleGetFeatures)
	mux.HandleFunc("PATCH /v1/settings/features", s.handlePatchFeatures)
	mux.HandleFunc("GET /v1/settings/ai-models", s.handleGetAIModels)
	mux.HandleFunc("PATCH /v1/settings/ai-models", s.handlePatchAIModels)
	mux.HandleFunc("GET /v1/settings/sidebar-width", s.handleGetSidebarWidth)
	mux.HandleFunc("PATCH /v1/settings/sidebar-width", s.handlePatchSidebarWidth)

	mux.HandleFunc("GET /v1/settings/backlogs", s.handleGetBacklogs)
	mux.HandleFunc("PUT /v1/settings/backlogs", s.handlePutBacklogs)
	mux.HandleFunc("POST /v1/settings/backlogs", s.handleAddBacklog)
	mux.HandleFunc("DELETE /v1/settings/backlogs/{id}", s.handleRemoveBacklog)

	mux.HandleFunc("POST /v1/settings/reset", s.handleReset)

	mux.HandleFunc("GET /ws/events", s.hub.HandleWS)

	return s.logRequests(mux)
}

// logRequests logs method, path, status, and duration for every call.
// Bodies are never logged; they can contain plaintext credentials.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket upgrade needs the raw ResponseWriter (Hijacker).
		if r.URL.Path == "/ws/events" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Start blocks on ListenAndServe.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("settings gateway listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the full handler tree. Test hook.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Hub returns the event hub so callers can observe subscriptions.
func (s *Server) Hub() *EventHub {
	return s.hub
}
