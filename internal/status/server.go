// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package status serves a small local HTTP surface for probes and debugging:
//
//	GET /healthz  liveness, always 200
//	GET /readyz   200 once the realtime connection is authenticated, else 503
//	GET /metrics  Prometheus metrics
//	GET /state    connection, refresh and store state as JSON
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/middleware"
	"github.com/tomtom215/tempo/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// Connection reports realtime connection state. *transport.Client satisfies it.
type Connection interface {
	State() transport.State
	ConnectionID() string
	Attempts() int
	LastError() error
}

// StoreStats is the size of one entity store.
type StoreStats struct {
	Size    int `json:"size"`
	Pending int `json:"pending"`
}

// Sources supplies the data reported by /readyz and /state. Nil fields are
// omitted from /state.
type Sources struct {
	Connection Connection

	// PendingRefreshes returns the number of scheduled refreshes.
	PendingRefreshes func() int

	// Stores returns per-kind store sizes.
	Stores func() map[string]StoreStats
}

// Server is the status HTTP server.
type Server struct {
	addr    string
	sources Sources
	started time.Time
	handler http.Handler
	log     zerolog.Logger
}

// NewServer creates a Server listening on addr once Serve is called.
func NewServer(addr string, sources Sources) *Server {
	s := &Server{
		addr:    addr,
		sources: sources,
		started: time.Now(),
		log:     logging.WithComponent("status"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleLive)
	r.Get("/readyz", s.handleReady)
	r.Get("/state", s.handleState)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on the configured address until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status: listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("Status server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("status: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status: serve: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *Server) String() string {
	return "status-server"
}

type response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, response{
		Status: "success",
		Data: map[string]any{
			"alive":  true,
			"uptime": time.Since(s.started).Seconds(),
		},
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	state := transport.StateDisconnected
	if s.sources.Connection != nil {
		state = s.sources.Connection.State()
	}
	ready := state == transport.StateAuthenticated

	code, status := http.StatusOK, "ready"
	if !ready {
		code, status = http.StatusServiceUnavailable, "not_ready"
	}
	respondJSON(w, code, response{
		Status: status,
		Data: map[string]any{
			"connection_state": state.String(),
			"ready_to_serve":   ready,
		},
	})
}

type connectionState struct {
	State        string `json:"state"`
	ConnectionID string `json:"connection_id,omitempty"`
	Attempts     int    `json:"reconnect_attempts"`
	LastError    string `json:"last_error,omitempty"`
}

type stateSnapshot struct {
	Connection       *connectionState      `json:"connection,omitempty"`
	PendingRefreshes *int                  `json:"pending_refreshes,omitempty"`
	Stores           map[string]StoreStats `json:"stores,omitempty"`
	Uptime           float64               `json:"uptime"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := stateSnapshot{Uptime: time.Since(s.started).Seconds()}

	if c := s.sources.Connection; c != nil {
		cs := &connectionState{
			State:        c.State().String(),
			ConnectionID: c.ConnectionID(),
			Attempts:     c.Attempts(),
		}
		if err := c.LastError(); err != nil {
			cs.LastError = logging.SanitizeError(err.Error())
		}
		snap.Connection = cs
	}
	if s.sources.PendingRefreshes != nil {
		n := s.sources.PendingRefreshes()
		snap.PendingRefreshes = &n
	}
	if s.sources.Stores != nil {
		snap.Stores = s.sources.Stores()
	}

	respondJSON(w, http.StatusOK, response{Status: "success", Data: snap})
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}
