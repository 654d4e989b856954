// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package main runs the Tempo realtime client as a headless daemon.
//
// The daemon keeps one authenticated realtime session to the Tempo backend,
// routes its events into the local task, goal, habit and chat stores, and
// refreshes analytics views on a debounce. Components are wired in this order:
//
//  1. Configuration: defaults, optional config.yaml, then TEMPO_* environment
//  2. Transport: websocket session with reconnect and auth handshake
//  3. Router and refresh coordinator
//  4. REST client: rate limited and circuit broken
//  5. Planner: stores, optimistic actions and realtime reconciliation
//  6. Event bus (optional): mirrors every inbound event to NATS or in-process
//  7. Status server (optional): /healthz, /readyz, /state, /metrics
//
// The planner resyncs from the REST API each time the session authenticates,
// which covers both startup and catch-up after a reconnect.
//
// # Example Usage
//
//	export TEMPO_REALTIME_URL=wss://api.tempo.app/realtime
//	export TEMPO_API_URL=https://api.tempo.app
//	export TEMPO_SUBJECT_ID=user-42
//	export TEMPO_AUTH_TOKEN=eyJhbGciOi...
//	./tempo
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The session disconnects,
// pending refreshes are dropped and the event bus is closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/tempo/internal/api"
	"github.com/tomtom215/tempo/internal/config"
	"github.com/tomtom215/tempo/internal/eventbus"
	"github.com/tomtom215/tempo/internal/events"
	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/planner"
	"github.com/tomtom215/tempo/internal/refresh"
	"github.com/tomtom215/tempo/internal/status"
	"github.com/tomtom215/tempo/internal/supervisor"
	"github.com/tomtom215/tempo/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("realtime_url", cfg.Realtime.URL).
		Str("api_url", cfg.API.BaseURL).
		Str("subject", logging.SanitizeID(cfg.Realtime.SubjectID)).
		Msg("Starting Tempo realtime client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := transport.New(transport.Config{
		URL:                   cfg.Realtime.URL,
		SubjectID:             cfg.Realtime.SubjectID,
		AuthToken:             cfg.Realtime.AuthToken,
		AuthTimeout:           cfg.Realtime.AuthTimeout,
		ReconnectInitialDelay: cfg.Realtime.ReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.Realtime.ReconnectMaxDelay,
		MaxReconnectAttempts:  cfg.Realtime.MaxReconnectAttempts,
		PingInterval:          cfg.Realtime.PingInterval,
		ReadTimeout:           cfg.Realtime.ReadTimeout,
		CheckTokenClaims:      cfg.Realtime.CheckTokenClaims,
	})
	router := events.NewRouter(client)

	coord := refresh.New(refresh.Config{
		DefaultDelay: cfg.Refresh.Default,
		Delays:       cfg.Refresh.Delays(),
	})
	defer coord.Close()

	backend := api.New(api.Config{
		BaseURL:             cfg.API.BaseURL,
		Token:               cfg.Realtime.AuthToken,
		Timeout:             cfg.API.Timeout,
		RequestsPerSecond:   cfg.API.RequestsPerSecond,
		Burst:               cfg.API.Burst,
		BreakerMaxRequests:  cfg.API.BreakerMaxRequests,
		BreakerInterval:     cfg.API.BreakerInterval,
		BreakerTimeout:      cfg.API.BreakerTimeout,
		BreakerMinRequests:  cfg.API.BreakerMinRequests,
		BreakerFailureRatio: cfg.API.BreakerFailureRatio,
	})

	p := planner.New(backend, router, coord, planner.Config{
		FocusDays:   cfg.Planner.FocusDays,
		HeatmapDays: cfg.Planner.HeatmapDays,
	})
	defer p.Close()

	client.OnStateChange(func(s transport.State) {
		if s != transport.StateAuthenticated {
			return
		}
		go func() {
			if err := p.Sync(ctx); err != nil && !errors.Is(err, planner.ErrClosed) && ctx.Err() == nil {
				logging.Error().Err(err).Msg("Resync after authentication failed")
			}
		}()
	})

	if cfg.EventBus.Enabled {
		bus, err := newEventBus(cfg.EventBus)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create event bus")
		}
		unbridge := router.Bridge(bus)
		defer func() {
			unbridge()
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Failed to close event bus")
			}
		}()
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddRealtimeService(supervisor.NewSessionService(client))

	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status.Addr, status.Sources{
			Connection:       client,
			PendingRefreshes: coord.PendingCount,
			Stores:           storeStats(p),
		})
		tree.AddSurfaceService(srv)
		logging.Info().Str("addr", cfg.Status.Addr).Msg("Status server added to supervisor tree")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Tempo stopped")
}

// newEventBus returns a NATS-backed bus when a URL is configured and an
// in-process bus otherwise.
func newEventBus(cfg config.EventBusConfig) (*eventbus.Bus, error) {
	if cfg.NATSURL == "" {
		logging.Info().Str("prefix", cfg.TopicPrefix).Msg("Mirroring events to in-process bus")
		return eventbus.NewLocal(cfg.TopicPrefix), nil
	}
	logging.Info().Str("prefix", cfg.TopicPrefix).Msg("Mirroring events to NATS")
	return eventbus.NewNATS(eventbus.Config{
		URL:         cfg.NATSURL,
		TopicPrefix: cfg.TopicPrefix,
	})
}

func storeStats(p *planner.Planner) func() map[string]status.StoreStats {
	return func() map[string]status.StoreStats {
		return map[string]status.StoreStats{
			"task":         {Size: p.Tasks.Len(), Pending: p.Tasks.PendingCount()},
			"goal":         {Size: p.Goals.Len(), Pending: p.Goals.PendingCount()},
			"habit":        {Size: p.Habits.Len(), Pending: p.Habits.PendingCount()},
			"chat_message": {Size: p.Messages.Len(), Pending: p.Messages.PendingCount()},
		}
	}
}
