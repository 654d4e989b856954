// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package metrics holds the Prometheus collectors for the realtime client:
// connection lifecycle, event routing, debounced refreshes, optimistic
// mutations, REST calls and the event bus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime connection metrics
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connection_state",
			Help: "Realtime connection state (0=disconnected, 1=connecting, 2=connected, 3=authenticated)",
		},
	)

	ReconnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_reconnect_attempts_total",
			Help: "Total number of reconnect attempts",
		},
		[]string{"result"}, // "success", "failure", "auth_rejected"
	)

	HandshakeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_handshake_duration_seconds",
			Help:    "Time from dial to authentication acknowledgment",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_received_total",
			Help: "Total number of realtime messages received",
		},
		[]string{"disposition"}, // "delivered", "unauthenticated", "malformed"
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total number of realtime messages sent",
		},
	)

	// Router metrics
	RouterDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_deliveries_total",
			Help: "Total number of typed event deliveries to subscribers",
		},
		[]string{"event"},
	)

	RouterCallbackErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_callback_errors_total",
			Help: "Total number of subscriber failures isolated by the router",
		},
		[]string{"event", "kind"}, // kind: "decode", "panic"
	)

	RouterSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_subscriptions",
			Help: "Current number of typed subscriptions",
		},
	)

	// Debounced refresh metrics
	RefreshScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_scheduled_total",
			Help: "Total number of refresh schedule calls",
		},
		[]string{"domain"},
	)

	RefreshCollapsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_collapsed_total",
			Help: "Total number of schedule calls that replaced a pending refresh",
		},
		[]string{"domain"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_duration_seconds",
			Help:    "Duration of refresh functions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain"},
	)

	RefreshErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_errors_total",
			Help: "Total number of failed refresh functions",
		},
		[]string{"domain"},
	)

	// Optimistic mutation metrics
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimistic_mutations_total",
			Help: "Total number of optimistic mutations by resolution",
		},
		[]string{"kind", "outcome"}, // outcome: "confirmed", "rolled_back", "superseded"
	)

	MutationsPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optimistic_mutations_pending",
			Help: "Current number of pending optimistic mutations",
		},
		[]string{"kind"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_reconciliations_total",
			Help: "Total number of remote changes reconciled into local stores",
		},
		[]string{"kind", "mode"}, // mode: "applied", "deferred"
	)

	// REST API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of backend REST requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of backend REST requests",
		},
		[]string{"method", "resource", "status"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event bus metrics
	BusPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_published_total",
			Help: "Total number of events mirrored to the event bus",
		},
		[]string{"result"},
	)
)

// RecordAPIRequest records a backend REST call.
func RecordAPIRequest(method, resource, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, resource, status).Inc()
	APIRequestDuration.WithLabelValues(method, resource).Observe(duration.Seconds())
}

// RecordRefresh records a completed refresh function.
func RecordRefresh(domain string, duration time.Duration, err error) {
	RefreshDuration.WithLabelValues(domain).Observe(duration.Seconds())
	if err != nil {
		RefreshErrors.WithLabelValues(domain).Inc()
	}
}

// RecordMutation records the resolution of an optimistic mutation.
func RecordMutation(kind, outcome string) {
	MutationsTotal.WithLabelValues(kind, outcome).Inc()
}
