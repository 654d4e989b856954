// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package config loads Tempo's configuration with Koanf v2.
//
// Loading order (highest priority wins):
//  1. Environment variables (explicit mapping, see envMappings)
//  2. Optional YAML config file (CONFIG_PATH or the default search paths)
//  3. Built-in defaults (defaultConfig)
//
// Config is immutable after load and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Realtime   RealtimeConfig   `koanf:"realtime"`
	API        APIConfig        `koanf:"api"`
	Refresh    RefreshConfig    `koanf:"refresh"`
	Planner    PlannerConfig    `koanf:"planner"`
	EventBus   EventBusConfig   `koanf:"eventbus"`
	Status     StatusConfig     `koanf:"status"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RealtimeConfig configures the realtime connection to the backend.
type RealtimeConfig struct {
	// URL is the websocket endpoint, e.g. wss://api.example.com/realtime.
	URL string `koanf:"url" validate:"required,url"`

	// SubjectID is the signed-in user id sent in the authenticate handshake.
	SubjectID string `koanf:"subject_id" validate:"required"`

	// AuthToken is the bearer token sent in the handshake and to the REST API.
	AuthToken string `koanf:"auth_token"`

	// AuthTimeout bounds the wait for the authenticated acknowledgment.
	// Default: 10s
	AuthTimeout time.Duration `koanf:"auth_timeout" validate:"gt=0"`

	// ReconnectInitialDelay is the first backoff delay after a drop.
	// Default: 1s
	ReconnectInitialDelay time.Duration `koanf:"reconnect_initial_delay" validate:"gt=0"`

	// ReconnectMaxDelay caps the exponential backoff.
	// Default: 32s
	ReconnectMaxDelay time.Duration `koanf:"reconnect_max_delay" validate:"gtefield=ReconnectInitialDelay"`

	// MaxReconnectAttempts bounds consecutive failed reconnects (0 = unlimited).
	// Default: 10
	MaxReconnectAttempts int `koanf:"max_reconnect_attempts" validate:"gte=0"`

	// PingInterval is the keep-alive period.
	// Default: 25s
	PingInterval time.Duration `koanf:"ping_interval" validate:"gt=0"`

	// ReadTimeout drops the connection when nothing arrives for this long.
	// Default: 60s
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"gtfield=PingInterval"`

	// CheckTokenClaims enables the local JWT expiry/subject pre-check.
	// Default: true
	CheckTokenClaims bool `koanf:"check_token_claims"`
}

// APIConfig configures the backend REST client.
type APIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestsPerSecond paces outbound calls (0 = unlimited).
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=1"`

	// Circuit breaker settings
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests" validate:"gte=1"`
	BreakerInterval     time.Duration `koanf:"breaker_interval" validate:"gte=0"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests" validate:"gte=1"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
}

// RefreshConfig holds the debounce delays per derived-data domain.
type RefreshConfig struct {
	Default          time.Duration `koanf:"default" validate:"gt=0"`
	Focus            time.Duration `koanf:"focus" validate:"gt=0"`
	Analytics        time.Duration `koanf:"analytics" validate:"gt=0"`
	Heatmap          time.Duration `koanf:"heatmap" validate:"gt=0"`
	StrategicInsight time.Duration `koanf:"strategic_insight" validate:"gt=0"`
}

// Delays returns the configured delays keyed by domain name.
func (r RefreshConfig) Delays() map[string]time.Duration {
	return map[string]time.Duration{
		"focus":             r.Focus,
		"analytics":         r.Analytics,
		"heatmap":           r.Heatmap,
		"strategic-insight": r.StrategicInsight,
	}
}

// PlannerConfig sets the analytics windows requested by the planner.
type PlannerConfig struct {
	FocusDays   int `koanf:"focus_days" validate:"gte=1,lte=365"`
	HeatmapDays int `koanf:"heatmap_days" validate:"gte=1,lte=366"`
}

// EventBusConfig configures mirroring of inbound events to a message bus.
type EventBusConfig struct {
	Enabled bool `koanf:"enabled"`

	// NATSURL forwards events to NATS when set; otherwise the bus is in-process.
	NATSURL string `koanf:"nats_url" validate:"omitempty,url"`

	TopicPrefix string `koanf:"topic_prefix" validate:"required"`
}

// StatusConfig configures the local status HTTP server.
type StatusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"omitempty,hostname_port"`
}

// SupervisorConfig holds suture failure handling settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
