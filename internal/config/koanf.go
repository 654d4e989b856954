// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"tempo.yaml",
	"tempo.yml",
	"/etc/tempo/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// SubjectID, URL and BaseURL have no defaults and must be supplied.
func defaultConfig() *Config {
	return &Config{
		Realtime: RealtimeConfig{
			AuthTimeout:           10 * time.Second,
			ReconnectInitialDelay: 1 * time.Second,
			ReconnectMaxDelay:     32 * time.Second,
			MaxReconnectAttempts:  10,
			PingInterval:          25 * time.Second,
			ReadTimeout:           60 * time.Second,
			CheckTokenClaims:      true,
		},
		API: APIConfig{
			Timeout:             15 * time.Second,
			RequestsPerSecond:   10,
			Burst:               5,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.6,
		},
		// Chat-adjacent views use short delays, expensive insight
		// recomputation uses the longest one.
		Refresh: RefreshConfig{
			Default:          500 * time.Millisecond,
			Focus:            250 * time.Millisecond,
			Analytics:        500 * time.Millisecond,
			Heatmap:          1 * time.Second,
			StrategicInsight: 3 * time.Second,
		},
		Planner: PlannerConfig{
			FocusDays:   7,
			HeatmapDays: 90,
		},
		EventBus: EventBusConfig{
			Enabled:     false,
			TopicPrefix: "tempo.realtime",
		},
		Status: StatusConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9464",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps environment variable names (lower case) to koanf paths.
var envMappings = map[string]string{
	// Realtime connection
	"tempo_realtime_url":        "realtime.url",
	"tempo_subject_id":          "realtime.subject_id",
	"tempo_auth_token":          "realtime.auth_token",
	"tempo_auth_timeout":        "realtime.auth_timeout",
	"tempo_reconnect_delay":     "realtime.reconnect_initial_delay",
	"tempo_reconnect_max_delay": "realtime.reconnect_max_delay",
	"tempo_reconnect_attempts":  "realtime.max_reconnect_attempts",
	"tempo_ping_interval":       "realtime.ping_interval",
	"tempo_read_timeout":        "realtime.read_timeout",
	"tempo_check_token_claims":  "realtime.check_token_claims",

	// REST API
	"tempo_api_url":             "api.base_url",
	"tempo_api_timeout":         "api.timeout",
	"tempo_api_rps":             "api.requests_per_second",
	"tempo_api_burst":           "api.burst",
	"tempo_api_breaker_timeout": "api.breaker_timeout",
	"tempo_api_breaker_ratio":   "api.breaker_failure_ratio",

	// Refresh debounce delays
	"tempo_refresh_default":   "refresh.default",
	"tempo_refresh_focus":     "refresh.focus",
	"tempo_refresh_analytics": "refresh.analytics",
	"tempo_refresh_heatmap":   "refresh.heatmap",
	"tempo_refresh_insight":   "refresh.strategic_insight",

	// Planner analytics windows
	"tempo_focus_days":   "planner.focus_days",
	"tempo_heatmap_days": "planner.heatmap_days",

	// Event bus
	"tempo_eventbus_enabled":      "eventbus.enabled",
	"tempo_eventbus_nats_url":     "eventbus.nats_url",
	"tempo_eventbus_topic_prefix": "eventbus.topic_prefix",

	// Status server
	"tempo_status_enabled": "status.enabled",
	"tempo_status_addr":    "status.addr",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are skipped so unrelated environment
// does not leak into the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
