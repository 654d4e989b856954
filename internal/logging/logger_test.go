// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if cfg.Output == nil {
		t.Error("expected default output")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	for _, want := range []string{`"level":"info"`, `"service":"tempo"`, `"time":`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %s, got: %s", want, output)
		}
	}
}

func TestInit_Console(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "console", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("suppressed")
	Warn().Msg("reconnecting")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info message written at warn level: %s", out)
	}
	if !strings.Contains(out, "reconnecting") || strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected console output, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{" trace ", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	l := WithComponent("transport")
	l.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"transport"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}

func TestCtx_AddsCorrelationAndSubject(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	ctx = ContextWithSubject(ctx, "user-123456789")
	Ctx(ctx).Info().Msg("ctx message")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"abc12345"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
	if !strings.Contains(out, `"subject":"user...6789"`) {
		t.Errorf("subject not sanitized: %s", out)
	}
	if SubjectFromContext(context.Background()) != "" {
		t.Error("expected empty subject on bare context")
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	id := GenerateCorrelationID()
	if len(id) != 8 {
		t.Errorf("expected 8 character correlation ID, got %q", id)
	}
	if id == GenerateCorrelationID() {
		t.Error("expected unique correlation IDs")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"empty token", SanitizeToken, "", ""},
		{"short token", SanitizeToken, "abc", "***"},
		{"long token", SanitizeToken, "eyJhbGciOiJIUzI1NiJ9.payload", "eyJh...load"},
		{"short id", SanitizeID, "user-42", "u***"},
		{"long id", SanitizeID, "user-123456789", "user...6789"},
		{"error with token", SanitizeError, "invalid token abc", "authentication error"},
		{"plain error", SanitizeError, "subject not found", "subject not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	defer Init(DefaultConfig())

	l := NewSlogLogger("supervisor")
	l.WithGroup("svc").Warn("service restarted", "name", "transport", "attempt", 2, "err", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{
		`"component":"supervisor"`,
		`"svc.name":"transport"`,
		`"svc.attempt":2`,
		`"level":"warn"`,
		`"message":"service restarted"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}

	if !l.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error level to be enabled")
	}
}
