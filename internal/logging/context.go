// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	subjectIDKey     contextKey = "subject_id"
)

// GenerateCorrelationID creates a new unique correlation ID.
// Returns the first 8 characters of a UUID for readability.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a new context with the given correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a context with a newly generated correlation ID.
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext retrieves the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithSubject returns a new context carrying the signed-in subject.
func ContextWithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectIDKey, subjectID)
}

// SubjectFromContext retrieves the subject ID from context.
func SubjectFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(subjectIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with correlation_id and subject fields from ctx.
//
//	logging.Ctx(ctx).Info().Msg("Task completed")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	if subject := SubjectFromContext(ctx); subject != "" {
		logCtx = logCtx.Str("subject", SanitizeID(subject))
	}
	l := logCtx.Logger()
	return &l
}
