// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package logging

import "strings"

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeID masks a subject or connection identifier.
// Example: "user-12345678" -> "user...5678"
func SanitizeID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 8 {
		return id[:1] + "***"
	}
	return id[:4] + "..." + id[len(id)-4:]
}

// SanitizeError removes potentially sensitive information from error messages
// received from the backend before they are logged.
func SanitizeError(msg string) string {
	lower := strings.ToLower(msg)
	for _, pattern := range []string{"password", "secret", "token", "bearer", "authorization"} {
		if strings.Contains(lower, pattern) {
			return "authentication error"
		}
	}
	return truncateString(msg, 200)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
