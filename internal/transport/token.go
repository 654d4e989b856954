// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package transport

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CheckToken inspects a bearer token before it is sent to the backend.
//
// The signature is NOT verified; the backend remains the authority. The check
// only refuses tokens that are certain to be rejected: an expired JWT, or a
// JWT whose subject is not the subject being connected. Opaque (non-JWT)
// tokens and empty tokens pass.
func CheckToken(token, subjectID string, now time.Time) error {
	if token == "" || strings.Count(token, ".") != 2 {
		return nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(now) {
		return &AuthenticationError{Reason: "token expired"}
	}
	if claims.Subject != "" && claims.Subject != subjectID {
		return &AuthenticationError{Reason: "token subject does not match subject id"}
	}
	return nil
}
