// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSubject is returned by Connect for an empty subject id.
	ErrInvalidSubject = errors.New("transport: subject id must not be empty")

	// ErrSubjectMismatch is returned by Connect on a live session owned by
	// another subject.
	ErrSubjectMismatch = errors.New("transport: connected as a different subject; disconnect first")

	// ErrAuthentication matches every *AuthenticationError via errors.Is.
	ErrAuthentication = errors.New("transport: authentication rejected")

	// ErrAuthTimeout is returned when the backend never acknowledges the handshake.
	ErrAuthTimeout = errors.New("transport: authentication acknowledgment timed out")

	// ErrNotConnected is returned by Emit when no authenticated connection exists.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrReconnectExhausted is reported once MaxReconnectAttempts consecutive
	// reconnects have failed.
	ErrReconnectExhausted = errors.New("transport: reconnect attempts exhausted")
)

// AuthenticationError reports a rejected handshake. It is never retried
// with the same credentials.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("transport: authentication rejected: %s", e.Reason)
}

// Unwrap lets errors.Is(err, ErrAuthentication) match.
func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}
