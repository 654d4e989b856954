// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/transport"
)

// Session is a blocking realtime session. Satisfied by *transport.Client.
type Session interface {
	Run(ctx context.Context) error
}

// SessionService supervises a realtime session.
//
// Transient failures (dial errors, exhausted reconnects) are returned as-is
// so suture restarts the session with backoff. Credential failures are
// terminal and stop the service for good.
type SessionService struct {
	session Session
	name    string
	log     zerolog.Logger
}

// NewSessionService wraps session as a suture.Service.
func NewSessionService(session Session) *SessionService {
	return &SessionService{
		session: session,
		name:    "realtime-session",
		log:     logging.WithComponent("supervisor"),
	}
}

// Serve implements suture.Service.
func (s *SessionService) Serve(ctx context.Context) error {
	err := s.session.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isTerminal(err) {
		s.log.Error().Err(err).Str("service", s.name).Msg("Realtime session stopped permanently")
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("service", s.name).Msg("Realtime session ended, restarting")
		return err
	}
	return errors.New("realtime session returned without error")
}

// String implements fmt.Stringer for suture logging.
func (s *SessionService) String() string {
	return s.name
}

func isTerminal(err error) bool {
	return errors.Is(err, transport.ErrAuthentication) ||
		errors.Is(err, transport.ErrInvalidSubject)
}
