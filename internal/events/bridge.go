// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package events

import (
	"context"
	"time"

	"github.com/tomtom215/tempo/internal/transport"
)

const bridgePublishTimeout = 5 * time.Second

// Publisher receives forwarded events. *eventbus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event string, payload []byte) error
}

// Bridge forwards every known inbound event to pub. Unknown names are not
// forwarded. Publish failures are logged and do not affect other subscribers.
// The returned Unsubscribe detaches the bridge.
func (r *Router) Bridge(pub Publisher) Unsubscribe {
	var g Group
	for _, name := range Names() {
		event := string(name)
		id := r.src.On(event, func(msg transport.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), bridgePublishTimeout)
			defer cancel()
			if err := pub.Publish(ctx, msg.Event, msg.Data); err != nil {
				r.log.Warn().Err(err).Str("event", msg.Event).Msg("Failed to forward event to bus")
			}
		})
		g.Add(func() { r.src.Off(event, id) })
	}
	return g.Close
}
