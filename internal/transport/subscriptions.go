// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package transport

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tempo/internal/logging"
)

// Message is one inbound named event with its undecoded payload.
type Message struct {
	Event string
	Data  json.RawMessage
}

// Handler receives raw inbound events.
type Handler func(msg Message)

// SubscriptionID identifies one registration made with On or OnAny.
type SubscriptionID uint64

// anyEvent is the registry key for wildcard subscriptions.
const anyEvent = "*"

type subscription struct {
	id      SubscriptionID
	handler Handler
	active  atomic.Bool
}

// registry maps event names to their subscriptions.
type registry struct {
	mu     sync.RWMutex
	nextID atomic.Uint64
	subs   map[string]map[SubscriptionID]*subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]map[SubscriptionID]*subscription)}
}

func (r *registry) add(event string, h Handler) SubscriptionID {
	s := &subscription{id: SubscriptionID(r.nextID.Add(1)), handler: h}
	s.active.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.subs[event]
	if !ok {
		byID = make(map[SubscriptionID]*subscription)
		r.subs[event] = byID
	}
	byID[s.id] = s
	return s.id
}

func (r *registry) remove(event string, id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.subs[event]
	if !ok {
		return false
	}
	s, ok := byID[id]
	if !ok {
		return false
	}
	// Cleared under the lock so a dispatch holding a snapshot skips it.
	s.active.Store(false)
	delete(byID, id)
	if len(byID) == 0 {
		delete(r.subs, event)
	}
	return true
}

// snapshot returns the subscriptions for event plus wildcards, ordered by id.
func (r *registry) snapshot(event string) []*subscription {
	r.mu.RLock()
	out := make([]*subscription, 0, len(r.subs[event])+len(r.subs[anyEvent]))
	for _, s := range r.subs[event] {
		out = append(out, s)
	}
	for _, s := range r.subs[anyEvent] {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *registry) count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[event])
}

// dispatch delivers msg to every active subscription. A panicking handler is
// logged and does not stop delivery to the rest.
func (r *registry) dispatch(msg Message) int {
	delivered := 0
	for _, s := range r.snapshot(msg.Event) {
		if !s.active.Load() {
			continue
		}
		invoke(s, msg)
		delivered++
	}
	return delivered
}

func invoke(s *subscription, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Str("component", "transport").
				Str("event", msg.Event).
				Uint64("subscription", uint64(s.id)).
				Interface("panic", rec).
				Msg("Subscriber panicked during dispatch")
		}
	}()
	s.handler(msg)
}
