// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package events

import (
	"sync"
)

// Group collects the subscriptions of one owner so they can be released
// together when the owner is torn down.
//
//	var g events.Group
//	g.Add(router.OnTaskCreated(onTask))
//	g.Add(router.OnGoalUpdated(onGoal))
//	defer g.Close()
//
// The zero value is ready to use.
type Group struct {
	mu     sync.Mutex
	unsubs []Unsubscribe
	closed bool
}

// Add tracks u. Adding to a closed group releases u immediately.
func (g *Group) Add(u Unsubscribe) {
	if u == nil {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		u()
		return
	}
	g.unsubs = append(g.unsubs, u)
	g.mu.Unlock()
}

// Len returns the number of tracked subscriptions.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.unsubs)
}

// Close releases every tracked subscription. It is idempotent.
func (g *Group) Close() {
	g.mu.Lock()
	unsubs := g.unsubs
	g.unsubs = nil
	g.closed = true
	g.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
