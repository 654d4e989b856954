// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package store

// ChangeKind says why a value changed.
type ChangeKind string

const (
	ChangeOptimistic ChangeKind = "optimistic"
	ChangeConfirmed  ChangeKind = "confirmed"
	ChangeRolledBack ChangeKind = "rolled_back"
	ChangeRemote     ChangeKind = "remote"
	ChangeRenamed    ChangeKind = "renamed"
	ChangeReset      ChangeKind = "reset"
)

// Change describes one visible change. For ChangeReset only Kind is set and
// watchers should re-read the store.
type Change[T any] struct {
	Kind       ChangeKind
	ID         string
	OldID      string
	Value      T
	Present    bool
	MutationID string

	// Err is set for ChangeRolledBack so the failure can be shown to the user.
	Err error
}

// Watch registers fn for every visible change and returns a function that
// removes it. Changes are delivered in the order they were applied. fn runs
// outside the store lock and may read or modify the store.
func (s *Store[T]) Watch(fn func(Change[T])) func() {
	s.watchMu.Lock()
	s.nextWatch++
	id := s.nextWatch
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// publish queues c for watchers and releases mu. Whichever caller finds
// no delivery in progress drains the queue, so watchers see changes in apply
// order and a watcher that modifies the store does not deadlock.
func (s *Store[T]) publish(c Change[T]) {
	s.queue = append(s.queue, c)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		s.watchMu.RLock()
		fns := make([]func(Change[T]), 0, len(s.watchers))
		for _, fn := range s.watchers {
			fns = append(fns, fn)
		}
		s.watchMu.RUnlock()

		for _, change := range batch {
			for _, fn := range fns {
				s.deliver(fn, change)
			}
		}
		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

func (s *Store[T]) deliver(fn func(Change[T]), c Change[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().
				Interface("panic", rec).
				Str("change", string(c.Kind)).
				Str("entity_id", c.ID).
				Msg("Store watcher panicked")
		}
	}()
	fn(c)
}
