// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package store keeps per-kind entity state with optimistic mutations.
//
// A mutation is applied to the visible state immediately and stays pending
// until the backend call settles: Confirm keeps it (or adopts the server's
// canonical value), Rollback restores the value from before the change.
//
// Overlapping mutations on one entity follow a supersede policy. A second
// mutation while one is pending replaces it: the visible value becomes the
// newer one, and the rollback target remains the last settled value (what
// the backend last acknowledged), never the earlier optimistic value.
// Resolving the replaced mutation afterwards is stale: a stale rollback is a
// no-op and a stale confirm only moves the settled base, to the server value
// or, without one, to the value that mutation applied. This keeps a late
// failure from reverting over a newer change.
//
// Remote changes (realtime events, refetches) are authoritative while nothing
// is pending. While a mutation is pending they are deferred into the settled
// base, so they become visible if that mutation rolls back. Partial remote
// changes go through Update so they patch the settled value, not the
// optimistic one.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/metrics"
)

// CommitFunc performs the backend call for an optimistic change. A non-nil
// returned value is the server's canonical version of the entity.
type CommitFunc[T any] func(ctx context.Context, v T) (*T, error)

// RemoveFunc performs the backend call for an optimistic removal.
type RemoveFunc func(ctx context.Context) error

type entry[T any] struct {
	value   T
	present bool
}

type pending[T any] struct {
	m       *Mutation
	base    entry[T]
	applied entry[T]

	// stale holds what each superseded, unresolved mutation applied, keyed
	// by mutation id.
	stale map[string]entry[T]
}

// Store holds entities of one kind keyed by id. It is safe for concurrent use.
type Store[T any] struct {
	kind string
	log  zerolog.Logger

	mu       sync.RWMutex
	items    map[string]T
	pending  map[string]*pending[T]
	queue    []Change[T]
	draining bool

	watchMu   sync.RWMutex
	watchers  map[uint64]func(Change[T])
	nextWatch uint64
}

// New creates an empty store. kind labels logs and metrics ("task", "goal", ...).
func New[T any](kind string) *Store[T] {
	return &Store[T]{
		kind:     kind,
		log:      logging.WithComponent("store").With().Str("kind", kind).Logger(),
		items:    make(map[string]T),
		pending:  make(map[string]*pending[T]),
		watchers: make(map[uint64]func(Change[T])),
	}
}

// Kind returns the entity kind label.
func (s *Store[T]) Kind() string {
	return s.kind
}

// Get returns the visible value of id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

// List returns all visible values ordered by id.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out
}

// Len returns the number of visible entities.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Pending reports whether id has an unresolved mutation.
func (s *Store[T]) Pending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[id]
	return ok
}

// PendingCount returns the number of entities with an unresolved mutation.
func (s *Store[T]) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// MutateOptimistically shows v for id immediately and records a pending
// mutation. The entity need not exist yet.
func (s *Store[T]) MutateOptimistically(id string, v T) (*Mutation, error) {
	return s.mutate(id, entry[T]{value: v, present: true})
}

// RemoveOptimistically hides id immediately and records a pending removal.
func (s *Store[T]) RemoveOptimistically(id string) (*Mutation, error) {
	return s.mutate(id, entry[T]{})
}

func (s *Store[T]) mutate(id string, next entry[T]) (*Mutation, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	m := newMutation(id, !next.present)

	s.mu.Lock()
	rec := &pending[T]{m: m, base: s.current(id), applied: next}
	if prev, ok := s.pending[id]; ok {
		rec.base = prev.base
		rec.stale = prev.stale
		if rec.stale == nil {
			rec.stale = make(map[string]entry[T])
		}
		rec.stale[prev.m.ID] = prev.applied
		prev.m.setState(StateSuperseded)
		metrics.RecordMutation(s.kind, "superseded")
		s.log.Debug().
			Str("entity_id", id).
			Str("superseded", prev.m.ID).
			Str("mutation_id", m.ID).
			Msg("Mutation superseded")
	} else {
		metrics.MutationsPending.WithLabelValues(s.kind).Inc()
	}
	s.set(id, next)
	s.pending[id] = rec
	m.setState(StatePending)

	s.publish(Change[T]{
		Kind:       ChangeOptimistic,
		ID:         id,
		Value:      next.value,
		Present:    next.present,
		MutationID: m.ID,
	})
	return m, nil
}

// Confirm resolves the pending mutation of id. A non-nil serverValue replaces
// the optimistic value.
func (s *Store[T]) Confirm(id string, serverValue *T) error {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return ErrNoPendingMutation
	}
	s.confirmLocked(p, serverValue)
	return nil
}

// ConfirmMutation resolves m. If m was superseded it returns ErrSuperseded
// and the settled base under the newer mutation becomes serverValue, or the
// value m applied when serverValue is nil.
func (s *Store[T]) ConfirmMutation(m *Mutation, serverValue *T) error {
	s.mu.Lock()
	p, ok := s.pending[m.EntityID]
	if ok && p.m == m {
		s.confirmLocked(p, serverValue)
		return nil
	}
	defer s.mu.Unlock()

	if m.State() != StateSuperseded {
		return ErrNoPendingMutation
	}
	if !ok {
		return ErrSuperseded
	}
	applied, known := p.stale[m.ID]
	delete(p.stale, m.ID)
	switch {
	case serverValue != nil:
		p.base = entry[T]{value: *serverValue, present: true}
	case known:
		p.base = applied
	}
	return ErrSuperseded
}

// confirmLocked resolves p and releases mu.
func (s *Store[T]) confirmLocked(p *pending[T], serverValue *T) {
	id := p.m.EntityID
	delete(s.pending, id)
	if serverValue != nil {
		s.set(id, entry[T]{value: *serverValue, present: true})
	}
	p.m.setState(StateConfirmed)
	metrics.MutationsPending.WithLabelValues(s.kind).Dec()
	metrics.RecordMutation(s.kind, "confirmed")

	cur := s.current(id)
	s.publish(Change[T]{
		Kind:       ChangeConfirmed,
		ID:         id,
		Value:      cur.value,
		Present:    cur.present,
		MutationID: p.m.ID,
	})
}

// Rollback restores the value id had before its pending mutation.
func (s *Store[T]) Rollback(id string) error {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return ErrNoPendingMutation
	}
	s.rollbackLocked(p, ErrRolledBack)
	return nil
}

// RollbackMutation reverts m with cause. A superseded m is left alone and
// ErrSuperseded is returned.
func (s *Store[T]) RollbackMutation(m *Mutation, cause error) error {
	if cause == nil {
		cause = ErrRolledBack
	}
	s.mu.Lock()
	p, ok := s.pending[m.EntityID]
	if ok && p.m == m {
		s.rollbackLocked(p, cause)
		return nil
	}
	if ok {
		delete(p.stale, m.ID)
	}
	s.mu.Unlock()

	if m.State() == StateSuperseded {
		return ErrSuperseded
	}
	return ErrNoPendingMutation
}

// rollbackLocked reverts p and releases mu.
func (s *Store[T]) rollbackLocked(p *pending[T], cause error) {
	id := p.m.EntityID
	delete(s.pending, id)
	s.set(id, p.base)
	p.m.setState(StateRolledBack)
	metrics.MutationsPending.WithLabelValues(s.kind).Dec()
	metrics.RecordMutation(s.kind, "rolled_back")

	s.log.Warn().
		Err(cause).
		Str("entity_id", id).
		Str("mutation_id", p.m.ID).
		Msg("Optimistic change rolled back")

	s.publish(Change[T]{
		Kind:       ChangeRolledBack,
		ID:         id,
		Value:      p.base.value,
		Present:    p.base.present,
		MutationID: p.m.ID,
		Err: &MutationError{
			Kind:       s.kind,
			EntityID:   id,
			MutationID: p.m.ID,
			Err:        cause,
		},
	})
}

// Apply runs a full optimistic update: show v, call commit, then confirm with
// the server value or roll back. On failure the returned error is a
// *MutationError and the visible state has been reverted.
func (s *Store[T]) Apply(ctx context.Context, id string, v T, commit CommitFunc[T]) (T, error) {
	var zero T

	m, err := s.MutateOptimistically(id, v)
	if err != nil {
		return zero, err
	}

	server, err := commit(ctx, v)
	if err != nil {
		return zero, s.fail(m, err)
	}

	if err := s.ConfirmMutation(m, server); err != nil && !errors.Is(err, ErrSuperseded) {
		return zero, err
	}
	if server != nil {
		return *server, nil
	}
	return v, nil
}

// Remove runs a full optimistic removal of id.
func (s *Store[T]) Remove(ctx context.Context, id string, commit RemoveFunc) error {
	m, err := s.RemoveOptimistically(id)
	if err != nil {
		return err
	}
	if err := commit(ctx); err != nil {
		return s.fail(m, err)
	}
	if err := s.ConfirmMutation(m, nil); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

func (s *Store[T]) fail(m *Mutation, cause error) error {
	merr := &MutationError{
		Kind:       s.kind,
		EntityID:   m.EntityID,
		MutationID: m.ID,
		Err:        cause,
	}
	if err := s.RollbackMutation(m, cause); errors.Is(err, ErrSuperseded) {
		merr.Superseded = true
	}
	return merr
}

// Reconcile applies a remote value for id. It is shown at once when nothing
// is pending for id, otherwise it becomes the settled base of the pending
// mutation. It reports whether the value became visible.
func (s *Store[T]) Reconcile(id string, remote T) bool {
	return s.reconcile(id, entry[T]{value: remote, present: true})
}

// ReconcileRemoval applies a remote deletion of id.
func (s *Store[T]) ReconcileRemoval(id string) bool {
	return s.reconcile(id, entry[T]{})
}

func (s *Store[T]) reconcile(id string, remote entry[T]) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	if p, ok := s.pending[id]; ok {
		p.base = remote
		s.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues(s.kind, "deferred").Inc()
		s.log.Debug().Str("entity_id", id).Msg("Remote change deferred behind pending mutation")
		return false
	}

	s.set(id, remote)
	metrics.ReconciliationsTotal.WithLabelValues(s.kind, "applied").Inc()
	s.publish(Change[T]{
		Kind:    ChangeRemote,
		ID:      id,
		Value:   remote.value,
		Present: remote.present,
	})
	return true
}

// Update patches the remote state of id with fn. While a mutation is pending
// fn is applied to the settled base, so the patch survives a rollback and
// never captures the optimistic value; nothing is shown until the mutation
// resolves. It reports whether the patched value became visible, and does
// nothing if id has no settled value to patch.
func (s *Store[T]) Update(id string, fn func(T) T) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	if p, ok := s.pending[id]; ok {
		if p.base.present {
			p.base.value = fn(p.base.value)
		}
		s.mu.Unlock()
		metrics.ReconciliationsTotal.WithLabelValues(s.kind, "deferred").Inc()
		s.log.Debug().Str("entity_id", id).Msg("Remote patch deferred behind pending mutation")
		return false
	}

	v, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	v = fn(v)
	s.items[id] = v
	metrics.ReconciliationsTotal.WithLabelValues(s.kind, "applied").Inc()
	s.publish(Change[T]{
		Kind:    ChangeRemote,
		ID:      id,
		Value:   v,
		Present: true,
	})
	return true
}

// ReplaceAll reconciles a full snapshot from the backend. Entities missing
// from items are removed. Pending entities keep their optimistic value and
// take the snapshot as their settled base.
func (s *Store[T]) ReplaceAll(items map[string]T) {
	s.mu.Lock()

	deferred := 0
	for id, p := range s.pending {
		if v, ok := items[id]; ok {
			p.base = entry[T]{value: v, present: true}
		} else {
			p.base = entry[T]{}
		}
		deferred++
	}

	next := make(map[string]T, len(items)+len(s.pending))
	for id, v := range items {
		if _, ok := s.pending[id]; !ok {
			next[id] = v
		}
	}
	for id := range s.pending {
		if v, ok := s.items[id]; ok {
			next[id] = v
		}
	}
	s.items = next

	metrics.ReconciliationsTotal.WithLabelValues(s.kind, "snapshot").Inc()
	s.log.Debug().Int("items", len(items)).Int("deferred", deferred).Msg("Snapshot reconciled")

	s.publish(Change[T]{Kind: ChangeReset})
}

// Rename moves a settled entity to a new id, as when a server-assigned id
// replaces a temporary one. The value at newID becomes v; if newID has a
// pending mutation, v becomes its settled base instead.
func (s *Store[T]) Rename(oldID, newID string, v T) error {
	if oldID == "" || newID == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	if _, ok := s.pending[oldID]; ok {
		s.mu.Unlock()
		return ErrPending
	}
	delete(s.items, oldID)
	if p, ok := s.pending[newID]; ok {
		p.base = entry[T]{value: v, present: true}
	} else {
		s.items[newID] = v
	}

	cur := s.current(newID)
	s.publish(Change[T]{
		Kind:    ChangeRenamed,
		ID:      newID,
		OldID:   oldID,
		Value:   cur.value,
		Present: cur.present,
	})
	return nil
}

func (s *Store[T]) current(id string) entry[T] {
	v, ok := s.items[id]
	return entry[T]{value: v, present: ok}
}

func (s *Store[T]) set(id string, e entry[T]) {
	if e.present {
		s.items[id] = e.value
		return
	}
	delete(s.items, id)
}
