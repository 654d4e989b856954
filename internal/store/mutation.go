// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package store

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MutationState is the lifecycle state of an optimistic mutation.
type MutationState int32

const (
	StateInitiated MutationState = iota
	StatePending
	StateConfirmed
	StateRolledBack
	StateSuperseded
)

func (s MutationState) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled_back"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s MutationState) Terminal() bool {
	return s == StateConfirmed || s == StateRolledBack || s == StateSuperseded
}

// Mutation is the handle of one optimistic change.
type Mutation struct {
	ID        string
	EntityID  string
	Removal   bool
	CreatedAt time.Time

	state atomic.Int32
}

func newMutation(entityID string, removal bool) *Mutation {
	m := &Mutation{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Removal:   removal,
		CreatedAt: time.Now(),
	}
	m.state.Store(int32(StateInitiated))
	return m
}

// State returns the current state.
func (m *Mutation) State() MutationState {
	return MutationState(m.state.Load())
}

func (m *Mutation) setState(s MutationState) {
	m.state.Store(int32(s))
}
