// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID is returned for operations on an empty entity id.
	ErrEmptyID = errors.New("store: entity id must not be empty")

	// ErrNoPendingMutation is returned by Confirm and Rollback when nothing
	// is pending for the entity, or the mutation was already resolved.
	ErrNoPendingMutation = errors.New("store: no pending mutation")

	// ErrSuperseded is returned when resolving a mutation that a newer one
	// on the same entity has replaced.
	ErrSuperseded = errors.New("store: mutation superseded")

	// ErrRolledBack is the cause recorded when Rollback is called without one.
	ErrRolledBack = errors.New("store: optimistic change rolled back")

	// ErrMutationFailed matches every *MutationError via errors.Is.
	ErrMutationFailed = errors.New("store: mutation failed")

	// ErrPending is returned by Rename when the source id has a pending mutation.
	ErrPending = errors.New("store: entity has a pending mutation")
)

// MutationError reports a locally applied change that the backend rejected.
// The local state has already been reverted when it is returned.
type MutationError struct {
	Kind       string
	EntityID   string
	MutationID string
	Err        error

	// Superseded is set when a newer mutation replaced this one before it
	// failed; the newer optimistic value is still shown.
	Superseded bool
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("store: %s %s: change rejected: %v", e.Kind, e.EntityID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMutationFailed) hold for any *MutationError.
func (e *MutationError) Is(target error) bool {
	return target == ErrMutationFailed
}
