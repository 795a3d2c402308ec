package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")
)

// StateTransitionError is returned when an operation attempts a lifecycle
// transition that is not in the allowed transition table for the entity.
// It is fatal to the single operation and never retried automatically.
type StateTransitionError struct {
	EntityType string
	EntityID   uuid.UUID
	Operation  string
	From       string
	To         string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s %s: operation %q is not allowed, the transition %s -> %s is not permitted", e.EntityType, e.EntityID, e.Operation, e.From, e.To)
}

// ConcurrencyConflictError is returned when a conflicting concurrent state
// was observed, e.g. a fulfillment lock blocking a transfer acceptance or
// a duplicate pending transfer. Callers may retry after re-reading state.
type ConcurrencyConflictError struct {
	EntityType string
	EntityID   uuid.UUID
	Operation  string
	Reason     string
	// LockedAt is set when the conflict is a fulfillment lock so that
	// callers can render the lock age without a second query.
	LockedAt *time.Time
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s: operation %q conflicts with concurrent state: %s", e.EntityType, e.EntityID, e.Operation, e.Reason)
}

// CapacityExceededError is returned when a sale would oversell an
// allocation. It is fatal and never retried.
type CapacityExceededError struct {
	AllocationID uuid.UUID
	Requested    uint
	Sold         uint
	Total        uint
}

func (e *CapacityExceededError) Error() string {
	var remaining uint
	if e.Total > e.Sold {
		remaining = e.Total - e.Sold
	}

	return fmt.Sprintf("allocation %s: cannot record sale of %d units, only %d of %d remain", e.AllocationID, e.Requested, remaining, e.Total)
}

// ImmutabilityViolationError is returned when a mutation is attempted on a
// field or entity that is frozen by its current lifecycle state.
type ImmutabilityViolationError struct {
	EntityType string
	EntityID   uuid.UUID
	Operation  string
	State      string
}

func (e *ImmutabilityViolationError) Error() string {
	return fmt.Sprintf("%s %s: operation %q is not permitted while the %s is %s", e.EntityType, e.EntityID, e.Operation, e.EntityType, e.State)
}
