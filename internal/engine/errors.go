package engine

import (
	"fmt"

	"github.com/schoolsecure/hallpass/internal/model"
)

// The five error kinds every pass operation can produce. All of them are
// recoverable at the caller; none is fatal to the process. Expiry is NOT
// represented here: an expired pass is a normal terminal state surfaced
// through Pass.Status, never through an error.

// ValidationError reports malformed or unusable input: a time window that
// ends before it starts, an unknown or inactive location, an activation
// attempted before the window opens.
type ValidationError struct {
	Field  string // which input was bad, e.g. "location_id", "requested_start_time"
	Reason string // human-readable explanation
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AuthorizationError reports a role, ownership or school-scope violation.
// It always carries the actor's role and the capability that was missing,
// so callers can point the user at the right surface instead of
// dead-ending on a bare 403.
type AuthorizationError struct {
	Role       model.Role
	Capability Capability
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %s lacks capability %s", e.Role, e.Capability)
}

// ConflictReason distinguishes the two ways a pass operation can lose a
// race: the school is at its concurrent-pass cap, or the student already
// has a pass in flight.
type ConflictReason string

const (
	ConflictAtCapacity    ConflictReason = "at_capacity"
	ConflictDuplicatePass ConflictReason = "duplicate_pass"
)

// ConflictError reports a shared-invariant violation detected inside the
// transaction that tried to commit the operation. The operation did not
// happen; retrying later is legitimate (and, for at_capacity, expected).
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ConflictAtCapacity:
		return "school is at its concurrent pass limit"
	case ConflictDuplicatePass:
		return "student already has a pass in progress"
	}
	return string(e.Reason)
}

// StateError reports a transition that is not legal from the pass's
// current status, e.g. activating a DENIED pass.
type StateError struct {
	From   model.PassStatus
	Action string // the attempted operation: "approve", "activate", ...
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s a pass in status %s", e.Action, e.From)
}

// NotFoundError reports an unknown pass, code, location or user.
// School-scoped lookups report rows of other schools as not found.
type NotFoundError struct {
	Entity string // "pass", "verification code", "location", "student", "school"
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }
