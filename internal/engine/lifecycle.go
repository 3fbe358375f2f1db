package engine

import (
	"strings"
	"time"

	"github.com/schoolsecure/hallpass/internal/model"
)

// transitions is the directed graph of legal status moves. A transition
// absent from this table is illegal no matter who asks; there is no
// override path that skips a predecessor state.
var transitions = map[model.PassStatus][]model.PassStatus{
	model.PassPending:  {model.PassApproved, model.PassDenied, model.PassExpired},
	model.PassApproved: {model.PassActive, model.PassExpired},
	model.PassActive:   {model.PassCompleted, model.PassExpired},
}

// CanTransition reports whether from → to is an edge of the lifecycle
// graph. Terminal states have no outgoing edges.
func CanTransition(from, to model.PassStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AutoApprovalNote is recorded on passes that skip PENDING because the
// location does not require approval.
const AutoApprovalNote = "Auto-approved based on location settings"

// IssuanceNote is the approval note recorded on staff-issued passes.
func IssuanceNote(issuer model.User) string {
	return "Issued by " + strings.ToLower(string(issuer.Role)) + " " + issuer.FullName()
}

// DecisionNote is the default approval note when staff approve or deny
// without writing one themselves.
func DecisionNote(staff model.User) string {
	return "Processed by " + staff.FullName()
}

// InitialStatus decides where a new pass enters the graph. Staff-issued
// passes (direct issuance, summons, early release) and self-requests to
// pre-approved locations skip PENDING and start APPROVED; everything else
// waits for a decision.
func InitialStatus(loc model.Location, staffIssued bool) model.PassStatus {
	if staffIssued || !loc.RequiresApproval {
		return model.PassApproved
	}
	return model.PassPending
}

// CheckSelfRequestable rejects student self-requests to locations that
// are only reachable through staff issuance. The location's category is
// part of the request's validity, not of the actor's role, so the error
// is a validation error rather than an authorization one.
func CheckSelfRequestable(loc model.Location) error {
	switch {
	case !loc.IsActive:
		return &NotFoundError{Entity: "location"}
	case loc.SummonsOnly:
		return &ValidationError{Field: "location_id", Reason: "location is only available when summoned"}
	case loc.EarlyReleaseOnly:
		return &ValidationError{Field: "location_id", Reason: "location requires an early release pass"}
	}
	return nil
}

// CheckIssuable rejects staff issuance whose flags do not match the
// location's category: summons-only locations need the summons flag,
// early-release-only locations need the early release flag, and a single
// pass cannot be both. Inactive locations read as unknown.
func CheckIssuable(loc model.Location, isSummons, isEarlyRelease bool) error {
	switch {
	case !loc.IsActive:
		return &NotFoundError{Entity: "location"}
	case isSummons && isEarlyRelease:
		return &ValidationError{Field: "is_summons", Reason: "a pass cannot be both a summons and an early release"}
	case loc.SummonsOnly && !isSummons:
		return &ValidationError{Field: "is_summons", Reason: "location passes are issued as summons"}
	case loc.EarlyReleaseOnly && !isEarlyRelease:
		return &ValidationError{Field: "is_early_release", Reason: "location passes are issued as early release"}
	}
	return nil
}

// ResolveWindow fills in the validity window for a new pass. A missing
// start means "now"; a missing end means start plus the location's
// default duration (or, when the location defines none, the school's).
// The window must have positive length and must not already be over.
func ResolveWindow(requestedStart, requestedEnd *time.Time, now time.Time, loc model.Location, school SchoolSnapshot) (start, end time.Time, err error) {
	start = now
	if requestedStart != nil {
		start = *requestedStart
	}
	minutes := loc.DefaultDuration
	if minutes <= 0 {
		minutes = school.DefaultPassDuration
	}
	end = start.Add(time.Duration(minutes) * time.Minute)
	if requestedEnd != nil {
		end = *requestedEnd
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "requested_end_time", Reason: "window must end after it starts"}
	}
	if !end.After(now) {
		return time.Time{}, time.Time{}, &ValidationError{Field: "requested_end_time", Reason: "window has already elapsed"}
	}
	return start, end, nil
}

// ActivationOutcome classifies an activation attempt against the pass's
// validity window.
type ActivationOutcome int

const (
	ActivationOK        ActivationOutcome = iota // inside the window, go ahead
	ActivationPremature                          // before the window opens: reject, pass stays APPROVED
	ActivationExpired                            // after the window closed: the pass expires instead
)

// ClassifyActivation decides whether `now` falls before, inside or after
// the pass's requested window. Both window bounds are inclusive.
func ClassifyActivation(p model.Pass, now time.Time) ActivationOutcome {
	if now.Before(p.RequestedStartTime) {
		return ActivationPremature
	}
	if now.After(p.RequestedEndTime) {
		return ActivationExpired
	}
	return ActivationOK
}

// ExpiryDeadline returns the instant after which a non-terminal pass is
// due to expire. PENDING and APPROVED passes die with their requested
// window; an ACTIVE pass gets its full allotted minutes measured from the
// moment the student actually left. Terminal passes have no deadline.
func ExpiryDeadline(p model.Pass) (time.Time, bool) {
	switch p.Status {
	case model.PassPending, model.PassApproved:
		return p.RequestedEndTime, true
	case model.PassActive:
		if p.ActualStartTime == nil {
			// An active pass always has a start; treat a corrupt row
			// as bounded by its requested window.
			return p.RequestedEndTime, true
		}
		return p.ActualStartTime.Add(time.Duration(p.AllottedMinutes) * time.Minute), true
	}
	return time.Time{}, false
}

// ExpiredBy reports whether the pass's deadline has passed at `now`.
func ExpiredBy(p model.Pass, now time.Time) bool {
	deadline, ok := ExpiryDeadline(p)
	return ok && now.After(deadline)
}

// DurationMinutes measures an absence in whole minutes, never negative.
func DurationMinutes(start, end time.Time) int {
	minutes := int(end.Sub(start) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}
