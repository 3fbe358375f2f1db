package model

import "time"

// PassStatus is the closed set of states a hall pass moves through.
// The legal transitions form a small directed graph owned by the engine
// package; nothing outside the engine decides whether a transition is
// allowed.
//
//	PENDING  → APPROVED | DENIED | EXPIRED
//	APPROVED → ACTIVE | EXPIRED
//	ACTIVE   → COMPLETED | EXPIRED
//
// COMPLETED, DENIED and EXPIRED are terminal.
type PassStatus string

const (
	PassPending   PassStatus = "PENDING"
	PassApproved  PassStatus = "APPROVED"
	PassActive    PassStatus = "ACTIVE"
	PassCompleted PassStatus = "COMPLETED"
	PassDenied    PassStatus = "DENIED"
	PassExpired   PassStatus = "EXPIRED"
)

// Valid reports whether s is one of the six known statuses.
func (s PassStatus) Valid() bool {
	switch s {
	case PassPending, PassApproved, PassActive, PassCompleted, PassDenied, PassExpired:
		return true
	}
	return false
}

// Terminal reports whether a pass in this status can never move again.
func (s PassStatus) Terminal() bool {
	return s == PassCompleted || s == PassDenied || s == PassExpired
}

// Pass represents a row in the `passes` table: one student's authorized
// absence from class for a bounded time window. Passes are append-only
// history: they are never deleted, only moved to a terminal status.
//
// The requested window [RequestedStartTime, RequestedEndTime] bounds when
// the pass may be activated; AllottedMinutes is the window length granted
// at creation and caps how long an activated pass may stay out.
// DurationMinutes is a different thing entirely: the measured absence,
// set exactly once at completion, and left null for passes that never
// complete.
//
// Fields:
//  ID                 – primary key identifier.
//  SchoolID           – owning school.
//  StudentID          – student the pass belongs to.
//  LocationID         – destination location.
//  ApproverID         – staff member who approved/denied/issued (null until decided).
//  Status             – current state, see PassStatus.
//  RequestedStartTime – start of the validity window.
//  RequestedEndTime   – end of the validity window.
//  AllottedMinutes    – window length granted at creation (minutes).
//  ActualStartTime    – when the student actually left (null until activated).
//  ActualEndTime      – when the student returned (null until completed).
//  DurationMinutes    – measured absence in minutes (null until completed).
//  VerificationCode   – code issued at activation (null until activated);
//                       only verifiable while the pass is ACTIVE.
//  IsSummons          – staff summoned the student somewhere.
//  IsEarlyRelease     – staff granted leave before normal dismissal.
//  StudentReason      – free-text reason given by the student (nullable).
//  AdminNotes         – free-text staff notes (nullable).
//  ApprovalNotes      – note recorded with the approval/denial (nullable).
//  ApprovedAt         – when the decision was recorded (nullable).
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last update.
type Pass struct {
	ID                 uint64     // passes.id
	SchoolID           uint64     // passes.school_id
	StudentID          uint64     // passes.student_id
	LocationID         uint64     // passes.location_id
	ApproverID         *uint64    // passes.approver_id (nullable)
	Status             PassStatus // passes.status
	RequestedStartTime time.Time  // passes.requested_start_time
	RequestedEndTime   time.Time  // passes.requested_end_time
	AllottedMinutes    int        // passes.allotted_minutes
	ActualStartTime    *time.Time // passes.actual_start_time (nullable)
	ActualEndTime      *time.Time // passes.actual_end_time (nullable)
	DurationMinutes    *int       // passes.duration_minutes (nullable)
	VerificationCode   *string    // passes.verification_code (nullable)
	IsSummons          bool       // passes.is_summons
	IsEarlyRelease     bool       // passes.is_early_release
	StudentReason      *string    // passes.student_reason (nullable)
	AdminNotes         *string    // passes.admin_notes (nullable)
	ApprovalNotes      *string    // passes.approval_notes (nullable)
	ApprovedAt         *time.Time // passes.approved_at (nullable)
	CreatedAt          time.Time  // passes.created_at
	UpdatedAt          time.Time  // passes.updated_at
}
