package model

import "time"

// Location represents a row in the `locations` table: a destination a
// pass can point at (nurse, bathroom, front office, ...). The three flags
// place each location in exactly one category:
//
//	RequiresApproval=false                → pre-approved for self-request
//	RequiresApproval=true                 → approval-required self-request
//	SummonsOnly=true                      → reachable only via staff summons
//	EarlyReleaseOnly=true                 → reachable only via early release
//
// Fields:
//  ID               – primary key identifier.
//  SchoolID         – owning school.
//  Name             – display name of the location.
//  DefaultDuration  – default pass duration in minutes for this location.
//  RequiresApproval – whether a student self-request needs staff approval.
//  EarlyReleaseOnly – location is restricted to early-release issuance.
//  SummonsOnly      – location is restricted to summons issuance.
//  IsActive         – soft-delete flag; inactive locations reject new passes.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type Location struct {
	ID               uint64    // locations.id
	SchoolID         uint64    // locations.school_id
	Name             string    // locations.name
	DefaultDuration  int       // locations.default_duration (minutes)
	RequiresApproval bool      // locations.requires_approval
	EarlyReleaseOnly bool      // locations.early_release_only
	SummonsOnly      bool      // locations.summons_only
	IsActive         bool      // locations.is_active
	CreatedAt        time.Time // locations.created_at
	UpdatedAt        time.Time // locations.updated_at
}
