package model

import "time"

// School represents a row in the `schools` table. Every user, location
// and pass belongs to exactly one school, and the school row carries the
// two knobs the pass engine reads: how many students may be out of class
// at the same time, and the fallback duration for locations that do not
// define their own.
//
// Fields:
//  ID                  – primary key identifier of the school.
//  Name                – display name of the school.
//  ConcurrentPassLimit – maximum number of simultaneously active passes.
//  DefaultPassDuration – fallback pass duration in minutes.
//  CreatedAt           – timestamp of creation.
//  UpdatedAt           – timestamp of last update.
type School struct {
	ID                  uint64    // schools.id
	Name                string    // schools.name
	ConcurrentPassLimit int       // schools.concurrent_pass_limit
	DefaultPassDuration int       // schools.default_pass_duration (minutes)
	CreatedAt           time.Time // schools.created_at
	UpdatedAt           time.Time // schools.updated_at
}
