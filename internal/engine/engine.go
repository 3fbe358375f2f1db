// Package engine holds the pure rules of the pass lifecycle: who may do
// what (the capability table), which status transitions are legal, when a
// pass may be activated, how long an absence lasted, how verification
// codes look, and when analytics has too little data to be worth showing.
//
// Nothing in this package touches the database, the clock source is always
// an explicit parameter, and school configuration arrives as a read-only
// snapshot, so every rule is testable in isolation. The repository layer
// applies these rules inside transactions; handlers translate the typed
// errors to HTTP.
package engine

import "github.com/schoolsecure/hallpass/internal/model"

// Actor identifies who is performing an operation: the (userID, role,
// schoolID) triple extracted from a verified access token. The role is
// fixed for the session; capability checks never re-read it.
type Actor struct {
	UserID   uint64
	Role     model.Role
	SchoolID uint64
}

// SchoolSnapshot is the read-only slice of school configuration the
// engine needs for one operation. Callers load it inside the same
// transaction that applies the transition, so the limit the admission
// check sees is the limit that was in force when the row lock was taken.
type SchoolSnapshot struct {
	ConcurrentPassLimit int
	DefaultPassDuration int // minutes
}
