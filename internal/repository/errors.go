// Package repository provides data access to the MySQL tables behind the
// hall pass service. Each repository wraps a *sql.DB and exposes plain
// methods for single-statement work plus Tx variants that participate in
// a caller-owned transaction. Methods that look up a single row return
// sql.ErrNoRows or an entity-specific sentinel so that handlers can
// distinguish "missing" from real database failures. All timestamps are
// written and compared in UTC; the connection string pins the session to
// UTC as well.
package repository

import "errors"

// ErrNoChange is returned by update methods when the row exists but every
// submitted value matches what is already stored. Handlers usually treat
// this as success without bumping updated_at.
var ErrNoChange = errors.New("no change")
