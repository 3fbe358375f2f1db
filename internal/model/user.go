package model

import "time"

// Role is the closed set of account roles. It is deliberately a named
// type rather than a free-form string: every capability decision in the
// engine keys off one of these three constants, and anything else is
// rejected at the door (registration, JWT middleware) instead of being
// compared ad hoc deeper in the stack.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether the role belongs to school staff. Teachers and
// administrators share the staff capability set; administrators extend it.
func (r Role) Staff() bool { return r == RoleTeacher || r == RoleAdmin }

// User represents an application user record as stored in the `users`
// table. Each field corresponds to a column in the database. The json
// tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags. The role is immutable for the
// lifetime of a session: it is stamped into the access token at login
// and never re-read per request.
//
// Fields:
//  ID           – primary key identifier of the user.
//  SchoolID     – school the account belongs to.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of STUDENT, TEACHER, ADMIN.
//  FirstName    – given name, used in approval notes and dashboards.
//  LastName     – family name.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	SchoolID     uint64    // users.school_id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// FullName joins the first and last name the way approval notes and
// dashboard rows display a person.
func (u User) FullName() string { return u.FirstName + " " + u.LastName }

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a user and contains metadata for expiry and
// revocation. The plain token is not stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
