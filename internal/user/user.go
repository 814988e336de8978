// Package user implements the user directory: the authoritative,
// mutex-guarded mapping of username to account state, backed by the
// plaintext users.txt file on disk.
package user

import "time"

// Role distinguishes an ordinary account from one with administrative
// privileges. The account named "admin" (compared case-insensitively) is
// promoted to Admin at startup load; after that, only ADMIN/ADMIN_REMOVE
// change a role, in memory only — users.txt records no role.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

// LoginStatus tracks whether an account currently occupies a connected
// session.
type LoginStatus int

const (
	StatusOut LoginStatus = iota
	StatusIn
)

// Transport is the minimal interface a session's connection must satisfy
// to receive a broadcast frame. It exists so the user directory and room
// directory never need to import the session or transport packages
// directly, avoiding an import cycle.
type Transport interface {
	Write(p []byte) (int, error)
}

// Record is one user account as held in memory.
type Record struct {
	Username     string
	PasswordHash []byte // bcrypt hash, never persisted
	Role         Role
	Status       LoginStatus
	CurrentRoom  string
	Transport    Transport
	CreatedAt    time.Time
}

// IsAdmin reports whether the record currently has administrative
// privileges.
func (r *Record) IsAdmin() bool {
	return r.Role == RoleAdmin
}
