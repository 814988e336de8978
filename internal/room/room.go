// Package room implements the room directory, per-room membership and
// chat log, and broadcast fan-out — C7 and C8 of the chat server.
package room

import (
	"sync"
	"time"

	"github.com/stlalpha/chatroomd/internal/user"
)

// Room is a single chat room: a log file, an ordered membership list,
// and the mutex serializing both. The per-room mutex is the only lock
// ever held while writing to a member's transport (see Directory's lock
// hierarchy rules), mirroring the teacher's ChatRoom, which also guards
// its subscriber map and history with one mutex.
type Room struct {
	mu        sync.Mutex
	name      string
	logPath   string
	members   []*user.Record
	createdAt time.Time
}

// Name returns the room's name.
func (r *Room) Name() string {
	return r.name
}

// Members returns a snapshot copy of the current membership's usernames,
// for diagnostics and tests.
func (r *Room) Members() []string {
	r.lockRoom()
	defer r.unlockRoom()
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Username
	}
	return names
}

// CreatedAt returns when the room was created, diagnostic-only per the
// data model addition.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

func (r *Room) memberCount() int {
	r.lockRoom()
	defer r.unlockRoom()
	return len(r.members)
}

// removeMember removes the first matching record by identity (pointer
// equality), matching the spec's "linear scan, first match by identity"
// rule for LEAVE. Caller must hold r.mu.
func (r *Room) removeMember(target *user.Record) bool {
	for i, m := range r.members {
		if m == target {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// lockRoom and unlockRoom acquire/release this room's mutex, recording
// (in a lockorder build) that this goroutine now holds a per-room lock,
// so a subsequent rooms_mutex acquisition on the same goroutine can be
// caught as a lock-hierarchy violation.
func (r *Room) lockRoom() {
	r.mu.Lock()
	lockorderEnterRoom()
}

func (r *Room) unlockRoom() {
	lockorderExitRoom()
	r.mu.Unlock()
}
