// Package session implements the per-connection state machine: three
// states (CONNECTED, LOGGED_IN, CHATTING), a per-state admissible-frame
// table, and the dispatch loop that reads one frame at a time from a
// client and calls the matching handler.
package session

import (
	"io"
	"net"
	"time"

	"github.com/stlalpha/chatroomd/internal/protocol"
	"github.com/stlalpha/chatroomd/internal/room"
	"github.com/stlalpha/chatroomd/internal/user"
)

// State is one of the three admissible session states.
type State int

const (
	StateConnected State = iota
	StateLoggedIn
	StateChatting
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateLoggedIn:
		return "LOGGED_IN"
	case StateChatting:
		return "CHATTING"
	default:
		return "UNKNOWN"
	}
}

// Outcome is a handler's result, used by the dispatch loop to decide
// whether to keep reading, close the connection, or tear the process
// down.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeConnectionFailure
	OutcomeFailure
	OutcomeThreadShutdown
)

// receiveTimeout bounds how long a single frame read blocks, so a
// session's read loop periodically notices a process-wide shutdown even
// mid-read, matching the accept loop's own ~3s polling interval.
const receiveTimeout = 3 * time.Second

// deadliner is satisfied by net.Conn and by *crypto/tls.Conn; a test
// conn without SetReadDeadline simply skips the deadline.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Session holds per-connection state for the lifetime of one client.
type Session struct {
	conn  io.ReadWriter
	users *user.Directory
	rooms *room.Directory

	// onFailure is invoked when a handler returns OutcomeFailure, per the
	// spec's "log and set the process-wide interrupt flag" rule for
	// programmer-visible faults. Nil is treated as a no-op, so tests that
	// don't care about process shutdown can omit it.
	onFailure func()

	state State
	rec   *user.Record
}

// New returns a session in the initial CONNECTED state. onFailure may be
// nil.
func New(conn io.ReadWriter, users *user.Directory, rooms *room.Directory, onFailure func()) *Session {
	return &Session{
		conn:      conn,
		users:     users,
		rooms:     rooms,
		onFailure: onFailure,
		state:     StateConnected,
	}
}

// State returns the session's current state, for diagnostics and tests.
func (s *Session) State() State {
	return s.state
}

// Run drives the dispatch loop until the client disconnects, sends QUIT,
// or a fatal error occurs. shutdown is consulted between frames so a
// process-wide interrupt can end idle sessions within one read timeout.
func (s *Session) Run(shutdown func() bool) {
	defer s.cleanup()

	for {
		if shutdown() {
			return
		}
		if dl, ok := s.conn.(deadliner); ok {
			_ = dl.SetReadDeadline(time.Now().Add(receiveTimeout))
		}

		hdr, err := protocol.ReadHeader(s.conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		outcome := s.dispatch(hdr)
		switch outcome {
		case OutcomeOK:
			continue
		case OutcomeThreadShutdown:
			return
		case OutcomeConnectionFailure:
			return
		case OutcomeFailure:
			if s.onFailure != nil {
				s.onFailure()
			}
			return
		}
	}
}

// cleanup implements the cleanup invariant on session exit: LEAVE
// semantics first if CHATTING (no ACK), then LOGOUT if LOGGED_IN (no
// ACK). Called exactly once, regardless of how Run exited.
func (s *Session) cleanup() {
	if s.state == StateChatting && s.rec != nil {
		s.rooms.Leave(s.rec)
		s.state = StateLoggedIn
	}
	if s.rec != nil {
		s.users.Logout(s.rec.Username)
		s.rec = nil
		s.state = StateConnected
	}
}
