package session

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stlalpha/chatroomd/internal/protocol"
	"github.com/stlalpha/chatroomd/internal/room"
	"github.com/stlalpha/chatroomd/internal/user"
)

// fakeConn is a minimal io.ReadWriter splicing a request buffer and a
// response buffer, enough to drive one or two frames through a Session
// without a real socket.
type fakeConn struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (f *fakeConn) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeConn) Write(p []byte) (int, error) { return f.out.Write(p) }

func newTestDirs(t *testing.T) (*user.Directory, *room.Directory) {
	t.Helper()
	users := user.NewDirectory(filepath.Join(t.TempDir(), "users.txt"), 10, 10)
	rooms := room.NewDirectory(filepath.Join(t.TempDir(), "rooms"), 5)
	if err := rooms.Init(); err != nil {
		t.Fatalf("rooms.Init: %v", err)
	}
	return users, rooms
}

func TestRegisterInConnectedState(t *testing.T) {
	users, rooms := newTestDirs(t)
	conn := &fakeConn{in: &bytes.Buffer{}}
	if err := protocol.EncodeRegisterRequest(conn.in, "alice", "hunter22"); err != nil {
		t.Fatal(err)
	}

	s := New(conn, users, rooms, nil)
	hdr, err := protocol.ReadHeader(conn.in)
	if err != nil {
		t.Fatal(err)
	}
	if outcome := s.dispatch(hdr); outcome != OutcomeOK {
		t.Fatalf("dispatch = %v", outcome)
	}
	if users.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", users.Count())
	}

	respHdr, err := protocol.ReadHeader(&conn.out)
	if err != nil {
		t.Fatal(err)
	}
	if respHdr.Opcode != protocol.OpAcknowledge {
		t.Fatalf("opcode = %v, want ack", respHdr.Opcode)
	}
}

func TestInadmissibleFrameRejectedNotFatal(t *testing.T) {
	users, rooms := newTestDirs(t)
	conn := &fakeConn{in: &bytes.Buffer{}}
	// CHAT is inadmissible while CONNECTED.
	if err := protocol.EncodeChatRequest(conn.in, "hi"); err != nil {
		t.Fatal(err)
	}

	s := New(conn, users, rooms, nil)
	hdr, err := protocol.ReadHeader(conn.in)
	if err != nil {
		t.Fatal(err)
	}
	if outcome := s.dispatch(hdr); outcome != OutcomeOK {
		t.Fatalf("dispatch = %v, want OutcomeOK (reject, not disconnect)", outcome)
	}

	respHdr, err := protocol.ReadHeader(&conn.out)
	if err != nil {
		t.Fatal(err)
	}
	if respHdr.Type != protocol.TypeFail || respHdr.Opcode != protocol.OpReject {
		t.Fatalf("response header = %+v, want FAIL/FAIL/REJECT", respHdr)
	}
	code, err := protocol.DecodeRejectCode(&conn.out)
	if err != nil {
		t.Fatal(err)
	}
	if code != protocol.RejectInvalidPacket {
		t.Fatalf("code = %v, want RejectInvalidPacket", code)
	}
}

func TestFullLifecycleLoginJoinChatLeaveLogout(t *testing.T) {
	users, rooms := newTestDirs(t)
	users.Register("alice", "hunter22")
	rooms.Create(true, "lobby")

	conn := &fakeConn{in: &bytes.Buffer{}}
	s := New(conn, users, rooms, nil)

	protocol.EncodeLoginRequest(conn.in, "alice", "hunter22")
	hdr, _ := protocol.ReadHeader(conn.in)
	if outcome := s.dispatch(hdr); outcome != OutcomeOK {
		t.Fatalf("login dispatch = %v", outcome)
	}
	if s.State() != StateLoggedIn {
		t.Fatalf("state = %v, want LOGGED_IN", s.State())
	}
	conn.out.Reset()

	protocol.EncodeJoinRequest(conn.in, "lobby")
	hdr, _ = protocol.ReadHeader(conn.in)
	if outcome := s.dispatch(hdr); outcome != OutcomeOK {
		t.Fatalf("join dispatch = %v", outcome)
	}
	if s.State() != StateChatting {
		t.Fatalf("state = %v, want CHATTING", s.State())
	}
	conn.out.Reset()

	protocol.EncodeChatRequest(conn.in, "hello room")
	hdr, _ = protocol.ReadHeader(conn.in)
	if outcome := s.dispatch(hdr); outcome != OutcomeOK {
		t.Fatalf("chat dispatch = %v", outcome)
	}
}

func TestDispatchDefaultCaseReturnsFailure(t *testing.T) {
	users, rooms := newTestDirs(t)
	conn := &fakeConn{in: &bytes.Buffer{}}
	s := New(conn, users, rooms, nil)

	// Register a bogus (type, subtype) as admissible for this state; it
	// has no case in dispatch's switch, so it must fall through to the
	// default branch, which is OutcomeFailure.
	bogus := protocol.TypeSubType{Type: protocol.Type(250), SubType: protocol.SubType(250)}
	admissible[StateConnected][bogus] = true
	defer delete(admissible[StateConnected], bogus)

	hdr := protocol.Header{Type: bogus.Type, SubType: bogus.SubType, Opcode: protocol.OpRequest}
	if outcome := s.dispatch(hdr); outcome != OutcomeFailure {
		t.Fatalf("dispatch = %v, want OutcomeFailure", outcome)
	}
}

func TestRunInvokesOnFailureForHardFault(t *testing.T) {
	users, rooms := newTestDirs(t)
	conn := &fakeConn{in: &bytes.Buffer{}}

	bogus := protocol.TypeSubType{Type: protocol.Type(250), SubType: protocol.SubType(250)}
	admissible[StateConnected][bogus] = true
	defer delete(admissible[StateConnected], bogus)

	conn.in.Write([]byte{byte(bogus.Type), byte(bogus.SubType), byte(protocol.OpRequest)})

	var failed bool
	s := New(conn, users, rooms, func() { failed = true })
	s.Run(func() bool { return false })

	if !failed {
		t.Fatal("onFailure was not invoked after a hard handler fault")
	}
}

func TestCleanupFromChattingLeavesThenLogsOut(t *testing.T) {
	users, rooms := newTestDirs(t)
	users.Register("alice", "hunter22")
	rooms.Create(true, "lobby")

	conn := &fakeConn{in: &bytes.Buffer{}}
	s := New(conn, users, rooms, nil)

	rec, _, ok := users.Login("alice", "hunter22", conn)
	if !ok {
		t.Fatal("login failed")
	}
	s.rec = rec
	s.state = StateLoggedIn
	if _, _, ok := rooms.Join(rec, "lobby"); !ok {
		t.Fatal("join failed")
	}
	s.state = StateChatting

	s.cleanup()

	if users.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0 after cleanup", users.ClientCount())
	}
	rm, _ := rooms.RoomByName("lobby")
	if len(rm.Members()) != 0 {
		t.Fatalf("room still has members after cleanup: %v", rm.Members())
	}
}
