package session

import (
	"github.com/stlalpha/chatroomd/internal/protocol"
	"github.com/stlalpha/chatroomd/internal/room"
)

func (s *Session) reject(t protocol.Type, st protocol.SubType, code protocol.RejectCode) Outcome {
	if err := protocol.EncodeReject(s.conn, t, st, code); err != nil {
		return OutcomeConnectionFailure
	}
	return OutcomeOK
}

func (s *Session) ack(t protocol.Type, st protocol.SubType) Outcome {
	if err := protocol.EncodeAcknowledge(s.conn, t, st); err != nil {
		return OutcomeConnectionFailure
	}
	return OutcomeOK
}

func (s *Session) ackWithFile(t protocol.Type, st protocol.SubType, payload []byte) Outcome {
	if err := protocol.EncodeAckWithFile(s.conn, t, st, payload); err != nil {
		return OutcomeConnectionFailure
	}
	return OutcomeOK
}

func (s *Session) handleRegister() Outcome {
	username, password, err := protocol.DecodeRegisterBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	if code, ok := s.users.Register(username, password); !ok {
		return s.reject(protocol.TypeAccount, protocol.SubRegister, code)
	}
	return s.ack(protocol.TypeAccount, protocol.SubRegister)
}

func (s *Session) handleLogin() Outcome {
	username, password, err := protocol.DecodeLoginBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	rec, code, ok := s.users.Login(username, password, s.conn)
	if !ok {
		return s.reject(protocol.TypeAccount, protocol.SubLogin, code)
	}
	s.rec = rec
	s.state = StateLoggedIn
	return s.ack(protocol.TypeAccount, protocol.SubLogin)
}

func (s *Session) handleAdmin(grant bool) Outcome {
	target, err := protocol.DecodeUsernameBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	st := protocol.SubAdmin
	if !grant {
		st = protocol.SubAdminRemove
	}
	if target == s.rec.Username {
		return s.reject(protocol.TypeAccount, st, protocol.RejectAdminSelf)
	}
	if !s.rec.IsAdmin() {
		return s.reject(protocol.TypeAccount, st, protocol.RejectAdminPriv)
	}
	if code := s.users.SetAdmin(s.rec.Username, target, grant); code != 0 {
		return s.reject(protocol.TypeAccount, st, code)
	}
	return s.ack(protocol.TypeAccount, st)
}

func (s *Session) handleDeleteUser() Outcome {
	target, err := protocol.DecodeUsernameBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	if !s.rec.IsAdmin() {
		return s.reject(protocol.TypeAccount, protocol.SubDelete, protocol.RejectAdminPriv)
	}
	if target == s.rec.Username {
		return s.reject(protocol.TypeAccount, protocol.SubDelete, protocol.RejectAdminSelf)
	}
	if code := s.users.Delete(target); code != 0 {
		return s.reject(protocol.TypeAccount, protocol.SubDelete, code)
	}
	return s.ack(protocol.TypeAccount, protocol.SubDelete)
}

// handleLogout implements LOGOUT. ackRequested is false when it is being
// invoked as part of QUIT or cleanup, matching the spec's "ack is sent
// iff a flag requests it" rule.
func (s *Session) handleLogout(ackRequested bool) Outcome {
	s.users.Logout(s.rec.Username)
	s.rec = nil
	s.state = StateConnected
	if !ackRequested {
		return OutcomeOK
	}
	return s.ack(protocol.TypeAccount, protocol.SubLogout)
}

func (s *Session) handleRoomList() Outcome {
	data, code, ok := s.rooms.List()
	if !ok {
		return s.reject(protocol.TypeRooms, protocol.SubList, code)
	}
	return s.ackWithFile(protocol.TypeRooms, protocol.SubList, data)
}

func (s *Session) handleRoomJoin() Outcome {
	name, err := protocol.DecodeRoomNameBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	data, code, ok := s.rooms.Join(s.rec, name)
	if !ok {
		return s.reject(protocol.TypeRooms, protocol.SubJoin, code)
	}
	s.state = StateChatting
	return s.ackWithFile(protocol.TypeRooms, protocol.SubJoin, data)
}

func (s *Session) handleRoomCreate() Outcome {
	name, err := protocol.DecodeRoomNameBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	if code := s.rooms.Create(s.rec.IsAdmin(), name); code != 0 {
		return s.reject(protocol.TypeRooms, protocol.SubCreate, code)
	}
	return s.ack(protocol.TypeRooms, protocol.SubCreate)
}

func (s *Session) handleRoomDelete() Outcome {
	name, err := protocol.DecodeRoomNameBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	if code := s.rooms.Delete(s.rec.IsAdmin(), name); code != 0 {
		return s.reject(protocol.TypeRooms, protocol.SubDelete, code)
	}
	return s.ack(protocol.TypeRooms, protocol.SubDelete)
}

func (s *Session) handleChat() Outcome {
	message, err := protocol.DecodeChatBody(s.conn)
	if err != nil {
		return OutcomeConnectionFailure
	}
	code, outcome := s.rooms.Chat(s.rec, message)
	if code != 0 {
		return s.reject(protocol.TypeChat, protocol.SubChat, code)
	}
	switch outcome {
	case room.OutcomeConnectionFailure:
		return OutcomeConnectionFailure
	case room.OutcomeFailure:
		return OutcomeFailure
	default:
		return OutcomeOK
	}
}

// handleLeave implements LEAVE. ackRequested is false when invoked from
// cleanup (QUIT or abrupt disconnect), matching the "ack to the leaving
// client iff requested" rule.
func (s *Session) handleLeave(ackRequested bool) Outcome {
	s.rooms.Leave(s.rec)
	s.state = StateLoggedIn
	if !ackRequested {
		return OutcomeOK
	}
	return s.ack(protocol.TypeChat, protocol.SubLeave)
}

// handleQuit implements the cleanup invariant inline (LEAVE then LOGOUT,
// neither acked) before acking the QUIT itself and ending the session.
func (s *Session) handleQuit() Outcome {
	if s.state == StateChatting {
		s.handleLeave(false)
	}
	if s.rec != nil {
		s.handleLogout(false)
	}
	_ = s.ack(protocol.TypeSession, protocol.SubQuit)
	return OutcomeThreadShutdown
}
