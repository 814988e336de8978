package session

import "github.com/stlalpha/chatroomd/internal/protocol"

// admissible maps each state to the set of (type, subtype) pairs a client
// may send while in it, matching the per-state tables in the wire
// specification exactly.
var admissible = map[State]map[protocol.TypeSubType]bool{
	StateConnected: {
		{Type: protocol.TypeAccount, SubType: protocol.SubRegister}: true,
		{Type: protocol.TypeAccount, SubType: protocol.SubLogin}:    true,
		{Type: protocol.TypeSession, SubType: protocol.SubQuit}:     true,
	},
	StateLoggedIn: {
		{Type: protocol.TypeAccount, SubType: protocol.SubAdmin}:       true,
		{Type: protocol.TypeAccount, SubType: protocol.SubAdminRemove}: true,
		{Type: protocol.TypeAccount, SubType: protocol.SubDelete}:      true,
		{Type: protocol.TypeAccount, SubType: protocol.SubLogout}:      true,
		{Type: protocol.TypeRooms, SubType: protocol.SubList}:          true,
		{Type: protocol.TypeRooms, SubType: protocol.SubJoin}:          true,
		{Type: protocol.TypeRooms, SubType: protocol.SubCreate}:        true,
		{Type: protocol.TypeRooms, SubType: protocol.SubDelete}:        true,
		{Type: protocol.TypeSession, SubType: protocol.SubQuit}:        true,
	},
	StateChatting: {
		{Type: protocol.TypeChat, SubType: protocol.SubChat}:    true,
		{Type: protocol.TypeChat, SubType: protocol.SubLeave}:   true,
		{Type: protocol.TypeSession, SubType: protocol.SubQuit}: true,
	},
}

// dispatch enforces state-admissibility for hdr and, if admissible, calls
// the matching handler. An inadmissible combination gets a FAIL/FAIL
// INVALID_PACKET reject and the session continues (OutcomeOK), per the
// spec's "send FAIL/FAIL reject" rule — a bad frame doesn't end the
// session by itself.
func (s *Session) dispatch(hdr protocol.Header) Outcome {
	key := protocol.TypeSubType{Type: hdr.Type, SubType: hdr.SubType}
	if !admissible[s.state][key] {
		if err := protocol.EncodeReject(s.conn, protocol.TypeFail, protocol.SubFail, protocol.RejectInvalidPacket); err != nil {
			return OutcomeConnectionFailure
		}
		return OutcomeOK
	}

	switch key {
	case protocol.TypeSubType{Type: protocol.TypeAccount, SubType: protocol.SubRegister}:
		return s.handleRegister()
	case protocol.TypeSubType{Type: protocol.TypeAccount, SubType: protocol.SubLogin}:
		return s.handleLogin()
	case protocol.TypeSubType{Type: protocol.TypeAccount, SubType: protocol.SubAdmin}:
		return s.handleAdmin(true)
	case protocol.TypeSubType{Type: protocol.TypeAccount, SubType: protocol.SubAdminRemove}:
		return s.handleAdmin(false)
	case protocol.TypeSubType{Type: protocol.TypeAccount, SubType: protocol.SubDelete}:
		return s.handleDeleteUser()
	case protocol.TypeSubType{Type: protocol.TypeAccount, SubType: protocol.SubLogout}:
		return s.handleLogout(true)
	case protocol.TypeSubType{Type: protocol.TypeRooms, SubType: protocol.SubList}:
		return s.handleRoomList()
	case protocol.TypeSubType{Type: protocol.TypeRooms, SubType: protocol.SubJoin}:
		return s.handleRoomJoin()
	case protocol.TypeSubType{Type: protocol.TypeRooms, SubType: protocol.SubCreate}:
		return s.handleRoomCreate()
	case protocol.TypeSubType{Type: protocol.TypeRooms, SubType: protocol.SubDelete}:
		return s.handleRoomDelete()
	case protocol.TypeSubType{Type: protocol.TypeChat, SubType: protocol.SubChat}:
		return s.handleChat()
	case protocol.TypeSubType{Type: protocol.TypeChat, SubType: protocol.SubLeave}:
		return s.handleLeave(true)
	case protocol.TypeSubType{Type: protocol.TypeSession, SubType: protocol.SubQuit}:
		return s.handleQuit()
	default:
		return OutcomeFailure
	}
}
