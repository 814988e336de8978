package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// RegisterRequest / LoginRequest carry a username and password, both
// NUL-terminated fixed fields.
type RegisterRequest struct {
	Header
	Username [usernameFieldLen]byte
	Password [passwordFieldLen]byte
}

type LoginRequest struct {
	Header
	Username [usernameFieldLen]byte
	Password [passwordFieldLen]byte
}

// DeleteRequest and AdminRequest carry only a target username.
type DeleteRequest struct {
	Header
	Username [usernameFieldLen]byte
}

type AdminRequest struct {
	Header
	Username [usernameFieldLen]byte
}

// RoomRequest covers CREATE, DELETE, and JOIN requests, all of which carry
// only a room name.
type RoomRequest struct {
	Header
	RoomName [roomNameFieldLen]byte
}

// ChatFrame carries a chat message, used both as a client REQUEST and a
// server-originated UPDATE. Layout: username[30] + '>' + chat[150] + NUL.
type ChatFrame struct {
	Header
	Payload [ChatPayloadLen]byte
}

// Reject is sent in place of any other response when a request is refused.
type Reject struct {
	Header
	Code RejectCode
}

// Acknowledge is an empty-payload success response.
type Acknowledge struct {
	Header
}

// forceTerminator guarantees buf is NUL-terminated somewhere within its
// length, defending against a peer that omits the terminator. It mutates
// buf in place and returns the string up to (but excluding) the first NUL.
func forceTerminator(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	buf[len(buf)-1] = 0
	return string(buf[:len(buf)-1])
}

// putField copies s into buf, truncating to len(buf)-1 bytes and always
// leaving a trailing NUL so the field round-trips through forceTerminator.
func putField(buf []byte, s string) {
	n := copy(buf, s)
	if n >= len(buf) {
		n = len(buf) - 1
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// ReadHeader reads just the 3-byte header, used by the dispatcher to decide
// which concrete frame to decode next.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [3]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, err
	}
	return Header{Type: Type(raw[0]), SubType: SubType(raw[1]), Opcode: Opcode(raw[2])}, nil
}

func writeHeader(w io.Writer, h Header) error {
	raw := [3]byte{byte(h.Type), byte(h.SubType), byte(h.Opcode)}
	_, err := w.Write(raw[:])
	return err
}

// DecodeRegisterBody reads the body of a REGISTER request (header already
// consumed) and returns the validated-as-terminated username/password.
func DecodeRegisterBody(r io.Reader) (username, password string, err error) {
	var buf [usernameFieldLen + passwordFieldLen]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return "", "", err
	}
	username = forceTerminator(buf[:usernameFieldLen])
	password = forceTerminator(buf[usernameFieldLen:])
	return username, password, nil
}

// EncodeRegisterRequest writes a full REGISTER request frame.
func EncodeRegisterRequest(w io.Writer, username, password string) error {
	if err := writeHeader(w, Header{TypeAccount, SubRegister, OpRequest}); err != nil {
		return err
	}
	var u [usernameFieldLen]byte
	var p [passwordFieldLen]byte
	putField(u[:], username)
	putField(p[:], password)
	if _, err := w.Write(u[:]); err != nil {
		return err
	}
	_, err := w.Write(p[:])
	return err
}

// DecodeLoginBody and EncodeLoginRequest mirror the register pair; LOGIN
// shares the exact same wire shape as REGISTER.
func DecodeLoginBody(r io.Reader) (username, password string, err error) {
	return DecodeRegisterBody(r)
}

func EncodeLoginRequest(w io.Writer, username, password string) error {
	if err := writeHeader(w, Header{TypeAccount, SubLogin, OpRequest}); err != nil {
		return err
	}
	var u [usernameFieldLen]byte
	var p [passwordFieldLen]byte
	putField(u[:], username)
	putField(p[:], password)
	if _, err := w.Write(u[:]); err != nil {
		return err
	}
	_, err := w.Write(p[:])
	return err
}

// DecodeUsernameBody reads a single username field, used by DELETE and
// ADMIN/ADMIN_REMOVE requests.
func DecodeUsernameBody(r io.Reader) (string, error) {
	var buf [usernameFieldLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	return forceTerminator(buf[:]), nil
}

func encodeUsernameRequest(w io.Writer, t Type, st SubType, username string) error {
	if err := writeHeader(w, Header{t, st, OpRequest}); err != nil {
		return err
	}
	var u [usernameFieldLen]byte
	putField(u[:], username)
	_, err := w.Write(u[:])
	return err
}

func EncodeDeleteRequest(w io.Writer, username string) error {
	return encodeUsernameRequest(w, TypeAccount, SubDelete, username)
}

func EncodeAdminRequest(w io.Writer, username string, remove bool) error {
	st := SubAdmin
	if remove {
		st = SubAdminRemove
	}
	return encodeUsernameRequest(w, TypeAccount, st, username)
}

// DecodeRoomNameBody reads a single room-name field, used by CREATE,
// DELETE, and JOIN room requests.
func DecodeRoomNameBody(r io.Reader) (string, error) {
	var buf [roomNameFieldLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	return forceTerminator(buf[:]), nil
}

func encodeRoomNameRequest(w io.Writer, st SubType, roomName string) error {
	if err := writeHeader(w, Header{TypeRooms, st, OpRequest}); err != nil {
		return err
	}
	var rn [roomNameFieldLen]byte
	putField(rn[:], roomName)
	_, err := w.Write(rn[:])
	return err
}

func EncodeRoomCreateRequest(w io.Writer, roomName string) error {
	return encodeRoomNameRequest(w, SubCreate, roomName)
}

func EncodeRoomDeleteRequest(w io.Writer, roomName string) error {
	return encodeRoomNameRequest(w, SubDelete, roomName)
}

func EncodeJoinRequest(w io.Writer, roomName string) error {
	return encodeRoomNameRequest(w, SubJoin, roomName)
}

// EncodeRoomListRequest writes a bare ROOMS/LIST request: the header alone,
// no payload.
func EncodeRoomListRequest(w io.Writer) error {
	return writeHeader(w, Header{TypeRooms, SubList, OpRequest})
}

// EncodeLogoutRequest, EncodeLeaveRequest, and EncodeQuitRequest write the
// other bare-header requests a client sends with no payload beyond the
// 3-byte header.
func EncodeLogoutRequest(w io.Writer) error {
	return writeHeader(w, Header{TypeAccount, SubLogout, OpRequest})
}

func EncodeLeaveRequest(w io.Writer) error {
	return writeHeader(w, Header{TypeChat, SubLeave, OpRequest})
}

func EncodeQuitRequest(w io.Writer) error {
	return writeHeader(w, Header{TypeSession, SubQuit, OpRequest})
}

// DecodeChatBody reads a CHAT request's 150-byte message field (the sender
// identity is implicit — it's the session's logged-in user, never taken
// from the wire on a request).
func DecodeChatBody(r io.Reader) (string, error) {
	var buf [MaxChatLen + 1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	return forceTerminator(buf[:]), nil
}

func EncodeChatRequest(w io.Writer, message string) error {
	if err := writeHeader(w, Header{TypeChat, SubChat, OpRequest}); err != nil {
		return err
	}
	var buf [MaxChatLen + 1]byte
	putField(buf[:], message)
	_, err := w.Write(buf[:])
	return err
}

// EncodeChatUpdate builds the "username>message" UPDATE frame sent to
// peers in a room.
func EncodeChatUpdate(w io.Writer, username, message string) error {
	if err := writeHeader(w, Header{TypeChat, SubChat, OpUpdate}); err != nil {
		return err
	}
	var buf [ChatPayloadLen]byte
	putField(buf[:], fmt.Sprintf("%s>%s", username, message))
	_, err := w.Write(buf[:])
	return err
}

// DecodeChatUpdateBody parses a received CHAT UPDATE payload into sender
// and message, splitting on the first '>'.
func DecodeChatUpdateBody(r io.Reader) (sender, message string, err error) {
	var buf [ChatPayloadLen]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return "", "", err
	}
	text := forceTerminator(buf[:])
	idx := bytes.IndexByte([]byte(text), '>')
	if idx < 0 {
		return "", text, nil
	}
	return text[:idx], text[idx+1:], nil
}

// EncodeReject writes a REJECT frame for the given (type, subtype, code).
func EncodeReject(w io.Writer, t Type, st SubType, code RejectCode) error {
	if err := writeHeader(w, Header{t, st, OpReject}); err != nil {
		return err
	}
	_, err := w.Write([]byte{byte(code)})
	return err
}

// DecodeRejectCode reads the 1-byte payload of a REJECT frame.
func DecodeRejectCode(r io.Reader) (RejectCode, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return RejectCode(b[0]), nil
}

// EncodeAcknowledge writes a bare, payload-less ACK frame.
func EncodeAcknowledge(w io.Writer, t Type, st SubType) error {
	return writeHeader(w, Header{t, st, OpAcknowledge})
}

// EncodeAckWithFile writes an ACK header immediately followed by the bytes
// of payload, coalesced into a single buffered write + flush so a reader
// observes the header adjacent to the file bytes — the closest portable
// equivalent to the original's TCP-cork-plus-sendfile pair once the
// transport is a crypto/tls.Conn rather than a raw socket.
func EncodeAckWithFile(w io.Writer, t Type, st SubType, payload []byte) error {
	bw := bufio.NewWriterSize(w, 3+len(payload))
	if err := writeHeader(bw, Header{t, st, OpAcknowledge}); err != nil {
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		return err
	}
	return bw.Flush()
}

// MaxFilePayloadLen bounds the file content that follows an ACK+file
// composite reply (room_names.log for LIST, a room's chat log for JOIN),
// per §9's "maximum payload is bounded" note.
const MaxFilePayloadLen = 1024

// ReadFilePayload reads the variable-length file content that follows an
// ACK+file composite reply's header. Since §4.2 deliberately leaves this
// coalesced write unframed (no length prefix — "the sender MAY coalesce
// the two writes"), a stream client can only read whatever arrived in the
// write's single underlying TLS record: one Read call, capped at
// MaxFilePayloadLen. This mirrors the fragility of the original's raw
// read(2)-after-sendfile() pairing rather than hiding it behind a framing
// scheme the wire spec doesn't define.
func ReadFilePayload(r io.Reader) ([]byte, error) {
	buf := make([]byte, MaxFilePayloadLen)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}
