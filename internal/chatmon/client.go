// Package chatmon implements the operator client: an ordinary chat
// protocol client (LOGIN, ROOMS/LIST, ROOMS/JOIN, CHAT) that renders the
// room list and a joined room's live feed in a terminal UI, and sends a
// chat line to the joined room when the operator types one.
package chatmon

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/stlalpha/chatroomd/internal/protocol"
)

// Conn is the minimal transport a Client needs: a *tls.Conn in production,
// an in-memory pipe in tests.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrRejected wraps a REJECT frame's code, surfaced to callers that need
// to branch on it (e.g. reporting ADMIN_PRIV to the operator).
type ErrRejected struct {
	Code protocol.RejectCode
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("server rejected request: code %d", e.Code)
}

// Client is a single connection to a chat server, speaking the exact wire
// protocol of internal/protocol as an ordinary client rather than as the
// server side implemented by internal/session.
type Client struct {
	conn Conn
	r    *bufio.Reader

	Username string
	Room     string
}

// New wraps an already-connected transport as a chat client. The caller
// owns dialing and TLS configuration (see cmd/chatmon).
func New(conn Conn) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn)}
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.conn.Close()
}

// readAckOrReject reads the next header and returns it unless it is a REJECT
// frame, in which case it decodes the reject code and returns it wrapped
// in ErrRejected.
func (c *Client) readAckOrReject(wantType protocol.Type, wantSub protocol.SubType) error {
	hdr, err := protocol.ReadHeader(c.r)
	if err != nil {
		return fmt.Errorf("read response header: %w", err)
	}
	if hdr.Opcode == protocol.OpReject {
		code, err := protocol.DecodeRejectCode(c.r)
		if err != nil {
			return fmt.Errorf("read reject code: %w", err)
		}
		return &ErrRejected{Code: code}
	}
	if hdr.Type != wantType || hdr.SubType != wantSub || hdr.Opcode != protocol.OpAcknowledge {
		return fmt.Errorf("unexpected response frame %+v", hdr)
	}
	return nil
}

// Login sends LOGIN and blocks for the ACK/REJECT.
func (c *Client) Login(username, password string) error {
	if err := protocol.EncodeLoginRequest(c.conn, username, password); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	if err := c.readAckOrReject(protocol.TypeAccount, protocol.SubLogin); err != nil {
		return err
	}
	c.Username = username
	return nil
}

// Logout sends LOGOUT and blocks for the ACK/REJECT.
func (c *Client) Logout() error {
	if err := protocol.EncodeLogoutRequest(c.conn); err != nil {
		return fmt.Errorf("send logout: %w", err)
	}
	return c.readAckOrReject(protocol.TypeAccount, protocol.SubLogout)
}

// ListRooms sends ROOMS/LIST and returns the parsed room_names.log lines.
func (c *Client) ListRooms() ([]string, error) {
	if err := protocol.EncodeRoomListRequest(c.conn); err != nil {
		return nil, fmt.Errorf("send room list: %w", err)
	}
	hdr, err := protocol.ReadHeader(c.r)
	if err != nil {
		return nil, fmt.Errorf("read room list response: %w", err)
	}
	if hdr.Opcode == protocol.OpReject {
		code, err := protocol.DecodeRejectCode(c.r)
		if err != nil {
			return nil, fmt.Errorf("read reject code: %w", err)
		}
		if code == protocol.RejectNoRooms {
			return nil, nil
		}
		return nil, &ErrRejected{Code: code}
	}
	payload, err := protocol.ReadFilePayload(c.r)
	if err != nil {
		return nil, fmt.Errorf("read room list payload: %w", err)
	}
	return splitNonEmptyLines(string(payload)), nil
}

// JoinRoom sends ROOMS/JOIN and returns the joined room's recent chat log
// lines.
func (c *Client) JoinRoom(name string) ([]string, error) {
	if err := protocol.EncodeJoinRequest(c.conn, name); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}
	hdr, err := protocol.ReadHeader(c.r)
	if err != nil {
		return nil, fmt.Errorf("read join response: %w", err)
	}
	if hdr.Opcode == protocol.OpReject {
		code, err := protocol.DecodeRejectCode(c.r)
		if err != nil {
			return nil, fmt.Errorf("read reject code: %w", err)
		}
		return nil, &ErrRejected{Code: code}
	}
	payload, err := protocol.ReadFilePayload(c.r)
	if err != nil {
		return nil, fmt.Errorf("read join payload: %w", err)
	}
	c.Room = name
	return splitNonEmptyLines(string(payload)), nil
}

// Leave sends CHAT/LEAVE and blocks for the ACK/REJECT.
func (c *Client) Leave() error {
	if err := protocol.EncodeLeaveRequest(c.conn); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	if err := c.readAckOrReject(protocol.TypeChat, protocol.SubLeave); err != nil {
		return err
	}
	c.Room = ""
	return nil
}

// SendChat sends a CHAT message. The server never ACKs a CHAT request
// directly (§4.7); the sender's own message is not echoed back.
func (c *Client) SendChat(message string) error {
	if err := protocol.EncodeChatRequest(c.conn, message); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

// Quit sends SESSION/QUIT and blocks for the ACK before the server closes
// the connection.
func (c *Client) Quit() error {
	if err := protocol.EncodeQuitRequest(c.conn); err != nil {
		return fmt.Errorf("send quit: %w", err)
	}
	_, err := protocol.ReadHeader(c.r)
	return err
}

// Event is one asynchronous frame the server pushed without a matching
// client request: a CHAT UPDATE (a peer's message or a join/leave
// announcement).
type Event struct {
	Sender  string
	Message string
}

// ReadEvent blocks for the next CHAT UPDATE frame pushed by the server.
// It is intended to run on its own goroutine, feeding a channel the UI
// reads from.
func (c *Client) ReadEvent() (Event, error) {
	hdr, err := protocol.ReadHeader(c.r)
	if err != nil {
		return Event{}, err
	}
	if hdr.Type != protocol.TypeChat || hdr.SubType != protocol.SubChat || hdr.Opcode != protocol.OpUpdate {
		return Event{}, fmt.Errorf("unexpected frame while waiting for chat update: %+v", hdr)
	}
	sender, message, err := protocol.DecodeChatUpdateBody(c.r)
	if err != nil {
		return Event{}, fmt.Errorf("decode chat update: %w", err)
	}
	return Event{Sender: sender, Message: message}, nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
