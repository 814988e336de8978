package room

import (
	"fmt"
	"os"
	"strings"

	"github.com/stlalpha/chatroomd/internal/logging"
	"github.com/stlalpha/chatroomd/internal/protocol"
	"github.com/stlalpha/chatroomd/internal/user"
)

// rotateThreshold and rotateTailOffset implement the log rotation rule:
// once a room log exceeds rotateThreshold bytes, keep only the content
// beyond the first rotateTailOffset bytes of the old file, so the log
// never grows past roughly 2x the threshold.
const (
	rotateThreshold  = 1024
	rotateTailOffset = 512
)

// Outcome ranks handler results by severity, matching the three-outcome
// error model: OK < FAILURE < CONNECTION_FAILURE.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFailure
	OutcomeConnectionFailure
)

func worseOf(a, b Outcome) Outcome {
	if b > a {
		return b
	}
	return a
}

// Chat implements the CHAT handler: append-then-rotate the room log, then
// fan the message out to every other member. The sender's record must
// already have CurrentRoom set to this room's name by a prior JOIN.
func (d *Directory) Chat(rec *user.Record, message string) (protocol.RejectCode, Outcome) {
	d.lockDir()
	rm, exists := d.rooms[strings.ToLower(rec.CurrentRoom)]
	d.unlockDir()
	if !exists {
		return protocol.RejectRoomDoesNotExist, OutcomeFailure
	}

	rm.lockRoom()
	defer rm.unlockRoom()

	line := fmt.Sprintf("%s>%s\n", rec.Username, message)
	if err := appendAndRotate(rm.logPath, line); err != nil {
		return protocol.RejectServerError, OutcomeFailure
	}

	outcome := broadcastLocked(rm, rec, message)
	return 0, outcome
}

// Leave implements the LEAVE handler: remove rec from membership, clear
// its current room, and announce the departure to the remaining members.
func (d *Directory) Leave(rec *user.Record) Outcome {
	d.lockDir()
	rm, exists := d.rooms[strings.ToLower(rec.CurrentRoom)]
	d.unlockDir()
	if !exists {
		return OutcomeOK
	}

	rm.lockRoom()
	defer rm.unlockRoom()

	rm.removeMember(rec)
	rec.CurrentRoom = ""

	announcement := fmt.Sprintf("%s has left the room", rec.Username)
	return broadcastLocked(rm, rec, announcement)
}

// broadcastLocked sends a CHAT UPDATE frame to every member of rm other
// than sender. Caller must hold rm.mu. A failed write is logged against
// that peer but does not stop the fan-out to the rest; the returned
// Outcome is the most severe single failure observed.
func broadcastLocked(rm *Room, sender *user.Record, text string) Outcome {
	outcome := OutcomeOK
	for _, m := range rm.members {
		if m == sender {
			continue
		}
		if m.Transport == nil {
			continue
		}
		if err := protocol.EncodeChatUpdate(m.Transport, sender.Username, text); err != nil {
			logging.Warn("room %s: broadcast to %s failed: %v", rm.name, m.Username, err)
			outcome = worseOf(outcome, OutcomeConnectionFailure)
		}
	}
	return outcome
}

// appendAndRotate appends line to the file at path, then rotates the file
// if it now exceeds rotateThreshold bytes.
func appendAndRotate(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() <= rotateThreshold {
		return nil
	}
	return rotate(path)
}

// rotate writes the tail of the log (everything past rotateTailOffset
// bytes) to a sibling ".log.log" file and atomically renames it over the
// original, keeping the log bounded without truncating mid-line content
// any more than the threshold already implies.
func rotate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tail := data
	if len(data) > rotateTailOffset {
		tail = data[rotateTailOffset:]
	}

	tmpPath := path + ".log"
	if err := os.WriteFile(tmpPath, tail, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
