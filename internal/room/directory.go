package room

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stlalpha/chatroomd/internal/charset"
	"github.com/stlalpha/chatroomd/internal/protocol"
	"github.com/stlalpha/chatroomd/internal/user"
)

const namesFile = "room_names.log"
const backupSuffix = "_b"

// Directory is the mutex-guarded room mapping, the single lock named
// rooms_mutex in the wire specification. Code must acquire this lock
// before any individual Room's mutex, and must never acquire it while
// holding one — the strict lock hierarchy that keeps CHAT broadcast and
// directory-wide operations deadlock-free.
type Directory struct {
	mu       sync.Mutex
	baseDir  string
	maxRooms int
	rooms    map[string]*Room
}

// NewDirectory prepares a room directory rooted at baseDir (conventionally
// "rooms/"), capped at maxRooms live rooms. Init creates baseDir and an
// empty room_names.log, matching the startup sequence in the spec's
// external-startup component.
func NewDirectory(baseDir string, maxRooms int) *Directory {
	return &Directory{
		baseDir:  baseDir,
		maxRooms: maxRooms,
		rooms:    make(map[string]*Room),
	}
}

// Init creates the rooms directory and an empty room_names.log sidecar.
func (d *Directory) Init() error {
	if err := os.MkdirAll(d.baseDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.baseDir, err)
	}
	path := filepath.Join(d.baseDir, namesFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil
}

// Teardown removes every room log file and the rooms directory itself,
// matching the spec's shutdown rule that freeing the directories removes
// all on-disk room state.
func (d *Directory) Teardown() error {
	d.lockDir()
	defer d.unlockDir()
	return os.RemoveAll(d.baseDir)
}

// lockDir and unlockDir acquire/release rooms_mutex. They route through
// the lockorder bookkeeping (internal/room/lockorder*.go) so a build with
// the lockorder tag panics if this goroutine already holds a per-room
// lock, catching a hierarchy violation instead of silently risking
// deadlock.
func (d *Directory) lockDir() {
	lockorderEnterRooms()
	d.mu.Lock()
}

func (d *Directory) unlockDir() {
	d.mu.Unlock()
}

func (d *Directory) namesLogPath() string {
	return filepath.Join(d.baseDir, namesFile)
}

func (d *Directory) logPathFor(name string) string {
	return filepath.Join(d.baseDir, name+".log")
}

// ValidateRoomName checks the CREATE-time charset/length rules that apply
// before any lock is taken.
func ValidateRoomName(name string) (protocol.RejectCode, bool) {
	if !charset.ValidRoomName(name) {
		return protocol.RejectRoomChars, false
	}
	if len(name) < protocol.MinRoomNameLen || len(name) > protocol.MaxRoomNameLen {
		return protocol.RejectRoomLen, false
	}
	return 0, true
}

// Create implements the CREATE handler. requesterIsAdmin must be
// evaluated by the caller before this call (the ADMIN_PRIV check
// precedes name validation and never touches rooms_mutex).
func (d *Directory) Create(requesterIsAdmin bool, name string) protocol.RejectCode {
	if !requesterIsAdmin {
		return protocol.RejectAdminPriv
	}
	if code, ok := ValidateRoomName(name); !ok {
		return code
	}

	d.lockDir()
	defer d.unlockDir()

	key := strings.ToLower(name)
	if len(d.rooms) >= d.maxRooms {
		return protocol.RejectMaxRooms
	}
	if _, exists := d.rooms[key]; exists {
		return protocol.RejectRoomExists
	}

	logPath := d.logPathFor(name)
	if err := os.WriteFile(logPath, nil, 0o600); err != nil {
		return protocol.RejectServerError
	}
	if err := appendRoomName(d.namesLogPath(), name); err != nil {
		return protocol.RejectServerError
	}

	d.rooms[key] = &Room{
		name:      name,
		logPath:   logPath,
		createdAt: time.Now(),
	}
	return 0
}

func appendRoomName(path, name string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s\n", name)
	return err
}

// Delete implements the DELETE handler.
func (d *Directory) Delete(requesterIsAdmin bool, name string) protocol.RejectCode {
	if !requesterIsAdmin {
		return protocol.RejectAdminPriv
	}

	d.lockDir()
	defer d.unlockDir()

	key := strings.ToLower(name)
	rm, exists := d.rooms[key]
	if !exists {
		return protocol.RejectRoomDoesNotExist
	}
	if rm.memberCount() > 0 {
		return protocol.RejectRoomInUse
	}

	if err := os.Remove(rm.logPath); err != nil && !os.IsNotExist(err) {
		return protocol.RejectServerError
	}
	if err := rewriteNamesFileExcluding(d.namesLogPath(), name); err != nil {
		return protocol.RejectServerError
	}
	delete(d.rooms, key)
	return 0
}

func rewriteNamesFileExcluding(path, target string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	var kept []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(line, target) {
			continue
		}
		kept = append(kept, line)
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return scanErr
	}

	backupPath := path + backupSuffix
	content := strings.Join(kept, "\n")
	if len(kept) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(backupPath, []byte(content), 0o600); err != nil {
		return err
	}
	return os.Rename(backupPath, path)
}

// List implements the LIST handler: returns the raw bytes of
// room_names.log, or RejectNoRooms if the directory is empty.
func (d *Directory) List() ([]byte, protocol.RejectCode, bool) {
	d.lockDir()
	defer d.unlockDir()

	if len(d.rooms) == 0 {
		return nil, protocol.RejectNoRooms, false
	}
	data, err := os.ReadFile(d.namesLogPath())
	if err != nil {
		return nil, protocol.RejectServerError, false
	}
	return data, 0, true
}

// Join implements the JOIN handler: looks up the room under rooms_mutex,
// then adds rec to membership and reads the room's log under the room's
// own mutex, returning the log bytes to send as the ACK+file reply. It
// also broadcasts the "has joined the room" announcement to the other
// members, and records the room name on rec.CurrentRoom — all under the
// room mutex, which is the serialization point for a member's view per
// the spec's shared-resources rule.
func (d *Directory) Join(rec *user.Record, name string) ([]byte, protocol.RejectCode, bool) {
	d.lockDir()
	rm, exists := d.rooms[strings.ToLower(name)]
	d.unlockDir()
	if !exists {
		return nil, protocol.RejectRoomDoesNotExist, false
	}

	rm.lockRoom()
	defer rm.unlockRoom()

	logBytes, err := os.ReadFile(rm.logPath)
	if err != nil {
		return nil, protocol.RejectServerError, false
	}

	rm.members = append(rm.members, rec)
	rec.CurrentRoom = rm.name

	announcement := fmt.Sprintf("%s has joined the room", rec.Username)
	broadcastLocked(rm, rec, announcement)

	return logBytes, 0, true
}

// RoomByName returns the live Room for name, for callers (chat/leave
// handlers) that already know the session's current room.
func (d *Directory) RoomByName(name string) (*Room, bool) {
	d.lockDir()
	defer d.unlockDir()
	rm, ok := d.rooms[strings.ToLower(name)]
	return rm, ok
}

// Count returns the number of live rooms.
func (d *Directory) Count() int {
	d.lockDir()
	defer d.unlockDir()
	return len(d.rooms)
}

// Snapshot returns room name -> member count, for internal/maintenance.
func (d *Directory) Snapshot() map[string]int {
	d.lockDir()
	rooms := make([]*Room, 0, len(d.rooms))
	names := make([]string, 0, len(d.rooms))
	for name, rm := range d.rooms {
		rooms = append(rooms, rm)
		names = append(names, name)
	}
	d.unlockDir()

	out := make(map[string]int, len(rooms))
	for i, rm := range rooms {
		out[names[i]] = rm.memberCount()
	}
	return out
}
