// Package maintenance runs a cron-scheduled diagnostic snapshot of
// directory state to a status.json file under the data directory. It is
// purely observational — no wire frame reads or depends on it.
package maintenance

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"github.com/stlalpha/chatroomd/internal/logging"
	"github.com/stlalpha/chatroomd/internal/room"
	"github.com/stlalpha/chatroomd/internal/user"
)

const statusFile = "status.json"

// RoomSnapshot is one room's entry in the status snapshot.
type RoomSnapshot struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Snapshot is the full status.json document written on every tick.
type Snapshot struct {
	RoomCount   int            `json:"room_count"`
	UserCount   int            `json:"user_count"`
	ClientCount int            `json:"client_count"`
	Rooms       []RoomSnapshot `json:"rooms"`
}

// Snapshotter runs a single cron-scheduled job that writes a Snapshot of
// the user and room directories to disk.
type Snapshotter struct {
	dataDir string
	users   *user.Directory
	rooms   *room.Directory
	cron    *cron.Cron
}

// New returns a Snapshotter that will write dataDir/status.json on the
// given schedule once Start is called.
func New(dataDir string, users *user.Directory, rooms *room.Directory) *Snapshotter {
	return &Snapshotter{dataDir: dataDir, users: users, rooms: rooms}
}

// Start schedules the snapshot job on the given cron schedule and blocks
// until ctx is cancelled, then stops the cron scheduler and waits for any
// in-flight snapshot to finish before returning — so the final write
// never races a caller tearing down the room directory afterward.
func (s *Snapshotter) Start(ctx context.Context, schedule string) {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.writeSnapshot); err != nil {
		logging.Error("maintenance: failed to schedule snapshot job: %v", err)
		return
	}
	s.cron.Start()
	logging.Info("maintenance: status snapshot scheduled (%s)", schedule)

	<-ctx.Done()
	s.Stop()
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Snapshotter) Stop() {
	if s.cron == nil {
		return
	}
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
}

func (s *Snapshotter) writeSnapshot() {
	rooms := s.rooms.Snapshot()
	snap := Snapshot{
		RoomCount:   len(rooms),
		UserCount:   s.users.Count(),
		ClientCount: s.users.ClientCount(),
		Rooms:       make([]RoomSnapshot, 0, len(rooms)),
	}
	for name, members := range rooms {
		snap.Rooms = append(snap.Rooms, RoomSnapshot{Name: name, Members: members})
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logging.Error("maintenance: marshal snapshot: %v", err)
		return
	}
	path := filepath.Join(s.dataDir, statusFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.Error("maintenance: write %s: %v", path, err)
	}
}
