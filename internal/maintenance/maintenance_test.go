package maintenance

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stlalpha/chatroomd/internal/room"
	"github.com/stlalpha/chatroomd/internal/user"
)

func TestWriteSnapshotContent(t *testing.T) {
	dataDir := t.TempDir()
	users := user.NewDirectory(filepath.Join(dataDir, "users.txt"), 10, 10)
	rooms := room.NewDirectory(filepath.Join(dataDir, "rooms"), 5)
	if err := rooms.Init(); err != nil {
		t.Fatal(err)
	}
	users.Register("alice", "hunter22")
	rooms.Create(true, "lobby")

	s := New(dataDir, users, rooms)
	s.writeSnapshot()

	data, err := os.ReadFile(filepath.Join(dataDir, statusFile))
	if err != nil {
		t.Fatalf("read status.json: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.UserCount != 1 || snap.RoomCount != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestStartStopsCleanlyOnContextCancel(t *testing.T) {
	dataDir := t.TempDir()
	users := user.NewDirectory(filepath.Join(dataDir, "users.txt"), 10, 10)
	rooms := room.NewDirectory(filepath.Join(dataDir, "rooms"), 5)
	if err := rooms.Init(); err != nil {
		t.Fatal(err)
	}

	s := New(dataDir, users, rooms)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx, "@every 50ms")
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}

	if _, err := os.Stat(filepath.Join(dataDir, statusFile)); err != nil {
		t.Fatalf("expected at least one snapshot to have been written: %v", err)
	}
}
