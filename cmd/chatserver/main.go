// Command chatserver runs the TLS-secured, multi-room chat server: it
// loads config.txt and users.txt, stands up the worker pool and the
// room/user directories, then serves connections until SIGINT.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/stlalpha/chatroomd/internal/certwatch"
	"github.com/stlalpha/chatroomd/internal/chatserver"
	"github.com/stlalpha/chatroomd/internal/config"
	"github.com/stlalpha/chatroomd/internal/logging"
	"github.com/stlalpha/chatroomd/internal/maintenance"
	"github.com/stlalpha/chatroomd/internal/pool"
	"github.com/stlalpha/chatroomd/internal/room"
	"github.com/stlalpha/chatroomd/internal/user"
)

// snapshotSchedule is a robfig/cron expression: every 30 seconds, counted
// from when the scheduler starts (not aligned to the wall clock).
const snapshotSchedule = "@every 30s"

func main() {
	if err := run(); err != nil {
		logging.Error("chatserver: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT)
	defer stop()

	basePath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load(filepath.Join(basePath, "config.txt"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Info("chatserver: config loaded (host=%s port=%d max_rooms=%d max_clients=%d)",
		cfg.ListenHost, cfg.ListenPort, cfg.MaxRooms, cfg.MaxClients)

	certPath := filepath.Join(basePath, "server.crt")
	keyPath := filepath.Join(basePath, "server.key")
	watcher, err := certwatch.New(certPath, keyPath)
	if err != nil {
		return fmt.Errorf("init TLS material: %w", err)
	}
	defer watcher.Close()
	tlsConfig := &tls.Config{
		GetCertificate: watcher.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}

	// N = max_clients + 1 per the worker pool sizing rule: one worker
	// always available to drain a session even when every client slot is
	// saturated.
	workers := pool.New(cfg.MaxClients + 1)
	shutdown := pool.NewShutdown()

	users := user.NewDirectory(filepath.Join(basePath, "users.txt"), 100, cfg.MaxClients)
	if err := users.Load(); err != nil {
		return fmt.Errorf("load users.txt: %w", err)
	}
	logging.Info("chatserver: loaded %d users", users.Count())

	rooms := room.NewDirectory(filepath.Join(basePath, "rooms"), cfg.MaxRooms)
	if err := rooms.Init(); err != nil {
		return fmt.Errorf("init room directory: %w", err)
	}

	srv, err := chatserver.New(chatserver.Config{
		Host:      cfg.ListenHost,
		Port:      cfg.ListenPort,
		TLSConfig: tlsConfig,
		Users:     users,
		Rooms:     rooms,
		Pool:      workers,
		Shutdown:  shutdown,
	})
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}

	snapshotter := maintenance.New(basePath, users, rooms)
	maintenanceCtx, stopMaintenance := context.WithCancel(context.Background())
	go snapshotter.Start(maintenanceCtx, snapshotSchedule)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logging.Info("chatserver: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			stopMaintenance()
			return fmt.Errorf("accept loop: %w", err)
		}
	}

	shutdown.Trigger()
	if err := srv.Close(); err != nil {
		logging.Warn("chatserver: closing listener: %v", err)
	}
	workers.Destroy(pool.Wait)

	stopMaintenance()

	if err := rooms.Teardown(); err != nil {
		logging.Warn("chatserver: tearing down room directory: %v", err)
	}

	logging.Info("chatserver: shutdown complete")
	return nil
}
