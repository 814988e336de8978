// Package config loads the server's config.txt: a fixed-position text
// file where only four specific lines carry meaning. Unlike the rest of
// the configuration surface in this codebase's lineage (JSON files
// loaded wholesale), this format is inherited byte-for-byte from the
// original C server and must be read the same way: by line number, not
// by key.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Line positions (1-based) of the four fields this server reads out of
// config.txt. Every other line in the file is ignored, preserved only
// so the file stays compatible with tooling that expects the full
// original layout.
const (
	lineListenHost = 2
	lineListenPort = 5
	lineMaxRooms   = 8
	lineMaxClients = 11

	maxLineIndex = lineMaxClients

	maxHostLen = 40
)

// Config holds the four values config.txt supplies at startup.
type Config struct {
	ListenHost string
	ListenPort int
	MaxRooms   int
	MaxClients int
}

// Load reads and validates config.txt. Any out-of-range value aborts
// startup, per the fixed-position format's contract.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file %s: %w", path, err)
	}
	defer f.Close()

	lines := make([]string, 0, maxLineIndex)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < maxLineIndex {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	if len(lines) < maxLineIndex {
		return Config{}, fmt.Errorf("config file %s: expected at least %d lines, found %d", path, maxLineIndex, len(lines))
	}

	host := strings.TrimSpace(lines[lineListenHost-1])
	if host == "" || len(host) > maxHostLen {
		return Config{}, fmt.Errorf("config file %s line %d: listen host %q invalid (1..%d chars)", path, lineListenHost, host, maxHostLen)
	}

	port, err := parseIntInRange(lines[lineListenPort-1], 1, 65535)
	if err != nil {
		return Config{}, fmt.Errorf("config file %s line %d: listen port: %w", path, lineListenPort, err)
	}

	maxRooms, err := parseIntInRange(lines[lineMaxRooms-1], 1, 20)
	if err != nil {
		return Config{}, fmt.Errorf("config file %s line %d: max_rooms: %w", path, lineMaxRooms, err)
	}

	maxClients, err := parseIntInRange(lines[lineMaxClients-1], 2, 50)
	if err != nil {
		return Config{}, fmt.Errorf("config file %s line %d: max_clients: %w", path, lineMaxClients, err)
	}

	return Config{
		ListenHost: host,
		ListenPort: port,
		MaxRooms:   maxRooms,
		MaxClients: maxClients,
	}, nil
}

func parseIntInRange(raw string, min, max int) (int, error) {
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%d out of range %d..%d", val, min, max)
	}
	return val, nil
}
