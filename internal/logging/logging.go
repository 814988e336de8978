// Package logging provides leveled logging utilities for the chat server.
package logging

import "log"

// DebugEnabled controls whether Debug() produces output.
// It defaults to false; no command-line flag or environment variable sets it.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Info logs an informational message.
func Info(format string, args ...any) {
	log.Printf("INFO: "+format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	log.Printf("WARN: "+format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	log.Printf("ERROR: "+format, args...)
}
