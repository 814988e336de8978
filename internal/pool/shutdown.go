package pool

import "sync/atomic"

// Shutdown is the process-wide interrupt flag consulted by the accept
// loop and by each session's read loop; the pool's idle workers do not
// consult it. A single instance is shared across the server; closing Done
// wakes every goroutine blocked on a select, while Triggered offers a
// non-blocking check for code that only polls periodically (e.g. a
// listener deadline loop).
type Shutdown struct {
	flag atomic.Bool
	done chan struct{}
	once chan struct{}
}

// NewShutdown returns a ready-to-use Shutdown flag.
func NewShutdown() *Shutdown {
	return &Shutdown{
		done: make(chan struct{}),
		once: make(chan struct{}, 1),
	}
}

// Trigger sets the flag and closes Done exactly once, regardless of how
// many goroutines call Trigger concurrently.
func (s *Shutdown) Trigger() {
	select {
	case s.once <- struct{}{}:
		s.flag.Store(true)
		close(s.done)
	default:
	}
}

// Triggered reports whether Trigger has been called.
func (s *Shutdown) Triggered() bool {
	return s.flag.Load()
}

// Done returns a channel that is closed once Trigger has been called,
// suitable for use in a select alongside other wait conditions.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}
