// Package certwatch hot-reloads the TLS server certificate and key from
// disk so a long-running chat server can pick up a renewed certificate
// without a restart.
package certwatch

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stlalpha/chatroomd/internal/logging"
)

// debounceDuration coalesces the burst of write events a certificate
// renewal tool typically produces (temp file write, rename) into one
// reload, the same debounce window the teacher's IP-list watcher uses.
const debounceDuration = 500 * time.Millisecond

// Watcher reloads a certificate/key pair from disk whenever either file
// changes, and exposes the current certificate through GetCertificate so
// it can be wired into a tls.Config without restarting the listener.
type Watcher struct {
	certPath string
	keyPath  string

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New loads the initial certificate and starts watching both files.
func New(certPath, keyPath string) (*Watcher, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load initial certificate: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	for _, path := range []string{certPath, keyPath} {
		if err := fsw.Add(path); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}

	w := &Watcher{
		certPath: certPath,
		keyPath:  keyPath,
		cert:     &cert,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// GetCertificate satisfies tls.Config.GetCertificate, always returning the
// most recently loaded certificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cert, nil
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("certwatch: watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cert, err := tls.LoadX509KeyPair(w.certPath, w.keyPath)
	if err != nil {
		logging.Error("certwatch: reload failed, keeping previous certificate: %v", err)
		return
	}
	w.mu.Lock()
	w.cert = &cert
	w.mu.Unlock()
	logging.Info("certwatch: reloaded TLS certificate from %s", w.certPath)
}

// Close stops the watcher goroutine and releases the underlying
// fsnotify.Watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
