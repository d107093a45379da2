// Package backend holds the active task store and swaps it when the user
// changes storage settings.
package backend

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/store"
)

// OpenFunc opens a store for a config.
type OpenFunc func(cfg store.BackendConfig) (store.Store, error)

// Switch owns the current store handle. Components ask it for the handle
// on every use instead of keeping their own.
type Switch struct {
	open   OpenFunc
	logger *log.Logger

	mu  sync.RWMutex
	cfg store.BackendConfig
	st  store.Store
	gen int
}

// NewSwitch returns a switch with no active store.
func NewSwitch(open OpenFunc, logger *log.Logger) *Switch {
	if open == nil {
		open = func(cfg store.BackendConfig) (store.Store, error) { return store.Open(cfg) }
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Switch{open: open, logger: logger}
}

// Apply opens a store for cfg and makes it current. On failure the
// previous store stays active.
func (s *Switch) Apply(cfg store.BackendConfig) (store.Store, error) {
	st, err := s.open(cfg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.st = st
	s.gen++
	s.mu.Unlock()
	s.logger.Info("backend switched", "backend", cfg.String())
	return st, nil
}

// Store returns the current handle, or nil before the first Apply.
func (s *Switch) Store() store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Config returns the active configuration.
func (s *Switch) Config() store.BackendConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Generation increases with every successful Apply.
func (s *Switch) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// TestFunc checks connectivity for a remote config.
type TestFunc func(ctx context.Context, url, path, username, password string) error

// Probe is a connectivity check running in the background.
type Probe struct {
	ch     chan error
	done   bool
	result error
}

// StartProbe runs test for cfg on a goroutine with the given timeout.
func StartProbe(cfg store.BackendConfig, test TestFunc, timeout time.Duration) *Probe {
	if test == nil {
		test = store.TestConnection
	}
	p := &Probe{ch: make(chan error, 1)}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		p.ch <- test(ctx, cfg.URL, cfg.RemotePath, cfg.Username, cfg.Password)
	}()
	return p
}

// Poll reports whether the probe finished and its result. It never blocks.
func (p *Probe) Poll() (bool, error) {
	if p.done {
		return true, p.result
	}
	select {
	case err := <-p.ch:
		p.done = true
		p.result = err
		return true, err
	default:
		return false, nil
	}
}
