package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/monitor"
)

// Poller keeps the shared snapshot current when no TUI is attached to drive
// polling. It polls on the detector's interval and, for local files,
// additionally on every file system event.
type Poller struct {
	app    *app.App
	logger *log.Logger

	watcher *monitor.FileWatcher
	gen     int
}

// NewPoller creates a poller for a.
func NewPoller(a *app.App, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{app: a, logger: logger.WithPrefix("poll"), gen: -1}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	defer p.stopWatcher()

	timer := time.NewTimer(p.poll(ctx))
	defer timer.Stop()

	for {
		p.syncWatcher()
		var fileEvents <-chan monitor.EventKind
		if p.watcher != nil {
			fileEvents = p.watcher.Events()
		}

		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			timer.Reset(p.poll(ctx))

		case kind, ok := <-fileEvents:
			if !ok {
				p.logger.Warn("file watch ended, polling only")
				p.stopWatcher()
				continue
			}
			p.logger.Debug("file event", "kind", kind)
			next := p.poll(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(next)
		}
	}
}

// poll runs one check and returns the delay until the next.
func (p *Poller) poll(ctx context.Context) time.Duration {
	res := p.app.Poll(ctx)
	if res.Changed {
		p.logger.Info("task file changed, reloaded", "tasks", len(p.app.Items()))
	}
	if res.Interval <= 0 {
		return monitor.BaseInterval
	}
	return res.Interval
}

// syncWatcher follows backend switches.
func (p *Poller) syncWatcher() {
	gen := p.app.Generation()
	if gen == p.gen {
		return
	}
	p.stopWatcher()
	p.gen = gen

	path := p.app.WatchPath()
	if path == "" {
		return
	}
	w, err := monitor.NewFileWatcher(path, p.logger)
	if err != nil {
		p.logger.Warn("file watch unavailable, polling only", "path", path, "err", err)
		return
	}
	p.watcher = w
}

func (p *Poller) stopWatcher() {
	if p.watcher != nil {
		p.watcher.Close()
		p.watcher = nil
	}
}
