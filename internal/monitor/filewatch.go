package monitor

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a change of the watched task file.
type EventKind int

const (
	Changed EventKind = iota
	ChangesDoneHint
	Created
	Deleted
	Moved
	Renamed
	AttributeChanged
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case Changed:
		return "changed"
	case ChangesDoneHint:
		return "changes-done-hint"
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	case Renamed:
		return "renamed"
	case AttributeChanged:
		return "attribute-changed"
	default:
		return "unknown"
	}
}

// Notify reports whether the user should be told about the event.
// Every kind triggers a reload.
func (k EventKind) Notify() bool {
	switch k {
	case Changed, ChangesDoneHint, Created:
		return true
	}
	return false
}

// DefaultQuietPeriod is how long writes must pause before a
// ChangesDoneHint is emitted.
const DefaultQuietPeriod = 250 * time.Millisecond

// FileWatcher watches one local file. It watches the parent directory so
// editors that save by renaming a temp file are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	dir     string
	quiet   time.Duration
	logger  *log.Logger

	events chan EventKind
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	writing  bool
	closed   bool
	settle   *time.Timer
	stopOnce sync.Once
}

// NewFileWatcher starts watching path. Events are delivered on Events();
// bursts are coalesced, so a receiver may see fewer events than happened.
func NewFileWatcher(path string, logger *log.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = log.Default()
	}

	fw := &FileWatcher{
		watcher: w,
		path:    abs,
		dir:     dir,
		quiet:   DefaultQuietPeriod,
		logger:  logger,
		events:  make(chan EventKind, 1),
		done:    make(chan struct{}),
	}
	fw.wg.Add(1)
	go fw.run()
	return fw, nil
}

// Path returns the watched file.
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Events returns the channel of change kinds. It is closed by Close.
func (fw *FileWatcher) Events() <-chan EventKind {
	return fw.events
}

// Close stops watching and waits for the event goroutine to exit.
func (fw *FileWatcher) Close() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()

		fw.mu.Lock()
		fw.closed = true
		if fw.settle != nil {
			fw.settle.Stop()
		}
		close(fw.events)
		fw.mu.Unlock()
	})
	return err
}

func (fw *FileWatcher) run() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if kind, ok := fw.convert(ev); ok {
				fw.emit(kind)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "err", err)
		}
	}
}

// convert maps an fsnotify event to a kind, filtering unrelated files.
func (fw *FileWatcher) convert(ev fsnotify.Event) (EventKind, bool) {
	name := filepath.Clean(ev.Name)
	if name == fw.dir {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			return Moved, true
		}
		return 0, false
	}
	if name != fw.path {
		return 0, false
	}

	switch {
	case ev.Has(fsnotify.Create):
		return Created, true
	case ev.Has(fsnotify.Write):
		if fw.startBurst() {
			return Changed, true
		}
		return 0, false
	case ev.Has(fsnotify.Remove):
		return Deleted, true
	case ev.Has(fsnotify.Rename):
		return Renamed, true
	case ev.Has(fsnotify.Chmod):
		return AttributeChanged, true
	}
	return 0, false
}

// startBurst (re)arms the quiet-period timer and reports whether this
// write begins a new burst.
func (fw *FileWatcher) startBurst() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	first := !fw.writing
	fw.writing = true
	if fw.settle != nil {
		fw.settle.Stop()
	}
	fw.settle = time.AfterFunc(fw.quiet, func() {
		fw.mu.Lock()
		fw.writing = false
		fw.mu.Unlock()
		fw.emit(ChangesDoneHint)
	})
	return first
}

// emit delivers kind without blocking. Only one event is ever pending;
// when the channel is full the pending and the new event are merged,
// keeping the one that notifies (the newer one on a tie).
func (fw *FileWatcher) emit(kind EventKind) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.closed {
		return
	}
	for {
		select {
		case fw.events <- kind:
			return
		default:
		}
		select {
		case pending := <-fw.events:
			if pending.Notify() && !kind.Notify() {
				kind = pending
			}
			fw.logger.Debug("file event coalesced", "pending", pending, "kept", kind)
		default:
		}
	}
}
