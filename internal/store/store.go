// Package store reads and writes the markdown task file on local disk or on
// a WebDAV server.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danst0/reinschrift/internal/task"
)

var (
	// ErrUnavailable is returned when the task file cannot be read.
	ErrUnavailable = errors.New("task store unavailable")
	// ErrWriteFailed is returned when a mutation could not be persisted.
	ErrWriteFailed = errors.New("task store write failed")
	// ErrNotFound is returned when a key no longer resolves to a task line.
	ErrNotFound = errors.New("task not found")
	// ErrNotConfigured is returned when no usable backend is configured.
	ErrNotConfigured = errors.New("task store not configured")
)

// Store is the task persistence collaborator. Implementations are safe for
// use from multiple goroutines.
type Store interface {
	Load(ctx context.Context) ([]task.Item, error)
	Add(ctx context.Context, title string) error
	AddFull(ctx context.Context, item task.Item) error
	Toggle(ctx context.Context, key task.Key, done bool) error
	Update(ctx context.Context, item task.Item) error
	Delete(ctx context.Context, item task.Item) error
	Fingerprint(ctx context.Context) (Fingerprint, error)
	Config() BackendConfig
}

// Kind selects the storage backend.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// BackendConfig describes where the task file lives. Path is used by the
// local backend; URL, RemotePath, Username and Password by the remote one.
type BackendConfig struct {
	Kind       Kind
	Path       string
	URL        string
	RemotePath string
	Username   string
	Password   string
}

// LocalConfig returns a config for a task file on local disk.
func LocalConfig(path string) BackendConfig {
	return BackendConfig{Kind: KindLocal, Path: path}
}

// RemoteConfig returns a config for a task file on a WebDAV server.
func RemoteConfig(url, path, username, password string) BackendConfig {
	return BackendConfig{Kind: KindRemote, URL: url, RemotePath: path, Username: username, Password: password}
}

// Validate checks that the active variant carries what it needs.
func (c BackendConfig) Validate() error {
	switch c.Kind {
	case KindLocal:
		if c.Path == "" {
			return fmt.Errorf("local backend: %w", ErrNotConfigured)
		}
	case KindRemote:
		if c.URL == "" || c.RemotePath == "" {
			return fmt.Errorf("webdav backend: %w", ErrNotConfigured)
		}
	default:
		return fmt.Errorf("unknown backend %q: %w", c.Kind, ErrNotConfigured)
	}
	return nil
}

// String describes the backend without credentials.
func (c BackendConfig) String() string {
	if c.Kind == KindRemote {
		return fmt.Sprintf("webdav %s%s", c.URL, c.RemotePath)
	}
	return "file " + c.Path
}

// Option configures a store returned by Open.
type Option func(*document)

// WithClock overrides the clock used for "today".
func WithClock(now func() time.Time) Option {
	return func(d *document) { d.now = now }
}

// WithMarkerFunc overrides block-marker generation for new items.
func WithMarkerFunc(fn func() string) Option {
	return func(d *document) { d.newMarker = fn }
}

// WithTimeout bounds remote requests.
func WithTimeout(timeout time.Duration) Option {
	return func(d *document) { d.timeout = timeout }
}

// Open returns a store for cfg.
func Open(cfg BackendConfig, opts ...Option) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := newDocument(cfg, opts...)
	switch cfg.Kind {
	case KindLocal:
		d.blob = &fileBlob{path: cfg.Path}
	case KindRemote:
		d.blob = newDavBlob(cfg, d.timeout)
	}
	return d, nil
}

// NextDueDate returns the next occurrence after due for rule. Monthly
// steps clamp to the last day of a shorter month.
func NextDueDate(due task.Date, rule task.Recurrence) (task.Date, error) {
	switch rule {
	case task.RecurDaily:
		return due.AddDays(1), nil
	case task.RecurWeekly:
		return due.AddDays(7), nil
	case task.RecurMonthly:
		year, month := due.Year, due.Month+1
		if month > time.December {
			year, month = year+1, time.January
		}
		day := due.Day
		if last := daysIn(year, month); day > last {
			day = last
		}
		return task.Date{Year: year, Month: month, Day: day}, nil
	default:
		return task.Date{}, fmt.Errorf("no next date for recurrence %q", rule)
	}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
