package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danst0/reinschrift/internal/task"
)

// blob is the raw byte storage behind a document.
type blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// document implements Store as read-modify-write over a blob.
type document struct {
	cfg       BackendConfig
	blob      blob
	now       func() time.Time
	newMarker func() string
	timeout   time.Duration

	mu sync.Mutex
}

func newDocument(cfg BackendConfig, opts ...Option) *document {
	d := &document{
		cfg:       cfg,
		now:       time.Now,
		newMarker: shortMarker,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// shortMarker returns a six character block id.
func shortMarker() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func (d *document) Config() BackendConfig { return d.cfg }

func (d *document) today() task.Date { return task.DateOf(d.now()) }

func (d *document) Load(ctx context.Context) ([]task.Item, error) {
	data, err := d.blob.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", d.cfg, ErrUnavailable, err)
	}
	return Parse(string(data)), nil
}

func (d *document) Fingerprint(ctx context.Context) (Fingerprint, error) {
	data, err := d.blob.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w: %w", d.cfg, ErrUnavailable, err)
	}
	return FingerprintOf(data), nil
}

func (d *document) Add(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("add task: empty title")
	}
	return d.modify(ctx, func(lines []string) ([]string, error) {
		at := dividerIndex(lines)
		line := fmt.Sprintf("%s %s due:%s", openBox, title, d.today())
		return insertAt(lines, at, line), nil
	})
}

func (d *document) AddFull(ctx context.Context, item task.Item) error {
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("add task: empty title")
	}
	if item.Marker == "" {
		item.Marker = d.newMarker()
	}
	return d.modify(ctx, func(lines []string) ([]string, error) {
		at := sectionEnd(lines, item.Section)
		if at < 0 {
			at = dividerIndex(lines)
		}
		return insertAt(lines, at, FormatLine(item)), nil
	})
}

func (d *document) Toggle(ctx context.Context, key task.Key, done bool) error {
	return d.modify(ctx, func(lines []string) ([]string, error) {
		i, err := resolve(lines, key)
		if err != nil {
			return nil, err
		}
		lines[i] = rewriteDone(lines[i], done, d.today())
		return lines, nil
	})
}

func (d *document) Update(ctx context.Context, item task.Item) error {
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("update task: empty title")
	}
	return d.modify(ctx, func(lines []string) ([]string, error) {
		i, err := resolve(lines, item.Key)
		if err != nil {
			return nil, err
		}
		if !item.Done {
			item.Completed = nil
		} else if item.Completed == nil {
			item.Completed = d.today().Ptr()
		}
		lines[i] = indentOf(lines[i]) + FormatLine(item)
		return lines, nil
	})
}

func (d *document) Delete(ctx context.Context, item task.Item) error {
	return d.modify(ctx, func(lines []string) ([]string, error) {
		i, err := resolve(lines, item.Key)
		if err != nil {
			return nil, err
		}
		return append(lines[:i], lines[i+1:]...), nil
	})
}

// modify reads the document, applies edit and writes the result back.
// A missing file is treated as empty so the first add creates it.
func (d *document) modify(ctx context.Context, edit func([]string) ([]string, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := d.blob.Read(ctx)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w: %w", d.cfg, ErrUnavailable, err)
	}
	lines, err := edit(splitLines(string(data)))
	if err != nil {
		return err
	}
	if err := d.blob.Write(ctx, []byte(joinLines(lines))); err != nil {
		return fmt.Errorf("write %s: %w: %w", d.cfg, ErrWriteFailed, err)
	}
	return nil
}

// resolve finds the line a key points at. A marker takes precedence over
// the line number.
func resolve(lines []string, key task.Key) (int, error) {
	if key.Marker != "" {
		for i, l := range lines {
			if it, ok := parseLine(l, i, ""); ok && it.Marker == key.Marker {
				return i, nil
			}
		}
		return 0, fmt.Errorf("marker ^%s: %w", key.Marker, ErrNotFound)
	}
	if key.Line < 0 || key.Line >= len(lines) || !isTaskLine(lines[key.Line]) {
		return 0, fmt.Errorf("line %d: %w", key.Line, ErrNotFound)
	}
	return key.Line, nil
}

func insertAt(lines []string, at int, line string) []string {
	lines = append(lines, "")
	copy(lines[at+1:], lines[at:])
	lines[at] = line
	return lines
}
