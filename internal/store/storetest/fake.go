// Package storetest provides an in-memory store for tests.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/task"
)

// FakeStore is an in-memory implementation of store.Store for testing.
// Keys are positions in the item slice; markers resolve first when set.
type FakeStore struct {
	mu      sync.Mutex
	items   []task.Item
	version int
	cfg     store.BackendConfig

	// Today is stamped as completion date by Toggle.
	Today task.Date

	// Calls records mutating calls in order, e.g. "Toggle(2,true)".
	Calls []string

	// Error injection for testing
	LoadErr        error
	AddErr         error
	AddFullErr     error
	ToggleErr      error
	UpdateErr      error
	DeleteErr      error
	FingerprintErr error
}

// New creates a FakeStore holding items.
func New(items ...task.Item) *FakeStore {
	f := &FakeStore{cfg: store.LocalConfig("memory")}
	for _, it := range items {
		f.items = append(f.items, it.Clone())
	}
	return f
}

// WithConfig sets the backend config reported by Config.
func (f *FakeStore) WithConfig(cfg store.BackendConfig) *FakeStore {
	f.cfg = cfg
	return f
}

// Items returns a copy of the stored items.
func (f *FakeStore) Items() []task.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// Touch simulates an external edit by bumping the version.
func (f *FakeStore) Touch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
}

func (f *FakeStore) snapshot() []task.Item {
	out := make([]task.Item, len(f.items))
	for i, it := range f.items {
		c := it.Clone()
		c.Key = task.Key{Line: i, Marker: it.Marker}
		out[i] = c
	}
	return out
}

func (f *FakeStore) resolve(key task.Key) (int, error) {
	if key.Marker != "" {
		for i, it := range f.items {
			if it.Marker == key.Marker {
				return i, nil
			}
		}
		return 0, store.ErrNotFound
	}
	if key.Line < 0 || key.Line >= len(f.items) {
		return 0, store.ErrNotFound
	}
	return key.Line, nil
}

// Load implements store.Store.
func (f *FakeStore) Load(ctx context.Context) ([]task.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	return f.snapshot(), nil
}

// Add implements store.Store.
func (f *FakeStore) Add(ctx context.Context, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("Add(%s)", title))
	if f.AddErr != nil {
		return f.AddErr
	}
	f.items = append(f.items, task.Item{Title: title, Due: f.Today.Ptr()})
	f.version++
	return nil
}

// AddFull implements store.Store.
func (f *FakeStore) AddFull(ctx context.Context, item task.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("AddFull(%s)", item.Title))
	if f.AddFullErr != nil {
		return f.AddFullErr
	}
	if item.Marker == "" {
		item.Marker = fmt.Sprintf("m%d", len(f.items))
	}
	f.items = append(f.items, item.Clone())
	f.version++
	return nil
}

// Toggle implements store.Store.
func (f *FakeStore) Toggle(ctx context.Context, key task.Key, done bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("Toggle(%d,%t)", key.Line, done))
	if f.ToggleErr != nil {
		return f.ToggleErr
	}
	i, err := f.resolve(key)
	if err != nil {
		return err
	}
	f.items[i].Done = done
	f.items[i].Completed = nil
	if done {
		f.items[i].Completed = f.Today.Ptr()
	}
	f.version++
	return nil
}

// Update implements store.Store.
func (f *FakeStore) Update(ctx context.Context, item task.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("Update(%d)", item.Key.Line))
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	i, err := f.resolve(item.Key)
	if err != nil {
		return err
	}
	f.items[i] = item.Clone()
	f.version++
	return nil
}

// Delete implements store.Store.
func (f *FakeStore) Delete(ctx context.Context, item task.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("Delete(%d)", item.Key.Line))
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	i, err := f.resolve(item.Key)
	if err != nil {
		return err
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	f.version++
	return nil
}

// Fingerprint implements store.Store.
func (f *FakeStore) Fingerprint(ctx context.Context) (store.Fingerprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FingerprintErr != nil {
		return "", f.FingerprintErr
	}
	return store.Fingerprint(fmt.Sprintf("v%d", f.version)), nil
}

// Config implements store.Store.
func (f *FakeStore) Config() store.BackendConfig {
	return f.cfg
}

var _ store.Store = (*FakeStore)(nil)
