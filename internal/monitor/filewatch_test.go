package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEventKindNotify(t *testing.T) {
	tests := []struct {
		kind EventKind
		want bool
	}{
		{Changed, true},
		{ChangesDoneHint, true},
		{Created, true},
		{Deleted, false},
		{Moved, false},
		{Renamed, false},
		{AttributeChanged, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Notify(); got != tt.want {
			t.Errorf("%s.Notify() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestEmitKeepsNotifyingEvent(t *testing.T) {
	tests := []struct {
		name  string
		burst []EventKind
		want  EventKind
	}{
		{"single", []EventKind{Deleted}, Deleted},
		{"change then chmod", []EventKind{Changed, AttributeChanged}, Changed},
		{"delete then create", []EventKind{Deleted, Created}, Created},
		{"newest of silent kinds", []EventKind{Deleted, Moved}, Moved},
		{"newest of notifying kinds", []EventKind{Changed, Created, ChangesDoneHint}, ChangesDoneHint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := &FileWatcher{events: make(chan EventKind, 1), logger: quietLogger()}
			for _, k := range tt.burst {
				fw.emit(k)
			}
			if got := <-fw.events; got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			select {
			case k := <-fw.events:
				t.Errorf("unexpected second event %s", k)
			default:
			}
		})
	}
}

func waitEvent(t *testing.T, fw *FileWatcher) EventKind {
	t.Helper()
	select {
	case k := <-fw.Events():
		return k
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for file event")
	}
	return 0
}

func TestFileWatcherSeesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	if err := os.WriteFile(path, []byte("- [ ] a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(path, quietLogger())
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()

	if err := os.WriteFile(path, []byte("- [ ] b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if k := waitEvent(t, fw); !k.Notify() {
		t.Errorf("first event after a write = %s, want a notifying kind", k)
	}

	// After the quiet period a done hint follows.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case k := <-fw.Events():
			if k == ChangesDoneHint {
				return
			}
		case <-deadline:
			t.Fatal("no changes-done-hint after writes settled")
		}
	}
}

func TestFileWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	fw, err := NewFileWatcher(path, quietLogger())
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case k := <-fw.Events():
		t.Errorf("unexpected event %s for unrelated file", k)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFileWatcherDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	fw, err := NewFileWatcher(path, quietLogger())
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	defer fw.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if k := waitEvent(t, fw); k != Deleted {
		t.Errorf("event = %s, want deleted", k)
	}
}

func TestFileWatcherCloseClosesChannel(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(filepath.Join(dir, "todo.md"), quietLogger())
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-fw.Events(); ok {
		t.Error("events channel still open after Close")
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
