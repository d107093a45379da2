package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danst0/reinschrift/internal/task"
)

// waitForFile polls for a file to exist with given content, with timeout.
func waitForFile(t *testing.T, path string, timeout time.Duration) ([]byte, error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		content, err := os.ReadFile(path)
		if err == nil && len(content) > 0 {
			return content, nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, lastErr
}

func TestEmitterRunsHook(t *testing.T) {
	hooksDir := t.TempDir()
	markerFile := filepath.Join(hooksDir, "marker")
	hookScript := filepath.Join(hooksDir, TaskAdded)

	script := `#!/bin/sh
echo "$TASK_EVENT:$TASK_TITLE" > "` + markerFile + `"
`
	if err := os.WriteFile(hookScript, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	emitter := New(hooksDir, nil)
	emitter.EmitTaskAdded(task.Item{Title: "Buy milk"})

	content, err := waitForFile(t, markerFile, 5*time.Second)
	if err != nil {
		t.Fatalf("hook didn't run: %v", err)
	}
	if string(content) != "task.added:Buy milk\n" {
		t.Errorf("unexpected hook output: %q", content)
	}
}

func TestEmitterPassesEnvironment(t *testing.T) {
	hooksDir := t.TempDir()
	markerFile := filepath.Join(hooksDir, "env_marker")
	hookScript := filepath.Join(hooksDir, TaskRecurred)

	script := `#!/bin/sh
echo "$TASK_PROJECT:$TASK_DUE:$TASK_RECURRENCE" > "` + markerFile + `"
`
	if err := os.WriteFile(hookScript, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	emitter := New(hooksDir, nil)
	due := task.NewDate(2024, time.May, 8)
	emitter.EmitTaskRecurred(task.Item{Title: "Water plants", Project: "home", Due: &due, Recurrence: task.RecurDaily})

	content, err := waitForFile(t, markerFile, 5*time.Second)
	if err != nil {
		t.Fatalf("hook didn't run: %v", err)
	}
	if string(content) != "home:2024-05-08:daily\n" {
		t.Errorf("unexpected hook output: %q", content)
	}
}

func TestEmitterNoHooksDir(t *testing.T) {
	emitter := New("", nil)
	// Should not panic
	emitter.Emit(Event{Type: TaskAdded})

	var nilEmitter *Emitter
	nilEmitter.EmitTasksChanged("abc")
}

func TestEmitterMissingHook(t *testing.T) {
	emitter := New(t.TempDir(), nil)
	// Should not panic when hook doesn't exist
	emitter.Emit(Event{Type: TaskDeleted})
}

func TestSubscribe(t *testing.T) {
	emitter := New("", nil)
	ch, stop := emitter.Subscribe()

	emitter.EmitTasksChanged("abc123")
	select {
	case ev := <-ch:
		if ev.Type != TasksChanged || ev.Metadata["fingerprint"] != "abc123" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber got nothing")
	}

	stop()
	stop()
	if _, ok := <-ch; ok {
		t.Error("channel not closed after stop")
	}
	emitter.EmitTasksChanged("after")
}
