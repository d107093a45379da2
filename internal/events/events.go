// Package events provides a simple hook-based event system for task lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/task"
)

// Event types for task lifecycle
const (
	TaskAdded     = "task.added"
	TaskUpdated   = "task.updated"
	TaskDeleted   = "task.deleted"
	TaskCompleted = "task.completed"
	TaskReopened  = "task.reopened"
	TaskRecurred  = "task.recurred" // Next occurrence of a recurring task was inserted
	TasksChanged  = "tasks.changed" // The task file changed outside this process
)

// Event represents a task lifecycle event.
type Event struct {
	Type      string                 `json:"type"`
	Task      *task.Item             `json:"task,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Emitter runs hook scripts and fans events out to in-process subscribers.
type Emitter struct {
	hooksDir string
	logger   *log.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// New creates a new event emitter. An empty hooksDir disables scripts.
func New(hooksDir string, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	}
	return &Emitter{
		hooksDir: hooksDir,
		logger:   logger.WithPrefix("hooks"),
		subs:     make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel receiving every event. Slow subscribers miss
// events rather than block the emitter. Call the returned func to stop.
func (e *Emitter) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
}

// Emit delivers the event to subscribers and triggers a hook script if
// one exists for the event type.
func (e *Emitter) Emit(event Event) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.Lock()
	for ch := range e.subs {
		select {
		case ch <- event:
		default:
		}
	}
	e.mu.Unlock()

	if e.hooksDir == "" {
		return
	}
	go e.runHook(event)
}

// runHook executes the hook script for an event.
func (e *Emitter) runHook(event Event) {
	hookPath := filepath.Join(e.hooksDir, event.Type)
	if _, err := os.Stat(hookPath); os.IsNotExist(err) {
		return
	}

	env := os.Environ()
	env = append(env,
		fmt.Sprintf("TASK_EVENT=%s", event.Type),
		fmt.Sprintf("TASK_TIMESTAMP=%s", event.Timestamp.Format(time.RFC3339)),
	)

	if t := event.Task; t != nil {
		env = append(env,
			fmt.Sprintf("TASK_TITLE=%s", t.Title),
			fmt.Sprintf("TASK_SECTION=%s", t.Section),
			fmt.Sprintf("TASK_PROJECT=%s", t.Project),
			fmt.Sprintf("TASK_CONTEXT=%s", t.Context),
			fmt.Sprintf("TASK_MARKER=%s", t.Marker),
			fmt.Sprintf("TASK_DONE=%t", t.Done),
		)
		if t.Due != nil {
			env = append(env, fmt.Sprintf("TASK_DUE=%s", t.Due))
		}
		if t.Recurrence != task.RecurNone {
			env = append(env, fmt.Sprintf("TASK_RECURRENCE=%s", t.Recurrence))
		}
	}
	if event.Message != "" {
		env = append(env, fmt.Sprintf("TASK_MESSAGE=%s", event.Message))
	}

	if len(event.Metadata) > 0 {
		if data, err := json.Marshal(event.Metadata); err == nil {
			env = append(env, fmt.Sprintf("TASK_METADATA=%s", string(data)))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, hookPath)
	cmd.Env = env
	output, err := cmd.CombinedOutput()
	if err != nil {
		e.logger.Error("Hook failed", "event", event.Type, "error", err, "output", strings.TrimSpace(string(output)))
		return
	}
	e.logger.Debug("Hook executed", "event", event.Type)
}

// Helper methods for common events

func (e *Emitter) EmitTaskAdded(t task.Item) {
	e.Emit(Event{Type: TaskAdded, Task: &t})
}

func (e *Emitter) EmitTaskUpdated(t task.Item, changes map[string]interface{}) {
	e.Emit(Event{Type: TaskUpdated, Task: &t, Metadata: changes})
}

func (e *Emitter) EmitTaskDeleted(t task.Item) {
	e.Emit(Event{Type: TaskDeleted, Task: &t, Message: t.Title})
}

func (e *Emitter) EmitTaskCompleted(t task.Item) {
	e.Emit(Event{Type: TaskCompleted, Task: &t})
}

func (e *Emitter) EmitTaskReopened(t task.Item) {
	e.Emit(Event{Type: TaskReopened, Task: &t})
}

func (e *Emitter) EmitTaskRecurred(next task.Item) {
	var meta map[string]interface{}
	if next.Due != nil {
		meta = map[string]interface{}{"next_due": next.Due.String()}
	}
	e.Emit(Event{Type: TaskRecurred, Task: &next, Metadata: meta})
}

func (e *Emitter) EmitTasksChanged(fingerprint string) {
	e.Emit(Event{Type: TasksChanged, Metadata: map[string]interface{}{
		"fingerprint": fingerprint,
	}})
}

// DefaultHooksDir returns the default hooks directory path.
func DefaultHooksDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "reinschrift", "hooks")
}
