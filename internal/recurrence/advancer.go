// Package recurrence completes tasks and schedules the next occurrence of
// repeating ones.
package recurrence

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/task"
)

// Writer is the part of store.Store the advancer needs.
type Writer interface {
	Toggle(ctx context.Context, key task.Key, done bool) error
	Update(ctx context.Context, item task.Item) error
	AddFull(ctx context.Context, item task.Item) error
}

// Result describes what a completion wrote.
type Result struct {
	// Completed is the item as written back.
	Completed task.Item
	// Next is the inserted follow-up, nil when none was created.
	Next *task.Item
	// RecurErr is set when the follow-up could not be inserted. The
	// completion itself still stands.
	RecurErr error
	// Unchanged is set when the item already had the requested state.
	Unchanged bool
}

// Advancer applies done/undone transitions.
type Advancer struct {
	logger *log.Logger
}

// New returns an advancer logging to logger.
func New(logger *log.Logger) *Advancer {
	if logger == nil {
		logger = log.Default()
	}
	return &Advancer{logger: logger}
}

// Set marks item done or open. Reopening is a plain toggle, and so is
// setting an item to the state it is already in: a done repeating task
// never schedules a second follow-up.
func (a *Advancer) Set(ctx context.Context, w Writer, item task.Item, done bool, today task.Date) (Result, error) {
	if item.Done == done {
		if err := w.Toggle(ctx, item.Key, done); err != nil {
			return Result{}, err
		}
		return Result{Completed: item.Clone(), Unchanged: true}, nil
	}
	if done {
		return a.Complete(ctx, w, item, today)
	}
	if err := w.Toggle(ctx, item.Key, false); err != nil {
		return Result{}, err
	}
	reopened := item.Clone()
	reopened.Done = false
	reopened.Completed = nil
	return Result{Completed: reopened}, nil
}

// Complete marks item done. An overdue repeating task is closed as done
// today; a repeating task then gets a fresh open copy at the next
// occurrence after its original due date (or after today when undated).
func (a *Advancer) Complete(ctx context.Context, w Writer, item task.Item, today task.Date) (Result, error) {
	completed := item.Clone()
	completed.Done = true
	completed.Completed = today.Ptr()

	if item.IsRecurring() && item.Overdue(today) {
		completed.Due = today.Ptr()
		if err := w.Update(ctx, completed); err != nil {
			return Result{}, err
		}
	} else if err := w.Toggle(ctx, item.Key, true); err != nil {
		return Result{}, err
	}

	res := Result{Completed: completed}
	if !item.IsRecurring() {
		return res, nil
	}

	base := today
	if item.Due != nil {
		base = *item.Due
	}
	nextDue, err := store.NextDueDate(base, item.Recurrence)
	if err != nil {
		res.RecurErr = err
		a.logger.Error("compute next occurrence", "title", item.Title, "err", err)
		return res, nil
	}

	next := item.Clone()
	next.Key = task.Key{}
	next.Marker = ""
	next.Done = false
	next.Completed = nil
	next.Due = nextDue.Ptr()
	if err := w.AddFull(ctx, next); err != nil {
		res.RecurErr = fmt.Errorf("add next occurrence of %q: %w", item.Title, err)
		a.logger.Error("add recurring task", "title", item.Title, "err", err)
		return res, nil
	}
	res.Next = &next
	a.logger.Info("scheduled next occurrence", "title", item.Title, "due", nextDue)
	return res, nil
}
