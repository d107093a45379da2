// Package task provides the core task model and utilities.
package task

import (
	"strings"
)

// Recurrence is the repeat rule of a task.
type Recurrence string

const (
	RecurNone    Recurrence = ""
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// ParseRecurrence converts a rule name to a Recurrence.
// Unknown names yield RecurNone and false.
func ParseRecurrence(s string) (Recurrence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d":
		return RecurDaily, true
	case "weekly", "w":
		return RecurWeekly, true
	case "monthly", "m":
		return RecurMonthly, true
	case "", "none":
		return RecurNone, true
	default:
		return RecurNone, false
	}
}

// Key locates an item inside one loaded snapshot of the task file.
// A key is only meaningful against the snapshot it came from.
type Key struct {
	Line   int
	Marker string
}

// Identity is the subset of item fields used to find "the same" item
// again after a reload.
type Identity struct {
	Section string
	Title   string
	Marker  string
}

// Item is a single task line.
type Item struct {
	Key        Key
	Title      string
	Section    string
	Project    string
	Context    string
	Reference  string
	Marker     string
	Due        *Date
	Completed  *Date
	Recurrence Recurrence
	Done       bool
}

// Identity returns the item's identity.
func (i Item) Identity() Identity {
	return Identity{Section: i.Section, Title: i.Title, Marker: i.Marker}
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	c := i
	if i.Due != nil {
		d := *i.Due
		c.Due = &d
	}
	if i.Completed != nil {
		d := *i.Completed
		c.Completed = &d
	}
	return c
}

// HasDue reports whether the item carries a due date.
func (i Item) HasDue() bool {
	return i.Due != nil
}

// DueBy reports whether the item is undated or due no later than day.
func (i Item) DueBy(day Date) bool {
	return i.Due == nil || !i.Due.After(day)
}

// Overdue reports whether the item is open and due before day.
func (i Item) Overdue(day Date) bool {
	return !i.Done && i.Due != nil && i.Due.Before(day)
}

// IsRecurring reports whether the item repeats.
func (i Item) IsRecurring() bool {
	return i.Recurrence != RecurNone
}

// Matches reports whether the title contains term, ignoring case.
// An empty term matches everything.
func (i Item) Matches(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(i.Title), strings.ToLower(term))
}

// StatusIcon returns an icon for the task status.
func (i Item) StatusIcon() string {
	if i.Done {
		return "✓"
	}
	return "·"
}
