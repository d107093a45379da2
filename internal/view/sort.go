package view

import (
	"strings"

	"github.com/danst0/reinschrift/internal/task"
)

// SortMode selects ordering and grouping of the list.
type SortMode int

const (
	SortProject SortMode = iota
	SortContext
	SortDate
)

// String returns the persisted key of the mode.
func (m SortMode) String() string {
	switch m {
	case SortContext:
		return "location"
	case SortDate:
		return "date"
	default:
		return "topic"
	}
}

// ParseSortMode converts a persisted key back to a mode. Unknown keys
// yield SortProject and false.
func ParseSortMode(s string) (SortMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "topic", "project":
		return SortProject, true
	case "location", "context":
		return SortContext, true
	case "date", "due":
		return SortDate, true
	}
	return SortProject, false
}

// Next cycles project -> context -> date -> project.
func (m SortMode) Next() SortMode {
	return (m + 1) % 3
}

// Compare returns the ordering function for the mode.
func (m SortMode) Compare() func(a, b task.Item) int {
	switch m {
	case SortContext:
		return CompareByContext
	case SortDate:
		return CompareByDue
	default:
		return CompareByProject
	}
}

// CompareByProject orders by project (present before absent), section,
// title, then context.
func CompareByProject(a, b task.Item) int {
	if c := compareOptional(a.Project, b.Project); c != 0 {
		return c
	}
	if c := lexical(a.Section, b.Section); c != 0 {
		return c
	}
	if c := lexical(a.Title, b.Title); c != 0 {
		return c
	}
	return compareOptional(a.Context, b.Context)
}

// CompareByContext is CompareByProject with project and context swapped.
func CompareByContext(a, b task.Item) int {
	if c := compareOptional(a.Context, b.Context); c != 0 {
		return c
	}
	if c := lexical(a.Section, b.Section); c != 0 {
		return c
	}
	if c := lexical(a.Title, b.Title); c != 0 {
		return c
	}
	return compareOptional(a.Project, b.Project)
}

// CompareByDue orders by due date with undated items last, ties broken
// by CompareByProject.
func CompareByDue(a, b task.Item) int {
	switch {
	case a.Due != nil && b.Due != nil:
		if c := a.Due.Compare(*b.Due); c != 0 {
			return c
		}
	case a.Due != nil:
		return -1
	case b.Due != nil:
		return 1
	}
	return CompareByProject(a, b)
}

// compareOptional puts present values before absent ones.
func compareOptional(a, b string) int {
	switch {
	case a != "" && b != "":
		return lexical(a, b)
	case a != "":
		return -1
	case b != "":
		return 1
	}
	return 0
}

// lexical compares ASCII case-insensitively.
func lexical(a, b string) int {
	return strings.Compare(asciiLower(a), asciiLower(b))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
