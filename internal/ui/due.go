package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/danst0/reinschrift/internal/task"
)

// DueSeverity represents the urgency of a due date.
type DueSeverity int

const (
	// DueSeverityNone indicates no due date.
	DueSeverityNone DueSeverity = iota
	// DueSeveritySomeday indicates the far-future placeholder date.
	DueSeveritySomeday
	// DueSeverityUpcoming indicates a due date after today.
	DueSeverityUpcoming
	// DueSeverityToday indicates the task is due today.
	DueSeverityToday
	// DueSeverityOverdue indicates the due date has already passed.
	DueSeverityOverdue
)

// DueInfo describes how to render a due date indicator.
type DueInfo struct {
	Text     string
	Severity DueSeverity
}

// BuildDueInfo returns display metadata for a due date relative to today.
// todayLabel and somedayLabel are the translated words.
func BuildDueInfo(due *task.Date, today task.Date, todayLabel, somedayLabel string) DueInfo {
	if due == nil {
		return DueInfo{}
	}
	if *due == task.Someday {
		return DueInfo{Text: somedayLabel, Severity: DueSeveritySomeday}
	}

	days := daysBetween(today, *due)
	switch {
	case days < 0:
		return DueInfo{Text: fmt.Sprintf("%s %dd", IconOverdue(), -days), Severity: DueSeverityOverdue}
	case days == 0:
		return DueInfo{Text: todayLabel, Severity: DueSeverityToday}
	case days <= 6:
		return DueInfo{Text: due.Time().Format("Mon"), Severity: DueSeverityUpcoming}
	default:
		return DueInfo{Text: due.String(), Severity: DueSeverityUpcoming}
	}
}

func daysBetween(from, to task.Date) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}

// DueSeverityColor maps a severity to a lipgloss color for display.
func DueSeverityColor(severity DueSeverity) lipgloss.Color {
	switch severity {
	case DueSeverityOverdue:
		return ColorError
	case DueSeverityToday:
		return ColorWarning
	case DueSeverityUpcoming:
		return ColorPrimary
	default:
		return ColorMuted
	}
}
