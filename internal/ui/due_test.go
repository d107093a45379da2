package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/danst0/reinschrift/internal/task"
)

func TestBuildDueInfoSeverity(t *testing.T) {
	today := task.NewDate(2024, time.May, 7) // a Tuesday

	if info := BuildDueInfo(nil, today, "Today", "Someday"); info.Severity != DueSeverityNone || info.Text != "" {
		t.Fatalf("expected empty info without due date, got %+v", info)
	}

	overdue := BuildDueInfo(today.AddDays(-2).Ptr(), today, "Today", "Someday")
	if overdue.Severity != DueSeverityOverdue {
		t.Fatalf("expected overdue severity, got %v", overdue.Severity)
	}
	if !strings.HasSuffix(overdue.Text, "2d") {
		t.Fatalf("expected overdue text to end with 2d, got %q", overdue.Text)
	}

	due := BuildDueInfo(today.Ptr(), today, "Today", "Someday")
	if due.Severity != DueSeverityToday || due.Text != "Today" {
		t.Fatalf("expected today, got %+v", due)
	}

	soon := BuildDueInfo(today.AddDays(3).Ptr(), today, "Today", "Someday")
	if soon.Severity != DueSeverityUpcoming || soon.Text != "Fri" {
		t.Fatalf("expected upcoming Fri, got %+v", soon)
	}

	later := BuildDueInfo(today.AddDays(30).Ptr(), today, "Today", "Someday")
	if later.Text != "2024-06-06" {
		t.Fatalf("expected full date, got %q", later.Text)
	}

	someday := task.Someday
	if info := BuildDueInfo(&someday, today, "Today", "Someday"); info.Severity != DueSeveritySomeday || info.Text != "Someday" {
		t.Fatalf("expected someday, got %+v", info)
	}
}

func TestDueSeverityColor(t *testing.T) {
	if DueSeverityColor(DueSeverityOverdue) != ColorError {
		t.Error("overdue should use the error color")
	}
	if DueSeverityColor(DueSeverityNone) != ColorMuted {
		t.Error("no due date should be muted")
	}
}
