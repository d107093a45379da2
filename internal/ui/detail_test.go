package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/task"
)

func TestDetailMarkdown(t *testing.T) {
	today := task.NewDate(2024, time.May, 7)
	item := task.Item{
		Title:      "Water plants",
		Section:    "Home",
		Project:    "garden",
		Context:    "balcony",
		Due:        today.AddDays(-1).Ptr(),
		Recurrence: task.RecurWeekly,
		Reference:  "Plants",
		Marker:     "ab12cd",
	}

	md := NewDetailModel(item, today, i18n.New("en"), 80, 24).Markdown()

	for _, want := range []string{
		"# [ ] Water plants",
		"| Section | Home |",
		"+garden",
		"@balcony",
		"2024-05-06",
		"Weekly",
		"`Plants`",
		"`ab12cd`",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestDetailMarkdownOmitsEmptyFields(t *testing.T) {
	md := NewDetailModel(task.Item{Title: "Bare", Done: true}, task.NewDate(2024, time.May, 7), i18n.New("en"), 80, 24).Markdown()

	if !strings.HasPrefix(md, "# [x] Bare") {
		t.Errorf("unexpected heading: %q", md)
	}
	if strings.Contains(md, "Due") || strings.Contains(md, "Repeats") {
		t.Errorf("empty fields should be omitted:\n%s", md)
	}
}
