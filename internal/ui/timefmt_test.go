package ui

import (
	"testing"
	"time"
)

func TestFormatAgo(t *testing.T) {
	now := time.Date(2024, time.May, 7, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-20 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{time.Date(2024, time.May, 6, 14, 30, 0, 0, time.UTC), "yesterday 14:30"},
		{time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC), "Jan 2"},
		{time.Date(2023, time.December, 24, 9, 0, 0, 0, time.UTC), "Dec 24 '23"},
	}
	for _, tt := range tests {
		if got := FormatAgo(tt.at, now); got != tt.want {
			t.Errorf("FormatAgo(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}
