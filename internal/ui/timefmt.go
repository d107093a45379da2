package ui

import (
	"fmt"
	"time"
)

// FormatAgo formats a past time relative to now, e.g. "5m ago",
// "yesterday 14:30" or "Jan 2".
func FormatAgo(t, now time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case sameDay(t, now):
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "yesterday " + t.Format("15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 2")
	}
	return t.Format("Jan 2 '06")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
