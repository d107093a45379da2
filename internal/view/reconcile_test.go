package view

import (
	"reflect"
	"testing"
	"time"

	"github.com/danst0/reinschrift/internal/task"
)

type labels map[string]string

func (l labels) T(key string) string {
	if v, ok := l[key]; ok {
		return v
	}
	return key
}

var testLabels = labels{
	"topic_group":            "Project: {}",
	"no_project":             "No project",
	"location_group":         "Context: {}",
	"no_location":            "No context",
	"search_results_current": "In view",
	"search_results_open":    "Other open",
	"search_results_done":    "Done",
}

var today = task.NewDate(2024, time.May, 10)

func day(offset int) *task.Date {
	return today.AddDays(offset).Ptr()
}

func snapshot(items ...task.Item) []task.Item {
	for i := range items {
		items[i].Key = task.Key{Line: i, Marker: items[i].Marker}
	}
	return items
}

func titles(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		if e.IsHeader() {
			out = append(out, "# "+e.Header)
		} else {
			out = append(out, e.Item.Title)
		}
	}
	return out
}

func TestReconcileIsIdempotent(t *testing.T) {
	items := snapshot(
		task.Item{Title: "b", Project: "x", Due: day(1)},
		task.Item{Title: "a", Project: "x"},
		task.Item{Title: "c", Context: "home", Done: true},
	)
	st := State{Sort: SortProject, ShowDone: true}
	sel := Selection{Identity: items[1].Identity(), HasIdentity: true}

	first := Reconcile(items, st, sel, today, testLabels)
	second := Reconcile(items, st, sel, today, testLabels)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reconcile not idempotent:\n%v\n%v", titles(first.Entries), titles(second.Entries))
	}
	if items[0].Title != "b" {
		t.Error("input slice was reordered")
	}
}

func TestReconcileGroupsByProject(t *testing.T) {
	items := snapshot(
		task.Item{Title: "Zeta"},
		task.Item{Title: "beta", Project: "Garden"},
		task.Item{Title: "Alpha", Project: "garden"},
		task.Item{Title: "gamma", Project: "work"},
	)
	res := Reconcile(items, State{Sort: SortProject}, Selection{}, today, testLabels)

	want := []string{
		"# Project: garden", "Alpha",
		"# Project: Garden", "beta",
		"# Project: work", "gamma",
		"# Project: No project", "Zeta",
	}
	if got := titles(res.Entries); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v\nwant      %v", got, want)
	}
}

func TestReconcileHeadersOnlyOnLabelChange(t *testing.T) {
	items := snapshot(
		task.Item{Title: "a", Context: "home"},
		task.Item{Title: "b", Context: "home"},
		task.Item{Title: "c"},
		task.Item{Title: "d"},
	)
	res := Reconcile(items, State{Sort: SortContext}, Selection{}, today, testLabels)
	want := []string{"# Context: home", "a", "b", "# Context: No context", "c", "d"}
	if got := titles(res.Entries); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v\nwant      %v", got, want)
	}

	res = Reconcile(items, State{Sort: SortDate}, Selection{}, today, testLabels)
	for _, e := range res.Entries {
		if e.IsHeader() {
			t.Fatalf("date mode produced header %q", e.Header)
		}
	}
}

func TestReconcileDateSortPutsUndatedLast(t *testing.T) {
	items := snapshot(
		task.Item{Title: "undated"},
		task.Item{Title: "later", Due: day(3)},
		task.Item{Title: "earlier", Due: day(-2)},
	)
	res := Reconcile(items, State{Sort: SortDate}, Selection{}, today, testLabels)
	want := []string{"earlier", "later", "undated"}
	if got := titles(res.Entries); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func TestReconcileFilters(t *testing.T) {
	items := snapshot(
		task.Item{Title: "overdue", Due: day(-1)},
		task.Item{Title: "today", Due: day(0)},
		task.Item{Title: "future", Due: day(5)},
		task.Item{Title: "undated"},
		task.Item{Title: "someday", Due: task.Someday.Ptr()},
		task.Item{Title: "finished", Due: day(-1), Done: true},
	)

	res := Reconcile(items, State{Sort: SortDate, DueOnly: true}, Selection{}, today, testLabels)
	if got, want := titles(res.Entries), []string{"overdue", "today", "undated"}; !reflect.DeepEqual(got, want) {
		t.Errorf("due-only = %v, want %v", got, want)
	}

	res = Reconcile(items, State{Sort: SortDate, ShowDone: true, DueOnly: true}, Selection{}, today, testLabels)
	if got, want := titles(res.Entries), []string{"finished", "overdue", "today", "undated"}; !reflect.DeepEqual(got, want) {
		t.Errorf("due-only with done = %v, want %v", got, want)
	}
}

func TestReconcileSearchBuckets(t *testing.T) {
	items := snapshot(
		task.Item{Title: "Call Mom", Due: day(0)},
		task.Item{Title: "Call plumber", Due: day(9)},
		task.Item{Title: "call bank", Done: true},
		task.Item{Title: "Buy milk", Due: day(0)},
		task.Item{Title: "Call dentist"},
	)
	st := State{Sort: SortDate, DueOnly: true, Search: " CALL "}
	res := Reconcile(items, st, Selection{}, today, testLabels)

	want := []string{"# In view", "Call Mom", "Call dentist", "# Other open", "Call plumber", "# Done", "call bank"}
	if got := titles(res.Entries); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v\nwant      %v", got, want)
	}

	seen := map[task.Key]int{}
	for _, e := range res.Entries {
		if !e.IsHeader() {
			seen[e.Item.Key]++
		}
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("item %v appears %d times", k, n)
		}
	}

	res = Reconcile(items, State{Search: "dentist"}, Selection{}, today, testLabels)
	if len(res.Entries) != 0 {
		t.Errorf("no matches should give no headers, got %v", titles(res.Entries))
	}
}

func TestReconcileRestoresSelectionByIdentity(t *testing.T) {
	before := snapshot(
		task.Item{Title: "a", Section: "Home", Marker: "m1"},
		task.Item{Title: "b", Section: "Home", Marker: "m2"},
	)
	st := State{Sort: SortDate}
	first := Reconcile(before, st, Selection{}, today, testLabels)
	sel := Capture(first.Entries, 1, 4)
	if !sel.HasIdentity || sel.Identity.Title != "b" {
		t.Fatalf("captured %+v", sel)
	}

	// Reload: a new task appears before "b" and line numbers shift.
	after := snapshot(
		task.Item{Title: "0 new"},
		task.Item{Title: "a", Section: "Home", Marker: "m1"},
		task.Item{Title: "b", Section: "Home", Marker: "m2"},
	)
	res := Reconcile(after, st, sel, today, testLabels)
	if res.Selected != 2 || res.Entries[res.Selected].Item.Title != "b" {
		t.Fatalf("selected = %d (%v)", res.Selected, titles(res.Entries))
	}
	if res.Restore {
		t.Error("offset restore requested although the item was found")
	}

	// The item disappears: fall back to the previous offset.
	gone := snapshot(task.Item{Title: "a", Section: "Home", Marker: "m1"})
	res = Reconcile(gone, st, sel, today, testLabels)
	if res.Selected != -1 || !res.Restore || res.RestoreOffset != 4 {
		t.Errorf("fallback = %+v", res)
	}
}

func TestCaptureIgnoresHeaders(t *testing.T) {
	entries := []Entry{{Header: "Project: x"}}
	if sel := Capture(entries, 0, 2); sel.HasIdentity || sel.Offset != 2 {
		t.Errorf("capture on header = %+v", sel)
	}
	if sel := Capture(entries, 7, 0); sel.HasIdentity {
		t.Error("capture out of range has identity")
	}
}

func TestParseSortMode(t *testing.T) {
	for _, m := range []SortMode{SortProject, SortContext, SortDate} {
		got, ok := ParseSortMode(m.String())
		if !ok || got != m {
			t.Errorf("ParseSortMode(%q) = %v, %v", m.String(), got, ok)
		}
	}
	if SortDate.Next() != SortProject {
		t.Error("Next does not wrap")
	}
}
