// Package view turns a task snapshot into the rows the list shows.
package view

import (
	"slices"
	"strings"

	"github.com/danst0/reinschrift/internal/task"
)

// State is the user's current view configuration.
type State struct {
	Sort     SortMode
	Search   string
	ShowDone bool
	DueOnly  bool
}

// Entry is one row: a group header or an item.
type Entry struct {
	Header string
	Item   *task.Item
}

// IsHeader reports whether the entry is a group header.
func (e Entry) IsHeader() bool {
	return e.Item == nil
}

// Selection is what the list looked like before a rebuild.
type Selection struct {
	Identity    task.Identity
	HasIdentity bool
	Offset      int
}

// Capture records the selected item's identity and the scroll offset.
// selected may be out of range or point at a header.
func Capture(entries []Entry, selected, offset int) Selection {
	sel := Selection{Offset: offset}
	if selected >= 0 && selected < len(entries) && !entries[selected].IsHeader() {
		sel.Identity = entries[selected].Item.Identity()
		sel.HasIdentity = true
	}
	return sel
}

// Translator looks up user-visible strings.
type Translator interface {
	T(key string) string
}

// Result is a rebuilt list.
type Result struct {
	Entries []Entry
	// Selected is the index of the re-selected item, or -1.
	Selected int
	// RestoreOffset is the scroll offset to apply on the next update
	// cycle when Restore is set. The caller clamps it.
	RestoreOffset int
	Restore       bool
}

// Items returns the item entries in display order.
func (r Result) Items() []task.Item {
	var out []task.Item
	for _, e := range r.Entries {
		if !e.IsHeader() {
			out = append(out, *e.Item)
		}
	}
	return out
}

// Reconcile rebuilds the list for items under st. The previously selected
// item is found again by identity; failing that, the previous scroll offset
// is handed back for deferred restoration. Reconcile does not modify items.
func Reconcile(items []task.Item, st State, prev Selection, today task.Date, tr Translator) Result {
	sorted := make([]task.Item, len(items))
	for i, it := range items {
		sorted[i] = it.Clone()
	}
	slices.SortStableFunc(sorted, st.Sort.Compare())

	var visible []task.Item
	for _, it := range sorted {
		if !st.ShowDone && it.Done {
			continue
		}
		if st.DueOnly && !it.DueBy(today) {
			continue
		}
		visible = append(visible, it)
	}

	var entries []Entry
	if term := strings.TrimSpace(st.Search); term != "" {
		entries = searchEntries(sorted, visible, term, tr)
	} else {
		entries = groupedEntries(visible, st.Sort, tr)
	}

	res := Result{Entries: entries, Selected: -1}
	if prev.HasIdentity {
		for i, e := range entries {
			if !e.IsHeader() && e.Item.Identity() == prev.Identity {
				res.Selected = i
				return res
			}
		}
	}
	res.RestoreOffset = prev.Offset
	res.Restore = true
	return res
}

// searchEntries builds three exclusive buckets: matches in the current
// view, other open matches, other done matches.
func searchEntries(sorted, visible []task.Item, term string, tr Translator) []Entry {
	inView := make(map[task.Key]bool)
	var current, open, done []task.Item
	for _, it := range visible {
		if it.Matches(term) {
			current = append(current, it)
			inView[it.Key] = true
		}
	}
	for _, it := range sorted {
		if inView[it.Key] || !it.Matches(term) {
			continue
		}
		if it.Done {
			done = append(done, it)
		} else {
			open = append(open, it)
		}
	}

	var entries []Entry
	for _, bucket := range []struct {
		label string
		items []task.Item
	}{
		{"search_results_current", current},
		{"search_results_open", open},
		{"search_results_done", done},
	} {
		if len(bucket.items) == 0 {
			continue
		}
		entries = append(entries, Entry{Header: tr.T(bucket.label)})
		entries = appendItems(entries, bucket.items)
	}
	return entries
}

// groupedEntries emits a header whenever the group label differs from the
// previous item's. Date mode has no headers.
func groupedEntries(items []task.Item, mode SortMode, tr Translator) []Entry {
	var entries []Entry
	prev, started := "", false
	for i := range items {
		if label, ok := GroupLabel(mode, items[i], tr); ok && (!started || label != prev) {
			entries = append(entries, Entry{Header: label})
			prev, started = label, true
		}
		entries = appendItems(entries, items[i:i+1])
	}
	return entries
}

func appendItems(entries []Entry, items []task.Item) []Entry {
	for i := range items {
		it := items[i]
		entries = append(entries, Entry{Item: &it})
	}
	return entries
}

// GroupLabel returns the header label of item under mode, or false in date
// mode.
func GroupLabel(mode SortMode, item task.Item, tr Translator) (string, bool) {
	switch mode {
	case SortProject:
		name := item.Project
		if name == "" {
			name = tr.T("no_project")
		}
		return strings.ReplaceAll(tr.T("topic_group"), "{}", name), true
	case SortContext:
		name := item.Context
		if name == "" {
			name = tr.T("no_location")
		}
		return strings.ReplaceAll(tr.T("location_group"), "{}", name), true
	}
	return "", false
}
