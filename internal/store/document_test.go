package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danst0/reinschrift/internal/task"
)

func fixedClock() time.Time {
	return time.Date(2024, time.May, 7, 9, 30, 0, 0, time.Local)
}

func openLocal(t *testing.T, content string) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todo.md")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	st, err := Open(LocalConfig(path), WithClock(fixedClock), WithMarkerFunc(func() string { return "new1" }))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st, path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestOpenRejectsIncompleteConfig(t *testing.T) {
	if _, err := Open(LocalConfig("")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for empty path, got %v", err)
	}
	if _, err := Open(RemoteConfig("https://dav.example", "", "u", "p")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for empty remote path, got %v", err)
	}
}

func TestLoadMissingFileIsUnavailable(t *testing.T) {
	st, _ := openLocal(t, "")
	_, err := st.Load(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the cause to be kept, got %v", err)
	}
}

func TestAddInsertsBeforeDivider(t *testing.T) {
	st, path := openLocal(t, "- [ ] First\n---\n- [ ] Archived\n")
	if err := st.Add(context.Background(), "  Second  "); err != nil {
		t.Fatalf("add: %v", err)
	}
	want := "- [ ] First\n- [ ] Second due:2024-05-07\n---\n- [ ] Archived\n"
	if got := readFile(t, path); got != want {
		t.Errorf("file = %q\nwant   %q", got, want)
	}
	if err := st.Add(context.Background(), "   "); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestAddCreatesMissingFile(t *testing.T) {
	st, path := openLocal(t, "")
	if err := st.Add(context.Background(), "Hello"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := readFile(t, path); got != "- [ ] Hello due:2024-05-07\n" {
		t.Errorf("file = %q", got)
	}
}

func TestAddFullAppendsToSection(t *testing.T) {
	st, path := openLocal(t, sampleFile)
	due := task.NewDate(2024, time.May, 8)
	err := st.AddFull(context.Background(), task.Item{Title: "Water plants", Section: "Home", Project: "garden", Due: &due})
	if err != nil {
		t.Fatalf("add full: %v", err)
	}
	lines := splitLines(readFile(t, path))
	if got := lines[6]; got != "- [ ] Water plants +garden due:2024-05-08 ^new1" {
		t.Errorf("inserted line = %q", got)
	}
}

func TestToggleByMarkerSurvivesShiftedLines(t *testing.T) {
	st, path := openLocal(t, sampleFile)
	items, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	water := items[0]

	// Someone inserts a line above the task after our snapshot was taken.
	if err := os.WriteFile(path, []byte("- [ ] Inserted elsewhere\n"+sampleFile), 0644); err != nil {
		t.Fatal(err)
	}
	if err := st.Toggle(context.Background(), water.Key, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	lines := splitLines(readFile(t, path))
	if got := lines[4]; got != "- [x] Water plants +garden @home due:2024-05-01 ✅ 2024-05-07 ^a1b2c3" {
		t.Errorf("toggled line = %q", got)
	}
}

func TestToggleStaleLineIsNotFound(t *testing.T) {
	st, _ := openLocal(t, sampleFile)
	err := st.Toggle(context.Background(), task.Key{Line: 6}, true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for non-task line, got %v", err)
	}
}

func TestUpdateKeepsIndentAndStampsCompletion(t *testing.T) {
	st, path := openLocal(t, sampleFile)
	items, _ := st.Load(context.Background())
	nested := items[2]
	nested.Done = true
	nested.Completed = nil
	nested.Title = "Nested, renamed"
	if err := st.Update(context.Background(), nested); err != nil {
		t.Fatalf("update: %v", err)
	}
	lines := splitLines(readFile(t, path))
	if got := lines[5]; got != "  - [x] Nested, renamed ✅ 2024-05-07" {
		t.Errorf("updated line = %q", got)
	}
}

func TestDeleteRemovesLine(t *testing.T) {
	st, path := openLocal(t, sampleFile)
	items, _ := st.Load(context.Background())
	if err := st.Delete(context.Background(), items[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if strings.Contains(readFile(t, path), "Pay rent") {
		t.Error("deleted task still present")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	st, path := openLocal(t, sampleFile)
	ctx := context.Background()

	a, err := st.Fingerprint(ctx)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	b, _ := st.Fingerprint(ctx)
	if a != b {
		t.Error("identical bytes must give identical fingerprints")
	}

	if err := os.WriteFile(path, []byte(sampleFile+" "), 0644); err != nil {
		t.Fatal(err)
	}
	c, _ := st.Fingerprint(ctx)
	if a == c {
		t.Error("different bytes must give different fingerprints")
	}

	if FingerprintOf([]byte(sampleFile)) != a {
		t.Error("store fingerprint differs from FingerprintOf on the same bytes")
	}
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		due  string
		rule task.Recurrence
		want string
	}{
		{"2024-01-01", task.RecurDaily, "2024-01-02"},
		{"2024-01-01", task.RecurWeekly, "2024-01-08"},
		{"2024-01-31", task.RecurMonthly, "2024-02-29"},
		{"2023-01-31", task.RecurMonthly, "2023-02-28"},
		{"2024-12-15", task.RecurMonthly, "2025-01-15"},
	}
	for _, tt := range tests {
		due, _ := task.ParseDate(tt.due)
		got, err := NextDueDate(due, tt.rule)
		if err != nil {
			t.Errorf("NextDueDate(%s, %s): %v", tt.due, tt.rule, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("NextDueDate(%s, %s) = %s, want %s", tt.due, tt.rule, got, tt.want)
		}
	}

	if _, err := NextDueDate(task.NewDate(2024, 1, 1), task.RecurNone); err == nil {
		t.Error("expected error for non-recurring rule")
	}
}
