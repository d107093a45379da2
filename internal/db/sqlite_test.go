package db

import (
	"path/filepath"
	"testing"

	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/view"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetSetting("missing")
	if err != nil || v != "" {
		t.Fatalf("missing setting = %q, %v", v, err)
	}
	if err := db.SetSetting("k", "one"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting("k", "two"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetSetting("k"); v != "two" {
		t.Errorf("expected overwrite, got %q", v)
	}
	all, err := db.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all["k"] != "two" {
		t.Errorf("all settings = %v", all)
	}
}

func TestPreferencesDefaults(t *testing.T) {
	db := openTestDB(t)

	p, err := db.LoadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if p.Sort != view.SortProject || p.ShowDone || p.DueOnly || p.WhisperLanguage != "auto" {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if _, ok := p.Backend(); ok {
		t.Error("fresh install should have no usable backend")
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	db := openTestDB(t)

	want := DefaultPreferences()
	want.Sort = view.SortDate
	want.DueOnly = true
	want.UseWebDAV = true
	want.WebDAVURL = "https://dav.example.com"
	want.WebDAVPath = "/Todo.md"
	want.WebDAVUsername = "me"
	want.WebDAVPassword = "secret"
	want.WhisperLanguage = "de"
	want.Language = "de"
	if err := db.SavePreferences(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.LoadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	cfg, ok := got.Backend()
	if !ok || cfg.Kind != store.KindRemote || cfg.RemotePath != "/Todo.md" {
		t.Errorf("backend = %+v ok=%v", cfg, ok)
	}
	st := got.View()
	if st.Sort != view.SortDate || !st.DueOnly || st.ShowDone {
		t.Errorf("view state = %+v", st)
	}
}

func TestCompletions(t *testing.T) {
	db := openTestDB(t)

	for _, title := range []string{"first", "second"} {
		if err := db.RecordCompletion(Completion{Title: title, Project: "home"}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := db.RecentCompletions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Title != "second" || list[1].Project != "home" {
		t.Fatalf("completions = %+v", list)
	}
	if list[0].CompletedAt.IsZero() {
		t.Error("completed_at not parsed")
	}
	if list, _ := db.RecentCompletions(1); len(list) != 1 {
		t.Errorf("limit ignored: %d", len(list))
	}
}
