package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/backend"
	"github.com/danst0/reinschrift/internal/db"
	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/monitor"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/store/storetest"
	"github.com/danst0/reinschrift/internal/task"
)

func TestPollerPicksUpExternalChanges(t *testing.T) {
	fake := storetest.New(task.Item{Title: "Buy milk"})
	sw := backend.NewSwitch(func(cfg store.BackendConfig) (store.Store, error) {
		return fake.WithConfig(cfg), nil
	}, quiet)
	a := app.New(app.Options{
		Switch:     sw,
		Prefs:      db.DefaultPreferences(),
		Translator: i18n.New("en"),
		Detector:   monitor.NewDetector(10*time.Millisecond, 20*time.Millisecond, quiet),
		Logger:     quiet,
	})
	cfg := store.LocalConfig(filepath.Join(t.TempDir(), "todo.md"))
	if out := a.Init(context.Background(), cfg); !out.IsZero() {
		t.Fatalf("Init = %+v", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPoller(a, quiet).Run(ctx) }()

	if err := fake.AddFull(context.Background(), task.Item{Title: "From phone"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(a.Items()) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never reloaded: %d items", len(a.Items()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
