package backend

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/store/storetest"
)

func TestSwitchApply(t *testing.T) {
	opened := 0
	sw := NewSwitch(func(cfg store.BackendConfig) (store.Store, error) {
		if cfg.Path == "bad" {
			return nil, errors.New("cannot open")
		}
		opened++
		return storetest.New().WithConfig(cfg), nil
	}, log.New(io.Discard))

	if sw.Store() != nil {
		t.Fatal("store before Apply")
	}

	first, err := sw.Apply(store.LocalConfig("/tmp/a.md"))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if sw.Store() != first || sw.Config().Path != "/tmp/a.md" || sw.Generation() != 1 {
		t.Errorf("switch state after first apply: %+v gen=%d", sw.Config(), sw.Generation())
	}

	if _, err := sw.Apply(store.LocalConfig("bad")); err == nil {
		t.Fatal("expected error")
	}
	if sw.Store() != first || sw.Generation() != 1 {
		t.Error("failed apply replaced the active store")
	}

	second, err := sw.Apply(store.RemoteConfig("https://dav", "/t.md", "u", "p"))
	if err != nil {
		t.Fatalf("apply remote: %v", err)
	}
	if sw.Store() != second || second == first || sw.Config().Kind != store.KindRemote {
		t.Error("second apply did not yield a new handle")
	}
	if opened != 2 {
		t.Errorf("opened = %d", opened)
	}
}

func TestProbe(t *testing.T) {
	release := make(chan struct{})
	fail := errors.New("401")
	p := StartProbe(store.RemoteConfig("https://dav", "/t.md", "u", "p"), func(ctx context.Context, url, path, user, pass string) error {
		<-release
		if pass != "p" {
			return nil
		}
		return fail
	}, time.Second)

	if done, _ := p.Poll(); done {
		t.Fatal("probe done before test returned")
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if done, err := p.Poll(); done {
			if !errors.Is(err, fail) {
				t.Errorf("probe result = %v", err)
			}
			if done2, err2 := p.Poll(); !done2 || !errors.Is(err2, fail) {
				t.Error("Poll after completion lost the result")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("probe never finished")
}
