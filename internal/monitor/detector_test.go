package monitor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/store"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestDetectorFirstPollReportsChange(t *testing.T) {
	d := NewDetector(0, 0, quietLogger())
	if d.Interval() != BaseInterval {
		t.Fatalf("initial interval = %v, want %v", d.Interval(), BaseInterval)
	}
	if !d.Observe("abc", nil) {
		t.Error("first successful poll without a remembered fingerprint should report a change")
	}
	d.Remember("abc")
	if d.Observe("abc", nil) {
		t.Error("unchanged fingerprint should not report a change")
	}
	if !d.Observe("def", nil) {
		t.Error("new fingerprint should report a change")
	}
}

func TestDetectorBackoff(t *testing.T) {
	d := NewDetector(0, 0, quietLogger())
	d.Remember("abc")
	fail := errors.New("network down")

	want := []time.Duration{20 * time.Second, 40 * time.Second, 80 * time.Second, 160 * time.Second, 300 * time.Second, 300 * time.Second}
	prev := d.Interval()
	for i, w := range want {
		if d.Observe("", fail) {
			t.Fatalf("failure %d requested a reload", i)
		}
		got := d.Interval()
		if got != w {
			t.Errorf("after failure %d interval = %v, want %v", i+1, got, w)
		}
		if got < prev {
			t.Errorf("interval decreased on failure: %v -> %v", prev, got)
		}
		if got > MaxInterval {
			t.Errorf("interval %v exceeds cap", got)
		}
		prev = got
	}

	if d.Observe("abc", nil) {
		t.Error("success with the same fingerprint should not reload")
	}
	if d.Interval() != BaseInterval {
		t.Errorf("interval after success = %v, want %v", d.Interval(), BaseInterval)
	}
}

func TestDetectorForget(t *testing.T) {
	d := NewDetector(time.Second, 4*time.Second, quietLogger())
	d.Remember("abc")
	d.Observe("", errors.New("x"))
	d.Forget()
	if _, ok := d.Last(); ok {
		t.Error("fingerprint still remembered after Forget")
	}
	if d.Interval() != time.Second {
		t.Errorf("interval after Forget = %v", d.Interval())
	}
	if !d.Observe("abc", nil) {
		t.Error("poll after Forget should report a change")
	}
}

func TestDetectorPoll(t *testing.T) {
	d := NewDetector(0, 0, quietLogger())
	d.Remember("v1")

	changed, err := d.Poll(context.Background(), func(context.Context) (store.Fingerprint, error) {
		return "v2", nil
	})
	if err != nil || !changed {
		t.Errorf("Poll = %v, %v; want true, nil", changed, err)
	}

	boom := errors.New("boom")
	changed, err = d.Poll(context.Background(), func(context.Context) (store.Fingerprint, error) {
		return "", boom
	})
	if changed || !errors.Is(err, boom) {
		t.Errorf("Poll = %v, %v; want false, boom", changed, err)
	}
}
