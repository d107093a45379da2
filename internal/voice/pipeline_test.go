package voice

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type fakeStream struct {
	format  Format
	sink    func([]float32)
	samples []float32
	mu      sync.Mutex
	closed  bool
}

func (s *fakeStream) Format() Format { return s.format }

func (s *fakeStream) Start() error {
	if len(s.samples) > 0 {
		s.sink(s.samples)
	}
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeRecorder struct {
	stream *fakeStream
	err    error
}

func (r *fakeRecorder) Open(sink func([]float32)) (Stream, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.stream.sink = sink
	return r.stream, nil
}

type fakeTranscriber struct {
	readyErr error
	segments []string
	err      error

	mu  sync.Mutex
	got []float32
}

func (f *fakeTranscriber) Ready() error { return f.readyErr }

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []float32, _ string) ([]string, error) {
	f.mu.Lock()
	f.got = pcm
	f.mu.Unlock()
	return f.segments, f.err
}

func newTestPipeline(rec Recorder, tr Transcriber) *Pipeline {
	p := NewPipeline(rec, tr, log.New(io.Discard))
	p.checkEvery = 5 * time.Millisecond
	return p
}

// drainUntilFinished collects updates until the run finishes.
func drainUntilFinished(t *testing.T, p *Pipeline) (texts []string, errs []error, finished int, sawTranscribing bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		u := p.Drain()
		texts = append(texts, u.Texts...)
		errs = append(errs, u.Errors...)
		if u.State == Transcribing {
			sawTranscribing = true
		}
		if u.Finished {
			finished++
			// Nothing may follow Finished.
			time.Sleep(20 * time.Millisecond)
			if extra := p.Drain(); extra.Finished || len(extra.Texts) > 0 {
				t.Errorf("messages after Finished: %+v", extra)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("pipeline did not finish")
	return
}

func TestEmptyRecordingFinishesWithoutText(t *testing.T) {
	rec := &fakeRecorder{stream: &fakeStream{format: Format{Channels: 2, SampleRate: 48000}}}
	tr := &fakeTranscriber{segments: []string{"should not appear"}}
	p := newTestPipeline(rec, tr)

	if err := p.Start("de"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.State() != Recording {
		t.Fatalf("state = %s", p.State())
	}
	p.Stop()

	texts, errs, finished, _ := drainUntilFinished(t, p)
	if finished != 1 || len(texts) != 0 || len(errs) != 0 {
		t.Errorf("finished=%d texts=%v errs=%v", finished, texts, errs)
	}
	if p.State() != Idle {
		t.Errorf("state after finish = %s", p.State())
	}
	if tr.got != nil {
		t.Error("transcriber called for an empty buffer")
	}
}

func TestRecordingIsTranscribedPerSegment(t *testing.T) {
	stereo := make([]float32, 48000*2) // one second at 48 kHz
	for i := range stereo {
		stereo[i] = 0.5
	}
	rec := &fakeRecorder{stream: &fakeStream{format: Format{Channels: 2, SampleRate: 48000}, samples: stereo}}
	tr := &fakeTranscriber{segments: []string{" Buy milk ", "", "and eggs"}}
	p := newTestPipeline(rec, tr)

	if err := p.Toggle("auto"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if err := p.Toggle("auto"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	texts, errs, finished, _ := drainUntilFinished(t, p)
	if len(errs) != 0 || finished != 1 {
		t.Fatalf("errs=%v finished=%d", errs, finished)
	}
	if want := []string{"Buy milk", "and eggs"}; !reflect.DeepEqual(texts, want) {
		t.Errorf("texts = %q, want %q", texts, want)
	}
	tr.mu.Lock()
	n := len(tr.got)
	tr.mu.Unlock()
	if n != TargetRate {
		t.Errorf("transcriber got %d samples, want %d", n, TargetRate)
	}
	if !rec.stream.closed {
		t.Error("capture stream not closed")
	}
}

func TestTranscriptionErrorStillFinishes(t *testing.T) {
	rec := &fakeRecorder{stream: &fakeStream{format: Format{Channels: 1, SampleRate: 16000}, samples: []float32{0.1, 0.2}}}
	tr := &fakeTranscriber{err: errors.New("model crashed")}
	p := newTestPipeline(rec, tr)

	if err := p.Start(""); err != nil {
		t.Fatal(err)
	}
	p.Stop()
	_, errs, finished, _ := drainUntilFinished(t, p)
	if len(errs) != 1 || finished != 1 {
		t.Errorf("errs=%v finished=%d", errs, finished)
	}
	if p.State() != Idle {
		t.Errorf("state = %s", p.State())
	}
}

func TestStartFailures(t *testing.T) {
	rec := &fakeRecorder{stream: &fakeStream{format: Format{Channels: 1, SampleRate: 16000}}}

	p := newTestPipeline(rec, &fakeTranscriber{readyErr: ErrModelNotFound})
	if err := p.Start("en"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
	if p.State() != Idle {
		t.Errorf("state after failed start = %s", p.State())
	}

	p = newTestPipeline(&fakeRecorder{err: errors.New("no mic")}, &fakeTranscriber{})
	if err := p.Start("en"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("expected ErrNoDevice, got %v", err)
	}

	p = newTestPipeline(rec, &fakeTranscriber{})
	if err := p.Start("en"); err != nil {
		t.Fatal(err)
	}
	if err := p.Start("en"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy for a second start, got %v", err)
	}
	p.Stop()
	drainUntilFinished(t, p)
}

func TestAppendText(t *testing.T) {
	if got := AppendText("", "a", "b"); got != "a b" {
		t.Errorf("got %q", got)
	}
	if got := AppendText("call", "mom"); got != "call mom" {
		t.Errorf("got %q", got)
	}
}
