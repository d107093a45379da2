// Package voice records speech and turns it into text for the compose
// field.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrModelNotFound is returned when the local recognition model is absent.
	ErrModelNotFound = errors.New("speech model not found")
	// ErrBusy is returned by Start while a run is still in progress.
	ErrBusy = errors.New("voice capture already running")
)

// State is the pipeline's position in its cycle.
type State int

const (
	Idle State = iota
	Recording
	Transcribing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	default:
		return "idle"
	}
}

// MessageKind tags worker messages.
type MessageKind int

const (
	MsgError MessageKind = iota
	MsgTranscription
	MsgTranscribing
	MsgFinished
)

// Message travels from the worker to the owning loop.
type Message struct {
	Kind MessageKind
	Text string
	Err  error
}

// Update is what one Drain call observed.
type Update struct {
	Texts    []string
	Errors   []error
	Finished bool
	State    State
}

// Pipeline runs one capture-and-transcribe cycle at a time. All methods
// except the worker are called from the owning loop.
type Pipeline struct {
	recorder    Recorder
	transcriber Transcriber
	logger      *log.Logger
	checkEvery  time.Duration
	timeout     time.Duration

	recording atomic.Bool
	state     State
	msgs      chan Message
}

// NewPipeline returns an idle pipeline.
func NewPipeline(rec Recorder, tr Transcriber, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		recorder:    rec,
		transcriber: tr,
		logger:      logger,
		checkEvery:  100 * time.Millisecond,
		timeout:     5 * time.Minute,
	}
}

// State returns the current state as last seen by the loop.
func (p *Pipeline) State() State {
	return p.state
}

// Start checks the model, opens the input device and starts a worker.
func (p *Pipeline) Start(language string) error {
	if p.state != Idle {
		return ErrBusy
	}
	if err := p.transcriber.Ready(); err != nil {
		return err
	}

	buf := &sampleBuffer{}
	stream, err := p.recorder.Open(buf.Append)
	if err != nil {
		if errors.Is(err, ErrNoDevice) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	}

	msgs := make(chan Message, 64)
	p.msgs = msgs
	p.recording.Store(true)
	p.state = Recording
	p.logger.Info("recording started", "language", language)

	go p.work(stream, buf, msgs, language)
	return nil
}

// Stop asks the worker to finish recording. Captured audio is still
// transcribed.
func (p *Pipeline) Stop() {
	p.recording.Store(false)
}

// Toggle starts a run when idle and stops recording otherwise.
func (p *Pipeline) Toggle(language string) error {
	if p.state == Recording {
		p.Stop()
		return nil
	}
	return p.Start(language)
}

// Drain consumes pending worker messages without blocking.
func (p *Pipeline) Drain() Update {
	var u Update
	for {
		select {
		case m := <-p.msgs:
			switch m.Kind {
			case MsgError:
				u.Errors = append(u.Errors, m.Err)
				p.recording.Store(false)
				p.state = Idle
			case MsgTranscription:
				u.Texts = append(u.Texts, m.Text)
			case MsgTranscribing:
				if p.state == Recording {
					p.state = Transcribing
				}
			case MsgFinished:
				u.Finished = true
				p.recording.Store(false)
				p.state = Idle
				p.msgs = nil
			}
		default:
			u.State = p.state
			return u
		}
	}
}

// work runs on its own goroutine. It sends exactly one MsgFinished.
func (p *Pipeline) work(stream Stream, buf *sampleBuffer, msgs chan<- Message, language string) {
	defer func() { msgs <- Message{Kind: MsgFinished} }()

	format := stream.Format()
	if err := stream.Start(); err != nil {
		stream.Close()
		msgs <- Message{Kind: MsgError, Err: fmt.Errorf("start capture: %w", err)}
		return
	}
	for p.recording.Load() {
		time.Sleep(p.checkEvery)
	}
	if err := stream.Close(); err != nil {
		p.logger.Warn("close capture device", "err", err)
	}

	samples := buf.Take()
	if len(samples) == 0 {
		p.logger.Info("recording stopped without audio")
		return
	}
	pcm := Resample(Downmix(samples, format.Channels), format.SampleRate, TargetRate)
	p.logger.Info("transcribing", "samples", len(pcm), "rate", format.SampleRate, "language", language)
	msgs <- Message{Kind: MsgTranscribing}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	segments, err := p.transcriber.Transcribe(ctx, pcm, language)
	if err != nil {
		msgs <- Message{Kind: MsgError, Err: fmt.Errorf("transcribe: %w", err)}
		return
	}
	for _, seg := range segments {
		if text := strings.TrimSpace(seg); text != "" {
			msgs <- Message{Kind: MsgTranscription, Text: text}
		}
	}
}

// AppendText joins transcribed text onto the compose text with spaces.
func AppendText(current string, texts ...string) string {
	for _, t := range texts {
		if current == "" {
			current = t
		} else {
			current += " " + t
		}
	}
	return current
}
