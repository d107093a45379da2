package voice

import (
	"errors"
	"sync"
)

// ErrNoDevice is returned when no audio input device can be opened.
var ErrNoDevice = errors.New("no audio input device")

// Format describes captured audio.
type Format struct {
	Channels   int
	SampleRate int
}

// Stream is an opened capture device.
type Stream interface {
	Format() Format
	Start() error
	Close() error
}

// Recorder opens the default input device. sink receives interleaved
// float32 samples from the device callback goroutine.
type Recorder interface {
	Open(sink func(samples []float32)) (Stream, error)
}

// sampleBuffer collects samples from the device callback.
type sampleBuffer struct {
	mu   sync.Mutex
	data []float32
}

func (b *sampleBuffer) Append(samples []float32) {
	b.mu.Lock()
	b.data = append(b.data, samples...)
	b.mu.Unlock()
}

// Take returns everything collected so far and empties the buffer.
func (b *sampleBuffer) Take() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.data
	b.data = nil
	return out
}
