//go:build cgo

package voice

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// MalgoRecorder captures from the system default input through miniaudio.
type MalgoRecorder struct{}

// Open initializes the default capture device with float32 samples at the
// device's native rate and channel count.
func (MalgoRecorder) Open(sink func(samples []float32)) (Stream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 0
	cfg.SampleRate = 0

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			sink(decodeF32(input))
		},
	}
	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	return &malgoStream{ctx: mctx, dev: dev}, nil
}

type malgoStream struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func (s *malgoStream) Format() Format {
	return Format{Channels: int(s.dev.CaptureChannels()), SampleRate: int(s.dev.SampleRate())}
}

func (s *malgoStream) Start() error {
	return s.dev.Start()
}

func (s *malgoStream) Close() error {
	s.dev.Uninit()
	err := s.ctx.Uninit()
	s.ctx.Free()
	return err
}

func decodeF32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
