//go:build !cgo

package voice

import "errors"

// MalgoRecorder needs cgo; without it every Open fails.
type MalgoRecorder struct{}

func (MalgoRecorder) Open(func([]float32)) (Stream, error) {
	return nil, errors.Join(ErrNoDevice, errors.New("built without cgo"))
}
