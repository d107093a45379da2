package voice

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-audio/wav"
)

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1, 0.9}, 2)
	want := []float32{0.5, 0.5, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Downmix = %v, want %v", got, want)
	}
	mono := []float32{0.1, 0.2}
	if got := Downmix(mono, 1); !reflect.DeepEqual(got, mono) {
		t.Errorf("mono input changed: %v", got)
	}
}

func TestResampleNearestSample(t *testing.T) {
	in := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}
	if got, want := Resample(in, 48000, 16000), []float32{0, 3, 6}; !reflect.DeepEqual(got, want) {
		t.Errorf("48k->16k = %v, want %v", got, want)
	}
	if got := Resample(in, 16000, 16000); !reflect.DeepEqual(got, in) {
		t.Errorf("same rate changed samples: %v", got)
	}
	up := Resample([]float32{1, 2}, 8000, 16000)
	if want := []float32{1, 1, 2, 2}; !reflect.DeepEqual(up, want) {
		t.Errorf("8k->16k = %v, want %v", up, want)
	}
}

func TestEncodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	pcm := []float32{0, 0.5, -0.5, 2}
	if err := EncodeWAV(f, pcm, TargetRate); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != TargetRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("header = %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(pcm))
	}
	if buf.Data[3] != 32767 {
		t.Errorf("clipped sample = %d, want 32767", buf.Data[3])
	}
}
