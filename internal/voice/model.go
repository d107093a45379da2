package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const (
	// DefaultModelURL is the ggml "small" whisper model.
	DefaultModelURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin"
	// DefaultModelFile is the model's file name inside the data directory.
	DefaultModelFile = "ggml-small.bin"
	// MinModelSize rejects truncated downloads.
	MinModelSize = 450 << 20
)

// Progress reports one step of a model download.
type Progress struct {
	Fraction float64
	Done     bool
	Err      error
}

// ModelManager keeps the local recognition model on disk.
type ModelManager struct {
	Path    string
	URL     string
	MinSize int64
	Client  *http.Client
}

// NewModelManager returns a manager for the default model in dir.
func NewModelManager(dir, url string) *ModelManager {
	if url == "" {
		url = DefaultModelURL
	}
	return &ModelManager{
		Path:    filepath.Join(dir, DefaultModelFile),
		URL:     url,
		MinSize: MinModelSize,
		Client:  http.DefaultClient,
	}
}

// Present reports whether a complete model file exists.
func (m *ModelManager) Present() bool {
	info, err := os.Stat(m.Path)
	return err == nil && info.Size() > m.MinSize
}

// Remove deletes the model file. A missing file is not an error.
func (m *ModelManager) Remove() error {
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove model: %w", err)
	}
	return nil
}

// Download fetches the model on a goroutine. A truncated file left by an
// earlier attempt is removed first.
func (m *ModelManager) Download(ctx context.Context) *Download {
	d := &Download{ch: make(chan Progress, 256)}
	go func() {
		err := m.fetch(ctx, d)
		if err != nil {
			d.ch <- Progress{Err: err}
		} else {
			d.ch <- Progress{Fraction: 1, Done: true}
		}
		close(d.ch)
	}()
	return d
}

func (m *ModelManager) fetch(ctx context.Context, d *Download) error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	_ = os.Remove(m.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return err
	}
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: HTTP %d", resp.StatusCode)
	}

	part := m.Path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer os.Remove(part)

	pw := &progressWriter{total: resp.ContentLength, report: d.report}
	if _, err := io.Copy(io.MultiWriter(f, pw), resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download model: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if pw.written <= m.MinSize {
		return fmt.Errorf("download model: only %d bytes received", pw.written)
	}
	return os.Rename(part, m.Path)
}

// Download is an in-flight model download.
type Download struct {
	ch chan Progress
}

// report sends a progress step without blocking the transfer.
func (d *Download) report(fraction float64) {
	select {
	case d.ch <- Progress{Fraction: fraction}:
	default:
	}
}

// Drain returns the progress steps that arrived since the last call. The
// last step has Done or Err set.
func (d *Download) Drain() []Progress {
	var out []Progress
	for {
		select {
		case p, ok := <-d.ch:
			if !ok {
				return out
			}
			out = append(out, p)
		default:
			return out
		}
	}
}

type progressWriter struct {
	total    int64
	written  int64
	reported float64
	report   func(float64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		frac := float64(w.written) / float64(w.total)
		if frac-w.reported >= 0.005 || frac >= 1 {
			w.reported = frac
			w.report(frac)
		}
	}
	return len(p), nil
}
