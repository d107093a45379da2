package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCLITranscriberReady(t *testing.T) {
	dir := t.TempDir()
	c := &CLITranscriber{ModelPath: filepath.Join(dir, DefaultModelFile)}
	if err := c.Ready(); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
	if err := os.WriteFile(c.ModelPath, []byte("ggml"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.Ready(); err != nil {
		t.Errorf("Ready with model present: %v", err)
	}
}

func TestServerTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			http.Error(w, "bad auth "+got, http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.Close()
		if !strings.HasSuffix(header.Filename, ".wav") {
			http.Error(w, "not wav", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"text": "lang=" + r.FormValue("language") + " model=" + r.FormValue("model"),
		})
	}))
	defer srv.Close()

	s := &ServerTranscriber{URL: srv.URL + "/", APIKey: "k"}
	if err := s.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	segs, err := s.Transcribe(ctx, []float32{0, 0.1, 0.2}, "de")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0] != "lang=de model=whisper-1" {
		t.Errorf("segments = %q", segs)
	}

	segs, err = s.Transcribe(ctx, []float32{0}, "auto")
	if err != nil {
		t.Fatalf("transcribe auto: %v", err)
	}
	if segs[0] != "lang= model=whisper-1" {
		t.Errorf("auto language should not be sent, got %q", segs[0])
	}

	bad := &ServerTranscriber{URL: srv.URL, APIKey: "wrong"}
	if _, err := bad.Transcribe(ctx, []float32{0}, "de"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected HTTP 401 error, got %v", err)
	}
}

func TestModelDownload(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	m := NewModelManager(t.TempDir(), srv.URL)
	m.MinSize = 1024
	if m.Present() {
		t.Fatal("model present before download")
	}

	d := m.Download(context.Background())
	var last Progress
	deadline := time.Now().Add(3 * time.Second)
	for !last.Done && last.Err == nil && time.Now().Before(deadline) {
		for _, p := range d.Drain() {
			last = p
		}
		time.Sleep(5 * time.Millisecond)
	}
	if last.Err != nil || !last.Done {
		t.Fatalf("download ended with %+v", last)
	}
	if !m.Present() {
		t.Error("model not present after download")
	}
	if err := m.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if m.Present() {
		t.Error("model still present after Remove")
	}
	if err := m.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestModelDownloadRejectsTruncatedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	m := NewModelManager(t.TempDir(), srv.URL)
	m.MinSize = 1024
	d := m.Download(context.Background())

	var last Progress
	deadline := time.Now().Add(3 * time.Second)
	for !last.Done && last.Err == nil && time.Now().Before(deadline) {
		for _, p := range d.Drain() {
			last = p
		}
		time.Sleep(5 * time.Millisecond)
	}
	if last.Err == nil {
		t.Fatal("expected an error for a truncated model")
	}
	if m.Present() {
		t.Error("truncated model left in place")
	}
}
