package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Transcriber turns 16 kHz mono samples into text segments.
type Transcriber interface {
	// Ready reports whether Transcribe can run, e.g. ErrModelNotFound.
	Ready() error
	Transcribe(ctx context.Context, pcm []float32, language string) ([]string, error)
}

// CLITranscriber runs a whisper.cpp binary against a local ggml model.
type CLITranscriber struct {
	Binary    string
	ModelPath string
	Threads   int
}

// Ready checks that the model file exists.
func (c *CLITranscriber) Ready() error {
	if _, err := os.Stat(c.ModelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", c.ModelPath, ErrModelNotFound)
		}
		return fmt.Errorf("stat model: %w", err)
	}
	return nil
}

// Transcribe writes a temporary WAV file and reads segments from the
// binary's stdout, one per line.
func (c *CLITranscriber) Transcribe(ctx context.Context, pcm []float32, language string) ([]string, error) {
	wavPath, err := writeTempWAV(pcm, TargetRate)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	threads := c.Threads
	if threads <= 0 {
		threads = 4
	}
	if language == "" {
		language = "auto"
	}
	binary := c.Binary
	if binary == "" {
		binary = "whisper-cli"
	}
	args := []string{
		"-m", c.ModelPath,
		"-f", wavPath,
		"-l", language,
		"-t", strconv.Itoa(threads),
		"-nt",
		"-np",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[len(msg)-200:]
		}
		return nil, fmt.Errorf("%s: %w: %s", binary, err, msg)
	}

	var segments []string
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			segments = append(segments, line)
		}
	}
	return segments, sc.Err()
}

// ServerTranscriber posts audio to an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
type ServerTranscriber struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

// Ready always succeeds; the server holds the model.
func (s *ServerTranscriber) Ready() error {
	if s.URL == "" {
		return errors.New("transcription server URL not set")
	}
	return nil
}

// Transcribe uploads the audio as WAV and returns the server's text as a
// single segment.
func (s *ServerTranscriber) Transcribe(ctx context.Context, pcm []float32, language string) ([]string, error) {
	wavPath, err := writeTempWAV(pcm, TargetRate)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "speech.wav")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, err
	}
	model := s.Model
	if model == "" {
		model = "whisper-1"
	}
	_ = mw.WriteField("model", model)
	_ = mw.WriteField("response_format", "json")
	if language != "" && language != "auto" {
		_ = mw.WriteField("language", language)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.URL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription server: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transcription: %w", err)
	}
	return []string{out.Text}, nil
}
