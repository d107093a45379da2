package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.BaseInterval != 10*time.Second || cfg.Poll.MaxInterval != 300*time.Second {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.DrainInterval != 100*time.Millisecond {
		t.Errorf("drain interval = %v", cfg.DrainInterval)
	}
	if filepath.Base(cfg.DBPath) != "reinschrift.db" || filepath.Dir(cfg.DBPath) != cfg.DataDir {
		t.Errorf("db path = %q (data dir %q)", cfg.DBPath, cfg.DataDir)
	}
	if cfg.Whisper.Binary != "whisper-cli" {
		t.Errorf("whisper binary = %q", cfg.Whisper.Binary)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
task_file: /tmp/todo.md
log_level: debug
poll:
  base_interval: 5s
  max_interval: 1m
ssh:
  addr: ":2222"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REINSCHRIFT_WEB_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TaskFile != "/tmp/todo.md" || cfg.LogLevel != "debug" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Poll.BaseInterval != 5*time.Second || cfg.Poll.MaxInterval != time.Minute {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.SSH.Addr != ":2222" {
		t.Errorf("ssh addr = %q", cfg.SSH.Addr)
	}
	if cfg.Web.Addr != "127.0.0.1:9999" {
		t.Errorf("env override not applied: %q", cfg.Web.Addr)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}
