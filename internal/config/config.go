// Package config provides startup configuration and keybinding overrides.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds settings read at startup. User preferences that change
// at runtime live in the database instead.
type Config struct {
	DataDir       string        `mapstructure:"data_dir"`
	DBPath        string        `mapstructure:"db_path"`
	TaskFile      string        `mapstructure:"task_file"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	HooksDir      string        `mapstructure:"hooks_dir"`

	Poll    PollConfig    `mapstructure:"poll"`
	Whisper WhisperConfig `mapstructure:"whisper"`
	SSH     SSHConfig     `mapstructure:"ssh"`
	Web     WebConfig     `mapstructure:"web"`
}

// PollConfig bounds the change detector's adaptive interval.
type PollConfig struct {
	BaseInterval time.Duration `mapstructure:"base_interval"`
	MaxInterval  time.Duration `mapstructure:"max_interval"`
}

// WhisperConfig configures local transcription.
type WhisperConfig struct {
	Binary   string `mapstructure:"binary"`
	ModelURL string `mapstructure:"model_url"`
	ModelDir string `mapstructure:"model_dir"`
	Threads  int    `mapstructure:"threads"`
	APIKey   string `mapstructure:"api_key"`
}

// SSHConfig configures `serve --ssh`.
type SSHConfig struct {
	Addr           string `mapstructure:"addr"`
	HostKey        string `mapstructure:"host_key"`
	AuthorizedKeys string `mapstructure:"authorized_keys"`
}

// WebConfig configures `serve --web`.
type WebConfig struct {
	Addr       string `mapstructure:"addr"`
	EventsAddr string `mapstructure:"events_addr"`
	DevOrigin  string `mapstructure:"dev_origin"`
}

// Dir returns the configuration directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "reinschrift")
}

// DefaultDataDir returns where the database, logs and models live.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "reinschrift")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("db_path", "")
	v.SetDefault("task_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("drain_interval", 100*time.Millisecond)
	v.SetDefault("hooks_dir", filepath.Join(Dir(), "hooks"))
	v.SetDefault("poll.base_interval", 10*time.Second)
	v.SetDefault("poll.max_interval", 300*time.Second)
	v.SetDefault("whisper.binary", "whisper-cli")
	v.SetDefault("whisper.model_url", "")
	v.SetDefault("whisper.model_dir", "")
	v.SetDefault("whisper.threads", 4)
	v.SetDefault("whisper.api_key", "")
	v.SetDefault("ssh.addr", ":2323")
	v.SetDefault("ssh.host_key", "")
	v.SetDefault("ssh.authorized_keys", "")
	v.SetDefault("web.addr", ":8080")
	v.SetDefault("web.events_addr", ":8081")
	v.SetDefault("web.dev_origin", "")
}

// Load reads the config file at path, or config.yaml in Dir() when path
// is empty, then applies REINSCHRIFT_* environment overrides. A missing
// default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REINSCHRIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DataDir = ExpandPath(cfg.DataDir)
	cfg.TaskFile = ExpandPath(cfg.TaskFile)
	cfg.HooksDir = ExpandPath(cfg.HooksDir)
	cfg.SSH.HostKey = ExpandPath(cfg.SSH.HostKey)
	cfg.SSH.AuthorizedKeys = ExpandPath(cfg.SSH.AuthorizedKeys)
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "reinschrift.db")
	}
	cfg.DBPath = ExpandPath(cfg.DBPath)
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "reinschrift.log")
	}
	cfg.LogFile = ExpandPath(cfg.LogFile)
	if cfg.Whisper.ModelDir == "" {
		cfg.Whisper.ModelDir = filepath.Join(cfg.DataDir, "models")
	}
	cfg.Whisper.ModelDir = ExpandPath(cfg.Whisper.ModelDir)
	if cfg.SSH.HostKey == "" {
		cfg.SSH.HostKey = filepath.Join(cfg.DataDir, "ssh_host_ed25519")
	}
	if cfg.Poll.MaxInterval < cfg.Poll.BaseInterval {
		cfg.Poll.MaxInterval = cfg.Poll.BaseInterval
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 100 * time.Millisecond
	}
	return &cfg, nil
}

// ExpandPath replaces a leading ~ with the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
