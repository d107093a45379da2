// Package server runs the headless surfaces: the SSH server using Wish,
// the event stream and the background poller.
package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	gossh "golang.org/x/crypto/ssh"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/ui"
)

// Server is the SSH server. Every session gets its own list UI over the
// shared App.
type Server struct {
	app     *app.App
	keys    ui.KeyMap
	srv     *ssh.Server
	logger  *log.Logger
	addr    string
	hostKey string
	allowed []ssh.PublicKey
}

// Config holds server configuration.
type Config struct {
	Addr        string // e.g. ":2222"
	HostKeyPath string // e.g. "~/.config/reinschrift/ssh_ed25519"
	// AuthorizedKeysPath lists the keys allowed to connect. Empty accepts
	// any key.
	AuthorizedKeysPath string
	App                *app.App
	Keys               ui.KeyMap
	Logger             *log.Logger
}

// New creates a new SSH server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{})
	}
	s := &Server{
		app:     cfg.App,
		keys:    cfg.Keys,
		addr:    cfg.Addr,
		hostKey: cfg.HostKeyPath,
		logger:  logger.WithPrefix("ssh"),
	}

	if cfg.AuthorizedKeysPath != "" {
		keys, err := LoadAuthorizedKeys(cfg.AuthorizedKeysPath)
		if err != nil {
			return nil, err
		}
		s.allowed = keys
	}

	// Ensure host key directory exists
	if err := os.MkdirAll(filepath.Dir(s.hostKey), 0700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}

	srv, err := wish.NewServer(
		wish.WithAddress(s.addr),
		wish.WithHostKeyPath(s.hostKey),
		wish.WithMiddleware(
			bubbletea.Middleware(s.teaHandler),
			activeterm.Middleware(),
			logging.Middleware(),
		),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			return s.authorize(key)
		}),
		wish.WithPasswordAuth(func(ctx ssh.Context, password string) bool {
			return false
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	s.srv = srv
	return s, nil
}

// Start starts the SSH server.
func (s *Server) Start() error {
	s.logger.Info("SSH server starting", "addr", s.addr, "restricted", len(s.allowed) > 0)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("SSH server shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) authorize(key ssh.PublicKey) bool {
	if len(s.allowed) == 0 {
		return true
	}
	for _, k := range s.allowed {
		if ssh.KeysEqual(k, key) {
			return true
		}
	}
	s.logger.Warn("rejected key", "fingerprint", gossh.FingerprintSHA256(key))
	return false
}

// teaHandler returns the Bubble Tea program for each SSH session.
func (s *Server) teaHandler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	model := ui.NewAppModel(s.app, ui.Options{
		Keys:   s.keys,
		Logger: s.logger.With("user", sess.User()),
		Remote: true,
	})

	return model, []tea.ProgramOption{
		tea.WithAltScreen(),
	}
}

// LoadAuthorizedKeys parses an OpenSSH authorized_keys file. Blank lines
// and comments are skipped.
func LoadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}

	var keys []ssh.PublicKey
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		key, _, _, _, err := gossh.ParseAuthorizedKey(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		keys = append(keys, key)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	return keys, nil
}
