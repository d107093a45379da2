package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/backend"
	"github.com/danst0/reinschrift/internal/config"
	"github.com/danst0/reinschrift/internal/db"
	"github.com/danst0/reinschrift/internal/events"
	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/logging"
	"github.com/danst0/reinschrift/internal/monitor"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/voice"
)

// env is everything a command needs, opened from config and flags.
type env struct {
	cfg     *config.Config
	db      *db.DB
	prefs   db.Preferences
	logger  *log.Logger
	emitter *events.Emitter
	models  *voice.ModelManager
	app     *app.App
	// initial is the outcome of the first load.
	initial app.Outcome
	// fileOverride is the --file flag.
	fileOverride string

	closers []io.Closer
}

// openEnv loads config, applies the persistent flags and opens the
// preference database. Interactive sessions log to a file because the TUI
// owns the terminal.
func openEnv(cmd *cobra.Command, interactive bool) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = config.ExpandPath(p)
	}

	e := &env{cfg: cfg}
	if f, _ := cmd.Flags().GetString("file"); f != "" {
		e.fileOverride = config.ExpandPath(f)
		cfg.TaskFile = e.fileOverride
	}
	if interactive {
		logger, closer, err := logging.File(cfg.LogFile, "reinschrift", cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		e.logger = logger
		e.closers = append(e.closers, closer)
	} else {
		e.logger = logging.Stderr("reinschrift", cfg.LogLevel)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.db = database
	e.closers = append(e.closers, database)

	prefs, err := database.LoadPreferences()
	if err != nil {
		e.logger.Warn("load preferences failed, using defaults", "err", err)
	}
	e.prefs = prefs
	e.models = voice.NewModelManager(cfg.Whisper.ModelDir, cfg.Whisper.ModelURL)
	return e, nil
}

// Close releases the database and the log file.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i].Close()
	}
}

// startApp builds the App and performs the first load. withVoice enables
// dictation for local terminals.
func (e *env) startApp(cmd *cobra.Command, withVoice bool) *app.App {
	lang := e.prefs.Language
	if l, _ := cmd.Flags().GetString("lang"); l != "" {
		lang = l
	}

	prefs := e.prefs
	var prefStore app.PrefStore = e.db
	if e.fileOverride != "" {
		prefs.UseWebDAV, prefs.LocalPath = false, e.fileOverride
		prefStore = pinnedPrefs{DB: e.db, orig: e.prefs, override: e.fileOverride}
	}

	e.emitter = events.New(e.cfg.HooksDir, e.logger)
	opts := app.Options{
		Switch:     backend.NewSwitch(openStore, e.logger.WithPrefix("backend")),
		Prefs:      prefs,
		PrefStore:  prefStore,
		Translator: i18n.New(lang),
		Detector:   monitor.NewDetector(e.cfg.Poll.BaseInterval, e.cfg.Poll.MaxInterval, e.logger.WithPrefix("monitor")),
		Events:     e.emitter,
		Models:     e.models,
		TestConn:   store.TestConnection,
		Logger:     e.logger,
	}
	if withVoice {
		opts.NewVoice = e.newVoice
	}

	e.app = app.New(opts)
	e.initial = e.app.Init(cmd.Context(), e.fallback())
	return e.app
}

// requireApp is startApp for commands that cannot do anything without a
// loaded task file.
func (e *env) requireApp(cmd *cobra.Command) (*app.App, error) {
	a := e.startApp(cmd, false)
	if e.initial.Severity == app.Error {
		if errors.Is(e.initial.Err, store.ErrNotConfigured) {
			return nil, errors.New("no task file configured: pass --file, set task_file in the config, or run 'reinschrift settings set local_path <path>'")
		}
		return nil, errors.New(e.initial.Message)
	}
	return a, nil
}

// fallback is the backend used when the preferences name none.
func (e *env) fallback() store.BackendConfig {
	return store.LocalConfig(e.cfg.TaskFile)
}

func openStore(cfg store.BackendConfig) (store.Store, error) {
	return store.Open(cfg)
}

// newVoice builds the dictation pipeline: a transcription server when one
// is configured, the local whisper binary otherwise.
func (e *env) newVoice(p db.Preferences) *voice.Pipeline {
	var tr voice.Transcriber
	if p.WhisperServer != "" {
		tr = &voice.ServerTranscriber{URL: p.WhisperServer, APIKey: e.cfg.Whisper.APIKey}
	} else {
		tr = &voice.CLITranscriber{
			Binary:    e.cfg.Whisper.Binary,
			ModelPath: e.models.Path,
			Threads:   e.cfg.Whisper.Threads,
		}
	}
	return voice.NewPipeline(voice.MalgoRecorder{}, tr, e.logger.WithPrefix("voice"))
}

// pinnedPrefs keeps a --file override out of the saved preferences unless
// the user picked another backend during the session.
type pinnedPrefs struct {
	*db.DB
	orig     db.Preferences
	override string
}

func (p pinnedPrefs) SavePreferences(pr db.Preferences) error {
	if !pr.UseWebDAV && pr.LocalPath == p.override {
		pr.UseWebDAV, pr.LocalPath = p.orig.UseWebDAV, p.orig.LocalPath
	}
	return p.DB.SavePreferences(pr)
}
