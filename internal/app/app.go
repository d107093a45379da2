// Package app turns user commands into store writes and keeps the task
// snapshot every surface renders from.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/backend"
	"github.com/danst0/reinschrift/internal/db"
	"github.com/danst0/reinschrift/internal/events"
	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/monitor"
	"github.com/danst0/reinschrift/internal/recurrence"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/task"
	"github.com/danst0/reinschrift/internal/view"
	"github.com/danst0/reinschrift/internal/voice"
)

// PrefStore persists preferences and the completion log.
type PrefStore interface {
	SavePreferences(p db.Preferences) error
	RecordCompletion(c db.Completion) error
}

// VoiceFactory builds a dictation pipeline for the given preferences.
type VoiceFactory func(p db.Preferences) *voice.Pipeline

// Options configures an App. Switch and Translator are required.
type Options struct {
	Switch     *backend.Switch
	Prefs      db.Preferences
	PrefStore  PrefStore
	Translator *i18n.Translator
	Detector   *monitor.Detector
	Events     *events.Emitter
	Models     *voice.ModelManager
	NewVoice   VoiceFactory
	TestConn   backend.TestFunc
	Now        func() time.Time
	Logger     *log.Logger
	// ProbeTimeout bounds TestConnection. Zero means 15s.
	ProbeTimeout time.Duration
}

// App owns the task snapshot and the view state. Commands that touch the
// store are serialized; reads of the snapshot never wait for store I/O.
type App struct {
	sw        *backend.Switch
	prefStore PrefStore
	tr        *i18n.Translator
	adv       *recurrence.Advancer
	events    *events.Emitter
	models    *voice.ModelManager
	newVoice  VoiceFactory
	testConn  backend.TestFunc
	now       func() time.Time
	logger    *log.Logger
	probeWait time.Duration

	// cmdMu serializes store I/O and guards det.
	cmdMu sync.Mutex
	det   *monitor.Detector

	mu         sync.Mutex
	prefs      db.Preferences
	view       view.State
	items      []task.Item
	loaded     bool
	loadErr    error
	revision   int
	voice      *voice.Pipeline
	voiceStale bool
	download   *voice.Download
	progress   float64
	probe      *backend.Probe
}

// New returns an App. Call Init to open the configured backend.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	det := opts.Detector
	if det == nil {
		det = monitor.NewDetector(0, 0, logger.WithPrefix("monitor"))
	}
	wait := opts.ProbeTimeout
	if wait <= 0 {
		wait = 15 * time.Second
	}
	tr := opts.Translator
	if tr == nil {
		tr = i18n.New(opts.Prefs.Language)
	}
	return &App{
		sw:        opts.Switch,
		prefStore: opts.PrefStore,
		tr:        tr,
		adv:       recurrence.New(logger.WithPrefix("recurrence")),
		events:    opts.Events,
		models:    opts.Models,
		newVoice:  opts.NewVoice,
		testConn:  opts.TestConn,
		now:       now,
		logger:    logger,
		probeWait: wait,
		det:       det,
		prefs:     opts.Prefs,
		view:      opts.Prefs.View(),
		loadErr:   store.ErrNotConfigured,
	}
}

// Translator returns the translator used for all messages.
func (a *App) Translator() *i18n.Translator {
	return a.tr
}

// Today returns the current local date.
func (a *App) Today() task.Date {
	return task.DateOf(a.now())
}

// Init opens the backend from the preferences, or fallback when the
// preferences name none, and performs the first load.
func (a *App) Init(ctx context.Context, fallback store.BackendConfig) Outcome {
	a.mu.Lock()
	cfg, ok := a.prefs.Backend()
	a.mu.Unlock()
	if !ok {
		if fallback.Validate() != nil {
			return Outcome{Severity: Error, Message: a.tr.T("no_database_configured"), Err: store.ErrNotConfigured}
		}
		cfg = fallback
	}

	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	if _, err := a.sw.Apply(cfg); err != nil {
		return a.fail("load_error", err)
	}
	if err := a.reload(ctx); err != nil {
		return a.fail("load_error", err)
	}
	return Outcome{}
}

// State is a read-only view of the app for rendering.
type State struct {
	View     view.State
	Prefs    db.Preferences
	Loaded   bool
	LoadErr  error
	Revision int
	Backend  store.BackendConfig
	Voice    voice.State
	// Downloading is set while a model download runs.
	Downloading bool
	Progress    float64
	Probing     bool
}

// State returns the current state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := State{
		View:        a.view,
		Prefs:       a.prefs,
		Loaded:      a.loaded,
		LoadErr:     a.loadErr,
		Revision:    a.revision,
		Backend:     a.sw.Config(),
		Downloading: a.download != nil,
		Progress:    a.progress,
		Probing:     a.probe != nil,
	}
	if a.voice != nil {
		st.Voice = a.voice.State()
	}
	return st
}

// Items returns a copy of the current snapshot.
func (a *App) Items() []task.Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]task.Item, len(a.items))
	for i, it := range a.items {
		out[i] = it.Clone()
	}
	return out
}

// Reconcile rebuilds the visible list from the snapshot and view state,
// re-selecting what prev pointed at.
func (a *App) Reconcile(prev view.Selection) view.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return view.Reconcile(a.items, a.view, prev, a.Today(), a.tr)
}

// Find returns the snapshot item with the given identity.
func (a *App) Find(id task.Identity) (task.Item, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, it := range a.items {
		if it.Identity() == id {
			return it.Clone(), true
		}
	}
	return task.Item{}, false
}

// WatchPath returns the local task file path, or "" for remote backends.
func (a *App) WatchPath() string {
	cfg := a.sw.Config()
	if cfg.Kind != store.KindLocal {
		return ""
	}
	return cfg.Path
}

// Generation changes whenever the backend is switched.
func (a *App) Generation() int {
	return a.sw.Generation()
}

// PollResult is the outcome of one background change check.
type PollResult struct {
	Changed  bool
	Outcome  Outcome
	Interval time.Duration
}

// Poll checks the task file fingerprint and reloads when it changed.
// Failures only lengthen the interval.
func (a *App) Poll(ctx context.Context) PollResult {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	st := a.sw.Store()
	if st == nil {
		return PollResult{Interval: a.det.Interval()}
	}
	changed, _ := a.det.Poll(ctx, st.Fingerprint)
	res := PollResult{Changed: changed}
	if changed {
		a.mu.Lock()
		wasLoaded := a.loaded
		a.mu.Unlock()
		if err := a.reload(ctx); err != nil {
			a.logger.Warn("background reload failed", "err", err)
		} else if wasLoaded {
			res.Outcome = Outcome{Severity: Info, Message: a.tr.T("changes_applied")}
		}
	}
	res.Interval = a.det.Interval()
	return res
}

// WatchReload reloads after a file watcher event. Unlike Poll it does not
// consult the fingerprint, so a deleted or unreadable file is reported, and
// it leaves the poll interval alone.
func (a *App) WatchReload(ctx context.Context, notify bool) PollResult {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	res := PollResult{Interval: a.det.Interval()}
	if a.sw.Store() == nil {
		return res
	}
	a.mu.Lock()
	wasLoaded := a.loaded
	a.mu.Unlock()

	// A failed load still bumps the revision so the error is shown.
	res.Changed = true
	if err := a.reload(ctx); err != nil {
		res.Outcome = a.fail("reload_error", err)
	} else if notify && wasLoaded {
		res.Outcome = Outcome{Severity: Info, Message: a.tr.T("changes_applied")}
	}
	return res
}

// reload loads the current store and replaces the snapshot. Caller holds cmdMu.
func (a *App) reload(ctx context.Context) error {
	st := a.sw.Store()
	if st == nil {
		return store.ErrNotConfigured
	}
	fp, fpErr := st.Fingerprint(ctx)
	items, err := st.Load(ctx)
	if err != nil {
		a.mu.Lock()
		a.loadErr = err
		a.revision++
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.items = items
	a.loaded = true
	a.loadErr = nil
	a.revision++
	a.mu.Unlock()

	if fpErr == nil {
		if last, known := a.det.Last(); !known || last != fp {
			a.events.EmitTasksChanged(string(fp))
		}
		a.det.Remember(fp)
	}
	return nil
}

func (a *App) fail(key string, err error) Outcome {
	a.logger.Error(key, "err", err)
	return Outcome{Severity: Error, Message: a.tr.Tf(key, err), Err: err}
}

func (a *App) info(key string, arg any) Outcome {
	msg := a.tr.T(key)
	if arg != nil {
		msg = a.tr.Tf(key, arg)
	}
	return Outcome{Severity: Info, Message: msg}
}

// Dispatch executes one command.
func (a *App) Dispatch(ctx context.Context, cmd Command) Outcome {
	switch c := cmd.(type) {
	case Reload:
		return a.withStore(ctx, "reload_error", func(store.Store) (Outcome, error) {
			return Outcome{}, nil
		})
	case Toggle:
		return a.toggle(ctx, c)
	case Add:
		title := strings.TrimSpace(c.Title)
		if title == "" {
			return Outcome{Severity: Error, Message: a.tr.T("title_empty_error")}
		}
		return a.withStore(ctx, "create_error", func(st store.Store) (Outcome, error) {
			if err := st.Add(ctx, title); err != nil {
				return Outcome{}, err
			}
			a.events.EmitTaskAdded(task.Item{Title: title, Due: a.Today().Ptr()})
			return a.info("task_added", nil), nil
		})
	case AddItem:
		item := c.Item.Clone()
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			return Outcome{Severity: Error, Message: a.tr.T("title_empty_error")}
		}
		return a.withStore(ctx, "create_error", func(st store.Store) (Outcome, error) {
			if err := st.AddFull(ctx, item); err != nil {
				return Outcome{}, err
			}
			a.events.EmitTaskAdded(item)
			return a.info("task_added", nil), nil
		})
	case SetDue:
		item := c.Item.Clone()
		item.Due = nil
		if c.Due != nil {
			item.Due = c.Due.Ptr()
		}
		return a.update(ctx, item, "set_due_error", map[string]interface{}{"due": dueString(item.Due)})
	case Postpone:
		item := c.Item.Clone()
		item.Due = a.Today().AddDays(c.Days).Ptr()
		return a.update(ctx, item, "set_due_error", map[string]interface{}{"due": dueString(item.Due)})
	case Edit:
		item := c.Item.Clone()
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			return Outcome{Severity: Error, Message: a.tr.T("title_empty_error")}
		}
		return a.update(ctx, item, "update_error", nil)
	case Delete:
		return a.withStore(ctx, "delete_error", func(st store.Store) (Outcome, error) {
			if err := st.Delete(ctx, c.Item); err != nil {
				return Outcome{}, err
			}
			a.events.EmitTaskDeleted(c.Item)
			return a.info("deleted_task", nil), nil
		})
	case SetSort:
		return a.setView(func(v *view.State, p *db.Preferences) { v.Sort = c.Mode; p.Sort = c.Mode }, true)
	case SetSearch:
		return a.setView(func(v *view.State, _ *db.Preferences) { v.Search = c.Term }, false)
	case SetShowDone:
		return a.setView(func(v *view.State, p *db.Preferences) { v.ShowDone = c.Show; p.ShowDone = c.Show }, true)
	case SetDueOnly:
		return a.setView(func(v *view.State, p *db.Preferences) { v.DueOnly = c.DueOnly; p.DueOnly = c.DueOnly }, true)
	case StartVoice:
		return a.startVoice()
	case StopVoice:
		a.mu.Lock()
		if a.voice != nil {
			a.voice.Stop()
		}
		a.mu.Unlock()
		return Outcome{}
	case SetBackend:
		return a.setBackend(ctx, c.Config)
	case TestConnection:
		return a.testConnection(c.Config)
	case SetVoice:
		return a.setVoice(c)
	case DownloadModel:
		return a.downloadModel()
	case SetLanguage:
		a.tr.SetLanguage(c.Language)
		return a.setView(func(_ *view.State, p *db.Preferences) { p.Language = c.Language }, true)
	default:
		return Outcome{Severity: Error, Message: fmt.Sprintf("unknown command %T", cmd)}
	}
}

// withStore runs fn against the current store and reloads afterwards.
// Errors from fn are reported under key; a failed reload is reported
// as reload_error.
func (a *App) withStore(ctx context.Context, key string, fn func(store.Store) (Outcome, error)) Outcome {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	st := a.sw.Store()
	if st == nil {
		return Outcome{Severity: Error, Message: a.tr.T("no_database_configured"), Err: store.ErrNotConfigured}
	}
	out, err := fn(st)
	if err != nil {
		return a.fail(key, err)
	}
	if err := a.reload(ctx); err != nil {
		return a.fail("reload_error", err)
	}
	return out
}

func (a *App) update(ctx context.Context, item task.Item, key string, changes map[string]interface{}) Outcome {
	return a.withStore(ctx, key, func(st store.Store) (Outcome, error) {
		if err := st.Update(ctx, item); err != nil {
			return Outcome{}, err
		}
		a.events.EmitTaskUpdated(item, changes)
		return a.info("updated_task", nil), nil
	})
}

func (a *App) toggle(ctx context.Context, c Toggle) Outcome {
	return a.withStore(ctx, "update_failed", func(st store.Store) (Outcome, error) {
		item, err := lookup(ctx, st, c.Item.Key)
		if err != nil {
			return Outcome{}, err
		}
		res, err := a.adv.Set(ctx, st, item, c.Done, a.Today())
		if err != nil {
			return Outcome{}, err
		}
		if res.Unchanged {
			a.logger.Debug("toggle without change", "title", item.Title, "done", c.Done)
			if c.Done {
				return a.info("completed_task", item.Title), nil
			}
			return a.info("reopened_task", item.Title), nil
		}
		if !c.Done {
			a.events.EmitTaskReopened(res.Completed)
			return a.info("reopened_task", res.Completed.Title), nil
		}

		a.events.EmitTaskCompleted(res.Completed)
		completion := db.Completion{
			Title:   res.Completed.Title,
			Project: res.Completed.Project,
			Marker:  res.Completed.Marker,
		}
		if res.Next != nil {
			a.events.EmitTaskRecurred(*res.Next)
			completion.NextDue = dueString(res.Next.Due)
		}
		if a.prefStore != nil {
			if err := a.prefStore.RecordCompletion(completion); err != nil {
				a.logger.Warn("record completion failed", "err", err)
			}
		}
		return a.info("completed_task", res.Completed.Title), nil
	})
}

// lookup returns the item key points at in the file as it is now. A
// command built from an older snapshot must not act on stale state.
func lookup(ctx context.Context, st store.Store, key task.Key) (task.Item, error) {
	items, err := st.Load(ctx)
	if err != nil {
		return task.Item{}, err
	}
	for _, it := range items {
		if key.Marker != "" && it.Marker == key.Marker {
			return it, nil
		}
		if key.Marker == "" && it.Key.Line == key.Line {
			return it, nil
		}
	}
	if key.Marker != "" {
		return task.Item{}, fmt.Errorf("marker ^%s: %w", key.Marker, store.ErrNotFound)
	}
	return task.Item{}, fmt.Errorf("line %d: %w", key.Line, store.ErrNotFound)
}

// setView mutates view state and preferences; persist saves the
// preferences afterwards.
func (a *App) setView(fn func(v *view.State, p *db.Preferences), persist bool) Outcome {
	a.mu.Lock()
	fn(&a.view, &a.prefs)
	a.revision++
	prefs := a.prefs
	a.mu.Unlock()

	if persist {
		return a.savePrefs(prefs)
	}
	return Outcome{}
}

func (a *App) savePrefs(p db.Preferences) Outcome {
	if a.prefStore == nil {
		return Outcome{}
	}
	if err := a.prefStore.SavePreferences(p); err != nil {
		return a.fail("save_settings_error", err)
	}
	return Outcome{}
}

func (a *App) setBackend(ctx context.Context, cfg store.BackendConfig) Outcome {
	if err := cfg.Validate(); err != nil {
		if cfg.Kind == store.KindRemote && cfg.URL == "" {
			return Outcome{Severity: Error, Message: a.tr.T("no_url_error"), Err: err}
		}
		return a.fail("save_settings_error", err)
	}

	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	if _, err := a.sw.Apply(cfg); err != nil {
		return a.fail("load_error", err)
	}
	a.det.Forget()

	a.mu.Lock()
	switch cfg.Kind {
	case store.KindRemote:
		a.prefs.UseWebDAV = true
		a.prefs.WebDAVURL = cfg.URL
		a.prefs.WebDAVPath = cfg.RemotePath
		a.prefs.WebDAVUsername = cfg.Username
		a.prefs.WebDAVPassword = cfg.Password
	default:
		a.prefs.UseWebDAV = false
		a.prefs.LocalPath = cfg.Path
	}
	prefs := a.prefs
	a.mu.Unlock()

	if out := a.savePrefs(prefs); !out.IsZero() {
		return out
	}
	if err := a.reload(ctx); err != nil {
		return a.fail("load_error", err)
	}
	return Outcome{}
}

func (a *App) testConnection(cfg store.BackendConfig) Outcome {
	if cfg.Kind == store.KindRemote && cfg.URL == "" {
		return Outcome{Severity: Error, Message: a.tr.T("no_url_error")}
	}
	if err := cfg.Validate(); err != nil {
		return a.fail("connection_failed", err)
	}
	if cfg.Kind != store.KindRemote {
		return a.info("connection_success", nil)
	}
	a.mu.Lock()
	a.probe = backend.StartProbe(cfg, a.testConn, a.probeWait)
	a.mu.Unlock()
	return Outcome{}
}

func (a *App) setVoice(c SetVoice) Outcome {
	a.mu.Lock()
	a.prefs.UseWhisper = c.Enabled
	if c.Language != "" {
		a.prefs.WhisperLanguage = c.Language
	}
	a.prefs.WhisperServer = c.Server
	a.voiceStale = true
	prefs := a.prefs
	a.mu.Unlock()

	if !c.Enabled && a.models != nil {
		if err := a.models.Remove(); err != nil {
			a.logger.Warn("remove model failed", "err", err)
		}
	}
	return a.savePrefs(prefs)
}

func (a *App) downloadModel() Outcome {
	if a.models == nil {
		return Outcome{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.download != nil {
		return Outcome{}
	}
	a.download = a.models.Download(context.Background())
	a.progress = 0
	return a.info("downloading_model", "0%")
}

func (a *App) startVoice() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.prefs.UseWhisper || a.newVoice == nil {
		return Outcome{Severity: Error, Message: a.tr.T("voice_disabled")}
	}
	if a.voice != nil && a.voice.State() != voice.Idle {
		return Outcome{}
	}
	if a.voice == nil || a.voiceStale {
		a.voice = a.newVoice(a.prefs)
		a.voiceStale = false
	}
	err := a.voice.Start(a.prefs.WhisperLanguage)
	switch {
	case err == nil:
		return a.info("recording", nil)
	case errors.Is(err, voice.ErrModelNotFound):
		return Outcome{Severity: Error, Message: a.tr.T("model_not_found"), Err: err}
	case errors.Is(err, voice.ErrNoDevice):
		return Outcome{Severity: Error, Message: a.tr.T("no_device"), Err: err}
	case errors.Is(err, voice.ErrBusy):
		return Outcome{}
	default:
		return a.fail("voice_error", err)
	}
}

// Pumped is what one Pump call collected from background work.
type Pumped struct {
	// Texts are transcribed segments in arrival order.
	Texts    []string
	Outcomes []Outcome
	// Changed is set when anything visible changed.
	Changed bool
}

// Pump drains dictation, model download and connectivity probe results.
// It never blocks.
func (a *App) Pump() Pumped {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out Pumped
	if a.voice != nil {
		u := a.voice.Drain()
		out.Texts = append(out.Texts, u.Texts...)
		for _, err := range u.Errors {
			if errors.Is(err, voice.ErrModelNotFound) {
				out.Outcomes = append(out.Outcomes, Outcome{Severity: Error, Message: a.tr.T("model_not_found"), Err: err})
				continue
			}
			a.logger.Error("voice", "err", err)
			out.Outcomes = append(out.Outcomes, Outcome{Severity: Error, Message: a.tr.Tf("voice_error", err), Err: err})
		}
		if len(u.Texts) > 0 || len(u.Errors) > 0 || u.Finished {
			out.Changed = true
		}
	}

	if a.download != nil {
		for _, p := range a.download.Drain() {
			out.Changed = true
			switch {
			case p.Err != nil:
				a.download = nil
				a.logger.Error("model download", "err", p.Err)
				out.Outcomes = append(out.Outcomes, Outcome{Severity: Error, Message: a.tr.Tf("model_download_error", p.Err), Err: p.Err})
			case p.Done:
				a.download = nil
				a.progress = 1
				out.Outcomes = append(out.Outcomes, a.info("model_download_finished", nil))
			default:
				a.progress = p.Fraction
			}
			if a.download == nil {
				break
			}
		}
	}

	if a.probe != nil {
		if done, err := a.probe.Poll(); done {
			a.probe = nil
			out.Changed = true
			if err != nil {
				out.Outcomes = append(out.Outcomes, Outcome{Severity: Error, Message: a.tr.Tf("connection_failed", err), Err: err})
			} else {
				out.Outcomes = append(out.Outcomes, a.info("connection_success", nil))
			}
		}
	}
	return out
}

// Projects returns the distinct projects in the snapshot, sorted.
func (a *App) Projects() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, it := range a.items {
		if it.Project != "" && !seen[it.Project] {
			seen[it.Project] = true
			out = append(out, it.Project)
		}
	}
	slices.Sort(out)
	return out
}

func dueString(d *task.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// ModelPresent reports whether the local recognition model is downloaded.
func (a *App) ModelPresent() bool {
	return a.models != nil && a.models.Present()
}

// VoiceAvailable reports whether dictation can run in this process.
func (a *App) VoiceAvailable() bool {
	return a.newVoice != nil
}
