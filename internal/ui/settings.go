package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/config"
	"github.com/danst0/reinschrift/internal/db"
	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/view"
)

// SettingsModel represents the settings view.
type SettingsModel struct {
	app    *app.App
	form   *huh.Form
	values *settingsValues
	prefs  db.Preferences
	width  int
	height int

	// Status line for background work started from the settings
	status string
}

type settingsValues struct {
	language string
	sort     string

	useWebDAV bool
	localPath string
	url       string
	path      string
	username  string
	password  string

	useWhisper      bool
	whisperLanguage string
	whisperServer   string
}

// NewSettingsModel creates a settings form filled from the current
// preferences.
func NewSettingsModel(a *app.App, width, height int) *SettingsModel {
	st := a.State()
	p := st.Prefs
	v := &settingsValues{
		language:        p.Language,
		sort:            p.Sort.String(),
		useWebDAV:       p.UseWebDAV,
		localPath:       p.LocalPath,
		url:             p.WebDAVURL,
		path:            p.WebDAVPath,
		username:        p.WebDAVUsername,
		password:        p.WebDAVPassword,
		useWhisper:      p.UseWhisper,
		whisperLanguage: p.WhisperLanguage,
		whisperServer:   p.WhisperServer,
	}
	if v.localPath == "" && st.Backend.Kind == store.KindLocal {
		v.localPath = st.Backend.Path
	}
	m := &SettingsModel{app: a, values: v, prefs: p, width: width, height: height}
	m.form = m.buildForm()
	m.Refresh(st)
	return m
}

func (m *SettingsModel) buildForm() *huh.Form {
	tr := m.app.Translator()
	v := m.values

	languages := []huh.Option[string]{huh.NewOption(tr.T("lang_auto"), "")}
	for _, code := range i18n.Languages() {
		languages = append(languages, huh.NewOption(tr.T("lang_"+code), code))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("language").
				Title(tr.T("general")).
				Options(languages...).
				Value(&v.language),
			huh.NewSelect[string]().
				Key("sort").
				Title(tr.T("sort_by")).
				Options(
					huh.NewOption(tr.T("sort_topic"), view.SortProject.String()),
					huh.NewOption(tr.T("sort_location"), view.SortContext.String()),
					huh.NewOption(tr.T("sort_date"), view.SortDate.String()),
				).
				Value(&v.sort),
			huh.NewConfirm().
				Key("webdav").
				Title(tr.T("webdav")).
				Value(&v.useWebDAV),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("local_path").
				Title(tr.T("path_relative")).
				Placeholder("~/todo.md").
				Value(&v.localPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New(tr.T("no_database_configured"))
					}
					return nil
				}),
		).WithHideFunc(func() bool { return v.useWebDAV }),
		huh.NewGroup(
			huh.NewInput().
				Key("webdav_url").
				Title(tr.T("webdav_url")).
				Placeholder("https://cloud.example.com/remote.php/dav/files/me").
				Value(&v.url).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New(tr.T("no_url_error"))
					}
					return nil
				}),
			huh.NewInput().
				Key("webdav_path").
				Title(tr.T("path_relative")).
				Placeholder("todo.md").
				Value(&v.path),
			huh.NewInput().
				Key("webdav_username").
				Title(tr.T("username")).
				Value(&v.username),
			huh.NewInput().
				Key("webdav_password").
				Title(tr.T("password")).
				EchoMode(huh.EchoModePassword).
				Value(&v.password),
		).WithHideFunc(func() bool { return !v.useWebDAV }),
		huh.NewGroup(
			huh.NewConfirm().
				Key("whisper").
				Title(tr.T("use_whisper")).
				Description(tr.T("whisper_desc")).
				Value(&v.useWhisper),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("whisper_language").
				Title(tr.T("whisper_language")).
				Options(
					huh.NewOption(tr.T("lang_auto"), "auto"),
					huh.NewOption(tr.T("lang_de"), "de"),
					huh.NewOption(tr.T("lang_en"), "en"),
				).
				Value(&v.whisperLanguage),
			huh.NewInput().
				Key("whisper_server").
				Title("Whisper server").
				Placeholder("http://localhost:8080/inference").
				Value(&v.whisperServer),
		).WithHideFunc(func() bool { return !v.useWhisper }),
	).WithTheme(huh.ThemeDracula()).
		WithWidth(m.formWidth()).
		WithShowHelp(true)
}

func (m *SettingsModel) formWidth() int {
	if m.width <= 0 {
		return 60
	}
	return min(70, m.width-4)
}

// Init initializes the form.
func (m *SettingsModel) Init() tea.Cmd {
	return m.form.Init()
}

// SetSize updates the view dimensions.
func (m *SettingsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

// Refresh updates the status line from the app state.
func (m *SettingsModel) Refresh(st app.State) {
	tr := m.app.Translator()
	switch {
	case st.Downloading:
		m.status = tr.Tf("downloading_model", fmt.Sprintf("%.0f%%", st.Progress*100))
	case st.Probing:
		m.status = tr.T("webdav") + "…"
	default:
		m.status = ""
	}
}

// Update forwards a message to the form. done reports that the form was
// submitted or aborted; submitted tells which.
func (m *SettingsModel) Update(msg tea.Msg) (done, submitted bool, cmd tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		return true, true, cmd
	case huh.StateAborted:
		return true, false, cmd
	}
	return false, false, cmd
}

// Commands returns the commands that apply the submitted values. Settings
// that did not change produce no command.
func (m *SettingsModel) Commands() []app.Command {
	v := m.values
	p := m.prefs
	var cmds []app.Command

	if v.language != p.Language {
		cmds = append(cmds, app.SetLanguage{Language: v.language})
	}
	if mode, _ := view.ParseSortMode(v.sort); mode != p.Sort {
		cmds = append(cmds, app.SetSort{Mode: mode})
	}

	cfg := m.backendConfig()
	current, _ := p.Backend()
	if cfg != current {
		cmds = append(cmds, app.SetBackend{Config: cfg})
	}
	if cfg.Kind == store.KindRemote {
		cmds = append(cmds, app.TestConnection{Config: cfg})
	}

	server := strings.TrimSpace(v.whisperServer)
	if v.useWhisper != p.UseWhisper || v.whisperLanguage != p.WhisperLanguage || server != p.WhisperServer {
		cmds = append(cmds, app.SetVoice{Enabled: v.useWhisper, Language: v.whisperLanguage, Server: server})
	}
	if v.useWhisper && server == "" && !m.app.ModelPresent() {
		cmds = append(cmds, app.DownloadModel{})
	}
	return cmds
}

func (m *SettingsModel) backendConfig() store.BackendConfig {
	v := m.values
	if v.useWebDAV {
		return store.RemoteConfig(strings.TrimSpace(v.url), strings.TrimSpace(v.path), strings.TrimSpace(v.username), v.password)
	}
	return store.LocalConfig(config.ExpandPath(strings.TrimSpace(v.localPath)))
}

// View renders the settings view.
func (m *SettingsModel) View() string {
	tr := m.app.Translator()
	var b strings.Builder
	b.WriteString(Title.Render(tr.T("settings")))
	b.WriteString("\n\n")
	b.WriteString(m.form.View())
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(Subtitle.Render(m.status))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m *AppModel) openSettings() tea.Cmd {
	m.settingsView = NewSettingsModel(m.app, m.width, m.height)
	m.currentView = ViewSettings
	return m.settingsView.Init()
}

func (m *AppModel) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.settingsView == nil {
		m.currentView = ViewList
		return m, nil
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.settingsView = nil
		m.currentView = ViewList
		return m, nil
	}

	done, submitted, cmd := m.settingsView.Update(msg)
	if !done {
		return m, cmd
	}
	sv := m.settingsView
	m.settingsView = nil
	m.currentView = ViewList
	if !submitted {
		return m, nil
	}

	var cmds []tea.Cmd
	for _, c := range sv.Commands() {
		switch c.(type) {
		case app.SetBackend:
			// Store I/O runs off the update loop.
			cmds = append(cmds, m.dispatch(c))
		default:
			m.dispatchNow(c)
		}
	}
	if len(cmds) == 0 {
		return m, nil
	}
	return m, tea.Sequence(cmds...)
}
