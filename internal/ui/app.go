package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/monitor"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/task"
	"github.com/danst0/reinschrift/internal/view"
	"github.com/danst0/reinschrift/internal/voice"
)

// View represents the current view.
type View int

const (
	ViewList View = iota
	ViewCompose
	ViewEdit
	ViewPostpone
	ViewDeleteConfirm
	ViewSettings
	ViewHelp
	ViewDetail
)

// Options configures an AppModel.
type Options struct {
	Keys   KeyMap
	Logger *log.Logger
	// DrainInterval is how often background results are collected.
	DrainInterval time.Duration
	// Remote marks SSH sessions: no dictation, no terminal bell.
	Remote bool
	// Initial is the outcome of the first load, shown on start.
	Initial app.Outcome
}

// AppModel is the main application model.
type AppModel struct {
	app    *app.App
	keys   KeyMap
	help   help.Model
	logger *log.Logger
	drain  time.Duration
	remote bool

	currentView View

	// List state
	entries       []view.Entry
	cursor        int
	offset        int
	pendingOffset *int
	revision      int

	// Search and compose inputs
	searchInput  textinput.Model
	searching    bool
	composeInput textinput.Model
	draft        *draftHistory

	// Edit form state
	editForm   *huh.Form
	editValues *editValues
	editing    task.Item

	// Postpone menu state
	postponeForm   *huh.Form
	postponeChoice int
	postponing     task.Item

	// Delete confirmation state
	deleteConfirm      *huh.Form
	deleteConfirmValue bool
	pendingDelete      task.Item

	settingsView *SettingsModel
	detailView   *DetailModel
	cheatsheet   viewport.Model

	// Notification banner
	notification string
	notifyError  bool
	notifyUntil  time.Time

	// File watcher for the local task file
	watcher  *monitor.FileWatcher
	watchGen int

	width  int
	height int
}

// NewAppModel creates a new application model.
func NewAppModel(a *app.App, opts Options) *AppModel {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	drain := opts.DrainInterval
	if drain <= 0 {
		drain = 100 * time.Millisecond
	}
	keys := opts.Keys
	if len(keys.Quit.Keys()) == 0 {
		keys = DefaultKeyMap()
	}
	tr := a.Translator()

	si := textinput.New()
	si.Placeholder = tr.T("search_placeholder")
	si.CharLimit = 100
	si.Prompt = "/ "
	si.SetValue(a.State().View.Search)

	ci := textinput.New()
	ci.Placeholder = tr.T("new_todo_placeholder")
	ci.CharLimit = 500
	ci.Prompt = "+ "

	h := help.New()
	h.ShowAll = false

	m := &AppModel{
		app:          a,
		keys:         keys,
		help:         h,
		logger:       logger,
		drain:        drain,
		remote:       opts.Remote,
		currentView:  ViewList,
		searchInput:  si,
		composeInput: ci,
		draft:        newDraftHistory(),
		watchGen:     -1,
	}
	m.notify(opts.Initial)
	m.rebuild()
	if errors.Is(opts.Initial.Err, store.ErrNotConfigured) {
		m.openSettings()
	}
	return m
}

// Init initializes the model.
func (m *AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.drainTick(), m.pollNow(), m.syncWatcher()}
	if m.settingsView != nil {
		cmds = append(cmds, m.settingsView.Init())
	}
	return tea.Batch(cmds...)
}

type drainTickMsg time.Time

type pollTickMsg struct{}

type pollResultMsg struct {
	res       app.PollResult
	scheduled bool
	notify    bool
}

type outcomeMsg struct {
	out app.Outcome
}

type watchMsg struct {
	gen  int
	kind monitor.EventKind
	ok   bool
}

// Update handles messages.
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// A scroll offset handed back by the last rebuild is applied one
	// cycle later, once the new rows exist.
	if m.pendingOffset != nil {
		m.offset = clampOffset(*m.pendingOffset, len(m.entries), m.listHeight())
		m.pendingOffset = nil
		m.cursor = m.firstItemAtOrAfter(m.offset)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.searchInput.Width = msg.Width - 4
		m.composeInput.Width = msg.Width - 4
		m.cheatsheet.Width = msg.Width
		m.cheatsheet.Height = msg.Height - 2
		m.ensureVisible()
		if m.settingsView != nil {
			m.settingsView.SetSize(msg.Width, msg.Height)
		}
		if m.detailView != nil {
			m.detailView.SetSize(msg.Width, msg.Height)
		}

	case drainTickMsg:
		m.handleDrain()
		if !m.notifyUntil.IsZero() && time.Now().After(m.notifyUntil) {
			m.notification = ""
			m.notifyUntil = time.Time{}
		}
		return m, m.drainTick()

	case pollTickMsg:
		return m, m.pollNow()

	case pollResultMsg:
		if msg.res.Changed {
			m.rebuild()
		}
		if msg.notify {
			m.notify(msg.res.Outcome)
		}
		if msg.scheduled {
			return m, m.schedulePoll(msg.res.Interval)
		}
		return m, nil

	case watchMsg:
		if msg.gen != m.watchGen || !msg.ok {
			return m, nil
		}
		return m, tea.Batch(m.reloadNow(msg.kind.Notify()), m.waitForWatch())

	case outcomeMsg:
		m.notify(msg.out)
		m.refresh()
		return m, m.syncWatcher()
	}

	// Forms need all message types
	switch m.currentView {
	case ViewEdit:
		return m.updateEditForm(msg)
	case ViewPostpone:
		return m.updatePostpone(msg)
	case ViewDeleteConfirm:
		return m.updateDeleteConfirm(msg)
	case ViewSettings:
		return m.updateSettings(msg)
	case ViewCompose:
		return m.updateCompose(msg)
	case ViewHelp:
		return m.updateHelp(msg)
	case ViewDetail:
		return m.updateDetail(msg)
	}

	if m.searching {
		return m.updateSearch(msg)
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		return m.updateList(keyMsg)
	}
	return m, nil
}

func (m *AppModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stopWatcher()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Toggle):
		if item, ok := m.selected(); ok {
			return m, m.dispatch(app.Toggle{Item: item, Done: !item.Done})
		}
	case key.Matches(msg, m.keys.New):
		m.currentView = ViewCompose
		return m, m.composeInput.Focus()
	case key.Matches(msg, m.keys.Edit):
		if item, ok := m.selected(); ok {
			return m.showEditForm(item)
		}
	case key.Matches(msg, m.keys.Details):
		if item, ok := m.selected(); ok {
			m.detailView = NewDetailModel(item, m.app.Today(), m.app.Translator(), m.width, m.height)
			m.currentView = ViewDetail
		}
	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.selected(); ok {
			return m.showDeleteConfirm(item)
		}

	case key.Matches(msg, m.keys.DueToday):
		if item, ok := m.selected(); ok {
			today := m.app.Today()
			return m, m.dispatch(app.SetDue{Item: item, Due: &today})
		}
	case key.Matches(msg, m.keys.Postpone):
		if item, ok := m.selected(); ok {
			return m, m.dispatch(app.Postpone{Item: item, Days: 1})
		}
	case key.Matches(msg, m.keys.PostponeMenu):
		if item, ok := m.selected(); ok {
			return m.showPostpone(item)
		}
	case key.Matches(msg, m.keys.Someday):
		if item, ok := m.selected(); ok {
			someday := task.Someday
			return m, m.dispatch(app.SetDue{Item: item, Due: &someday})
		}

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.searchInput.Focus()
	case key.Matches(msg, m.keys.Sort):
		m.dispatchNow(app.SetSort{Mode: m.app.State().View.Sort.Next()})
	case key.Matches(msg, m.keys.ShowDone):
		m.dispatchNow(app.SetShowDone{Show: !m.app.State().View.ShowDone})
	case key.Matches(msg, m.keys.DueOnly):
		m.dispatchNow(app.SetDueOnly{DueOnly: !m.app.State().View.DueOnly})

	case key.Matches(msg, m.keys.Voice):
		m.toggleVoice()
	case key.Matches(msg, m.keys.Reload):
		return m, m.dispatch(app.Reload{})
	case key.Matches(msg, m.keys.Settings):
		return m, m.openSettings()
	case key.Matches(msg, m.keys.Help):
		return m.showHelp()
	case key.Matches(msg, m.keys.Back):
		if m.app.State().View.Search != "" {
			m.searchInput.SetValue("")
			m.dispatchNow(app.SetSearch{})
		}
	}
	return m, nil
}

func (m *AppModel) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.searching = false
			m.searchInput.Blur()
			m.searchInput.SetValue("")
			m.dispatchNow(app.SetSearch{})
			return m, nil
		case "enter", "down", "up":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		}
	}
	before := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() != before {
		m.dispatchNow(app.SetSearch{Term: m.searchInput.Value()})
	}
	return m, cmd
}

func (m *AppModel) updateCompose(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.closeCompose()
			return m, nil
		case "enter":
			title := strings.TrimSpace(m.composeInput.Value())
			m.closeCompose()
			if title == "" {
				return m, nil
			}
			return m, m.dispatch(app.Add{Title: title})
		case "ctrl+v":
			m.toggleVoice()
			return m, nil
		case "ctrl+z":
			if text, pos, ok := m.draft.Undo(m.composeInput.Value(), m.composeInput.Position()); ok {
				m.composeInput.SetValue(text)
				m.composeInput.SetCursor(pos)
			}
			return m, nil
		case "ctrl+y":
			if text, pos, ok := m.draft.Redo(m.composeInput.Value(), m.composeInput.Position()); ok {
				m.composeInput.SetValue(text)
				m.composeInput.SetCursor(pos)
			}
			return m, nil
		}
	}
	before, pos := m.composeInput.Value(), m.composeInput.Position()
	var cmd tea.Cmd
	m.composeInput, cmd = m.composeInput.Update(msg)
	if m.composeInput.Value() != before {
		m.draft.Typed(before, pos)
	}
	return m, cmd
}

func (m *AppModel) closeCompose() {
	m.composeInput.Blur()
	m.composeInput.SetValue("")
	m.draft.Reset()
	m.currentView = ViewList
}

func (m *AppModel) toggleVoice() {
	if m.remote {
		m.notify(app.Outcome{Severity: app.Error, Message: m.app.Translator().T("voice_disabled")})
		return
	}
	if m.app.State().Voice == voice.Recording {
		m.dispatchNow(app.StopVoice{})
		return
	}
	m.dispatchNow(app.StartVoice{})
}

// handleDrain collects dictation, download and probe results.
func (m *AppModel) handleDrain() {
	p := m.app.Pump()
	if len(p.Texts) > 0 {
		m.draft.Dictated(m.composeInput.Value(), m.composeInput.Position())
		m.composeInput.SetValue(voice.AppendText(m.composeInput.Value(), p.Texts...))
		m.composeInput.CursorEnd()
		if m.currentView == ViewList {
			m.currentView = ViewCompose
			m.composeInput.Focus()
		}
	}
	for _, out := range p.Outcomes {
		m.notify(out)
	}
	if m.settingsView != nil && p.Changed {
		m.settingsView.Refresh(m.app.State())
	}
	m.refresh()
}

// dispatch runs a store command off the update loop.
func (m *AppModel) dispatch(cmd app.Command) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		return outcomeMsg{out: a.Dispatch(context.Background(), cmd)}
	}
}

// dispatchNow runs a command that only touches in-memory state.
func (m *AppModel) dispatchNow(cmd app.Command) {
	m.notify(m.app.Dispatch(context.Background(), cmd))
	m.refresh()
}

// pollNow runs a timer poll. Changes it finds are applied silently.
func (m *AppModel) pollNow() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		return pollResultMsg{res: a.Poll(context.Background()), scheduled: true}
	}
}

// reloadNow reloads after a file event and shows what the reload reports.
func (m *AppModel) reloadNow(notify bool) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		return pollResultMsg{res: a.WatchReload(context.Background(), notify), notify: true}
	}
}

func (m *AppModel) schedulePoll(d time.Duration) tea.Cmd {
	if d <= 0 {
		d = monitor.BaseInterval
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m *AppModel) drainTick() tea.Cmd {
	return tea.Tick(m.drain, func(t time.Time) tea.Msg {
		return drainTickMsg(t)
	})
}

// syncWatcher starts a watcher for the current local task file when the
// backend changed.
func (m *AppModel) syncWatcher() tea.Cmd {
	gen := m.app.Generation()
	if gen == m.watchGen {
		return nil
	}
	m.stopWatcher()
	m.watchGen = gen

	path := m.app.WatchPath()
	if path == "" {
		return nil
	}
	w, err := monitor.NewFileWatcher(path, m.logger.WithPrefix("watch"))
	if err != nil {
		m.logger.Warn("file watch unavailable, polling only", "path", path, "err", err)
		return nil
	}
	m.watcher = w
	return m.waitForWatch()
}

// waitForWatch returns a command that waits for the next file event.
func (m *AppModel) waitForWatch() tea.Cmd {
	w, gen := m.watcher, m.watchGen
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		kind, ok := <-w.Events()
		return watchMsg{gen: gen, kind: kind, ok: ok}
	}
}

func (m *AppModel) stopWatcher() {
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
}

// notify shows an outcome in the banner. Errors stay longer.
func (m *AppModel) notify(out app.Outcome) {
	if out.IsZero() {
		return
	}
	m.notification = out.Message
	m.notifyError = out.Severity == app.Error
	d := 4 * time.Second
	if m.notifyError {
		d = 8 * time.Second
		if !m.remote {
			RingBell()
		}
	}
	m.notifyUntil = time.Now().Add(d)
}

// refresh rebuilds the list when the app state moved on.
func (m *AppModel) refresh() {
	if m.app.State().Revision != m.revision {
		m.rebuild()
	}
}

// rebuild reconciles the list and re-selects the previous item.
func (m *AppModel) rebuild() {
	prev := view.Capture(m.entries, m.cursor, m.offset)
	m.revision = m.app.State().Revision
	res := m.app.Reconcile(prev)
	m.entries = res.Entries
	if res.Selected >= 0 {
		m.cursor = res.Selected
		m.ensureVisible()
		return
	}
	m.cursor = m.firstItemAtOrAfter(0)
	if res.Restore {
		off := res.RestoreOffset
		m.pendingOffset = &off
	}
}

// selected returns the item under the cursor.
func (m *AppModel) selected() (task.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) || m.entries[m.cursor].IsHeader() {
		return task.Item{}, false
	}
	return *m.entries[m.cursor].Item, true
}

// moveCursor moves to the next item row in direction delta, skipping headers.
func (m *AppModel) moveCursor(delta int) {
	for i := m.cursor + delta; i >= 0 && i < len(m.entries); i += delta {
		if !m.entries[i].IsHeader() {
			m.cursor = i
			break
		}
	}
	m.ensureVisible()
}

func (m *AppModel) firstItemAtOrAfter(from int) int {
	for i := max(from, 0); i < len(m.entries); i++ {
		if !m.entries[i].IsHeader() {
			return i
		}
	}
	for i := min(from, len(m.entries)-1); i >= 0; i-- {
		if !m.entries[i].IsHeader() {
			return i
		}
	}
	return -1
}

// ensureVisible scrolls so the cursor row (and its group header) shows.
func (m *AppModel) ensureVisible() {
	h := m.listHeight()
	if m.cursor < 0 {
		m.offset = clampOffset(m.offset, len(m.entries), h)
		return
	}
	top := m.cursor
	if top > 0 && m.entries[top-1].IsHeader() {
		top--
	}
	if top < m.offset {
		m.offset = top
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	m.offset = clampOffset(m.offset, len(m.entries), h)
}

// clampOffset keeps offset within [0, total-height].
func clampOffset(offset, total, height int) int {
	if height <= 0 {
		return 0
	}
	if offset > total-height {
		offset = total - height
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func (m *AppModel) listHeight() int {
	// title, status bar, input line, notification, help
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the model.
func (m *AppModel) View() string {
	switch m.currentView {
	case ViewEdit:
		return m.viewModal(m.app.Translator().T("edit_task"), m.editForm, ColorPrimary)
	case ViewPostpone:
		return m.viewModal(m.app.Translator().T("due_label"), m.postponeForm, ColorPrimary)
	case ViewDeleteConfirm:
		return m.viewModal(IconOverdue()+" "+m.app.Translator().T("delete"), m.deleteConfirm, ColorError)
	case ViewSettings:
		if m.settingsView != nil {
			return m.settingsView.View()
		}
	case ViewHelp:
		return m.cheatsheet.View() + "\n" + Dim.Render("esc")
	case ViewDetail:
		if m.detailView != nil {
			return m.detailView.View()
		}
	}
	return m.viewList()
}

func (m *AppModel) viewList() string {
	tr := m.app.Translator()
	st := m.app.State()

	var b strings.Builder
	b.WriteString(Title.Render(tr.T("app_title")))
	b.WriteString("  ")
	b.WriteString(m.renderStatus(st))
	b.WriteString("\n")

	h := m.listHeight()
	switch {
	case !st.Loaded && st.LoadErr != nil:
		b.WriteString(Error.Render(tr.Tf("load_error", st.LoadErr)))
		b.WriteString("\n")
	default:
		today := m.app.Today()
		end := min(m.offset+h, len(m.entries))
		for i := m.offset; i < end; i++ {
			b.WriteString(m.renderEntry(m.entries[i], i == m.cursor, today))
			b.WriteString("\n")
		}
		for i := end - m.offset; i < h; i++ {
			b.WriteString("\n")
		}
	}

	switch {
	case m.currentView == ViewCompose:
		b.WriteString(m.composeInput.View())
	case m.searching || st.View.Search != "":
		b.WriteString(m.searchInput.View())
	}
	b.WriteString("\n")

	if m.notification != "" {
		style := NotifyInfo
		if m.notifyError {
			style = NotifyError
		}
		b.WriteString(style.Render(m.notification))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *AppModel) renderStatus(st app.State) string {
	tr := m.app.Translator()
	parts := []string{st.Backend.String(), tr.T("sort_" + st.View.Sort.String())}
	if st.View.ShowDone {
		parts = append(parts, tr.T("show_completed"))
	}
	if st.View.DueOnly {
		parts = append(parts, tr.T("show_due_only"))
	}
	status := StatusBar.Render(strings.Join(parts, " · "))

	switch st.Voice {
	case voice.Recording:
		status += " " + Error.Render(IconMic()+" "+tr.T("recording"))
	case voice.Transcribing:
		status += " " + Warning.Render(IconTranscribe()+" "+tr.T("transcribing"))
	}
	if st.Downloading {
		status += " " + Subtitle.Render(fmt.Sprintf("%s %.0f%%", tr.T("downloading"), st.Progress*100))
	}
	return status
}

func (m *AppModel) renderEntry(e view.Entry, selected bool, today task.Date) string {
	if e.IsHeader() {
		return HeaderStyle.UnsetMarginTop().Render(e.Header)
	}
	it := e.Item
	tr := m.app.Translator()

	box := IconOpen()
	if it.Done {
		box = IconDone()
	}
	title := it.Title
	if it.Done {
		title = DoneStyle.Render(title)
	} else if selected {
		title = SelectedStyle.Render(title)
	}

	parts := []string{box, title}
	if it.Project != "" {
		parts = append(parts, ProjectStyle.Render("+"+it.Project))
	}
	if it.Context != "" {
		parts = append(parts, ContextStyle.Render("@"+it.Context))
	}
	if info := BuildDueInfo(it.Due, today, tr.T("today"), tr.T("sometimes")); info.Text != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(DueSeverityColor(info.Severity)).Render(info.Text))
	}
	if it.IsRecurring() {
		parts = append(parts, Dim.Render(IconRecur()))
	}

	cursor := "  "
	if selected {
		cursor = SelectedStyle.Render(IconCursor()) + " "
	}
	return cursor + strings.Join(parts, " ")
}

func (m *AppModel) viewModal(header string, form *huh.Form, border lipgloss.Color) string {
	if form == nil {
		return ""
	}
	modalWidth := min(60, m.width-8)
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(border).
		MarginBottom(1).
		Render(header)
	modalBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Width(modalWidth)

	content := modalBox.Render(lipgloss.JoinVertical(lipgloss.Left, head, form.View()))
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}
