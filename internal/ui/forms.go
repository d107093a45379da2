package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/task"
)

// postponeSomeday is the menu value for "someday".
const postponeSomeday = -1

type editValues struct {
	title      string
	project    string
	context    string
	due        string
	recurrence string
	reference  string
}

func (m *AppModel) modalWidth() int {
	w := min(60, m.width-8) - 6
	if w < 20 {
		return 40
	}
	return w
}

func (m *AppModel) showEditForm(item task.Item) (tea.Model, tea.Cmd) {
	tr := m.app.Translator()
	m.editing = item
	m.editValues = &editValues{
		title:      item.Title,
		project:    item.Project,
		context:    item.Context,
		recurrence: string(item.Recurrence),
		reference:  item.Reference,
	}
	if item.Due != nil {
		m.editValues.due = item.Due.String()
	}
	now := m.app.Today().Time()

	m.editForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("title").
				Title(tr.T("title")).
				Value(&m.editValues.title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New(tr.T("title_empty_error"))
					}
					return nil
				}),
			huh.NewInput().
				Key("project").
				Title(tr.T("project_plus")).
				Suggestions(m.app.Projects()).
				Value(&m.editValues.project),
			huh.NewInput().
				Key("context").
				Title("@").
				Value(&m.editValues.context),
			huh.NewInput().
				Key("due").
				Title(tr.T("due_label")).
				Placeholder("YYYY-MM-DD").
				Value(&m.editValues.due).
				Validate(func(s string) error {
					if _, err := task.ParseDue(s, now); err != nil {
						return errors.New(tr.T("invalid_date_error"))
					}
					return nil
				}),
			huh.NewSelect[string]().
				Key("recurrence").
				Title(tr.T("recurrence")).
				Options(
					huh.NewOption(tr.T("recurrence_none"), string(task.RecurNone)),
					huh.NewOption(tr.T("recurrence_daily"), string(task.RecurDaily)),
					huh.NewOption(tr.T("recurrence_weekly"), string(task.RecurWeekly)),
					huh.NewOption(tr.T("recurrence_monthly"), string(task.RecurMonthly)),
				).
				Value(&m.editValues.recurrence),
			huh.NewInput().
				Key("reference").
				Title("[[ ]]").
				Value(&m.editValues.reference),
		),
	).WithTheme(huh.ThemeDracula()).
		WithWidth(m.modalWidth()).
		WithShowHelp(true)
	m.currentView = ViewEdit
	return m, m.editForm.Init()
}

func (m *AppModel) updateEditForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.closeForms()
		return m, nil
	}

	form, cmd := m.editForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.editForm = f
	}
	switch m.editForm.State {
	case huh.StateCompleted:
		item, err := m.editedItem()
		m.closeForms()
		if err != nil {
			m.notify(app.Outcome{Severity: app.Error, Message: m.app.Translator().T("invalid_date_error"), Err: err})
			return m, nil
		}
		return m, m.dispatch(app.Edit{Item: item})
	case huh.StateAborted:
		m.closeForms()
		return m, nil
	}
	return m, cmd
}

// editedItem applies the form values to the item being edited.
func (m *AppModel) editedItem() (task.Item, error) {
	v := m.editValues
	item := m.editing.Clone()
	due, err := task.ParseDue(v.due, m.app.Today().Time())
	if err != nil {
		return item, err
	}
	item.Title = strings.TrimSpace(v.title)
	item.Project = strings.TrimPrefix(strings.TrimSpace(v.project), "+")
	item.Context = strings.TrimPrefix(strings.TrimSpace(v.context), "@")
	item.Due = due
	item.Recurrence, _ = task.ParseRecurrence(v.recurrence)
	item.Reference = strings.TrimSpace(v.reference)
	return item, nil
}

func (m *AppModel) showPostpone(item task.Item) (tea.Model, tea.Cmd) {
	tr := m.app.Translator()
	m.postponing = item
	m.postponeChoice = 1
	m.postponeForm = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Key("days").
				Title(item.Title).
				Options(
					huh.NewOption(tr.T("postpone_tomorrow"), 1),
					huh.NewOption(tr.T("postpone_3days"), 3),
					huh.NewOption(tr.T("postpone_7days"), 7),
					huh.NewOption(tr.T("postpone_30days"), 30),
					huh.NewOption(tr.T("postpone_sometimes"), postponeSomeday),
				).
				Value(&m.postponeChoice),
		),
	).WithTheme(huh.ThemeDracula()).
		WithWidth(m.modalWidth()).
		WithShowHelp(true)
	m.currentView = ViewPostpone
	return m, m.postponeForm.Init()
}

func (m *AppModel) updatePostpone(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.closeForms()
		return m, nil
	}

	form, cmd := m.postponeForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.postponeForm = f
	}
	switch m.postponeForm.State {
	case huh.StateCompleted:
		item, days := m.postponing, m.postponeChoice
		m.closeForms()
		if days == postponeSomeday {
			someday := task.Someday
			return m, m.dispatch(app.SetDue{Item: item, Due: &someday})
		}
		return m, m.dispatch(app.Postpone{Item: item, Days: days})
	case huh.StateAborted:
		m.closeForms()
		return m, nil
	}
	return m, cmd
}

func (m *AppModel) showDeleteConfirm(item task.Item) (tea.Model, tea.Cmd) {
	tr := m.app.Translator()
	m.pendingDelete = item
	m.deleteConfirmValue = false
	m.deleteConfirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("delete").
				Title(tr.Tf("delete_confirm", item.Title)).
				Affirmative(tr.T("delete")).
				Negative(tr.T("cancel")).
				Value(&m.deleteConfirmValue),
		),
	).WithTheme(huh.ThemeDracula()).
		WithWidth(m.modalWidth()).
		WithShowHelp(true)
	m.currentView = ViewDeleteConfirm
	return m, m.deleteConfirm.Init()
}

func (m *AppModel) updateDeleteConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.closeForms()
		return m, nil
	}

	form, cmd := m.deleteConfirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.deleteConfirm = f
	}
	switch m.deleteConfirm.State {
	case huh.StateCompleted:
		item, confirmed := m.pendingDelete, m.deleteConfirmValue
		m.closeForms()
		if confirmed {
			return m, m.dispatch(app.Delete{Item: item})
		}
		return m, nil
	case huh.StateAborted:
		m.closeForms()
		return m, nil
	}
	return m, cmd
}

// closeForms drops every modal form and returns to the list.
func (m *AppModel) closeForms() {
	m.editForm = nil
	m.editValues = nil
	m.editing = task.Item{}
	m.postponeForm = nil
	m.postponing = task.Item{}
	m.deleteConfirm = nil
	m.pendingDelete = task.Item{}
	m.currentView = ViewList
}

// cheatsheetMarkdown renders the key map as a markdown table.
func (m *AppModel) cheatsheetMarkdown() string {
	var b strings.Builder
	b.WriteString("# " + m.app.Translator().T("cheatsheet") + "\n\n")
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, col := range m.keys.FullHelp() {
		for _, k := range col {
			h := k.Help()
			if h.Key == "" {
				continue
			}
			b.WriteString("| `" + h.Key + "` | " + h.Desc + " |\n")
		}
	}
	return b.String()
}

func (m *AppModel) showHelp() (tea.Model, tea.Cmd) {
	body := m.cheatsheetMarkdown()
	rendered, err := glamour.Render(body, "dark")
	if err != nil {
		rendered = body
	}
	m.cheatsheet = viewport.New(m.width, max(m.height-2, 1))
	m.cheatsheet.SetContent(rendered)
	m.currentView = ViewHelp
	return m, nil
}

func (m *AppModel) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Back), key.Matches(keyMsg, m.keys.Quit):
			m.detailView = nil
			m.currentView = ViewList
			return m, nil
		case key.Matches(keyMsg, m.keys.Edit):
			item := m.detailView.Item()
			m.detailView = nil
			return m.showEditForm(item)
		}
	}
	var cmd tea.Cmd
	m.detailView, cmd = m.detailView.Update(msg)
	return m, cmd
}

func (m *AppModel) updateHelp(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case keyMsg.String() == "esc", keyMsg.String() == "q", keyMsg.String() == "?":
			m.currentView = ViewList
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.cheatsheet, cmd = m.cheatsheet.Update(msg)
	return m, cmd
}
