package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/task"
)

// DetailModel represents the task detail view.
type DetailModel struct {
	item     task.Item
	today    task.Date
	tr       *i18n.Translator
	viewport viewport.Model
	width    int
	height   int
}

// NewDetailModel creates a new detail model.
func NewDetailModel(item task.Item, today task.Date, tr *i18n.Translator, width, height int) *DetailModel {
	m := &DetailModel{item: item, today: today, tr: tr, width: width, height: height}
	m.viewport = viewport.New(max(width-4, 20), max(height-4, 3))
	m.viewport.SetContent(m.renderContent())
	return m
}

// Item returns the task shown.
func (m *DetailModel) Item() task.Item {
	return m.item
}

// SetSize updates the viewport size.
func (m *DetailModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-4, 20)
	m.viewport.Height = max(height-4, 3)
	m.viewport.SetContent(m.renderContent())
}

// Update handles messages.
func (m *DetailModel) Update(msg tea.Msg) (*DetailModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m *DetailModel) View() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Width(max(m.width-2, 20)).
		Padding(0, 1)

	help := Dim.Render("↑/↓ scroll  e edit  esc back")
	return lipgloss.JoinVertical(lipgloss.Left, box.Render(m.viewport.View()), help)
}

// Markdown returns the task as a markdown document.
func (m *DetailModel) Markdown() string {
	it := m.item
	tr := m.tr
	var b strings.Builder

	box := "[ ]"
	if it.Done {
		box = "[x]"
	}
	fmt.Fprintf(&b, "# %s %s\n\n", box, it.Title)

	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "| %s | %s |\n", label, value)
		}
	}
	b.WriteString("| | |\n|---|---|\n")
	row(tr.T("section"), it.Section)
	row(tr.T("project_plus"), prefixed("+", it.Project))
	row("@", prefixed("@", it.Context))
	if it.Due != nil {
		due := it.Due.String()
		if info := BuildDueInfo(it.Due, m.today, tr.T("today"), tr.T("sometimes")); info.Text != "" && info.Text != due {
			due += " (" + info.Text + ")"
		}
		row(tr.T("due_label"), due)
	}
	if it.IsRecurring() {
		row(tr.T("recurrence"), tr.T("recurrence_"+string(it.Recurrence)))
	}
	if it.Completed != nil {
		row(tr.T("done"), it.Completed.String())
	}
	if it.Reference != "" {
		row("[[ ]]", "`"+it.Reference+"`")
	}
	if it.Marker != "" {
		row("^", "`"+it.Marker+"`")
	}
	return b.String()
}

func (m *DetailModel) renderContent() string {
	body := m.Markdown()
	rendered, err := glamour.Render(body, "dark")
	if err != nil {
		return body
	}
	return strings.TrimSpace(rendered)
}

func prefixed(prefix, s string) string {
	if s == "" {
		return ""
	}
	return prefix + s
}
