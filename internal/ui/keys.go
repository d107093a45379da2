package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/danst0/reinschrift/internal/config"
)

// KeyMap defines key bindings.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	Toggle       key.Binding
	New          key.Binding
	Edit         key.Binding
	Details      key.Binding
	Delete       key.Binding
	DueToday     key.Binding
	Postpone     key.Binding
	PostponeMenu key.Binding
	Someday      key.Binding
	Search       key.Binding
	Sort         key.Binding
	ShowDone     key.Binding
	DueOnly      key.Binding
	Voice        key.Binding
	Reload       key.Binding
	Settings     key.Binding
	Back         key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// ShortHelp returns key bindings to show in the mini help.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.New, k.Search, k.Voice, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Edit, k.Details},
		{k.New, k.Delete, k.Voice},
		{k.DueToday, k.Postpone, k.PostponeMenu, k.Someday},
		{k.Search, k.Sort, k.ShowDone, k.DueOnly},
		{k.Reload, k.Settings, k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space/x", "done"),
		),
		New: key.NewBinding(
			key.WithKeys("n", "a"),
			key.WithHelp("n", "new"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter", "e"),
			key.WithHelp("enter", "edit"),
		),
		Details: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "details"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		DueToday: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "due today"),
		),
		Postpone: key.NewBinding(
			key.WithKeys("+"),
			key.WithHelp("+", "+1 day"),
		),
		PostponeMenu: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "postpone"),
		),
		Someday: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "someday"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Sort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sort"),
		),
		ShowDone: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "show done"),
		),
		DueOnly: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "due only"),
		),
		Voice: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "dictate"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "reload"),
		),
		Settings: key.NewBinding(
			key.WithKeys(","),
			key.WithHelp(",", "settings"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ApplyKeybindingsConfig overrides bindings named in cfg. Bindings with
// no keys are left alone; an empty help text keeps the default one.
func ApplyKeybindingsConfig(km KeyMap, cfg *config.KeybindingsConfig) KeyMap {
	if cfg == nil {
		return km
	}
	apply := func(b *key.Binding, c *config.KeybindingConfig) {
		if c == nil || len(c.Keys) == 0 {
			return
		}
		desc := c.Help
		if desc == "" {
			desc = b.Help().Desc
		}
		*b = key.NewBinding(
			key.WithKeys(c.Keys...),
			key.WithHelp(c.Keys[0], desc),
		)
	}
	apply(&km.Up, cfg.Up)
	apply(&km.Down, cfg.Down)
	apply(&km.Toggle, cfg.Toggle)
	apply(&km.New, cfg.New)
	apply(&km.Edit, cfg.Edit)
	apply(&km.Details, cfg.Details)
	apply(&km.Delete, cfg.Delete)
	apply(&km.DueToday, cfg.DueToday)
	apply(&km.Postpone, cfg.Postpone)
	apply(&km.PostponeMenu, cfg.PostponeMenu)
	apply(&km.Someday, cfg.Someday)
	apply(&km.Search, cfg.Search)
	apply(&km.Sort, cfg.Sort)
	apply(&km.ShowDone, cfg.ShowDone)
	apply(&km.DueOnly, cfg.DueOnly)
	apply(&km.Voice, cfg.Voice)
	apply(&km.Reload, cfg.Reload)
	apply(&km.Settings, cfg.Settings)
	apply(&km.Back, cfg.Back)
	apply(&km.Help, cfg.Help)
	apply(&km.Quit, cfg.Quit)
	return km
}
