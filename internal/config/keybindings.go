package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KeybindingConfig overrides one action.
type KeybindingConfig struct {
	Keys []string `yaml:"keys"`
	Help string   `yaml:"help"`
}

// KeybindingsConfig holds the optional per-action overrides. Nil fields
// keep the default binding.
type KeybindingsConfig struct {
	Up           *KeybindingConfig `yaml:"up,omitempty"`
	Down         *KeybindingConfig `yaml:"down,omitempty"`
	Toggle       *KeybindingConfig `yaml:"toggle,omitempty"`
	New          *KeybindingConfig `yaml:"new,omitempty"`
	Edit         *KeybindingConfig `yaml:"edit,omitempty"`
	Details      *KeybindingConfig `yaml:"details,omitempty"`
	Delete       *KeybindingConfig `yaml:"delete,omitempty"`
	DueToday     *KeybindingConfig `yaml:"due_today,omitempty"`
	Postpone     *KeybindingConfig `yaml:"postpone,omitempty"`
	PostponeMenu *KeybindingConfig `yaml:"postpone_menu,omitempty"`
	Someday      *KeybindingConfig `yaml:"someday,omitempty"`
	Search       *KeybindingConfig `yaml:"search,omitempty"`
	Sort         *KeybindingConfig `yaml:"sort,omitempty"`
	ShowDone     *KeybindingConfig `yaml:"show_done,omitempty"`
	DueOnly      *KeybindingConfig `yaml:"due_only,omitempty"`
	Voice        *KeybindingConfig `yaml:"voice,omitempty"`
	Reload       *KeybindingConfig `yaml:"reload,omitempty"`
	Settings     *KeybindingConfig `yaml:"settings,omitempty"`
	Back         *KeybindingConfig `yaml:"back,omitempty"`
	Help         *KeybindingConfig `yaml:"help,omitempty"`
	Quit         *KeybindingConfig `yaml:"quit,omitempty"`
}

// DefaultKeybindingsConfigPath returns keybindings.yaml in Dir().
func DefaultKeybindingsConfigPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "keybindings.yaml")
}

// LoadKeybindings reads the overrides at DefaultKeybindingsConfigPath.
func LoadKeybindings() (*KeybindingsConfig, error) {
	return LoadKeybindingsFromPath(DefaultKeybindingsConfigPath())
}

// LoadKeybindingsFromPath reads overrides from path. A missing file yields
// nil and no error.
func LoadKeybindingsFromPath(path string) (*KeybindingsConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var kb KeybindingsConfig
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &kb, nil
}

// GenerateDefaultKeybindingsYAML returns a commented keybindings.yaml that
// sets every action to its default.
func GenerateDefaultKeybindingsYAML() string {
	return `# Reinschrift Keybindings Configuration
# Customize keyboard shortcuts by modifying the keys below.
# Each keybinding has:
#   keys: list of key(s) that trigger the action (e.g., ["n"], ["ctrl+r", "r"])
#   help: text shown in the help menu
#
# Only include keybindings you want to customize.
# Omitted keybindings will use defaults.

# Navigation
up:
  keys: ["up", "k"]
  help: "up"

down:
  keys: ["down", "j"]
  help: "down"

# Tasks
toggle:
  keys: [" ", "x"]
  help: "done"

new:
  keys: ["n", "a"]
  help: "new"

edit:
  keys: ["enter", "e"]
  help: "edit"

details:
  keys: ["i"]
  help: "details"

delete:
  keys: ["d"]
  help: "delete"

# Due dates
due_today:
  keys: ["t"]
  help: "due today"

postpone:
  keys: ["+"]
  help: "+1 day"

postpone_menu:
  keys: ["p"]
  help: "postpone"

someday:
  keys: ["s"]
  help: "someday"

# View
search:
  keys: ["/"]
  help: "search"

sort:
  keys: ["o"]
  help: "sort"

show_done:
  keys: ["h"]
  help: "show done"

due_only:
  keys: ["f"]
  help: "due only"

voice:
  keys: ["v"]
  help: "dictate"

reload:
  keys: ["r", "ctrl+r"]
  help: "reload"

settings:
  keys: [","]
  help: "settings"

back:
  keys: ["esc"]
  help: "back"

help:
  keys: ["?"]
  help: "help"

quit:
  keys: ["q", "ctrl+c"]
  help: "quit"
`
}
