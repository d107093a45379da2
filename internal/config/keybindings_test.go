package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeKeybindings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keybindings.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeybindingsMissing(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "nope.yaml")} {
		kb, err := LoadKeybindingsFromPath(path)
		if err != nil || kb != nil {
			t.Errorf("LoadKeybindingsFromPath(%q) = %v, %v; want nil, nil", path, kb, err)
		}
	}
}

func TestLoadKeybindingsPartial(t *testing.T) {
	path := writeKeybindings(t, `
voice:
  keys: ["m", "ctrl+v"]
  help: "dictate"
toggle:
  keys: ["x"]
`)
	kb, err := LoadKeybindingsFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if kb.Voice == nil || !reflect.DeepEqual(kb.Voice.Keys, []string{"m", "ctrl+v"}) || kb.Voice.Help != "dictate" {
		t.Errorf("voice = %+v", kb.Voice)
	}
	if kb.Toggle == nil || kb.Toggle.Help != "" {
		t.Errorf("toggle = %+v", kb.Toggle)
	}
	if kb.New != nil || kb.Quit != nil || kb.Search != nil {
		t.Error("unlisted actions should stay nil")
	}
}

func TestLoadKeybindingsInvalid(t *testing.T) {
	path := writeKeybindings(t, "new:\n  keys: [unterminated\n")
	_, err := LoadKeybindingsFromPath(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("err = %v, want error naming %s", err, path)
	}
}

func TestDefaultKeybindingsConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	want := filepath.Join(home, ".config", "reinschrift", "keybindings.yaml")
	if got := DefaultKeybindingsConfigPath(); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestGenerateDefaultKeybindingsYAMLSetsEveryAction(t *testing.T) {
	kb, err := LoadKeybindingsFromPath(writeKeybindings(t, GenerateDefaultKeybindingsYAML()))
	if err != nil {
		t.Fatalf("load generated file: %v", err)
	}
	v := reflect.ValueOf(*kb)
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.IsNil() {
			t.Errorf("%s not set", v.Type().Field(i).Name)
			continue
		}
		if len(f.Elem().FieldByName("Keys").Interface().([]string)) == 0 {
			t.Errorf("%s has no keys", v.Type().Field(i).Name)
		}
	}
}
