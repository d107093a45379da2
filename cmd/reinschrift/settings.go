package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danst0/reinschrift/internal/config"
	"github.com/danst0/reinschrift/internal/db"
	"github.com/danst0/reinschrift/internal/i18n"
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/view"
	"github.com/danst0/reinschrift/internal/voice"
)

// setting is one key accepted by 'settings set'.
type setting struct {
	help string
	get  func(p db.Preferences) string
	set  func(p *db.Preferences, value string) error
}

func stringSetting(help string, field func(p *db.Preferences) *string) setting {
	return setting{
		help: help,
		get:  func(p db.Preferences) string { return *field(&p) },
		set: func(p *db.Preferences, v string) error {
			*field(p) = v
			return nil
		},
	}
}

func boolSetting(help string, field func(p *db.Preferences) *bool) setting {
	return setting{
		help: help,
		get:  func(p db.Preferences) string { return strconv.FormatBool(*field(&p)) },
		set: func(p *db.Preferences, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.New("value must be 'true' or 'false'")
			}
			*field(p) = b
			return nil
		},
	}
}

var settings = map[string]setting{
	"language": {
		help: "UI language (" + strings.Join(i18n.Languages(), ", ") + "; empty follows the system)",
		get:  func(p db.Preferences) string { return p.Language },
		set: func(p *db.Preferences, v string) error {
			if v != "" && !contains(i18n.Languages(), v) {
				return fmt.Errorf("unknown language %q", v)
			}
			p.Language = v
			return nil
		},
	},
	"sort": {
		help: "List order: topic, location or date",
		get:  func(p db.Preferences) string { return p.Sort.String() },
		set: func(p *db.Preferences, v string) error {
			mode, ok := view.ParseSortMode(v)
			if !ok {
				return fmt.Errorf("unknown sort %q", v)
			}
			p.Sort = mode
			return nil
		},
	},
	"show_done": boolSetting("Show completed tasks", func(p *db.Preferences) *bool { return &p.ShowDone }),
	"due_only":  boolSetting("Only show tasks due today or earlier", func(p *db.Preferences) *bool { return &p.DueOnly }),
	"local_path": {
		help: "Local task file",
		get:  func(p db.Preferences) string { return p.LocalPath },
		set: func(p *db.Preferences, v string) error {
			p.LocalPath = config.ExpandPath(v)
			return nil
		},
	},
	"use_webdav":      boolSetting("Keep the task file on a WebDAV server", func(p *db.Preferences) *bool { return &p.UseWebDAV }),
	"webdav_url":      stringSetting("WebDAV server URL", func(p *db.Preferences) *string { return &p.WebDAVURL }),
	"webdav_path":     stringSetting("Task file path on the server", func(p *db.Preferences) *string { return &p.WebDAVPath }),
	"webdav_username": stringSetting("WebDAV user", func(p *db.Preferences) *string { return &p.WebDAVUsername }),
	"webdav_password": {
		help: "WebDAV password",
		get: func(p db.Preferences) string {
			if p.WebDAVPassword == "" {
				return ""
			}
			return "********"
		},
		set: func(p *db.Preferences, v string) error {
			p.WebDAVPassword = v
			return nil
		},
	},
	"use_whisper":      boolSetting("Enable voice capture", func(p *db.Preferences) *bool { return &p.UseWhisper }),
	"whisper_language": stringSetting("Dictation language (auto, de, en, ...)", func(p *db.Preferences) *string { return &p.WhisperLanguage }),
	"whisper_server":   stringSetting("Transcription server URL (empty uses the local model)", func(p *db.Preferences) *string { return &p.WhisperServer }),
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func settingKeys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applySetting validates and stores one value.
func applySetting(p *db.Preferences, key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (available: %s)", key, strings.Join(settingKeys(), ", "))
	}
	return s.set(p, strings.TrimSpace(value))
}

func newSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "View and manage preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Println(boldStyle.Render("Settings"))
			fmt.Println()
			for _, k := range settingKeys() {
				v := settings[k].get(e.prefs)
				if v == "" {
					v = dimStyle.Render("(not set)")
				}
				fmt.Printf("%-17s %s\n", k+":", v)
			}
			fmt.Println()
			fmt.Println(dimStyle.Render("Use 'reinschrift settings set <key> <value>' to change settings"))
			return nil
		},
	}

	var help strings.Builder
	help.WriteString("Set a preference.\n\nAvailable settings:\n")
	for _, k := range settingKeys() {
		fmt.Fprintf(&help, "  %-17s %s\n", k, settings[k].help)
	}

	settingsSetCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a preference",
		Long:  help.String(),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}

			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := applySetting(&e.prefs, args[0], value); err != nil {
				return err
			}
			if err := e.db.SavePreferences(e.prefs); err != nil {
				return fmt.Errorf("save setting: %w", err)
			}
			fmt.Println(successStyle.Render("Setting saved: " + args[0]))
			return nil
		},
	}

	keybindingsCmd := &cobra.Command{
		Use:   "keybindings",
		Short: "Write the default keybindings file for editing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultKeybindingsConfigPath()
			if _, err := os.Stat(path); err == nil {
				force, _ := cmd.Flags().GetBool("force")
				if !force {
					return fmt.Errorf("%s exists (use --force to overwrite)", path)
				}
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefaultKeybindingsYAML()), 0644); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Wrote " + path))
			return nil
		},
	}
	keybindingsCmd.Flags().Bool("force", false, "Overwrite an existing file")

	settingsCmd.AddCommand(settingsSetCmd, keybindingsCmd)
	return settingsCmd
}

func newTestConnectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check the WebDAV settings",
		Long: `Check that the WebDAV server accepts the credentials and holds the task file.
Flags override the saved settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			p := e.prefs
			for flag, dst := range map[string]*string{
				"url":      &p.WebDAVURL,
				"path":     &p.WebDAVPath,
				"username": &p.WebDAVUsername,
				"password": &p.WebDAVPassword,
			} {
				if cmd.Flags().Changed(flag) {
					*dst, _ = cmd.Flags().GetString(flag)
				}
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := store.TestConnection(ctx, p.WebDAVURL, p.WebDAVPath, p.WebDAVUsername, p.WebDAVPassword); err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}
			fmt.Println(successStyle.Render("Connection OK: " + p.WebDAVURL))
			return nil
		},
	}
	cmd.Flags().String("url", "", "WebDAV server URL")
	cmd.Flags().String("path", "", "Task file path on the server")
	cmd.Flags().String("username", "", "User")
	cmd.Flags().String("password", "", "Password")
	cmd.Flags().Duration("timeout", 15*time.Second, "Give up after")
	return cmd
}

func newModelCmd() *cobra.Command {
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Manage the local speech recognition model",
	}

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download the whisper model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			force, _ := cmd.Flags().GetBool("force")
			if e.models.Present() && !force {
				fmt.Println(dimStyle.Render("Model already present: " + e.models.Path))
				return nil
			}
			fmt.Println("Downloading " + e.models.URL)
			return waitForDownload(e.models.Download(cmd.Context()), 200*time.Millisecond, func(fraction float64) {
				fmt.Printf("\r%s", progressBar(fraction, 30))
			})
		},
	}
	downloadCmd.Flags().Bool("force", false, "Download even if the model exists")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the model lives and whether it is complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			state := errorStyle.Render("missing")
			if e.models.Present() {
				state = successStyle.Render("present")
			}
			fmt.Printf("%s %s\n", e.models.Path, state)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the downloaded model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.models.Remove(); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Removed " + e.models.Path))
			return nil
		},
	}

	modelCmd.AddCommand(downloadCmd, statusCmd, removeCmd)
	return modelCmd
}

// waitForDownload drains progress every tick until the download ends.
func waitForDownload(d *voice.Download, tick time.Duration, show func(float64)) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for range ticker.C {
		for _, p := range d.Drain() {
			switch {
			case p.Err != nil:
				fmt.Println()
				return p.Err
			case p.Done:
				show(1)
				fmt.Println()
				fmt.Println(successStyle.Render("Model ready"))
				return nil
			default:
				show(p.Fraction)
			}
		}
	}
	return nil
}

// progressBar renders fraction as a fixed-width bar with a percentage.
func progressBar(fraction float64, width int) string {
	fraction = max(0, min(1, fraction))
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + "] " +
		fmt.Sprintf("%3d%%", int(fraction*100))
}
