package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/view"
)

// Setting keys.
const (
	SettingSortMode        = "sort_mode"
	SettingShowDone        = "show_done"
	SettingDueOnly         = "show_due_only"
	SettingLocalPath       = "todo_path"
	SettingUseWebDAV       = "use_webdav"
	SettingWebDAVURL       = "webdav_url"
	SettingWebDAVPath      = "webdav_path"
	SettingWebDAVUsername  = "webdav_username"
	SettingWebDAVPassword  = "webdav_password"
	SettingUseWhisper      = "use_whisper"
	SettingWhisperLanguage = "whisper_language"
	SettingWhisperServer   = "whisper_server"
	SettingLanguage        = "language"
)

// GetSetting returns a setting value.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting sets a setting value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?
	`, key, value, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// GetAllSettings returns all settings as a map.
func (db *DB) GetAllSettings() (map[string]string, error) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// Preferences are the user's persisted choices.
type Preferences struct {
	Sort     view.SortMode
	ShowDone bool
	DueOnly  bool

	LocalPath      string
	UseWebDAV      bool
	WebDAVURL      string
	WebDAVPath     string
	WebDAVUsername string
	WebDAVPassword string

	UseWhisper      bool
	WhisperLanguage string
	WhisperServer   string

	// Language overrides the system locale when set.
	Language string
}

// DefaultPreferences returns the preferences of a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{Sort: view.SortProject, WhisperLanguage: "auto"}
}

// Backend returns the storage config the preferences select, or false
// when nothing usable is configured.
func (p Preferences) Backend() (store.BackendConfig, bool) {
	var cfg store.BackendConfig
	if p.UseWebDAV {
		cfg = store.RemoteConfig(p.WebDAVURL, p.WebDAVPath, p.WebDAVUsername, p.WebDAVPassword)
	} else {
		cfg = store.LocalConfig(p.LocalPath)
	}
	return cfg, cfg.Validate() == nil
}

// View returns the persisted part of the view state.
func (p Preferences) View() view.State {
	return view.State{Sort: p.Sort, ShowDone: p.ShowDone, DueOnly: p.DueOnly}
}

// LoadPreferences reads preferences, filling gaps with defaults.
func (db *DB) LoadPreferences() (Preferences, error) {
	all, err := db.GetAllSettings()
	if err != nil {
		return DefaultPreferences(), err
	}
	p := DefaultPreferences()
	if v, ok := all[SettingSortMode]; ok {
		p.Sort, _ = view.ParseSortMode(v)
	}
	p.ShowDone = parseBool(all[SettingShowDone])
	p.DueOnly = parseBool(all[SettingDueOnly])
	p.LocalPath = all[SettingLocalPath]
	p.UseWebDAV = parseBool(all[SettingUseWebDAV])
	p.WebDAVURL = all[SettingWebDAVURL]
	p.WebDAVPath = all[SettingWebDAVPath]
	p.WebDAVUsername = all[SettingWebDAVUsername]
	p.WebDAVPassword = all[SettingWebDAVPassword]
	p.UseWhisper = parseBool(all[SettingUseWhisper])
	if v := all[SettingWhisperLanguage]; v != "" {
		p.WhisperLanguage = v
	}
	p.WhisperServer = all[SettingWhisperServer]
	p.Language = all[SettingLanguage]
	return p, nil
}

// SavePreferences writes all preferences in one transaction.
func (db *DB) SavePreferences(p Preferences) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		SettingSortMode:        p.Sort.String(),
		SettingShowDone:        strconv.FormatBool(p.ShowDone),
		SettingDueOnly:         strconv.FormatBool(p.DueOnly),
		SettingLocalPath:       p.LocalPath,
		SettingUseWebDAV:       strconv.FormatBool(p.UseWebDAV),
		SettingWebDAVURL:       p.WebDAVURL,
		SettingWebDAVPath:      p.WebDAVPath,
		SettingWebDAVUsername:  p.WebDAVUsername,
		SettingWebDAVPassword:  p.WebDAVPassword,
		SettingUseWhisper:      strconv.FormatBool(p.UseWhisper),
		SettingWhisperLanguage: p.WhisperLanguage,
		SettingWhisperServer:   p.WhisperServer,
		SettingLanguage:        p.Language,
	}
	for k, v := range values {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = ?
		`, k, v, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// Completion is one entry of the completion log.
type Completion struct {
	ID          int64
	Title       string
	Project     string
	Marker      string
	NextDue     string
	CompletedAt time.Time
}

// RecordCompletion appends to the completion log.
func (db *DB) RecordCompletion(c Completion) error {
	_, err := db.Exec(`
		INSERT INTO completions (title, project, marker, next_due) VALUES (?, ?, ?, ?)
	`, c.Title, c.Project, c.Marker, c.NextDue)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// RecentCompletions returns up to limit completions, newest first.
func (db *DB) RecentCompletions(limit int) ([]Completion, error) {
	rows, err := db.Query(`
		SELECT id, title, project, marker, next_due, completed_at
		FROM completions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		var at string
		if err := rows.Scan(&c.ID, &c.Title, &c.Project, &c.Marker, &c.NextDue, &at); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		c.CompletedAt = parseTimestamp(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

// parseTimestamp accepts both the CURRENT_TIMESTAMP text form and the
// RFC 3339 form the driver produces for DATETIME columns.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local()
		}
	}
	return time.Time{}
}
