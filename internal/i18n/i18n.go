// Package i18n looks up user-visible strings in embedded catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when neither the override nor the system locale
// has a catalog entry.
const DefaultLanguage = "en"

//go:embed locales/*.json
var localeFS embed.FS

var (
	loadOnce sync.Once
	catalogs map[string]map[string]string
	loadErr  error
)

func load() (map[string]map[string]string, error) {
	loadOnce.Do(func() {
		catalogs = make(map[string]map[string]string)
		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			loadErr = err
			return
		}
		for _, e := range entries {
			data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
			if err != nil {
				loadErr = err
				return
			}
			var m map[string]string
			if err := json.Unmarshal(data, &m); err != nil {
				loadErr = fmt.Errorf("parse %s: %w", e.Name(), err)
				return
			}
			catalogs[strings.TrimSuffix(e.Name(), ".json")] = m
		}
	})
	return catalogs, loadErr
}

// Languages returns the codes of all embedded catalogs.
func Languages() []string {
	cats, _ := load()
	out := make([]string, 0, len(cats))
	for code := range cats {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Translator resolves keys against an override language, then the system
// locale, then DefaultLanguage. Unknown keys come back unchanged.
type Translator struct {
	mu       sync.RWMutex
	override string
	system   []string
}

// New returns a translator for the given override ("" follows the system).
func New(override string) *Translator {
	return &Translator{override: override, system: SystemLocales()}
}

// SetLanguage changes the override; "" or "auto" clears it.
func (t *Translator) SetLanguage(lang string) {
	if lang == "auto" {
		lang = ""
	}
	t.mu.Lock()
	t.override = lang
	t.mu.Unlock()
}

// Language returns the current override.
func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.override
}

// T returns the translation of key.
func (t *Translator) T(key string) string {
	cats, err := load()
	if err != nil {
		return key
	}
	for _, code := range t.candidates() {
		if v, ok := cats[code][key]; ok {
			return v
		}
	}
	return key
}

// Tf translates key and substitutes arg for the {} placeholder.
func (t *Translator) Tf(key string, arg any) string {
	return strings.ReplaceAll(t.T(key), "{}", fmt.Sprint(arg))
}

func (t *Translator) candidates() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var locales []string
	if t.override != "" {
		locales = []string{t.override}
	} else {
		locales = t.system
	}
	var out []string
	for _, l := range locales {
		out = append(out, expand(l)...)
	}
	return append(out, DefaultLanguage)
}

// expand turns a locale into its catalog lookup codes, most specific
// first: "de_CH.UTF-8" gives "de-CH", "de".
func expand(locale string) []string {
	locale, _, _ = strings.Cut(locale, ".")
	locale, _, _ = strings.Cut(locale, "@")
	locale = strings.ReplaceAll(locale, "_", "-")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil
	}
	base, _ := tag.Base()
	full := tag.String()
	if full == base.String() {
		return []string{full}
	}
	return []string{full, base.String()}
}

// SystemLocales returns the user's locales from the environment in
// priority order.
func SystemLocales() []string {
	var out []string
	if v := os.Getenv("LANGUAGE"); v != "" {
		out = append(out, strings.Split(v, ":")...)
	}
	for _, k := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(k); v != "" {
			out = append(out, v)
		}
	}
	return out
}
