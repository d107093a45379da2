// Package ui provides the terminal user interface.
package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// unicodeSupported caches whether the terminal supports Unicode.
// Initialized once on first call to SupportsUnicode().
var (
	unicodeSupported     bool
	unicodeSupportedOnce sync.Once
)

// SupportsUnicode returns true if the terminal likely supports Unicode characters.
// It checks LANG, LC_ALL, and LC_CTYPE environment variables for UTF-8 indicators.
func SupportsUnicode() bool {
	unicodeSupportedOnce.Do(func() {
		for _, envVar := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
			val := strings.ToLower(os.Getenv(envVar))
			if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
				unicodeSupported = true
				return
			}
		}
		unicodeSupported = false
	})
	return unicodeSupported
}

// Icon constants - Unicode and ASCII versions
const (
	IconOpenUnicode       = "☐"
	IconDoneUnicode       = "☑"
	IconRecurUnicode      = "↻"
	IconMicUnicode        = "●"
	IconOverdueUnicode    = "⚠"
	IconCursorUnicode     = "▌"
	IconTranscribeUnicode = "…"

	IconOpenASCII       = "[ ]"
	IconDoneASCII       = "[x]"
	IconRecurASCII      = "@"
	IconMicASCII        = "*"
	IconOverdueASCII    = "!"
	IconCursorASCII     = ">"
	IconTranscribeASCII = "..."
)

// Icon returns the appropriate icon based on terminal Unicode support.
func Icon(unicodeIcon, asciiIcon string) string {
	if SupportsUnicode() {
		return unicodeIcon
	}
	return asciiIcon
}

// IconOpen returns the open checkbox.
func IconOpen() string { return Icon(IconOpenUnicode, IconOpenASCII) }

// IconDone returns the checked checkbox.
func IconDone() string { return Icon(IconDoneUnicode, IconDoneASCII) }

// IconRecur marks repeating tasks.
func IconRecur() string { return Icon(IconRecurUnicode, IconRecurASCII) }

// IconMic marks an active recording.
func IconMic() string { return Icon(IconMicUnicode, IconMicASCII) }

// IconOverdue marks overdue tasks.
func IconOverdue() string { return Icon(IconOverdueUnicode, IconOverdueASCII) }

// IconTranscribe marks a running transcription.
func IconTranscribe() string { return Icon(IconTranscribeUnicode, IconTranscribeASCII) }

// IconCursor marks the selected row.
func IconCursor() string { return Icon(IconCursorUnicode, IconCursorASCII) }

// Colors
var (
	ColorPrimary   = lipgloss.Color("#61AFEF") // Soft blue
	ColorSecondary = lipgloss.Color("#56B6C2") // Cyan
	ColorSuccess   = lipgloss.Color("#98C379") // Green
	ColorWarning   = lipgloss.Color("#E5C07B") // Yellow
	ColorError     = lipgloss.Color("#E06C75") // Red
	ColorMuted     = lipgloss.Color("#5C6370") // Gray
	ColorProject   = lipgloss.Color("#C678DD") // Purple
	ColorContext   = lipgloss.Color("#D19A66") // Orange
)

// Base styles
var (
	Bold     = lipgloss.NewStyle().Bold(true)
	Dim      = lipgloss.NewStyle().Foreground(ColorMuted)
	Title    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	Subtitle = lipgloss.NewStyle().Foreground(ColorSecondary)
	Success  = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning  = lipgloss.NewStyle().Foreground(ColorWarning)
	Error    = lipgloss.NewStyle().Foreground(ColorError)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary).
			MarginTop(1)
	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)
	DoneStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Strikethrough(true)
	ProjectStyle = lipgloss.NewStyle().Foreground(ColorProject)
	ContextStyle = lipgloss.NewStyle().Foreground(ColorContext)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1)

	NotifyInfo = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Padding(0, 1)
	NotifyError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true).
			Padding(0, 1)

	StatusBar = lipgloss.NewStyle().
			Foreground(ColorMuted)
)
