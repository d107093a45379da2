package store

import (
	"regexp"
	"strings"

	"github.com/danst0/reinschrift/internal/task"
)

var (
	projectRe    = regexp.MustCompile(`(?:^|\s)\+(\S+)`)
	contextRe    = regexp.MustCompile(`(?:^|\s)@(\S+)`)
	dueRe        = regexp.MustCompile(`(?:^|\s)due:(\d{4}-\d{2}-\d{2})`)
	everyRe      = regexp.MustCompile(`(?:^|\s)every:(daily|weekly|monthly)`)
	linkRe       = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	markerRe     = regexp.MustCompile(`(?:^|\s)\^([A-Za-z0-9-]+)`)
	completionRe = regexp.MustCompile(`\s✅\s(\d{4}-\d{2}-\d{2})`)
)

// titleStops are the tokens at which the free-text title ends.
var titleStops = []string{" +", " @", " due:", " every:", " [[", " ✅", " ^"}

// leadingTokens start a line body that has no title text of its own.
var leadingTokens = []string{"+", "@", "due:", "every:", "[[", "✅", "^"}

const (
	openBox  = "- [ ]"
	doneBox  = "- [x]"
	doneBoxU = "- [X]"
	divider  = "---"
)

// Parse decodes a task file into items. Lines that are not checkbox items
// are skipped; "###" headings set the section of the following items.
func Parse(content string) []task.Item {
	var items []task.Item
	section := ""
	for idx, line := range splitLines(content) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "###") {
			section = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		if it, ok := parseLine(line, idx, section); ok {
			items = append(items, it)
		}
	}
	return items
}

func parseLine(line string, idx int, section string) (task.Item, bool) {
	trimmed := strings.TrimRight(strings.TrimLeft(line, " \t"), "\r")

	var done bool
	switch {
	case strings.HasPrefix(trimmed, doneBox), strings.HasPrefix(trimmed, doneBoxU):
		done = true
	case strings.HasPrefix(trimmed, openBox):
	default:
		return task.Item{}, false
	}
	rest := strings.TrimSpace(trimmed[len(openBox):])

	it := task.Item{
		Title:     extractTitle(rest),
		Section:   section,
		Project:   capture(projectRe, rest),
		Context:   capture(contextRe, rest),
		Reference: capture(linkRe, rest),
		Marker:    capture(markerRe, rest),
		Done:      done,
	}
	it.Key = task.Key{Line: idx, Marker: it.Marker}

	if s := capture(dueRe, rest); s != "" {
		if d, err := task.ParseDate(s); err == nil {
			it.Due = &d
		}
	}
	if s := capture(completionRe, rest); s != "" {
		if d, err := task.ParseDate(s); err == nil {
			it.Completed = &d
		}
	}
	if s := capture(everyRe, rest); s != "" {
		it.Recurrence, _ = task.ParseRecurrence(s)
	}
	return it, true
}

func capture(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractTitle(rest string) string {
	for _, tok := range leadingTokens {
		if strings.HasPrefix(rest, tok) {
			return rest
		}
	}
	cut := len(rest)
	for _, stop := range titleStops {
		if i := strings.Index(rest, stop); i != -1 && i < cut {
			cut = i
		}
	}
	if title := strings.TrimSpace(rest[:cut]); title != "" {
		return title
	}
	return rest
}

// FormatLine renders an item as a single task line without indentation.
func FormatLine(it task.Item) string {
	var b strings.Builder
	if it.Done {
		b.WriteString(doneBox)
	} else {
		b.WriteString(openBox)
	}
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(it.Title))
	if p := strings.TrimLeft(strings.TrimSpace(it.Project), "+"); p != "" {
		b.WriteString(" +" + p)
	}
	if c := strings.TrimLeft(strings.TrimSpace(it.Context), "@"); c != "" {
		b.WriteString(" @" + c)
	}
	if it.Due != nil {
		b.WriteString(" due:" + it.Due.String())
	}
	if it.Recurrence != task.RecurNone {
		b.WriteString(" every:" + string(it.Recurrence))
	}
	if r := strings.TrimSpace(it.Reference); r != "" {
		b.WriteString(" [[" + r + "]]")
	}
	if it.Done && it.Completed != nil {
		b.WriteString(" ✅ " + it.Completed.String())
	}
	if it.Marker != "" {
		b.WriteString(" ^" + it.Marker)
	}
	return b.String()
}

// rewriteDone flips the checkbox of line in place. Completing stamps
// today's date before the block marker; reopening drops the stamp.
func rewriteDone(line string, done bool, today task.Date) string {
	updated := completionRe.ReplaceAllString(line, "")
	if !done {
		updated = strings.Replace(updated, doneBox, openBox, 1)
		return strings.Replace(updated, doneBoxU, openBox, 1)
	}

	updated = strings.Replace(updated, openBox, doneBox, 1)
	updated = strings.Replace(updated, doneBoxU, doneBox, 1)
	stamp := " ✅ " + today.String()

	if loc := markerRe.FindStringIndex(updated); loc != nil {
		head := strings.TrimRight(updated[:loc[0]], " \t")
		tail := strings.TrimLeft(updated[loc[0]:], " \t")
		return head + stamp + " " + tail
	}
	return strings.TrimRight(updated, " \t") + stamp
}

func isTaskLine(line string) bool {
	_, ok := parseLine(line, 0, "")
	return ok
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// splitLines splits content into lines without the trailing empty line a
// final newline would produce.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}

// dividerIndex returns the index of the first "---" line, or len(lines).
func dividerIndex(lines []string) int {
	for i, l := range lines {
		if strings.TrimSpace(l) == divider {
			return i
		}
	}
	return len(lines)
}

// sectionEnd returns the index just after the last task line of section,
// or -1 when the section has no heading in the file.
func sectionEnd(lines []string, section string) int {
	if section == "" {
		return -1
	}
	current := ""
	end := -1
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "###") {
			current = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if current == section && end == -1 {
				end = i + 1
			}
			continue
		}
		if current == section && isTaskLine(l) {
			end = i + 1
		}
	}
	return end
}
