package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnknownDate is returned when a due expression cannot be understood.
var ErrUnknownDate = errors.New("unknown date")

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDue parses a user-entered due date relative to now. It accepts
// YYYY-MM-DD, "today", "someday" and English expressions such as
// "next friday" or "in 3 days". An empty string means no due date.
func ParseDue(s string, now time.Time) (*Date, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none":
		return nil, nil
	case "today":
		return DateOf(now).Ptr(), nil
	case "tomorrow":
		return DateOf(now).AddDays(1).Ptr(), nil
	case "someday", "irgendwann":
		return Someday.Ptr(), nil
	}
	if d, err := ParseDate(s); err == nil {
		return &d, nil
	}
	r, err := dueParser.Parse(s, now)
	if err != nil {
		return nil, fmt.Errorf("parse due %q: %w", s, err)
	}
	if r == nil {
		return nil, fmt.Errorf("parse due %q: %w", s, ErrUnknownDate)
	}
	return DateOf(r.Time).Ptr(), nil
}
