package app

import (
	"github.com/danst0/reinschrift/internal/store"
	"github.com/danst0/reinschrift/internal/task"
	"github.com/danst0/reinschrift/internal/view"
)

// Severity classifies an Outcome.
type Severity int

const (
	Info Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "info"
}

// Outcome is the user-visible result of a command, shown as a transient
// notification. An empty Message means nothing to show.
type Outcome struct {
	Severity Severity
	Message  string
	// Err is the underlying error for Error outcomes.
	Err error
}

// IsZero reports whether there is nothing to show.
func (o Outcome) IsZero() bool {
	return o.Message == ""
}

// Command is a user gesture handled by App.Dispatch.
type Command interface {
	command()
}

type (
	// Reload re-reads the task file.
	Reload struct{}

	// Toggle marks an item done or open.
	Toggle struct {
		Item task.Item
		Done bool
	}

	// Add inserts a bare title due today.
	Add struct {
		Title string
	}

	// AddItem inserts a fully specified item.
	AddItem struct {
		Item task.Item
	}

	// SetDue sets or clears the due date.
	SetDue struct {
		Item task.Item
		Due  *task.Date
	}

	// Postpone moves the due date to today plus Days.
	Postpone struct {
		Item task.Item
		Days int
	}

	// Edit writes back a changed item.
	Edit struct {
		Item task.Item
	}

	// Delete removes an item.
	Delete struct {
		Item task.Item
	}

	SetSort     struct{ Mode view.SortMode }
	SetSearch   struct{ Term string }
	SetShowDone struct{ Show bool }
	SetDueOnly  struct{ DueOnly bool }

	// StartVoice begins a dictation.
	StartVoice struct{}
	// StopVoice ends the recording; transcription continues in the background.
	StopVoice struct{}

	// SetBackend switches storage. The previous store stays active when
	// the new one cannot be opened.
	SetBackend struct {
		Config store.BackendConfig
	}

	// TestConnection checks a remote config in the background.
	TestConnection struct {
		Config store.BackendConfig
	}

	// SetVoice changes dictation preferences. Disabling voice removes the
	// downloaded model.
	SetVoice struct {
		Enabled  bool
		Language string
		Server   string
	}

	// DownloadModel fetches the recognition model in the background.
	DownloadModel struct{}

	// SetLanguage overrides the UI language ("" follows the system).
	SetLanguage struct {
		Language string
	}
)

func (Reload) command()         {}
func (Toggle) command()         {}
func (Add) command()            {}
func (AddItem) command()        {}
func (SetDue) command()         {}
func (Postpone) command()       {}
func (Edit) command()           {}
func (Delete) command()         {}
func (SetSort) command()        {}
func (SetSearch) command()      {}
func (SetShowDone) command()    {}
func (SetDueOnly) command()     {}
func (StartVoice) command()     {}
func (StopVoice) command()      {}
func (SetBackend) command()     {}
func (TestConnection) command() {}
func (SetVoice) command()       {}
func (DownloadModel) command()  {}
func (SetLanguage) command()    {}
