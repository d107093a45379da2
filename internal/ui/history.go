package ui

import "time"

// draftState is one saved value of the compose input.
type draftState struct {
	text   string
	cursor int
	at     time.Time
}

// draftHistory is the undo/redo record of the compose input. Keystrokes
// arriving within burst of each other collapse into one step; a dictated
// segment is always its own step.
type draftHistory struct {
	past   []draftState
	future []draftState
	burst  time.Duration
	limit  int
	now    func() time.Time
}

func newDraftHistory() *draftHistory {
	return &draftHistory{burst: 800 * time.Millisecond, limit: 100, now: time.Now}
}

// Typed records the value before a keystroke changed it.
func (h *draftHistory) Typed(text string, cursor int) {
	now := h.now()
	h.future = h.future[:0]
	if n := len(h.past); n > 0 && now.Sub(h.past[n-1].at) < h.burst {
		h.past[n-1].at = now
		return
	}
	h.push(draftState{text: text, cursor: cursor, at: now})
}

// Dictated records the value before a transcription was appended.
func (h *draftHistory) Dictated(text string, cursor int) {
	h.future = h.future[:0]
	// Zero time keeps the next keystroke from merging into this step.
	h.push(draftState{text: text, cursor: cursor})
}

func (h *draftHistory) push(s draftState) {
	h.past = append(h.past, s)
	if len(h.past) > h.limit {
		h.past = h.past[len(h.past)-h.limit:]
	}
}

// Undo returns the previous value, saving the current one for Redo.
func (h *draftHistory) Undo(text string, cursor int) (string, int, bool) {
	n := len(h.past)
	if n == 0 {
		return "", 0, false
	}
	prev := h.past[n-1]
	h.past = h.past[:n-1]
	h.future = append(h.future, draftState{text: text, cursor: cursor})
	return prev.text, prev.cursor, true
}

// Redo re-applies the last undone value.
func (h *draftHistory) Redo(text string, cursor int) (string, int, bool) {
	n := len(h.future)
	if n == 0 {
		return "", 0, false
	}
	next := h.future[n-1]
	h.future = h.future[:n-1]
	h.past = append(h.past, draftState{text: text, cursor: cursor})
	return next.text, next.cursor, true
}

// Reset forgets everything, e.g. after the draft was submitted.
func (h *draftHistory) Reset() {
	h.past = h.past[:0]
	h.future = h.future[:0]
}
