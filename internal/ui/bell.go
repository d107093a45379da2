package ui

import (
	"os"
	"sync"
	"time"
)

var (
	bellMu   sync.Mutex
	lastBell time.Time
)

// bellGap is the minimum time between two bells.
const bellGap = 2 * time.Second

// RingBell writes BEL to the controlling terminal. Bursts of errors ring
// once. /dev/tty is used because bubbletea owns stdout.
func RingBell() {
	bellMu.Lock()
	now := time.Now()
	if now.Sub(lastBell) < bellGap {
		bellMu.Unlock()
		return
	}
	lastBell = now
	bellMu.Unlock()

	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		os.Stderr.WriteString("\a")
		return
	}
	defer tty.Close()
	tty.WriteString("\a")
}
