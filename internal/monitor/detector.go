// Package monitor notices when the task file changed behind our back.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/danst0/reinschrift/internal/store"
)

const (
	// BaseInterval is the poll interval after a successful check.
	BaseInterval = 10 * time.Second
	// MaxInterval caps the backoff after repeated failures.
	MaxInterval = 300 * time.Second
)

// Source computes the current fingerprint of the task file.
type Source func(ctx context.Context) (store.Fingerprint, error)

// Detector tracks the last seen fingerprint and the poll interval.
// It is not safe for concurrent use; the owning loop calls it.
type Detector struct {
	base     time.Duration
	max      time.Duration
	interval time.Duration
	last     store.Fingerprint
	known    bool
	logger   *log.Logger
}

// NewDetector returns a detector polling at base with backoff up to max.
// Zero durations select BaseInterval and MaxInterval.
func NewDetector(base, max time.Duration, logger *log.Logger) *Detector {
	if base <= 0 {
		base = BaseInterval
	}
	if max < base {
		max = MaxInterval
		if max < base {
			max = base
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Detector{base: base, max: max, interval: base, logger: logger}
}

// Interval returns the delay before the next poll.
func (d *Detector) Interval() time.Duration {
	return d.interval
}

// Last returns the remembered fingerprint and whether there is one.
func (d *Detector) Last() (store.Fingerprint, bool) {
	return d.last, d.known
}

// Remember records the fingerprint of the snapshot just loaded.
func (d *Detector) Remember(fp store.Fingerprint) {
	d.last = fp
	d.known = true
}

// Forget clears the remembered fingerprint so the next poll reports a
// change. Used after switching backends.
func (d *Detector) Forget() {
	d.last = ""
	d.known = false
	d.interval = d.base
}

// Observe applies the outcome of one fingerprint computation. It returns
// true when the caller should reload. Failures double the interval up to
// the cap and never ask for a reload; any success resets the interval.
func (d *Detector) Observe(fp store.Fingerprint, err error) bool {
	if err != nil {
		d.interval *= 2
		if d.interval > d.max {
			d.interval = d.max
		}
		d.logger.Warn("fingerprint check failed", "err", err, "next", d.interval)
		return false
	}
	d.interval = d.base
	if d.known && fp == d.last {
		return false
	}
	d.logger.Debug("task file changed", "fingerprint", fp.Short())
	return true
}

// Poll computes the fingerprint with src and observes the result.
func (d *Detector) Poll(ctx context.Context, src Source) (bool, error) {
	fp, err := src(ctx)
	return d.Observe(fp, err), err
}
