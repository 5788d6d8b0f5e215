// Package quota guards a daily token budget for a rate-limited external API.
// One tracker instance is shared by every fetcher of the same API; a mutex
// keeps reserve/consume pairs from interleaving into a double-spend.
package quota

import (
	"sync"
	"time"
)

// Tracker counts usage against a daily limit with a safety buffer. Usage
// resets to zero once wall-clock time crosses the configured reset hour
// (UTC). State is in-process per worker; a deployment sharing one budget
// across processes should back this with a shared counter instead.
type Tracker struct {
	mu        sync.Mutex
	used      int
	limit     int
	buffer    int
	resetHour int
	lastReset time.Time
	now       func() time.Time
}

type Status struct {
	Used       int
	Remaining  int
	CanProceed bool
}

func NewTracker(limit, buffer, resetHour int) *Tracker {
	return &Tracker{
		limit:     limit,
		buffer:    buffer,
		resetHour: resetHour,
		now:       time.Now,
	}
}

// NewTrackerWithClock injects the clock, for tests.
func NewTrackerWithClock(limit, buffer, resetHour int, now func() time.Time) *Tracker {
	t := NewTracker(limit, buffer, resetHour)
	t.now = now
	t.lastReset = now().UTC()
	return t
}

// Reserve is the pre-flight check before a costed call: it reports whether
// the estimated cost fits the remaining budget above the safety buffer.
// Reserve does not consume; the caller records actual cost via Consume
// after the call succeeds.
func (t *Tracker) Reserve(cost int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeReset()

	return cost <= t.limit-t.used-t.buffer
}

// Consume records the actual cost of a completed call. Estimated and actual
// cost may differ, e.g. for paginated calls.
func (t *Tracker) Consume(cost int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeReset()
	t.used += cost
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeReset()

	remaining := t.limit - t.used
	return Status{
		Used:       t.used,
		Remaining:  remaining,
		CanProceed: remaining > t.buffer,
	}
}

// maybeReset zeroes usage once the clock has crossed the reset hour since
// the last reset. Callers must hold the mutex.
func (t *Tracker) maybeReset() {
	now := t.now().UTC()

	if t.lastReset.IsZero() {
		t.lastReset = now
		return
	}

	boundary := time.Date(now.Year(), now.Month(), now.Day(), t.resetHour, 0, 0, 0, time.UTC)
	if boundary.After(now) {
		boundary = boundary.AddDate(0, 0, -1)
	}

	if t.lastReset.Before(boundary) {
		t.used = 0
		t.lastReset = now
	}
}
