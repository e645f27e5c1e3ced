// Package clock provides the time source and elapsed-time timers used by every
// timing-gated component. Nothing here sleeps: callers compare elapsed time
// against a threshold on each tick.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Implementations must be monotonic for the
// purposes of Sub; time.Now satisfies this.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Timer records when something was armed. The zero value is disarmed.
type Timer struct {
	armedAt time.Time
	armed   bool
}

// Arm starts (or restarts) the timer at now.
func (t *Timer) Arm(now time.Time) {
	t.armedAt = now
	t.armed = true
}

// Disarm clears the timer.
func (t *Timer) Disarm() {
	t.armed = false
	t.armedAt = time.Time{}
}

// Armed reports whether Arm has been called since the last Disarm.
func (t *Timer) Armed() bool { return t.armed }

// ArmedAt returns the time the timer was last armed.
func (t *Timer) ArmedAt() time.Time { return t.armedAt }

// Elapsed returns the time since the timer was armed, or 0 if disarmed.
// A now earlier than armedAt also yields 0.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	if !t.armed {
		return 0
	}
	d := now.Sub(t.armedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Expired reports whether at least d has elapsed since arming.
// A disarmed timer is always expired.
func (t *Timer) Expired(now time.Time, d time.Duration) bool {
	if !t.armed {
		return true
	}
	return t.Elapsed(now) >= d
}
