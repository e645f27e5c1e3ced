package logic

import (
	"time"

	"github.com/sweeney/water-filter/internal/clock"
)

// Stability is the settling gate shared by the controller and the TDS
// channels. Every pump edge marks all channels unstable; each channel
// becomes stable again on its first check after the direction-specific
// window has elapsed.
type Stability struct {
	afterOn  time.Duration
	afterOff time.Duration

	changed   clock.Timer
	changedOn bool
	unstable  map[ChannelID]bool
}

// NewStability creates a gate with the given settling windows. All
// channels start stable.
func NewStability(afterOn, afterOff time.Duration) *Stability {
	return &Stability{
		afterOn:  afterOn,
		afterOff: afterOff,
		unstable: make(map[ChannelID]bool),
	}
}

// Arm records a pump edge at now and marks both channels unstable.
func (s *Stability) Arm(now time.Time, pumpOn bool) {
	s.changed.Arm(now)
	s.changedOn = pumpOn
	s.unstable[ChannelInput] = true
	s.unstable[ChannelOutput] = true
}

// Window returns the settling window for the last edge direction.
func (s *Stability) Window() time.Duration {
	if s.changedOn {
		return s.afterOn
	}
	return s.afterOff
}

// Ready reports whether ch may sample at now, clearing its unstable flag
// once the window has elapsed.
func (s *Stability) Ready(ch ChannelID, now time.Time) bool {
	if !s.unstable[ch] {
		return true
	}
	if !s.changed.Expired(now, s.Window()) {
		return false
	}
	s.unstable[ch] = false
	return true
}

// Remaining returns how long ch still has to wait, or 0.
func (s *Stability) Remaining(ch ChannelID, now time.Time) time.Duration {
	if !s.unstable[ch] {
		return 0
	}
	r := s.Window() - s.changed.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

// Stable reports whether ch is currently stable.
func (s *Stability) Stable(ch ChannelID) bool {
	return !s.unstable[ch]
}

// AllStable reports whether no channel is waiting.
func (s *Stability) AllStable() bool {
	return !s.unstable[ChannelInput] && !s.unstable[ChannelOutput]
}

// LastChange returns the time of the last pump edge (zero if none).
func (s *Stability) LastChange() time.Time {
	return s.changed.ArmedAt()
}
