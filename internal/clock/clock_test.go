package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)
	if !f.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, f.Now())
	}
	f.Advance(1500 * time.Millisecond)
	if got := f.Now().Sub(start); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s advance, got %v", got)
	}
}

func TestTimerDisarmedIsExpired(t *testing.T) {
	var tm Timer
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if tm.Armed() {
		t.Error("zero timer should not be armed")
	}
	if !tm.Expired(now, time.Hour) {
		t.Error("disarmed timer should report expired")
	}
	if tm.Elapsed(now) != 0 {
		t.Errorf("disarmed timer elapsed should be 0, got %v", tm.Elapsed(now))
	}
}

func TestTimerExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Arm(now)

	if tm.Expired(now.Add(2999*time.Millisecond), 3*time.Second) {
		t.Error("should not expire at 2999ms")
	}
	if !tm.Expired(now.Add(3*time.Second), 3*time.Second) {
		t.Error("should expire at exactly 3s")
	}
	if got := tm.Elapsed(now.Add(time.Second)); got != time.Second {
		t.Errorf("elapsed: got %v, want 1s", got)
	}
}

func TestTimerRearm(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Arm(now)
	tm.Arm(now.Add(10 * time.Second))

	if tm.Expired(now.Add(11*time.Second), 3*time.Second) {
		t.Error("re-armed timer should measure from the second arm")
	}
	if !tm.ArmedAt().Equal(now.Add(10 * time.Second)) {
		t.Errorf("ArmedAt: got %v", tm.ArmedAt())
	}

	tm.Disarm()
	if tm.Armed() {
		t.Error("expected disarmed")
	}
}

func TestTimerClockSkewBackwards(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var tm Timer
	tm.Arm(now)
	if got := tm.Elapsed(now.Add(-time.Second)); got != 0 {
		t.Errorf("elapsed before arm should clamp to 0, got %v", got)
	}
}
