package sensor

import (
	"time"
)

// SpeedOfSoundCmPerUs is the propagation speed in air at ~20°C.
const SpeedOfSoundCmPerUs = 0.0343

// EchoTimer fires one ranging pulse and reports the round-trip echo width.
// ok is false when no echo arrived within timeout.
type EchoTimer interface {
	Echo(timeout time.Duration) (width time.Duration, ok bool, err error)
}

// Clock is the subset of clock.Clock the sensors need.
type Clock interface {
	Now() time.Time
}

// DistanceFromEcho converts a round-trip echo width into centimetres.
// Missing or zero-width echoes yield MaxDistanceCm, and results above the
// sentinel are clamped down to it.
func DistanceFromEcho(width time.Duration, ok bool) int {
	if !ok || width <= 0 {
		return MaxDistanceCm
	}
	us := float64(width) / float64(time.Microsecond)
	cm := int(us * SpeedOfSoundCmPerUs / 2.0)
	if cm > MaxDistanceCm {
		return MaxDistanceCm
	}
	if cm < 0 {
		return 0
	}
	return cm
}

// Ranger measures distance with an ultrasonic transducer.
type Ranger struct {
	echo    EchoTimer
	clock   Clock
	timeout time.Duration
}

// NewRanger creates a Ranger with the standard 30ms echo timeout.
func NewRanger(echo EchoTimer, clock Clock) *Ranger {
	return &Ranger{echo: echo, clock: clock, timeout: EchoTimeout}
}

// Measure fires one pulse. A timeout is a valid reading (max range); the
// returned error is ErrSensorTimeout in that case and only informs logging.
// Hardware errors are also reported as the sentinel distance.
func (r *Ranger) Measure() (DistanceSample, error) {
	width, ok, err := r.echo.Echo(r.timeout)
	sample := DistanceSample{
		DistanceCm: DistanceFromEcho(width, ok && err == nil),
		MeasuredAt: r.clock.Now(),
	}
	if err != nil {
		return sample, err
	}
	if !ok {
		return sample, ErrSensorTimeout
	}
	return sample, nil
}
