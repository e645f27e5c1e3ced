// Package sensor converts raw hardware observations into physical readings.
// It has no hardware dependencies: echo timing, analog counts and probe
// results are supplied through small interfaces so the conversions can be
// exercised with fakes.
package sensor

import (
	"errors"
	"time"
)

// MaxDistanceCm is the out-of-range sentinel. It is not a physical reading.
const MaxDistanceCm = 400

// EchoTimeout bounds how long a ranging pulse may wait for its echo.
const EchoTimeout = 30 * time.Millisecond

// Temperature plausibility bounds in °C.
const (
	MinPlausibleC = -50.0
	MaxPlausibleC = 120.0
)

var (
	// ErrSensorTimeout reports an absent echo. The reading is the sentinel.
	ErrSensorTimeout = errors.New("sensor timeout")
	// ErrSensorDisconnected reports an absent temperature probe.
	ErrSensorDisconnected = errors.New("sensor disconnected")
	// ErrImplausibleReading reports a value outside physical bounds.
	ErrImplausibleReading = errors.New("implausible reading")
	// ErrConversionPending is returned by a digital probe read before its
	// conversion has finished.
	ErrConversionPending = errors.New("conversion pending")
)

// DistanceSample is one ranging result.
type DistanceSample struct {
	DistanceCm int
	MeasuredAt time.Time
}

// TimedOut reports whether the sample is the out-of-range sentinel.
func (d DistanceSample) TimedOut() bool {
	return d.DistanceCm >= MaxDistanceCm
}

// TemperatureReading is one temperature result. Valid is false for
// disconnected or implausible probes.
type TemperatureReading struct {
	Celsius float64
	Valid   bool
}

// OrDefault returns Celsius when valid, otherwise def.
func (r TemperatureReading) OrDefault(def float64) float64 {
	if r.Valid {
		return r.Celsius
	}
	return def
}

func plausible(c float64) bool {
	return c >= MinPlausibleC && c <= MaxPlausibleC
}
