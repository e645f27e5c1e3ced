package gpio

import (
	"errors"
	"time"
)

// FakeBoard is a test double that records output writes and returns
// scripted echo pulses.
type FakeBoard struct {
	// Pump and Alarm hold the last written output states.
	Pump  bool
	Alarm bool

	// Writes records every output write in order.
	Writes []Write

	// Echoes contains scripted echo results.
	// Each call to Echo() consumes the next one.
	Echoes []EchoSample

	// index tracks current position in Echoes
	index int

	// Closed tracks if Close was called
	Closed bool

	// WriteError, if set, will be returned by SetPump and SetAlarm.
	WriteError error
}

// Write is one recorded output change.
type Write struct {
	Output string // "pump" or "alarm"
	On     bool
}

// EchoSample is a single scripted rangefinder result.
type EchoSample struct {
	Width time.Duration
	OK    bool
	Err   error
}

// EchoForCm returns the echo sample a target at cm would produce.
func EchoForCm(cm float64) EchoSample {
	us := cm * 2 / 0.0343
	return EchoSample{Width: time.Duration(us * float64(time.Microsecond)), OK: true}
}

// NewFakeBoard creates a FakeBoard with the given echoes.
func NewFakeBoard(echoes ...EchoSample) *FakeBoard {
	return &FakeBoard{Echoes: echoes}
}

// SetPump records the relay state.
func (f *FakeBoard) SetPump(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Pump = on
	f.Writes = append(f.Writes, Write{Output: "pump", On: on})
	return nil
}

// SetAlarm records the alarm state.
func (f *FakeBoard) SetAlarm(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Alarm = on
	f.Writes = append(f.Writes, Write{Output: "alarm", On: on})
	return nil
}

// Echo returns the next scripted echo.
// If echoes are exhausted, returns the last one repeatedly.
func (f *FakeBoard) Echo(timeout time.Duration) (time.Duration, bool, error) {
	if len(f.Echoes) == 0 {
		return 0, false, errors.New("no echoes configured")
	}

	e := f.Echoes[f.index]
	if f.index < len(f.Echoes)-1 {
		f.index++
	}
	return e.Width, e.OK, e.Err
}

// SetEcho replaces the scripted echoes with a single repeating sample.
func (f *FakeBoard) SetEcho(e EchoSample) {
	f.Echoes = []EchoSample{e}
	f.index = 0
}

// Close marks the board as closed and records outputs off.
func (f *FakeBoard) Close() error {
	f.Pump = false
	f.Alarm = false
	f.Closed = true
	return nil
}
