// Package gpio drives the pump relay, the alarm outputs and the ultrasonic
// rangefinder with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Actuators switches the physical outputs.
type Actuators interface {
	// SetPump energises (true) or releases (false) the pump relay.
	// The pump LED follows the relay.
	SetPump(on bool) error

	// SetAlarm drives the buzzer.
	SetAlarm(on bool) error

	// Close releases GPIO resources, leaving every output off.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinTrigger = 23 // HC-SR04 trigger
	DefaultPinEcho    = 24 // HC-SR04 echo (through a 5V->3V3 divider)
	DefaultPinRelay   = 25 // Pump relay
	DefaultPinBuzzer  = 5  // Alarm buzzer
	DefaultPinLED     = 6  // Pump running LED
)

// Pins selects the chip and line offsets used by Board.
type Pins struct {
	Chip    string
	Trigger int
	Echo    int
	Relay   int
	Buzzer  int
	LED     int
}

// TriggerPulse is the HC-SR04 trigger high time.
const TriggerPulse = 10 * time.Microsecond
