//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Board owns the output lines and the rangefinder lines on one chip.
// It implements Actuators and sensor.EchoTimer.
type Board struct {
	chip    *gpiocdev.Chip
	relay   *gpiocdev.Line
	buzzer  *gpiocdev.Line
	led     *gpiocdev.Line
	trigger *gpiocdev.Line
	echo    *gpiocdev.Line

	mu      sync.Mutex
	riseAt  time.Duration
	rising  bool
	widths  chan time.Duration
	pending bool
}

// NewBoard requests every line in pins. Outputs start low.
func NewBoard(pins Pins) (*Board, error) {
	chipName := pins.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &Board{chip: chip, widths: make(chan time.Duration, 1)}

	outputs := []struct {
		name string
		pin  int
		dst  **gpiocdev.Line
	}{
		{"relay", pins.Relay, &b.relay},
		{"buzzer", pins.Buzzer, &b.buzzer},
		{"led", pins.LED, &b.led},
		{"trigger", pins.Trigger, &b.trigger},
	}
	for _, o := range outputs {
		l, err := chip.RequestLine(o.pin, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", o.name, o.pin, err)
		}
		*o.dst = l
	}

	echo, err := chip.RequestLine(pins.Echo,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.handleEcho))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", pins.Echo, err)
	}
	b.echo = echo

	return b, nil
}

// SetPump drives the relay and the pump LED together.
func (b *Board) SetPump(on bool) error {
	v := boolToValue(on)
	if err := b.relay.SetValue(v); err != nil {
		return fmt.Errorf("set relay: %w", err)
	}
	if err := b.led.SetValue(v); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// SetAlarm drives the buzzer line.
func (b *Board) SetAlarm(on bool) error {
	if err := b.buzzer.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set buzzer: %w", err)
	}
	return nil
}

// handleEcho runs on the gpiocdev event goroutine. Kernel timestamps give
// the pulse width without scheduler jitter.
func (b *Board) handleEcho(evt gpiocdev.LineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		b.riseAt = evt.Timestamp
		b.rising = true
	case gpiocdev.LineEventFallingEdge:
		if !b.rising || !b.pending {
			return
		}
		b.rising = false
		b.pending = false
		select {
		case b.widths <- evt.Timestamp - b.riseAt:
		default:
		}
	}
}

// Echo fires one trigger pulse and waits up to timeout for the echo pulse.
// ok is false when no complete pulse arrived in time.
func (b *Board) Echo(timeout time.Duration) (time.Duration, bool, error) {
	b.mu.Lock()
	select {
	case <-b.widths:
	default:
	}
	b.rising = false
	b.pending = true
	b.mu.Unlock()

	if err := b.trigger.SetValue(1); err != nil {
		return 0, false, fmt.Errorf("trigger high: %w", err)
	}
	time.Sleep(TriggerPulse)
	if err := b.trigger.SetValue(0); err != nil {
		return 0, false, fmt.Errorf("trigger low: %w", err)
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case w := <-b.widths:
		return w, true, nil
	case <-t.C:
		b.mu.Lock()
		b.pending = false
		b.mu.Unlock()
		return 0, false, nil
	}
}

// Close drives the outputs low and releases the lines.
// Reconfigures lines to input with pull-down (matching Pi boot defaults) so
// the relay cannot latch on during reboot.
func (b *Board) Close() error {
	var errs []error

	for _, l := range []*gpiocdev.Line{b.relay, b.buzzer, b.led, b.trigger} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive line %d low: %w", l.Offset(), err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
		}
	}
	if b.echo != nil {
		if err := b.echo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close echo line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
