//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// Board is not available on non-Linux platforms.
type Board struct{}

// NewBoard returns an error on non-Linux platforms.
func NewBoard(pins Pins) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetPump is not implemented on non-Linux platforms.
func (b *Board) SetPump(on bool) error {
	return errors.New("gpio: not supported")
}

// SetAlarm is not implemented on non-Linux platforms.
func (b *Board) SetAlarm(on bool) error {
	return errors.New("gpio: not supported")
}

// Echo is not implemented on non-Linux platforms.
func (b *Board) Echo(timeout time.Duration) (time.Duration, bool, error) {
	return 0, false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *Board) Close() error {
	return nil
}
