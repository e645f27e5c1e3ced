package mqtt

import (
	"github.com/sweeney/water-filter/internal/engine"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Telemetry contains all snapshots that were published.
	Telemetry []engine.TelemetrySnapshot

	// Statuses contains all status messages that were published.
	Statuses []StatusMessage

	// StatusPayloads contains the JSON payloads for status messages.
	StatusPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by every publish call.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Control is returned by Commands; tests send on it.
	Control chan ControlMessage
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Control: make(chan ControlMessage, commandBacklog)}
}

// PublishTelemetry records the snapshot.
func (f *FakePublisher) PublishTelemetry(snap engine.TelemetrySnapshot) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	if _, err := FormatTelemetry(snap); err != nil {
		return err
	}
	f.Telemetry = append(f.Telemetry, snap)
	return nil
}

// PublishStatus records the status message.
func (f *FakePublisher) PublishStatus(msg StatusMessage) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatStatus(msg)
	if err != nil {
		return err
	}
	f.Statuses = append(f.Statuses, msg)
	f.StatusPayloads = append(f.StatusPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Commands returns the test-controlled control channel.
func (f *FakePublisher) Commands() <-chan ControlMessage {
	return f.Control
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Telemetry = nil
	f.Statuses = nil
	f.StatusPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.Connected = false
}
