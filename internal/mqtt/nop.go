package mqtt

import "github.com/sweeney/water-filter/internal/engine"

// NopPublisher is used when no broker is configured. It never connects and
// delivers no commands.
type NopPublisher struct{}

func (NopPublisher) PublishTelemetry(engine.TelemetrySnapshot) error { return nil }
func (NopPublisher) PublishStatus(StatusMessage) error               { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error                 { return nil }
func (NopPublisher) Close() error                                    { return nil }
func (NopPublisher) IsConnected() bool                               { return false }
func (NopPublisher) Commands() <-chan ControlMessage                 { return nil }
