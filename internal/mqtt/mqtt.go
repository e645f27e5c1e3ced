// Package mqtt provides MQTT publishing and control intake with abstraction
// for testing.
package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/logic"
)

// Status values carried on the status topic.
const (
	StatusSuccess = "SUCCESS"
	StatusReject  = "REJECT"
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

// Publisher publishes telemetry, status and system events to MQTT.
type Publisher interface {
	// PublishTelemetry sends a sensor snapshot to the data topic.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(snap engine.TelemetrySnapshot) error

	// PublishStatus sends a command acknowledgement or state change.
	PublishStatus(msg StatusMessage) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandSource delivers control messages received from the broker.
type CommandSource interface {
	Commands() <-chan ControlMessage
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatusMessage is one entry on the status topic.
type StatusMessage struct {
	Timestamp time.Time
	Status    string // SUCCESS, REJECT, ONLINE or an event type
	Message   string
	Command   string
	UseCount  *int
}

// StatusFromResult maps a command outcome to a status message.
func StatusFromResult(r logic.CommandResult, now time.Time) StatusMessage {
	status := StatusSuccess
	if !r.Accepted {
		status = StatusReject
	}
	return StatusMessage{Timestamp: now, Status: status, Message: r.Reason, Command: string(r.Command)}
}

// StatusFromEvent maps a control event to a status message.
func StatusFromEvent(e logic.Event) StatusMessage {
	count := e.UseCount
	return StatusMessage{Timestamp: e.Timestamp, Status: string(e.Type), Message: e.Reason, UseCount: &count}
}

// ControlMessage is one decoded message from the control topic.
type ControlMessage struct {
	Command  string
	Received time.Time
}

// controlPayload is the JSON body accepted on the control topic.
type controlPayload struct {
	Command string `json:"command"`
}

// ParseControl decodes a control topic payload. Both {"command":"START_PUMP"}
// and a bare command word are accepted.
func ParseControl(payload []byte, now time.Time) (ControlMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return ControlMessage{}, errors.New("empty control payload")
	}

	if trimmed[0] != '{' {
		return ControlMessage{Command: strings.TrimSpace(string(trimmed)), Received: now}, nil
	}

	var p controlPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return ControlMessage{}, fmt.Errorf("decode control payload: %w", err)
	}
	if p.Command == "" {
		return ControlMessage{}, errors.New("control payload has no command")
	}
	return ControlMessage{Command: p.Command, Received: now}, nil
}

// TelemetryPayload is the JSON body published on the data topic.
type TelemetryPayload struct {
	Timestamp          string  `json:"timestamp"`
	DistanceCm         int     `json:"distance_cm"`
	WaterLevel         string  `json:"water_level"`
	LowWater           bool    `json:"low_water"`
	TdsInput           int     `json:"tds_input"`
	ECInput            float64 `json:"ec_input"`
	TempInput          float64 `json:"temp_input"`
	TdsOutput          int     `json:"tds_output"`
	ECOutput           float64 `json:"ec_output"`
	TempOutput         float64 `json:"temp_output"`
	FilterEfficiency   float64 `json:"filter_efficiency"`
	UseCount           int     `json:"use_count"`
	UseLimit           int     `json:"use_limit"`
	ProbeInputInWater  bool    `json:"probe_input_in_water"`
	ProbeOutputInWater bool    `json:"probe_output_in_water"`
	TdsHighInput       bool    `json:"tds_high_input"`
	TdsHighOutput      bool    `json:"tds_high_output"`
	TdsStable          bool    `json:"tds_stable"`
	PumpOn             bool    `json:"pump_on"`
	AlarmActive        bool    `json:"alarm_active"`
	AlarmSilenced      bool    `json:"alarm_silenced"`
}

// FormatTelemetry creates the JSON payload for a telemetry snapshot.
func FormatTelemetry(s engine.TelemetrySnapshot) ([]byte, error) {
	payload := TelemetryPayload{
		Timestamp:          s.Timestamp.UTC().Format(time.RFC3339),
		DistanceCm:         s.DistanceCm,
		WaterLevel:         string(s.Level),
		LowWater:           s.Level == logic.LevelLow,
		TdsInput:           s.TdsInput.TdsPPM,
		ECInput:            round1(s.TdsInput.ECMicroS),
		TempInput:          round1(s.TempInputC),
		TdsOutput:          s.TdsOutput.TdsPPM,
		ECOutput:           round1(s.TdsOutput.ECMicroS),
		TempOutput:         round1(s.TempOutputC),
		FilterEfficiency:   round1(s.Health.EfficiencyPct),
		UseCount:           s.Health.UseCount,
		UseLimit:           s.Health.UseLimit,
		ProbeInputInWater:  s.TdsInput.ProbeWet,
		ProbeOutputInWater: s.TdsOutput.ProbeWet,
		TdsHighInput:       s.TdsHighInput,
		TdsHighOutput:      s.TdsHighOutput,
		TdsStable:          s.Control.TdsPipelineStable,
		PumpOn:             s.Control.PumpOn,
		AlarmActive:        s.Control.AlarmOn,
		AlarmSilenced:      s.Control.AlarmSilenced,
	}
	return json.Marshal(payload)
}

// StatusPayload is the JSON body published on the status topic.
type StatusPayload struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Command   string `json:"command,omitempty"`
	UseCount  *int   `json:"use_count,omitempty"`
}

// FormatStatus creates the JSON payload for a status message.
func FormatStatus(m StatusMessage) ([]byte, error) {
	return json.Marshal(StatusPayload{
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		Status:    m.Status,
		Message:   m.Message,
		Command:   m.Command,
		UseCount:  m.UseCount,
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
