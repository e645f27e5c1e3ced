// Package logic contains the pure control core of the water filter: level
// classification, the TDS acquisition pipeline, filter health tracking and
// the pump/alarm state machine.
// This package has NO hardware dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Level is the tank level derived from one distance sample.
type Level string

const (
	LevelFull   Level = "FULL"
	LevelLow    Level = "LOW"
	LevelNormal Level = "NORMAL"
)

// ChannelID names a TDS probe.
type ChannelID string

const (
	ChannelInput  ChannelID = "input"
	ChannelOutput ChannelID = "output"
)

// TdsChannelState is the published state of one TDS probe.
// TdsPPM and ECMicroS are never negative and never above the configured
// ceilings. LastValidTds and LastValidEC are the only values carried
// between acquisitions.
type TdsChannelState struct {
	RawADC       int
	Voltage      float64
	TdsPPM       int
	ECMicroS     float64
	ProbeWet     bool
	LastValidTds int
	LastValidEC  float64
	Stable       bool
}

// FilterHealth reports cleaning efficiency and filter wear.
type FilterHealth struct {
	EfficiencyPct float64
	UseCount      int
	UseLimit      int
}

// ControlState is owned by Controller. Everything else reads copies.
type ControlState struct {
	PumpOn            bool
	AlarmOn           bool
	AlarmSilenced     bool
	LastActuationAt   time.Time
	TdsPipelineStable bool
}

// Conditions are the classifications a control step acts on. They are
// re-derived every tick.
type Conditions struct {
	Level         Level
	InputTdsHigh  bool
	OutputTdsHigh bool
	DistanceCm    int
	OutputTdsPPM  int
}

// EventType represents a state change notification.
type EventType string

const (
	EventPumpOn          EventType = "PUMP_ON"
	EventPumpOff         EventType = "PUMP_OFF"
	EventAlarmOn         EventType = "ALARM_ON"
	EventAlarmOff        EventType = "ALARM_OFF"
	EventAlarmSilenced   EventType = "ALARM_SILENCED"
	EventUseLimitReached EventType = "USE_LIMIT_REACHED"
	EventUseCountReset   EventType = "USE_COUNT_RESET"
	EventStartCancelled  EventType = "START_CANCELLED"
)

// Event represents a state change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Reason    string
	PumpOn    bool
	AlarmOn   bool
	UseCount  int
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	PumpOn           int
	PumpOff          int
	AlarmOn          int
	AlarmOff         int
	CommandsRejected int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
