package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Level         string       `json:"water_level"`
	DistanceCm    int          `json:"distance_cm"`
	PumpOn        bool         `json:"pump_on"`
	AlarmActive   bool         `json:"alarm_active"`
	AlarmSilenced bool         `json:"alarm_silenced"`
	Ready         bool         `json:"ready"`
	Filter        FilterJSON   `json:"filter"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Host          *HostJSON    `json:"host,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// FilterJSON reports filter wear and the latest probe readings.
type FilterJSON struct {
	UseCount      int     `json:"use_count"`
	UseLimit      int     `json:"use_limit"`
	EfficiencyPct float64 `json:"efficiency_pct"`
	TdsInput      int     `json:"tds_input"`
	TdsOutput     int     `json:"tds_output"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	PumpOn           int `json:"pump_on"`
	PumpOff          int `json:"pump_off"`
	AlarmOn          int `json:"alarm_on"`
	AlarmOff         int `json:"alarm_off"`
	CommandsRejected int `json:"commands_rejected"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// HostJSON is the JSON representation of host info.
type HostJSON struct {
	Hostname      string  `json:"hostname"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	Load1         float64 `json:"load1"`
	MemUsedPct    float64 `json:"mem_used_pct"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	PublishMs   int64  `json:"publish_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	SerialPort  string `json:"serial_port,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	tel := snap.Telemetry
	level := string(tel.Level)
	if !snap.Ticked || level == "" {
		level = "UNKNOWN"
	}

	useLimit := tel.Health.UseLimit
	if useLimit == 0 {
		useLimit = snap.Config.UseLimit
	}

	return StatusInner{
		Level:         level,
		DistanceCm:    tel.DistanceCm,
		PumpOn:        tel.Control.PumpOn,
		AlarmActive:   tel.Control.AlarmOn,
		AlarmSilenced: tel.Control.AlarmSilenced,
		Ready:         snap.Ticked && tel.Control.TdsPipelineStable,
		Filter: FilterJSON{
			UseCount:      tel.Health.UseCount,
			UseLimit:      useLimit,
			EfficiencyPct: math.Round(tel.Health.EfficiencyPct*10) / 10,
			TdsInput:      tel.TdsInput.TdsPPM,
			TdsOutput:     tel.TdsOutput.TdsPPM,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			PumpOn:           snap.Counts.PumpOn,
			PumpOff:          snap.Counts.PumpOff,
			AlarmOn:          snap.Counts.AlarmOn,
			AlarmOff:         snap.Counts.AlarmOff,
			CommandsRejected: snap.Counts.CommandsRejected,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			PublishMs:   snap.Config.PublishMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			SerialPort:  snap.Config.SerialPort,
		},
	}
}

func buildOptional(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	if snap.Host != nil {
		inner.Host = &HostJSON{
			Hostname:      snap.Host.Hostname,
			UptimeSeconds: snap.Host.UptimeSeconds,
			Load1:         snap.Host.Load1,
			MemUsedPct:    math.Round(snap.Host.MemUsedPct*10) / 10,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildOptional(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildOptional(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
