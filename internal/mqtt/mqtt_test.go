package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/logic"
)

func testSnapshot() engine.TelemetrySnapshot {
	return engine.TelemetrySnapshot{
		Timestamp:   time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		DistanceCm:  12,
		Level:       logic.LevelLow,
		TempInputC:  24.96,
		TempOutputC: 25,
		TdsInput: logic.TdsChannelState{
			TdsPPM: 240, ECMicroS: 375.04, ProbeWet: true,
		},
		TdsOutput: logic.TdsChannelState{
			TdsPPM: 96, ECMicroS: 150, ProbeWet: true,
		},
		Health:  logic.FilterHealth{EfficiencyPct: 60, UseCount: 3, UseLimit: 50},
		Control: logic.ControlState{PumpOn: true, TdsPipelineStable: true},
	}
}

func TestFormatTelemetry(t *testing.T) {
	payload, err := FormatTelemetry(testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed TelemetryPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Timestamp != "2026-02-03T10:30:45Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Timestamp)
	}
	if parsed.DistanceCm != 12 || parsed.WaterLevel != "LOW" || !parsed.LowWater {
		t.Errorf("unexpected level fields: %+v", parsed)
	}
	if parsed.TdsInput != 240 || parsed.ECInput != 375 || parsed.TempInput != 25 {
		t.Errorf("unexpected input fields: %+v", parsed)
	}
	if parsed.FilterEfficiency != 60 || parsed.UseCount != 3 || parsed.UseLimit != 50 {
		t.Errorf("unexpected health fields: %+v", parsed)
	}
	if !parsed.PumpOn || parsed.AlarmActive || !parsed.TdsStable {
		t.Errorf("unexpected control fields: %+v", parsed)
	}
}

func TestFormatTelemetryKeys(t *testing.T) {
	payload, err := FormatTelemetry(testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{
		"distance_cm", "tds_input", "ec_input", "temp_input",
		"tds_output", "ec_output", "temp_output", "filter_efficiency",
		"use_count", "probe_input_in_water", "probe_output_in_water",
		"pump_on", "alarm_active", "tds_high_input", "tds_high_output",
		"water_level", "timestamp",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestFormatStatusExactJSON(t *testing.T) {
	msg := StatusFromResult(logic.CommandResult{
		Command: logic.CommandStart,
		Reason:  "tank full (3 cm)",
	}, time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC))

	payload, err := FormatStatus(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"timestamp":"2026-02-03T10:30:45Z","status":"REJECT","message":"tank full (3 cm)","command":"START_PUMP"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestStatusFromResultAccepted(t *testing.T) {
	msg := StatusFromResult(logic.CommandResult{Command: logic.CommandStop, Accepted: true, Reason: "pump stopping"}, time.Now())
	if msg.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", msg.Status)
	}
}

func TestStatusFromEvent(t *testing.T) {
	e := logic.Event{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Type:      logic.EventUseLimitReached,
		Reason:    "filter used 50/50 times, replace filter",
		UseCount:  50,
	}

	payload, err := FormatStatus(StatusFromEvent(e))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"timestamp":"2026-02-03T10:30:45Z","status":"USE_LIMIT_REACHED","message":"filter used 50/50 times, replace filter","use_count":50}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestParseControl(t *testing.T) {
	now := time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"json", `{"command":"START_PUMP"}`, "START_PUMP", false},
		{"json with spaces", ` { "command" : "ALARM_OFF" } `, "ALARM_OFF", false},
		{"bare word", "stop\n", "stop", false},
		{"empty", "  ", "", true},
		{"missing command", `{"cmd":"START_PUMP"}`, "", true},
		{"broken json", `{"command":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseControl([]byte(tt.payload), now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Command != tt.want || !msg.Received.Equal(now) {
				t.Errorf("unexpected message: %+v", msg)
			}
		})
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "STARTUP",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"STARTUP"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestFormatTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("WIB", 7*60*60)
	snap := testSnapshot()
	snap.Timestamp = time.Date(2026, 2, 3, 17, 30, 45, 0, loc)

	payload, _ := FormatTelemetry(snap)
	var parsed TelemetryPayload
	json.Unmarshal(payload, &parsed)

	if parsed.Timestamp != "2026-02-03T10:30:45Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Timestamp)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishTelemetry(testSnapshot()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishStatus(StatusMessage{Status: StatusOnline}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Telemetry) != 1 || len(f.Statuses) != 1 || len(f.SystemEvents) != 1 {
		t.Errorf("unexpected recordings: %d telemetry, %d status, %d system",
			len(f.Telemetry), len(f.Statuses), len(f.SystemEvents))
	}
	if len(f.StatusPayloads) != 1 || len(f.SystemPayloads) != 1 {
		t.Error("payloads should be recorded alongside messages")
	}

	f.Reset()
	if f.Telemetry != nil || f.Statuses != nil || f.SystemEvents != nil {
		t.Error("reset should clear recordings")
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	if err := f.PublishTelemetry(testSnapshot()); err == nil {
		t.Error("expected error")
	}
	if err := f.PublishStatus(StatusMessage{}); err == nil {
		t.Error("expected error")
	}
	if len(f.Telemetry) != 0 || len(f.Statuses) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherCommands(t *testing.T) {
	f := NewFakePublisher()
	var src CommandSource = f

	f.Control <- ControlMessage{Command: "START_PUMP"}
	select {
	case msg := <-src.Commands():
		if msg.Command != "START_PUMP" {
			t.Errorf("unexpected command %q", msg.Command)
		}
	default:
		t.Fatal("expected a queued command")
	}
}

func TestFakePublisherClose(t *testing.T) {
	f := NewFakePublisher()
	f.Close()
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
