package logic

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"START_PUMP", CommandStart},
		{"start", CommandStart},
		{"1", CommandStart},
		{" Stop ", CommandStop},
		{"STOP_PUMP", CommandStop},
		{"ALARM_OFF", CommandSilenceAlarm},
		{"silence", CommandSilenceAlarm},
		{"RESET_USE_COUNT", CommandResetUseCount},
		{"reset", CommandResetUseCount},
	}

	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if err != nil {
			t.Errorf("ParseCommand(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseCommand("flush"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestCommandResultErr(t *testing.T) {
	if err := accepted(CommandStart, "ok").Err(); err != nil {
		t.Errorf("accepted result should have nil error, got %v", err)
	}
	err := rejected(CommandStart, "tank full").Err()
	if !errors.Is(err, ErrCommandRejected) {
		t.Errorf("expected ErrCommandRejected, got %v", err)
	}
}
