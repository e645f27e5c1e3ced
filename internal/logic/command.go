package logic

import (
	"fmt"
	"strings"
)

// Command is a decoded operator intent.
type Command string

const (
	CommandStart         Command = "START_PUMP"
	CommandStop          Command = "STOP_PUMP"
	CommandSilenceAlarm  Command = "ALARM_OFF"
	CommandResetUseCount Command = "RESET_USE_COUNT"
)

var commandAliases = map[string]Command{
	"start_pump":      CommandStart,
	"start":           CommandStart,
	"on":              CommandStart,
	"1":               CommandStart,
	"stop_pump":       CommandStop,
	"stop":            CommandStop,
	"off":             CommandStop,
	"0":               CommandStop,
	"alarm_off":       CommandSilenceAlarm,
	"silence":         CommandSilenceAlarm,
	"silence_alarm":   CommandSilenceAlarm,
	"reset_use_count": CommandResetUseCount,
	"reset":           CommandResetUseCount,
}

// ParseCommand decodes the wire names used on MQTT, the serial console and
// HTTP. Matching is case-insensitive.
func ParseCommand(s string) (Command, error) {
	cmd, ok := commandAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown command %q", s)
	}
	return cmd, nil
}

// CommandResult is the outcome of HandleCommand.
type CommandResult struct {
	Command  Command
	Accepted bool
	Reason   string
}

func accepted(cmd Command, reason string) CommandResult {
	return CommandResult{Command: cmd, Accepted: true, Reason: reason}
}

func rejected(cmd Command, reason string) CommandResult {
	return CommandResult{Command: cmd, Reason: reason}
}

// Err returns nil for accepted commands and an ErrCommandRejected wrap
// carrying the reason otherwise.
func (r CommandResult) Err() error {
	if r.Accepted {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrCommandRejected, r.Command, r.Reason)
}
