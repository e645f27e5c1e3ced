package logic

import (
	"fmt"
	"time"
)

// Controller is the pump/alarm state machine. It is the only writer of
// ControlState. Commands are validated on receipt and queued; Step applies
// them after force-stop evaluation so interlocks always win.
type Controller struct {
	state  ControlState
	health *HealthTracker
	stab   *Stability

	// last conditions seen by Step, used to validate commands between ticks
	cond Conditions

	pendingPump    *bool
	pendingReason  string
	pendingSilence bool
	pendingReset   bool

	limitNotified bool

	startTime     time.Time
	lastHeartbeat time.Time
	eventCounts   EventCounts
}

// NewController creates a controller with pump and alarm off.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(health *HealthTracker, stab *Stability, startTime time.Time) *Controller {
	return &Controller{
		health:        health,
		stab:          stab,
		startTime:     startTime,
		lastHeartbeat: startTime,
		cond:          Conditions{Level: LevelNormal},
		// a restored count already at the limit was notified before restart
		limitNotified: health.LimitReached(),
	}
}

// HandleCommand validates cmd against the current state and queues it for
// the next Step. reason is a free-form origin label for logs and events.
func (c *Controller) HandleCommand(cmd Command, reason string) CommandResult {
	res := c.validate(cmd)
	if !res.Accepted {
		c.eventCounts.CommandsRejected++
		return res
	}

	switch cmd {
	case CommandStart, CommandStop:
		on := cmd == CommandStart
		c.pendingPump = &on
		c.pendingReason = reason
	case CommandSilenceAlarm:
		c.pendingSilence = true
	case CommandResetUseCount:
		c.pendingReset = true
	}
	return res
}

func (c *Controller) validate(cmd Command) CommandResult {
	switch cmd {
	case CommandStart:
		if c.effectivePump() {
			return rejected(cmd, "pump already running")
		}
		if blocked := c.startBlocked(c.cond); blocked != "" {
			return rejected(cmd, blocked)
		}
		return accepted(cmd, "pump starting")
	case CommandStop:
		if !c.effectivePump() {
			return rejected(cmd, "pump already stopped")
		}
		return accepted(cmd, "pump stopping")
	case CommandSilenceAlarm:
		if !c.state.AlarmOn || c.pendingSilence {
			return rejected(cmd, "no alarm sounding")
		}
		return accepted(cmd, "alarm silenced")
	case CommandResetUseCount:
		if c.health.Health().UseCount == 0 || c.pendingReset {
			return rejected(cmd, "use count already zero")
		}
		return accepted(cmd, "use count reset")
	default:
		return rejected(cmd, "unknown command")
	}
}

// effectivePump is the pump state once queued commands are applied.
func (c *Controller) effectivePump() bool {
	if c.pendingPump != nil {
		return *c.pendingPump
	}
	return c.state.PumpOn
}

// startBlocked returns why the pump may not run under cond, or "".
// The reset of a queued ResetUseCount is not yet visible here.
func (c *Controller) startBlocked(cond Conditions) string {
	switch {
	case cond.OutputTdsHigh:
		return fmt.Sprintf("output TDS high (%d ppm)", cond.OutputTdsPPM)
	case c.health.LimitReached():
		h := c.health.Health()
		return fmt.Sprintf("filter use limit reached (%d/%d), replace filter", h.UseCount, h.UseLimit)
	case cond.Level == LevelFull:
		return fmt.Sprintf("tank full (%d cm)", cond.DistanceCm)
	}
	return ""
}

// Step runs one control evaluation: queued reset, force-stop, queued pump
// command, then alarm. It returns the events produced, in order.
func (c *Controller) Step(cond Conditions, now time.Time) []Event {
	c.cond = cond
	var events []Event

	if c.pendingReset {
		c.pendingReset = false
		c.health.Reset()
		c.limitNotified = false
		events = append(events, c.event(now, EventUseCountReset, "reset command"))
	}

	if c.state.PumpOn {
		if reason := c.startBlocked(cond); reason != "" {
			events = append(events, c.setPump(false, now, reason)...)
		}
	}

	if c.pendingPump != nil {
		want, reason := *c.pendingPump, c.pendingReason
		c.pendingPump = nil
		if want && !c.state.PumpOn {
			if blocked := c.startBlocked(cond); blocked != "" {
				events = append(events, c.event(now, EventStartCancelled, blocked))
			} else {
				events = append(events, c.setPump(true, now, reason)...)
			}
		} else if !want && c.state.PumpOn {
			events = append(events, c.setPump(false, now, reason)...)
		}
	}

	events = append(events, c.stepAlarm(cond, now)...)

	if c.health.LimitReached() && !c.limitNotified {
		c.limitNotified = true
		h := c.health.Health()
		events = append(events, c.event(now, EventUseLimitReached,
			fmt.Sprintf("filter used %d/%d times, replace filter", h.UseCount, h.UseLimit)))
	}

	return events
}

func (c *Controller) stepAlarm(cond Conditions, now time.Time) []Event {
	var cause string
	switch {
	case cond.Level == LevelFull:
		cause = fmt.Sprintf("tank full (%d cm)", cond.DistanceCm)
	case cond.OutputTdsHigh:
		cause = fmt.Sprintf("output TDS high (%d ppm)", cond.OutputTdsPPM)
	}

	var events []Event
	if cause == "" {
		c.state.AlarmSilenced = false
		c.pendingSilence = false
	} else if c.pendingSilence {
		c.pendingSilence = false
		c.state.AlarmSilenced = true
		events = append(events, c.event(now, EventAlarmSilenced, "silence command"))
	}

	want := cause != "" && !c.state.AlarmSilenced
	if want == c.state.AlarmOn {
		return events
	}

	c.state.AlarmOn = want
	if want {
		c.eventCounts.AlarmOn++
		return append(events, c.event(now, EventAlarmOn, cause))
	}
	c.eventCounts.AlarmOff++
	reason := "normal"
	if c.state.AlarmSilenced {
		reason = "silenced"
	}
	return append(events, c.event(now, EventAlarmOff, reason))
}

// setPump applies a pump edge. Only ON->OFF edges count as a use.
func (c *Controller) setPump(on bool, now time.Time, reason string) []Event {
	if on == c.state.PumpOn {
		return nil
	}
	c.state.PumpOn = on
	c.state.LastActuationAt = now
	c.stab.Arm(now, on)

	if on {
		c.eventCounts.PumpOn++
		return []Event{c.event(now, EventPumpOn, reason)}
	}
	c.health.RecordUse()
	c.eventCounts.PumpOff++
	return []Event{c.event(now, EventPumpOff, reason)}
}

func (c *Controller) event(now time.Time, t EventType, reason string) Event {
	return Event{
		Timestamp: now,
		Type:      t,
		Reason:    reason,
		PumpOn:    c.state.PumpOn,
		AlarmOn:   c.state.AlarmOn,
		UseCount:  c.health.Health().UseCount,
	}
}

// State returns a copy of the control state.
func (c *Controller) State() ControlState {
	s := c.state
	s.TdsPipelineStable = c.stab.AllStable()
	return s
}

// Counts returns the transition counters since startup.
func (c *Controller) Counts() EventCounts {
	return c.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.eventCounts,
	}
}
