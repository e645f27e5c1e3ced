// Package engine runs one control tick in a fixed order: level, temperatures,
// TDS acquisition, filter health, the pump/alarm state machine, then the
// actuator outputs. It owns the only Controller, so ControlState has a
// single writer.
package engine

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/water-filter/internal/config"
	"github.com/sweeney/water-filter/internal/gpio"
	"github.com/sweeney/water-filter/internal/logic"
	"github.com/sweeney/water-filter/internal/sensor"
)

// Ranger measures tank distance.
type Ranger interface {
	Measure() (sensor.DistanceSample, error)
}

// Sensors groups the acquisition inputs.
type Sensors struct {
	Ranger  Ranger
	TempIn  sensor.Source
	TempOut sensor.Source
	TdsIn   logic.Sampler
	TdsOut  logic.Sampler
}

// TelemetrySnapshot is the full derived state after a tick.
type TelemetrySnapshot struct {
	Timestamp       time.Time
	DistanceCm      int
	Level           logic.Level
	TempInputC      float64
	TempOutputC     float64
	TempInputValid  bool
	TempOutputValid bool
	TdsInput        logic.TdsChannelState
	TdsOutput       logic.TdsChannelState
	TdsHighInput    bool
	TdsHighOutput   bool
	Health          logic.FilterHealth
	Control         logic.ControlState
}

// Engine wires sensors, the control core and the actuators.
type Engine struct {
	sensors   Sensors
	act       gpio.Actuators
	levels    logic.LevelThresholds
	highPPM   int
	defaultC  float64
	stab      *logic.Stability
	tdsIn     *logic.TdsChannel
	tdsOut    *logic.TdsChannel
	health    *logic.HealthTracker
	ctrl      *logic.Controller
	applied   logic.ControlState
	snap      TelemetrySnapshot
	lastError map[string]string
}

// New creates an engine. useCount is the restored filter use counter.
func New(cfg *config.Config, sensors Sensors, act gpio.Actuators, useCount int, now time.Time) *Engine {
	stab := logic.NewStability(cfg.TDS.StabilizeOn, cfg.TDS.StabilizeOff)
	params := TdsParams(cfg)
	health := logic.NewHealthTracker(cfg.Filter.UseLimit, useCount)

	e := &Engine{
		sensors:   sensors,
		act:       act,
		levels:    logic.LevelThresholds{FullCm: cfg.Level.FullCm, LowCm: cfg.Level.LowCm},
		highPPM:   cfg.TDS.HighPPM,
		defaultC:  cfg.Temperature.DefaultC,
		stab:      stab,
		tdsIn:     logic.NewTdsChannel(logic.ChannelInput, sensors.TdsIn, stab, params),
		tdsOut:    logic.NewTdsChannel(logic.ChannelOutput, sensors.TdsOut, stab, params),
		health:    health,
		ctrl:      logic.NewController(health, stab, now),
		lastError: make(map[string]string),
	}
	e.snap = e.snapshot(now)
	return e
}

// TdsParams maps the configuration onto the acquisition pipeline.
func TdsParams(cfg *config.Config) logic.TdsParams {
	return logic.TdsParams{
		VRef:        cfg.ADC.VRef,
		MaxCounts:   cfg.ADC.MaxCounts,
		KValue:      cfg.TDS.KValue,
		MaxValidPPM: cfg.TDS.MaxValidPPM,
		ECRatio:     cfg.TDS.ECRatio,
		ECMax:       cfg.TDS.ECMax,
		WarmupReads: cfg.TDS.WarmupReads,
		BatchSize:   cfg.TDS.BatchSize,
		KeepSize:    cfg.TDS.KeepSize,
		DryHigh:     cfg.TDS.DryHigh,
		DryLow:      cfg.TDS.DryLow,
		NoiseMaxSD:  cfg.TDS.NoiseMaxSD,
		AnomalyPct:  cfg.TDS.AnomalyPct,
	}
}

// Tick runs one control cycle and returns the state change events.
func (e *Engine) Tick(now time.Time) []logic.Event {
	sample, err := e.sensors.Ranger.Measure()
	e.report("ranging", err)
	level := logic.Classify(sample.DistanceCm, e.levels)

	tIn := e.sensors.TempIn.Read()
	tOut := e.sensors.TempOut.Read()

	pumpOn := e.ctrl.State().PumpOn
	in, err := e.tdsIn.Acquire(tIn.OrDefault(e.defaultC), pumpOn, now)
	e.report("tds input", err)
	out, err := e.tdsOut.Acquire(tOut.OrDefault(e.defaultC), pumpOn, now)
	e.report("tds output", err)

	highIn := in.ProbeWet && in.TdsPPM > e.highPPM
	highOut := out.ProbeWet && out.TdsPPM > e.highPPM

	e.health.Update(in.TdsPPM, out.TdsPPM, in.ProbeWet, out.ProbeWet)

	events := e.ctrl.Step(logic.Conditions{
		Level:         level,
		InputTdsHigh:  highIn,
		OutputTdsHigh: highOut,
		DistanceCm:    sample.DistanceCm,
		OutputTdsPPM:  out.TdsPPM,
	}, now)
	for _, ev := range events {
		log.Printf("%s: %s", ev.Type, ev.Reason)
	}

	e.applyOutputs()

	e.snap = TelemetrySnapshot{
		Timestamp:       now,
		DistanceCm:      sample.DistanceCm,
		Level:           level,
		TempInputC:      tIn.OrDefault(e.defaultC),
		TempOutputC:     tOut.OrDefault(e.defaultC),
		TempInputValid:  tIn.Valid,
		TempOutputValid: tOut.Valid,
		TdsInput:        in,
		TdsOutput:       out,
		TdsHighInput:    highIn,
		TdsHighOutput:   highOut,
		Health:          e.health.Health(),
		Control:         e.ctrl.State(),
	}
	return events
}

// applyOutputs writes actuator edges. A failed write leaves applied
// unchanged so the edge is retried next tick.
func (e *Engine) applyOutputs() {
	want := e.ctrl.State()
	if want.PumpOn != e.applied.PumpOn {
		if err := e.act.SetPump(want.PumpOn); err != nil {
			log.Printf("gpio: %v", err)
		} else {
			e.applied.PumpOn = want.PumpOn
		}
	}
	if want.AlarmOn != e.applied.AlarmOn {
		if err := e.act.SetAlarm(want.AlarmOn); err != nil {
			log.Printf("gpio: %v", err)
		} else {
			e.applied.AlarmOn = want.AlarmOn
		}
	}
}

// report logs a component error when it differs from the last one seen,
// and logs recovery once.
func (e *Engine) report(component string, err error) {
	if err == nil {
		if prev := e.lastError[component]; prev != "" {
			log.Printf("%s: ok", component)
			delete(e.lastError, component)
		}
		return
	}
	msg := err.Error()
	if errors.Is(err, logic.ErrStabilizing) {
		msg = logic.ErrStabilizing.Error()
	}
	if e.lastError[component] == msg {
		return
	}
	e.lastError[component] = msg
	log.Printf("%s: %v", component, err)
}

// HandleCommand validates and queues a command for the next tick.
func (e *Engine) HandleCommand(cmd logic.Command, reason string) logic.CommandResult {
	res := e.ctrl.HandleCommand(cmd, reason)
	if res.Accepted {
		log.Printf("command %s from %s: accepted", cmd, reason)
	} else {
		log.Printf("command %s from %s: rejected: %s", cmd, reason, res.Reason)
	}
	return res
}

// Snapshot returns the state after the last tick.
func (e *Engine) Snapshot() TelemetrySnapshot {
	return e.snap
}

func (e *Engine) snapshot(now time.Time) TelemetrySnapshot {
	return TelemetrySnapshot{
		Timestamp:   now,
		Level:       logic.LevelNormal,
		TempInputC:  e.defaultC,
		TempOutputC: e.defaultC,
		TdsInput:    e.tdsIn.State(),
		TdsOutput:   e.tdsOut.State(),
		Health:      e.health.Health(),
		Control:     e.ctrl.State(),
	}
}

// UseCount returns the current filter use counter.
func (e *Engine) UseCount() int {
	return e.health.Health().UseCount
}

// Counts returns transition counters since startup.
func (e *Engine) Counts() logic.EventCounts {
	return e.ctrl.Counts()
}

// CheckHeartbeat forwards to the controller.
func (e *Engine) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	return e.ctrl.CheckHeartbeat(now, interval)
}

// Shutdown drives every output off.
func (e *Engine) Shutdown() error {
	var errs []error
	if err := e.act.SetPump(false); err != nil {
		errs = append(errs, err)
	}
	if err := e.act.SetAlarm(false); err != nil {
		errs = append(errs, err)
	}
	e.applied = logic.ControlState{}
	return errors.Join(errs...)
}
