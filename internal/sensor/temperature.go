package sensor

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Source yields a temperature reading each time it is polled. Polling must
// never block on a conversion.
type Source interface {
	Read() TemperatureReading
}

// AnalogInput returns one raw analog count.
type AnalogInput interface {
	Read() (int, error)
}

// ThermistorParams describes an NTC thermistor between the SupplyV rail and
// the sense node, with SeriesOhms from the node to ground. VRef and
// MaxCounts convert counts to volts. A, B and C are Steinhart–Hart
// coefficients for resistance in ohms.
type ThermistorParams struct {
	VRef       float64
	MaxCounts  int
	SupplyV    float64
	SeriesOhms float64
	A, B, C    float64
}

// ThermistorCelsius inverts the divider and applies Steinhart–Hart.
// It reports false when the voltage is non-positive or the result is
// implausible.
func ThermistorCelsius(raw int, p ThermistorParams) (float64, bool) {
	voltage := float64(raw) * p.VRef / float64(p.MaxCounts)
	if voltage <= 0 {
		return 0, false
	}
	resistance := p.SupplyV*p.SeriesOhms/voltage - p.SeriesOhms
	if resistance <= 0 {
		return 0, false
	}

	lnR := math.Log(resistance)
	kelvin := 1.0 / (p.A + p.B*lnR + p.C*lnR*lnR*lnR)
	c := kelvin - 273.15

	if math.IsNaN(c) || math.IsInf(c, 0) || !plausible(c) {
		return 0, false
	}
	return c, true
}

// Thermistor is a single-sample analog temperature channel.
type Thermistor struct {
	in     AnalogInput
	params ThermistorParams
	last   TemperatureReading
}

// NewThermistor creates a thermistor channel.
func NewThermistor(in AnalogInput, params ThermistorParams) *Thermistor {
	return &Thermistor{in: in, params: params}
}

// Read samples once and converts.
func (t *Thermistor) Read() TemperatureReading {
	raw, err := t.in.Read()
	if err != nil {
		t.last = TemperatureReading{}
		return t.last
	}
	c, ok := ThermistorCelsius(raw, t.params)
	t.last = TemperatureReading{Celsius: c, Valid: ok}
	return t.last
}

// DisconnectedC is the value DS18B20-class probes report when absent.
const DisconnectedC = -127.0

// DigitalProbe is a multi-drop digital sensor with a split
// request/read-back conversion protocol.
type DigitalProbe interface {
	// RequestConversion starts a conversion and returns immediately.
	RequestConversion() error
	// ReadCelsius returns the most recent conversion result.
	ReadCelsius() (float64, error)
}

// pendingLimit bounds how many conversion latencies a probe may keep
// answering ErrConversionPending before it is treated as disconnected.
const pendingLimit = 5

// DigitalChannel polls a DigitalProbe without blocking: the result of a
// conversion is read back only once latency has elapsed since the request,
// after which the next conversion is requested.
type DigitalChannel struct {
	probe     DigitalProbe
	clock     Clock
	latency   time.Duration
	requested bool
	reqAt     time.Time
	last      TemperatureReading
	lastErr   error
}

// NewDigitalChannel creates a channel with the given conversion latency.
func NewDigitalChannel(probe DigitalProbe, clock Clock, latency time.Duration) *DigitalChannel {
	return &DigitalChannel{probe: probe, clock: clock, latency: latency}
}

// Read returns the latest reading, issuing and collecting conversions as
// their latency allows. Until the first conversion completes the reading is
// invalid. A failed request, or a conversion that stays pending for
// pendingLimit latencies, invalidates the reading.
func (d *DigitalChannel) Read() TemperatureReading {
	now := d.clock.Now()

	if d.requested && now.Sub(d.reqAt) < d.latency {
		return d.last
	}

	if d.requested {
		c, err := d.probe.ReadCelsius()
		if errors.Is(err, ErrConversionPending) {
			if now.Sub(d.reqAt) < pendingLimit*d.latency {
				return d.last
			}
			err = fmt.Errorf("%w: conversion pending for %s", ErrSensorDisconnected, now.Sub(d.reqAt))
		}
		d.last, d.lastErr = classifyDigital(c, err)
		d.requested = false
	}

	if err := d.probe.RequestConversion(); err != nil {
		d.last = TemperatureReading{}
		d.lastErr = err
		return d.last
	}
	d.requested = true
	d.reqAt = now
	return d.last
}

// Err returns why the latest reading is invalid, if it is.
func (d *DigitalChannel) Err() error {
	if d.last.Valid {
		return nil
	}
	return d.lastErr
}

func classifyDigital(c float64, err error) (TemperatureReading, error) {
	if err != nil {
		return TemperatureReading{}, err
	}
	if c == DisconnectedC {
		return TemperatureReading{}, ErrSensorDisconnected
	}
	if !plausible(c) {
		return TemperatureReading{}, ErrImplausibleReading
	}
	return TemperatureReading{Celsius: c, Valid: true}, nil
}

// Fixed is a Source that always returns the same reading.
type Fixed TemperatureReading

// Read returns the fixed reading.
func (f Fixed) Read() TemperatureReading { return TemperatureReading(f) }
