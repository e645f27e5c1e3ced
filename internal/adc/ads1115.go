package adc

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/reef-pi/rpi/i2c"
)

// ADS1115 registers and config bits.
const (
	regConversion = 0x00
	regConfig     = 0x01

	configOsSingle   uint16 = 0x8000
	configModeSingle uint16 = 0x0100
	configGainOne    uint16 = 0x0200 // +/- 4.096V
	configRate860    uint16 = 0x00E0
	configCompQueue  uint16 = 0x0003 // comparator disabled

	// AINx vs GND mux selections start at 0x4000 and step by 0x1000.
	muxSingleEndedBase uint16 = 0x4000

	// Volts at a raw result of 32768 with configGainOne.
	fullScaleVolts = 4.096

	convTimeout  = 10 * time.Millisecond
	convPollWait = 200 * time.Microsecond
)

// Bus is the subset of i2c.Bus the converter uses.
type Bus interface {
	ReadFromReg(addr, reg byte, value []byte) error
	WriteToReg(addr, reg byte, value []byte) error
}

var _ Bus = i2c.Bus(nil)

// ADS1115 reads single-ended channels of a TI ADS1115 in single-shot mode at
// the +/-4.096V range. Results are rescaled so that vref volts reads as
// maxCounts, matching the counts a 12-bit converter on the probe rail would
// give. Inputs above vref clamp to maxCounts.
type ADS1115 struct {
	bus       Bus
	addr      byte
	vref      float64
	maxCounts int
}

// NewADS1115 creates a converter on an already-open bus.
func NewADS1115(bus Bus, addr byte, vref float64, maxCounts int) *ADS1115 {
	return &ADS1115{bus: bus, addr: addr, vref: vref, maxCounts: maxCounts}
}

// Open opens the default I2C bus and returns the converter with a closer.
func Open(addr byte, vref float64, maxCounts int) (*ADS1115, func() error, error) {
	if vref <= 0 || maxCounts < 1 {
		return nil, nil, fmt.Errorf("ads1115: invalid scale %.3fV / %d counts", vref, maxCounts)
	}
	bus, err := i2c.New()
	if err != nil {
		return nil, nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return NewADS1115(bus, addr, vref, maxCounts), bus.Close, nil
}

// Read performs one single-shot conversion on AIN{channel}.
func (a *ADS1115) Read(channel int) (int, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("ads1115: invalid channel %d", channel)
	}

	config := configOsSingle |
		configModeSingle |
		configGainOne |
		configRate860 |
		configCompQueue |
		(muxSingleEndedBase + uint16(channel)<<12)

	buf := []byte{byte(config >> 8), byte(config)}
	if err := a.bus.WriteToReg(a.addr, regConfig, buf); err != nil {
		return 0, fmt.Errorf("ads1115: write config: %w", err)
	}

	deadline := time.Now().Add(convTimeout)
	cfg := make([]byte, 2)
	for {
		if err := a.bus.ReadFromReg(a.addr, regConfig, cfg); err != nil {
			return 0, fmt.Errorf("ads1115: read config: %w", err)
		}
		if binary.BigEndian.Uint16(cfg)&configOsSingle != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("ads1115: conversion timeout on AIN%d", channel)
		}
		time.Sleep(convPollWait)
	}

	b := make([]byte, 2)
	if err := a.bus.ReadFromReg(a.addr, regConversion, b); err != nil {
		return 0, fmt.Errorf("ads1115: read conversion: %w", err)
	}
	return a.counts(int16(binary.BigEndian.Uint16(b))), nil
}

// counts maps a signed 16-bit result onto 0..maxCounts for vref.
// Negative results (noise around ground) read as zero.
func (a *ADS1115) counts(raw int16) int {
	if raw <= 0 {
		return 0
	}
	volts := float64(raw) * fullScaleVolts / 32768
	c := int(math.Round(volts / a.vref * float64(a.maxCounts)))
	if c > a.maxCounts {
		return a.maxCounts
	}
	return c
}
