package adc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/water-filter/internal/config"
)

type fakeBus struct {
	writes     map[byte][]byte
	conversion []byte
	readErr    error
}

func newFakeBus(conversion ...byte) *fakeBus {
	return &fakeBus{writes: make(map[byte][]byte), conversion: conversion}
}

func (b *fakeBus) WriteToReg(addr, reg byte, value []byte) error {
	b.writes[reg] = append([]byte(nil), value...)
	return nil
}

func (b *fakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	if b.readErr != nil {
		return b.readErr
	}
	switch reg {
	case regConfig:
		// Conversion already complete.
		value[0], value[1] = 0x80, 0x00
	case regConversion:
		copy(value, b.conversion)
	}
	return nil
}

func newTestADS1115(bus Bus) *ADS1115 {
	return NewADS1115(bus, 0x48, 3.3, 4095)
}

func TestCounts(t *testing.T) {
	a := newTestADS1115(newFakeBus())
	assert.Equal(t, 0, a.counts(-12))
	assert.Equal(t, 0, a.counts(0))
	assert.Equal(t, 1241, a.counts(8000), "1.000V")
	assert.Equal(t, 4095, a.counts(26400), "3.300V")
	assert.Equal(t, 4095, a.counts(32767), "above vref clamps")
}

func TestADS1115Read(t *testing.T) {
	bus := newFakeBus(0x40, 0x00)
	a := newTestADS1115(bus)

	got, err := a.Read(2)
	require.NoError(t, err)
	assert.Equal(t, 2541, got, "2.048V on a 3.3V scale")

	cfg := bus.writes[regConfig]
	require.Len(t, cfg, 2)
	// OS set, mux AIN2 vs GND (0b110), gain 1, single-shot.
	assert.Equal(t, byte(0xE3), cfg[0])
}

func TestADS1115InvalidChannel(t *testing.T) {
	a := newTestADS1115(newFakeBus(0, 0))
	_, err := a.Read(4)
	assert.Error(t, err)
}

func TestADS1115BusError(t *testing.T) {
	bus := newFakeBus(0, 0)
	bus.readErr = errors.New("nack")
	_, err := newTestADS1115(bus).Read(0)
	assert.ErrorIs(t, err, bus.readErr)
}

func TestADS1115MatchesDefaultScale(t *testing.T) {
	cfg := config.Default()
	volts := func(counts int) float64 {
		return float64(counts) * cfg.ADC.VRef / float64(cfg.ADC.MaxCounts)
	}

	// 1.000V at AIN0.
	a := NewADS1115(newFakeBus(0x1F, 0x40), cfg.ADC.I2CAddr, cfg.ADC.VRef, cfg.ADC.MaxCounts)
	got, err := a.Read(cfg.ADC.InputChannel)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, volts(got), 0.002)

	// A probe pulled to its 3.3V rail must reach the dry band.
	a = NewADS1115(newFakeBus(0x67, 0x20), cfg.ADC.I2CAddr, cfg.ADC.VRef, cfg.ADC.MaxCounts)
	got, err = a.Read(cfg.ADC.InputChannel)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, cfg.TDS.DryHigh)
	assert.InDelta(t, 3.3, volts(got), 0.002)
}

func TestInputAndFake(t *testing.T) {
	f := NewFake()
	f.Set(1, 100, 200)

	in := Input{R: f, Channel: 1}
	v, err := in.Read()
	require.NoError(t, err)
	assert.Equal(t, 100, v)

	v, _ = in.Read()
	assert.Equal(t, 200, v)
	v, _ = in.Read()
	assert.Equal(t, 200, v, "last sample repeats")
	assert.Equal(t, 3, f.Reads[1])

	_, err = f.Read(0)
	assert.Error(t, err)
}
