package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sweeney/water-filter/internal/adc"
	"github.com/sweeney/water-filter/internal/clock"
	"github.com/sweeney/water-filter/internal/config"
	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/gpio"
	"github.com/sweeney/water-filter/internal/onewire"
	"github.com/sweeney/water-filter/internal/sensor"
)

// hardware owns every device handle the daemon opens.
type hardware struct {
	board    *gpio.Board
	adc      *adc.ADS1115
	closeADC func() error
	sensors  engine.Sensors
}

// openHardware opens the GPIO lines, the ADC and the temperature probes.
func openHardware(cfg *config.Config, clk clock.Clock) (*hardware, error) {
	board, err := gpio.NewBoard(gpio.Pins{
		Chip:    cfg.GPIO.Chip,
		Trigger: cfg.GPIO.Trigger,
		Echo:    cfg.GPIO.Echo,
		Relay:   cfg.GPIO.Relay,
		Buzzer:  cfg.GPIO.Buzzer,
		LED:     cfg.GPIO.LED,
	})
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}

	ads, closeADC, err := adc.Open(cfg.ADC.I2CAddr, cfg.ADC.VRef, cfg.ADC.MaxCounts)
	if err != nil {
		board.Close()
		return nil, fmt.Errorf("init adc: %w", err)
	}

	tempIn, tempOut, err := temperatureSources(cfg, ads, clk)
	if err != nil {
		closeADC()
		board.Close()
		return nil, err
	}

	return &hardware{
		board:    board,
		adc:      ads,
		closeADC: closeADC,
		sensors: engine.Sensors{
			Ranger:  sensor.NewRanger(board, clk),
			TempIn:  tempIn,
			TempOut: tempOut,
			TdsIn:   adc.Input{R: ads, Channel: cfg.ADC.InputChannel},
			TdsOut:  adc.Input{R: ads, Channel: cfg.ADC.OutputChannel},
		},
	}, nil
}

// Close releases the ADC and drives every output off.
func (h *hardware) Close() error {
	return errors.Join(h.closeADC(), h.board.Close())
}

// temperatureSources builds the input and output temperature channels.
// A single thermistor, or a single DS18B20 when no output device is
// configured, serves both channels.
func temperatureSources(cfg *config.Config, r adc.Reader, clk clock.Clock) (sensor.Source, sensor.Source, error) {
	t := cfg.Temperature
	switch t.Mode {
	case config.TempModeThermistor:
		th := sensor.NewThermistor(adc.Input{R: r, Channel: cfg.ADC.ThermChannel}, sensor.ThermistorParams{
			VRef:       cfg.ADC.VRef,
			MaxCounts:  cfg.ADC.MaxCounts,
			SupplyV:    t.SupplyV,
			SeriesOhms: t.SeriesOhms,
			A:          t.SteinhartA,
			B:          t.SteinhartB,
			C:          t.SteinhartC,
		})
		return th, th, nil

	case config.TempModeDS18B20:
		inID := t.InputDevice
		if inID == "" {
			ids, err := onewire.Discover(t.W1Path)
			if err != nil {
				return nil, nil, fmt.Errorf("discover ds18b20: %w", err)
			}
			if len(ids) == 0 {
				log.Printf("temperature: no ds18b20 found under %s, using %.1f°C", t.W1Path, t.DefaultC)
				return sensor.Fixed{}, sensor.Fixed{}, nil
			}
			inID = ids[0]
			log.Printf("temperature: using ds18b20 %s", inID)
		}
		in := sensor.NewDigitalChannel(onewire.NewProbe(t.W1Path, inID), clk, t.ConversionLatency)
		if t.OutputDevice == "" || t.OutputDevice == inID {
			return in, in, nil
		}
		out := sensor.NewDigitalChannel(onewire.NewProbe(t.W1Path, t.OutputDevice), clk, t.ConversionLatency)
		return in, out, nil
	}
	return nil, nil, fmt.Errorf("unknown temperature mode %q", t.Mode)
}

// printState reads every sensor once for commissioning.
func printState(w io.Writer, cfg *config.Config) error {
	hw, err := openHardware(cfg, clock.System{})
	if err != nil {
		return err
	}
	defer hw.Close()

	sample, err := hw.sensors.Ranger.Measure()
	if err != nil {
		fmt.Fprintf(w, "Distance: %d cm (%v)\n", sample.DistanceCm, err)
	} else {
		fmt.Fprintf(w, "Distance: %d cm\n", sample.DistanceCm)
	}

	for _, ch := range []struct {
		name string
		n    int
	}{
		{"TDS input", cfg.ADC.InputChannel},
		{"TDS output", cfg.ADC.OutputChannel},
	} {
		raw, err := hw.adc.Read(ch.n)
		if err != nil {
			fmt.Fprintf(w, "%s: AIN%d error: %v\n", ch.name, ch.n, err)
			continue
		}
		volts := float64(raw) / float64(cfg.ADC.MaxCounts) * cfg.ADC.VRef
		fmt.Fprintf(w, "%s: AIN%d raw=%d (%.3f V)\n", ch.name, ch.n, raw, volts)
	}

	tIn, tOut := settleTemperatures(hw.sensors.TempIn, hw.sensors.TempOut, cfg.Temperature.ConversionLatency)
	fmt.Fprintf(w, "Temp input: %s\n", formatTemp(tIn))
	fmt.Fprintf(w, "Temp output: %s\n", formatTemp(tOut))
	return nil
}

// settleTemperatures polls both sources until they report or a few
// conversion periods pass.
func settleTemperatures(in, out sensor.Source, latency time.Duration) (sensor.TemperatureReading, sensor.TemperatureReading) {
	var a, b sensor.TemperatureReading
	for i := 0; i < 5; i++ {
		a, b = in.Read(), out.Read()
		if a.Valid && b.Valid {
			break
		}
		time.Sleep(latency + 50*time.Millisecond)
	}
	return a, b
}

func formatTemp(r sensor.TemperatureReading) string {
	if !r.Valid {
		return "unavailable"
	}
	return fmt.Sprintf("%.2f°C", r.Celsius)
}
