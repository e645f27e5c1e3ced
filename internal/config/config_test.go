package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3.3, cfg.ADC.VRef)
	assert.Equal(t, 4095, cfg.ADC.MaxCounts)
	assert.Equal(t, 5, cfg.Level.FullCm)
	assert.Equal(t, 10, cfg.Level.LowCm)
	assert.Equal(t, 0.25, cfg.TDS.KValue)
	assert.Equal(t, 1500.0, cfg.TDS.MaxValidPPM)
	assert.Equal(t, 3200.0, cfg.TDS.ECMax)
	assert.Equal(t, 50, cfg.TDS.BatchSize)
	assert.Equal(t, 30, cfg.TDS.KeepSize)
	assert.Equal(t, 5*time.Second, cfg.TDS.StabilizeOn)
	assert.Equal(t, 3*time.Second, cfg.TDS.StabilizeOff)
	assert.Equal(t, 200*time.Millisecond, cfg.Temperature.ConversionLatency)
	assert.Equal(t, 50, cfg.Filter.UseLimit)
	assert.Equal(t, 3.3, cfg.Temperature.SupplyV)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	yamlContent := `
adc:
  vref: 4.096
  i2c_addr: 0x49

level:
  full_cm: 8
  low_cm: 30

tds:
  k_value: 0.5
  stabilize_on: 7s
  stabilize_off: 2500ms

temperature:
  mode: thermistor
  default_c: 22.5

filter:
  use_limit: 120

mqtt:
  broker: tcp://localhost:1883
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4.096, cfg.ADC.VRef)
	assert.Equal(t, byte(0x49), cfg.ADC.I2CAddr)
	assert.Equal(t, 8, cfg.Level.FullCm)
	assert.Equal(t, 30, cfg.Level.LowCm)
	assert.Equal(t, 0.5, cfg.TDS.KValue)
	assert.Equal(t, 7*time.Second, cfg.TDS.StabilizeOn)
	assert.Equal(t, 2500*time.Millisecond, cfg.TDS.StabilizeOff)
	assert.Equal(t, TempModeThermistor, cfg.Temperature.Mode)
	assert.Equal(t, 22.5, cfg.Temperature.DefaultC)
	assert.Equal(t, 120, cfg.Filter.UseLimit)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)

	// Untouched sections keep defaults
	assert.Equal(t, 4095, cfg.ADC.MaxCounts)
	assert.Equal(t, "smartwater/control", cfg.MQTT.TopicControl)
}

func TestLoad_ZeroValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	yamlContent := `
tds:
  batch_size: 0
  keep_size: 0
loop:
  poll: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.TDS.BatchSize)
	assert.Equal(t, 30, cfg.TDS.KeepSize)
	assert.Equal(t, time.Second, cfg.Loop.Poll)
}

func TestLoad_NegativeValuesRejected(t *testing.T) {
	for _, body := range []string{
		"tds:\n  batch_size: -5\n",
		"tds:\n  keep_size: -1\n",
		"loop:\n  poll: -1s\n",
		"loop:\n  publish: -500ms\n",
	} {
		path := filepath.Join(t.TempDir(), "filter.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))

		_, err := Load(path)
		assert.Error(t, err, "config %q", body)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("level: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"full above low", func(c *Config) { c.Level.FullCm = 20; c.Level.LowCm = 10 }},
		{"keep exceeds batch", func(c *Config) { c.TDS.KeepSize = 60 }},
		{"dry bands inverted", func(c *Config) { c.TDS.DryLow = 4000 }},
		{"dry high beyond adc", func(c *Config) { c.TDS.DryHigh = 5000 }},
		{"unknown temperature mode", func(c *Config) { c.Temperature.Mode = "pt100" }},
		{"zero use limit", func(c *Config) { c.Filter.UseLimit = 0 }},
		{"negative batch", func(c *Config) { c.TDS.BatchSize = -5 }},
		{"negative keep", func(c *Config) { c.TDS.BatchSize = 10; c.TDS.KeepSize = -1 }},
		{"negative warmup", func(c *Config) { c.TDS.WarmupReads = -1 }},
		{"negative poll", func(c *Config) { c.Loop.Poll = -time.Second }},
		{"zero publish", func(c *Config) { c.Loop.Publish = 0 }},
		{"negative supply", func(c *Config) { c.Temperature.SupplyV = -3.3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	cfg := Default()
	cfg.Filter.UseLimit = 75
	cfg.MQTT.Broker = "tcp://broker:1883"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, loaded.Filter.UseLimit)
	assert.Equal(t, "tcp://broker:1883", loaded.MQTT.Broker)
}
