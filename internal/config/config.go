// Package config loads the static configuration for the filter controller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Temperature conversion models.
const (
	TempModeThermistor = "thermistor"
	TempModeDS18B20    = "ds18b20"
)

// Config represents the application configuration.
type Config struct {
	ADC         ADCConfig         `yaml:"adc"`
	Level       LevelConfig       `yaml:"level"`
	TDS         TDSConfig         `yaml:"tds"`
	Temperature TemperatureConfig `yaml:"temperature"`
	Filter      FilterConfig      `yaml:"filter"`
	Loop        LoopConfig        `yaml:"loop"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
	Serial      SerialConfig      `yaml:"serial"`
	Store       StoreConfig       `yaml:"store"`
}

// ADCConfig describes the analog front end.
type ADCConfig struct {
	VRef          float64 `yaml:"vref"`           // Volts read as max_counts; the ADS1115 is normalised to this
	MaxCounts     int     `yaml:"max_counts"`     // Full-scale count (4095 for 12-bit)
	I2CAddr       byte    `yaml:"i2c_addr"`       // ADS1115 address
	InputChannel  int     `yaml:"input_channel"`  // AINx for the input (raw water) probe
	OutputChannel int     `yaml:"output_channel"` // AINx for the output (filtered) probe
	ThermChannel  int     `yaml:"therm_channel"`  // AINx for the thermistor divider
}

// LevelConfig holds the ranging thresholds in centimetres.
type LevelConfig struct {
	FullCm int `yaml:"full_cm"`
	LowCm  int `yaml:"low_cm"`
}

// TDSConfig holds every knob of the conductivity acquisition pipeline.
type TDSConfig struct {
	KValue       float64       `yaml:"k_value"`
	MaxValidPPM  float64       `yaml:"max_valid_ppm"`
	HighPPM      int           `yaml:"high_ppm"`
	ECMax        float64       `yaml:"ec_max"`
	ECRatio      float64       `yaml:"ec_ratio"` // TDS = EC * ratio
	WarmupReads  int           `yaml:"warmup_reads"`
	BatchSize    int           `yaml:"batch_size"`
	KeepSize     int           `yaml:"keep_size"`
	DryHigh      int           `yaml:"dry_high"`
	DryLow       int           `yaml:"dry_low"`
	NoiseMaxSD   float64       `yaml:"noise_max_sd"`
	AnomalyPct   float64       `yaml:"anomaly_pct"`
	StabilizeOn  time.Duration `yaml:"stabilize_on"`
	StabilizeOff time.Duration `yaml:"stabilize_off"`
}

// TemperatureConfig selects and parameterises the temperature channels.
type TemperatureConfig struct {
	Mode              string        `yaml:"mode"`
	DefaultC          float64       `yaml:"default_c"`
	ConversionLatency time.Duration `yaml:"conversion_latency"`
	InputDevice       string        `yaml:"input_device"`  // w1 id, e.g. 28-0000071c2a3b
	OutputDevice      string        `yaml:"output_device"` // empty = share the input probe
	W1Path            string        `yaml:"w1_path"`
	SeriesOhms        float64       `yaml:"series_ohms"`
	SupplyV           float64       `yaml:"supply_v"` // thermistor divider rail
	SteinhartA        float64       `yaml:"steinhart_a"`
	SteinhartB        float64       `yaml:"steinhart_b"`
	SteinhartC        float64       `yaml:"steinhart_c"`
}

// FilterConfig holds cartridge limits.
type FilterConfig struct {
	UseLimit int `yaml:"use_limit"`
}

// LoopConfig holds control loop periods.
type LoopConfig struct {
	Poll      time.Duration `yaml:"poll"`
	Publish   time.Duration `yaml:"publish"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// GPIOConfig holds BCM line offsets.
type GPIOConfig struct {
	Chip    string `yaml:"chip"`
	Trigger int    `yaml:"trigger"`
	Echo    int    `yaml:"echo"`
	Relay   int    `yaml:"relay"`
	Buzzer  int    `yaml:"buzzer"`
	LED     int    `yaml:"led"`
}

// MQTTConfig holds broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"` // empty = generated
	TopicData    string `yaml:"topic_data"`
	TopicControl string `yaml:"topic_control"`
	TopicStatus  string `yaml:"topic_status"`
	TopicSystem  string `yaml:"topic_system"`
	BufferSize   int    `yaml:"buffer_size"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SerialConfig holds the local console port. Empty disables it.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// StoreConfig holds the bbolt database path. Empty disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns a configuration matching the reference hardware.
func Default() *Config {
	return &Config{
		ADC: ADCConfig{
			VRef:          3.3,
			MaxCounts:     4095,
			I2CAddr:       0x48,
			InputChannel:  0,
			OutputChannel: 1,
			ThermChannel:  2,
		},
		Level: LevelConfig{
			FullCm: 5,
			LowCm:  10,
		},
		TDS: TDSConfig{
			KValue:       0.25,
			MaxValidPPM:  1500,
			HighPPM:      1000,
			ECMax:        3200,
			ECRatio:      0.64,
			WarmupReads:  10,
			BatchSize:    50,
			KeepSize:     30,
			DryHigh:      3900,
			DryLow:       150,
			NoiseMaxSD:   150,
			AnomalyPct:   50,
			StabilizeOn:  5 * time.Second,
			StabilizeOff: 3 * time.Second,
		},
		Temperature: TemperatureConfig{
			Mode:              TempModeDS18B20,
			DefaultC:          25.0,
			ConversionLatency: 200 * time.Millisecond,
			W1Path:            "/sys/bus/w1/devices",
			SeriesOhms:        10000,
			SupplyV:           3.3,
			SteinhartA:        0.001129148,
			SteinhartB:        0.000234125,
			SteinhartC:        0.0000000876741,
		},
		Filter: FilterConfig{
			UseLimit: 50,
		},
		Loop: LoopConfig{
			Poll:      time.Second,
			Publish:   time.Second,
			Heartbeat: 15 * time.Minute,
		},
		GPIO: GPIOConfig{
			Chip:    "gpiochip0",
			Trigger: 23,
			Echo:    24,
			Relay:   25,
			Buzzer:  5,
			LED:     6,
		},
		MQTT: MQTTConfig{
			TopicData:    "smartwater/data",
			TopicControl: "smartwater/control",
			TopicStatus:  "smartwater/status",
			TopicSystem:  "smartwater/system",
			BufferSize:   100,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
		Store: StoreConfig{
			Path: "/var/lib/water-filter/state.db",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist,
// defaults are returned. Zero-valued fields fall back to defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error

	if c.Level.FullCm >= c.Level.LowCm {
		errs = append(errs, fmt.Errorf("level: full_cm (%d) must be below low_cm (%d)", c.Level.FullCm, c.Level.LowCm))
	}
	if c.ADC.VRef <= 0 || c.ADC.MaxCounts < 1 {
		errs = append(errs, fmt.Errorf("adc: vref and max_counts must be positive"))
	}
	if c.TDS.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("tds: batch_size must be positive"))
	}
	if c.TDS.KeepSize < 1 {
		errs = append(errs, fmt.Errorf("tds: keep_size must be positive"))
	}
	if c.TDS.WarmupReads < 0 {
		errs = append(errs, fmt.Errorf("tds: warmup_reads must not be negative"))
	}
	if c.TDS.KeepSize > c.TDS.BatchSize {
		errs = append(errs, fmt.Errorf("tds: keep_size (%d) exceeds batch_size (%d)", c.TDS.KeepSize, c.TDS.BatchSize))
	}
	if c.TDS.DryLow >= c.TDS.DryHigh {
		errs = append(errs, fmt.Errorf("tds: dry_low (%d) must be below dry_high (%d)", c.TDS.DryLow, c.TDS.DryHigh))
	}
	if c.TDS.DryHigh > c.ADC.MaxCounts {
		errs = append(errs, fmt.Errorf("tds: dry_high (%d) exceeds adc max_counts (%d)", c.TDS.DryHigh, c.ADC.MaxCounts))
	}
	switch c.Temperature.Mode {
	case TempModeThermistor, TempModeDS18B20:
	default:
		errs = append(errs, fmt.Errorf("temperature: unknown mode %q", c.Temperature.Mode))
	}
	if c.Temperature.SupplyV <= 0 {
		errs = append(errs, fmt.Errorf("temperature: supply_v must be positive"))
	}
	if c.Loop.Poll <= 0 {
		errs = append(errs, fmt.Errorf("loop: poll must be positive"))
	}
	if c.Loop.Publish <= 0 {
		errs = append(errs, fmt.Errorf("loop: publish must be positive"))
	}
	if c.Loop.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("loop: heartbeat must not be negative"))
	}
	if c.Filter.UseLimit < 1 {
		errs = append(errs, fmt.Errorf("filter: use_limit must be positive"))
	}

	return errors.Join(errs...)
}

// ensureDefaults fills zero-valued fields from Default().
func (c *Config) ensureDefaults() {
	def := Default()

	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.MaxCounts == 0 {
		c.ADC.MaxCounts = def.ADC.MaxCounts
	}
	if c.ADC.I2CAddr == 0 {
		c.ADC.I2CAddr = def.ADC.I2CAddr
	}

	if c.Level.FullCm == 0 {
		c.Level.FullCm = def.Level.FullCm
	}
	if c.Level.LowCm == 0 {
		c.Level.LowCm = def.Level.LowCm
	}

	if c.TDS.KValue == 0 {
		c.TDS.KValue = def.TDS.KValue
	}
	if c.TDS.MaxValidPPM == 0 {
		c.TDS.MaxValidPPM = def.TDS.MaxValidPPM
	}
	if c.TDS.HighPPM == 0 {
		c.TDS.HighPPM = def.TDS.HighPPM
	}
	if c.TDS.ECMax == 0 {
		c.TDS.ECMax = def.TDS.ECMax
	}
	if c.TDS.ECRatio == 0 {
		c.TDS.ECRatio = def.TDS.ECRatio
	}
	if c.TDS.BatchSize == 0 {
		c.TDS.BatchSize = def.TDS.BatchSize
	}
	if c.TDS.KeepSize == 0 {
		c.TDS.KeepSize = def.TDS.KeepSize
	}
	if c.TDS.DryHigh == 0 {
		c.TDS.DryHigh = def.TDS.DryHigh
	}
	if c.TDS.DryLow == 0 {
		c.TDS.DryLow = def.TDS.DryLow
	}
	if c.TDS.NoiseMaxSD == 0 {
		c.TDS.NoiseMaxSD = def.TDS.NoiseMaxSD
	}
	if c.TDS.AnomalyPct == 0 {
		c.TDS.AnomalyPct = def.TDS.AnomalyPct
	}
	if c.TDS.StabilizeOn == 0 {
		c.TDS.StabilizeOn = def.TDS.StabilizeOn
	}
	if c.TDS.StabilizeOff == 0 {
		c.TDS.StabilizeOff = def.TDS.StabilizeOff
	}

	if c.Temperature.Mode == "" {
		c.Temperature.Mode = def.Temperature.Mode
	}
	if c.Temperature.DefaultC == 0 {
		c.Temperature.DefaultC = def.Temperature.DefaultC
	}
	if c.Temperature.ConversionLatency == 0 {
		c.Temperature.ConversionLatency = def.Temperature.ConversionLatency
	}
	if c.Temperature.W1Path == "" {
		c.Temperature.W1Path = def.Temperature.W1Path
	}
	if c.Temperature.SeriesOhms == 0 {
		c.Temperature.SeriesOhms = def.Temperature.SeriesOhms
	}
	if c.Temperature.SupplyV == 0 {
		c.Temperature.SupplyV = def.Temperature.SupplyV
	}
	if c.Temperature.SteinhartA == 0 {
		c.Temperature.SteinhartA = def.Temperature.SteinhartA
	}
	if c.Temperature.SteinhartB == 0 {
		c.Temperature.SteinhartB = def.Temperature.SteinhartB
	}
	if c.Temperature.SteinhartC == 0 {
		c.Temperature.SteinhartC = def.Temperature.SteinhartC
	}

	if c.Filter.UseLimit == 0 {
		c.Filter.UseLimit = def.Filter.UseLimit
	}

	if c.Loop.Poll == 0 {
		c.Loop.Poll = def.Loop.Poll
	}
	if c.Loop.Publish == 0 {
		c.Loop.Publish = def.Loop.Publish
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.MQTT.TopicData == "" {
		c.MQTT.TopicData = def.MQTT.TopicData
	}
	if c.MQTT.TopicControl == "" {
		c.MQTT.TopicControl = def.MQTT.TopicControl
	}
	if c.MQTT.TopicStatus == "" {
		c.MQTT.TopicStatus = def.MQTT.TopicStatus
	}
	if c.MQTT.TopicSystem == "" {
		c.MQTT.TopicSystem = def.MQTT.TopicSystem
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}
}
