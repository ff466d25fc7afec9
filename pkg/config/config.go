package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/wiring"
)

// Config represents the application configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	ADC    ADCConfig    `yaml:"adc"`
	Timing TimingConfig `yaml:"timing"`
	Wiring WiringConfig `yaml:"wiring"`
	Rig    RigConfig    `yaml:"rig"`
	Sim    SimConfig    `yaml:"sim"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ADCConfig describes the converter the firmware was built for.
type ADCConfig struct {
	Resolution  int     `yaml:"resolution"`  // Bits per sample
	Attenuation string  `yaml:"attenuation"` // 0db, 2.5db, 6db or 11db
	VRef        float64 `yaml:"vref"`        // Full-scale voltage override (V), 0 = derive from attenuation
}

// TimingConfig contains the read protocol and scan delays.
type TimingConfig struct {
	MuxSettle time.Duration `yaml:"mux_settle"`
	Bleed     time.Duration `yaml:"bleed"` // Negative disables the bleed pause
	StepDelay time.Duration `yaml:"step_delay"`
}

// RigConfig describes the Linux bench rig: mux select lines on a GPIO chip and an
// MCP3208 on SPI standing in for the MCU's ADC.
type RigConfig struct {
	Chip     string             `yaml:"chip"`
	SPIPort  string             `yaml:"spi_port"`
	SPIHz    int64              `yaml:"spi_hz"`
	Muxes    []RigMuxConfig     `yaml:"muxes"`
	Channels []RigChannelConfig `yaml:"channels"`
}

// RigMuxConfig maps a mux's S0..S3 to line offsets on the rig's GPIO chip.
type RigMuxConfig struct {
	ID    uint8 `yaml:"id"`
	Lines []int `yaml:"lines"`
}

// RigChannelConfig maps an MCU ADC channel to an MCP3208 input.
type RigChannelConfig struct {
	ADC   string `yaml:"adc"`
	Input int    `yaml:"mcp_input"`
}

// SimConfig contains simulated front end configuration.
type SimConfig struct {
	ChargeTransfer float64       `yaml:"charge_transfer"` // Fraction of the gap to the source level closed by one conversion
	BleedTau       time.Duration `yaml:"bleed_tau"`       // Time constant of the pull-down bleed
	Idle           float64       `yaml:"idle"`            // Level of unset sources (raw counts)
	Noise          float64       `yaml:"noise"`           // Peak noise (raw counts)
	Seed           int64         `yaml:"seed"`
	Levels         []SimLevel    `yaml:"levels"`
}

// SimLevel sets the true level of one source, addressed by its channel label.
type SimLevel struct {
	Label string  `yaml:"label"`
	Raw   float64 `yaml:"raw"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	table := wiring.D20V11()

	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		ADC: ADCConfig{
			Resolution:  frontend.DefaultResolution,
			Attenuation: "11db",
		},
		Timing: TimingConfig{
			MuxSettle: frontend.DefaultMuxSettle,
			Bleed:     frontend.DefaultBleed,
			StepDelay: scan.DefaultStepDelay,
		},
		Wiring: FromTable(table),
		Rig:    defaultRig(table),
		Sim: SimConfig{
			ChargeTransfer: 0.6,
			BleedTau:       10 * time.Microsecond,
			Idle:           12,
			Noise:          0,
			Seed:           1,
		},
	}
}

func defaultRig(table *wiring.Table) RigConfig {
	rig := RigConfig{
		Chip:    "gpiochip0",
		SPIPort: "",
		SPIHz:   1000000,
	}
	for _, m := range table.Muxes {
		lines := make([]int, 0, wiring.SelectLines)
		for _, pin := range m.Select {
			lines = append(lines, int(pin))
		}
		rig.Muxes = append(rig.Muxes, RigMuxConfig{ID: uint8(m.ID), Lines: lines})
	}

	// One MCP3208 input per ADC channel in use, in wiring order.
	seen := make(map[wiring.ADCChannel]bool)
	add := func(adc wiring.ADCChannel) {
		if seen[adc] {
			return
		}
		seen[adc] = true
		rig.Channels = append(rig.Channels, RigChannelConfig{ADC: adc.String(), Input: len(rig.Channels)})
	}
	for _, m := range table.Muxes {
		add(m.Out)
	}
	for _, d := range table.Direct {
		for _, src := range d.Conductors() {
			if dc, ok := src.(wiring.DirectChannel); ok {
				add(dc.ADC)
			}
		}
	}
	return rig
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Wiring lists replace the defaults wholesale rather than merging by index.
	cfg.Wiring = WiringConfig{}
	cfg.Rig.Muxes = nil
	cfg.Rig.Channels = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the wiring table and the ADC settings.
func (c *Config) Validate() error {
	if c.ADC.Resolution < 1 || c.ADC.Resolution > 16 {
		return fmt.Errorf("invalid ADC resolution: %d", c.ADC.Resolution)
	}
	if _, err := c.ADC.FullScale(); err != nil {
		return err
	}
	if _, err := c.Table(); err != nil {
		return err
	}
	return nil
}

// FrontEndOptions returns the front end options described by the configuration.
func (c *Config) FrontEndOptions() []frontend.Option {
	t := frontend.Timing{MuxSettle: c.Timing.MuxSettle, Bleed: c.Timing.Bleed}
	if t.Bleed < 0 {
		t.Bleed = 0
	}
	return []frontend.Option{
		frontend.WithTiming(t),
		frontend.WithResolution(c.ADC.Resolution),
	}
}

// MaxSample returns the largest raw value at the configured resolution.
func (c *Config) MaxSample() frontend.RawSample {
	return frontend.RawSample(1<<c.ADC.Resolution - 1)
}

// FullScale returns the input voltage that maps to the maximum sample.
func (a ADCConfig) FullScale() (float64, error) {
	if a.VRef > 0 {
		return a.VRef, nil
	}
	// ESP32-S3 recommended ranges per attenuation.
	switch a.Attenuation {
	case "0db":
		return 0.95, nil
	case "2.5db":
		return 1.25, nil
	case "6db":
		return 1.75, nil
	case "11db", "12db":
		return 3.1, nil
	default:
		return 0, fmt.Errorf("invalid ADC attenuation: %q", a.Attenuation)
	}
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.ADC.Resolution == 0 {
		c.ADC.Resolution = def.ADC.Resolution
	}
	if c.ADC.Attenuation == "" {
		c.ADC.Attenuation = def.ADC.Attenuation
	}

	if c.Timing.MuxSettle == 0 {
		c.Timing.MuxSettle = def.Timing.MuxSettle
	}
	if c.Timing.Bleed == 0 {
		c.Timing.Bleed = def.Timing.Bleed
	}
	if c.Timing.StepDelay == 0 {
		c.Timing.StepDelay = def.Timing.StepDelay
	}

	if len(c.Wiring.Muxes) == 0 && len(c.Wiring.Direct) == 0 {
		c.Wiring = def.Wiring
	}
	if c.Wiring.Reference == (SourceConfig{}) {
		c.Wiring.Reference = def.Wiring.Reference
	}

	if c.Rig.Chip == "" {
		c.Rig.Chip = def.Rig.Chip
	}
	if c.Rig.SPIHz == 0 {
		c.Rig.SPIHz = def.Rig.SPIHz
	}
	if len(c.Rig.Muxes) == 0 || len(c.Rig.Channels) == 0 {
		if table, err := c.Table(); err == nil {
			rig := defaultRig(table)
			if len(c.Rig.Muxes) == 0 {
				c.Rig.Muxes = rig.Muxes
			}
			if len(c.Rig.Channels) == 0 {
				c.Rig.Channels = rig.Channels
			}
		}
	}

	if c.Sim.ChargeTransfer == 0 {
		c.Sim.ChargeTransfer = def.Sim.ChargeTransfer
	}
	if c.Sim.BleedTau == 0 {
		c.Sim.BleedTau = def.Sim.BleedTau
	}
}
