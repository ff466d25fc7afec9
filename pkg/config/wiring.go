package config

import (
	"fmt"

	"github.com/itohio/padscan/pkg/wiring"
)

// WiringConfig is the YAML form of a wiring table. Pin assignments differ between
// hardware revisions, so the table is configuration rather than code.
type WiringConfig struct {
	Name      string         `yaml:"name"`
	Reference SourceConfig   `yaml:"reference"`
	Muxes     []MuxConfig    `yaml:"muxes"`
	Direct    []DirectConfig `yaml:"direct"`
}

// SourceConfig is either a mux channel (mux set) or a direct pin (gpio and adc set).
type SourceConfig struct {
	Mux     uint8  `yaml:"mux,omitempty"`
	Channel uint8  `yaml:"channel,omitempty"`
	GPIO    uint8  `yaml:"gpio,omitempty"`
	ADC     string `yaml:"adc,omitempty"`
}

// MuxConfig describes one multiplexer.
type MuxConfig struct {
	ID      uint8  `yaml:"id"`
	OutGPIO uint8  `yaml:"out_gpio"`
	OutADC  string `yaml:"out_adc"`
	Select  []int  `yaml:"select"`
	Inputs  []int  `yaml:"inputs"`
}

// DirectConfig describes a directly wired logical input. Ring is omitted for
// single conductor jacks.
type DirectConfig struct {
	Input uint8         `yaml:"input"`
	Tip   SourceConfig  `yaml:"tip"`
	Ring  *SourceConfig `yaml:"ring,omitempty"`
}

// Table builds and validates the wiring table.
func (c *Config) Table() (*wiring.Table, error) {
	return c.Wiring.Table()
}

// Table builds and validates the wiring table.
func (w WiringConfig) Table() (*wiring.Table, error) {
	t := &wiring.Table{Name: w.Name}

	ref, err := w.Reference.Source()
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	t.Reference = ref

	for _, mc := range w.Muxes {
		if len(mc.Select) != wiring.SelectLines {
			return nil, fmt.Errorf("%w: mux %d: expected %d select lines, got %d",
				wiring.ErrInvalidTable, mc.ID, wiring.SelectLines, len(mc.Select))
		}
		if len(mc.Inputs) != wiring.MuxChannels {
			return nil, fmt.Errorf("%w: mux %d: expected %d inputs, got %d",
				wiring.ErrInvalidTable, mc.ID, wiring.MuxChannels, len(mc.Inputs))
		}
		out, err := wiring.ParseADCChannel(mc.OutADC)
		if err != nil {
			return nil, fmt.Errorf("mux %d: %w", mc.ID, err)
		}

		m := wiring.Mux{ID: wiring.MuxID(mc.ID), OutPin: mc.OutGPIO, Out: out}
		for i, pin := range mc.Select {
			m.Select[i] = uint8(pin)
		}
		for i, in := range mc.Inputs {
			if in < 0 || in > 255 {
				return nil, fmt.Errorf("%w: mux %d channel %d: input %d out of range", wiring.ErrInvalidTable, mc.ID, i, in)
			}
			m.Inputs[i] = wiring.LogicalInput(in)
		}
		t.Muxes = append(t.Muxes, m)
	}

	for _, dc := range w.Direct {
		d := wiring.DirectInput{Input: wiring.LogicalInput(dc.Input)}
		if d.Tip, err = dc.Tip.Source(); err != nil {
			return nil, fmt.Errorf("input %d tip: %w", dc.Input, err)
		}
		if dc.Ring != nil {
			if d.Ring, err = dc.Ring.Source(); err != nil {
				return nil, fmt.Errorf("input %d ring: %w", dc.Input, err)
			}
		}
		t.Direct = append(t.Direct, d)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Source converts the YAML form to a wiring source.
func (s SourceConfig) Source() (wiring.Source, error) {
	if s.Mux != 0 {
		if s.GPIO != 0 || s.ADC != "" {
			return nil, fmt.Errorf("%w: source sets both mux and gpio", wiring.ErrInvalidTable)
		}
		return wiring.MuxChannel{Mux: wiring.MuxID(s.Mux), Channel: s.Channel}, nil
	}
	if s.ADC == "" {
		return nil, fmt.Errorf("%w: source needs either mux or gpio/adc", wiring.ErrInvalidTable)
	}
	adc, err := wiring.ParseADCChannel(s.ADC)
	if err != nil {
		return nil, err
	}
	return wiring.DirectChannel{Pin: s.GPIO, ADC: adc}, nil
}

// FromTable returns the YAML form of a wiring table.
func FromTable(t *wiring.Table) WiringConfig {
	w := WiringConfig{
		Name:      t.Name,
		Reference: sourceConfig(t.Reference),
	}
	for _, m := range t.Muxes {
		mc := MuxConfig{
			ID:      uint8(m.ID),
			OutGPIO: m.OutPin,
			OutADC:  m.Out.String(),
		}
		for _, pin := range m.Select {
			mc.Select = append(mc.Select, int(pin))
		}
		for _, in := range m.Inputs {
			mc.Inputs = append(mc.Inputs, int(in))
		}
		w.Muxes = append(w.Muxes, mc)
	}
	for _, d := range t.Direct {
		dc := DirectConfig{Input: uint8(d.Input), Tip: sourceConfig(d.Tip)}
		if d.Ring != nil {
			ring := sourceConfig(d.Ring)
			dc.Ring = &ring
		}
		w.Direct = append(w.Direct, dc)
	}
	return w
}

func sourceConfig(src wiring.Source) SourceConfig {
	switch s := src.(type) {
	case wiring.MuxChannel:
		return SourceConfig{Mux: uint8(s.Mux), Channel: s.Channel}
	case wiring.DirectChannel:
		return SourceConfig{GPIO: s.Pin, ADC: s.ADC.String()}
	default:
		return SourceConfig{}
	}
}
