// Package wiring describes how the drum module's sensor conductors reach the ADC.
//
// Everything here is static configuration: it is built once at startup, validated,
// and never mutated afterwards. The package has no dependencies so it can be used
// by the TinyGo firmware as well as the host tools.
package wiring

import "fmt"

const (
	// NumInputs is the number of logical inputs (drum pad jacks) on the D20 module.
	NumInputs = 20
	// MuxChannels is the number of channels on a CD74HC4067 multiplexer.
	MuxChannels = 16
	// SelectLines is the number of select lines on a CD74HC4067 multiplexer.
	SelectLines = 4
)

// LogicalInput identifies one physical sensor position (1..NumInputs).
type LogicalInput uint8

// MuxID identifies a multiplexer (1-based, matching the schematic).
type MuxID uint8

// ADCUnit identifies an ADC peripheral of the MCU.
type ADCUnit uint8

const (
	ADC1 ADCUnit = 1
	ADC2 ADCUnit = 2
)

// ADCChannel is a hardware ADC channel on a specific unit.
type ADCChannel struct {
	Unit  ADCUnit
	Index uint8
}

func (c ADCChannel) String() string {
	return fmt.Sprintf("ADC%d_CH%d", c.Unit, c.Index)
}

// Source describes where a reading comes from. It is a closed sum type: the only
// variants are MuxChannel and DirectChannel.
type Source interface {
	// Label returns the channel label used on the diagnostic stream.
	Label() string
	isSource()
}

// MuxChannel is a conductor routed through a multiplexer channel.
type MuxChannel struct {
	Mux     MuxID
	Channel uint8
}

// DirectChannel is a conductor wired straight to an ADC capable pin.
type DirectChannel struct {
	Pin uint8
	ADC ADCChannel
}

func (MuxChannel) isSource()    {}
func (DirectChannel) isSource() {}

// Label returns MUX<m>_CH<c>.
func (m MuxChannel) Label() string {
	return fmt.Sprintf("MUX%d_CH%d", m.Mux, m.Channel)
}

// Label returns GPIO<pin>.
func (d DirectChannel) Label() string {
	return fmt.Sprintf("GPIO%d", d.Pin)
}

// Mux describes one CD74HC4067 and the logical input behind each of its channels.
type Mux struct {
	ID MuxID
	// OutPin is the GPIO the common output is wired to.
	OutPin uint8
	// Out is the ADC channel of OutPin.
	Out ADCChannel
	// Select holds the GPIOs driving S0..S3.
	Select [SelectLines]uint8
	// Inputs maps channel index to logical input.
	Inputs [MuxChannels]LogicalInput
}

// DirectInput is a logical input with up to two conductors. Ring is nil when the
// jack has a single conductor.
type DirectInput struct {
	Input LogicalInput
	Tip   Source
	Ring  Source
}

// Conductors returns the populated conductors, tip first.
func (d DirectInput) Conductors() []Source {
	if d.Ring == nil {
		return []Source{d.Tip}
	}
	return []Source{d.Tip, d.Ring}
}

// Table is the complete wiring of one hardware revision.
type Table struct {
	Name string
	// Reference is sampled before every stable read to pull the sample-and-hold
	// capacitor towards ground. It must read near zero when the module is idle.
	Reference Source
	Muxes     []Mux
	Direct    []DirectInput
}

// Mux returns the multiplexer with the given id.
func (t *Table) Mux(id MuxID) (*Mux, bool) {
	for i := range t.Muxes {
		if t.Muxes[i].ID == id {
			return &t.Muxes[i], true
		}
	}
	return nil, false
}

// DirectPins returns the conductors wired straight to an ADC pin, in schedule
// order. These pins need their internal pulldown: the bleed between reads
// discharges through it. Conductors routed through a mux are excluded.
func (t *Table) DirectPins() []DirectChannel {
	var pins []DirectChannel
	seen := make(map[uint8]bool)
	for _, d := range t.Direct {
		for _, src := range d.Conductors() {
			dc, ok := src.(DirectChannel)
			if !ok || seen[dc.Pin] {
				continue
			}
			seen[dc.Pin] = true
			pins = append(pins, dc)
		}
	}
	return pins
}

// ADC returns the ADC channel a source is converted on.
func (t *Table) ADC(src Source) (ADCChannel, error) {
	switch s := src.(type) {
	case MuxChannel:
		m, ok := t.Mux(s.Mux)
		if !ok {
			return ADCChannel{}, fmt.Errorf("unknown mux %d", s.Mux)
		}
		return m.Out, nil
	case DirectChannel:
		return s.ADC, nil
	default:
		return ADCChannel{}, fmt.Errorf("unsupported source %T", src)
	}
}

// ParseADCChannel parses the form produced by ADCChannel.String, e.g. ADC2_CH3.
func ParseADCChannel(s string) (ADCChannel, error) {
	var unit, index uint8
	if _, err := fmt.Sscanf(s, "ADC%d_CH%d", &unit, &index); err != nil {
		return ADCChannel{}, fmt.Errorf("invalid ADC channel %q: %w", s, err)
	}
	if s != (ADCChannel{Unit: ADCUnit(unit), Index: index}).String() {
		return ADCChannel{}, fmt.Errorf("invalid ADC channel %q", s)
	}
	if ADCUnit(unit) != ADC1 && ADCUnit(unit) != ADC2 {
		return ADCChannel{}, fmt.Errorf("invalid ADC channel %q: unknown unit ADC%d", s, unit)
	}
	return ADCChannel{Unit: ADCUnit(unit), Index: index}, nil
}
