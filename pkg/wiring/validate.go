package wiring

import (
	"errors"
	"fmt"
)

// ErrInvalidTable is wrapped by every error returned from Validate.
var ErrInvalidTable = errors.New("invalid wiring table")

// Validate checks the table for configuration errors. An invalid table is a
// deployment mistake and callers should refuse to start with one.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	if len(t.Muxes) == 0 && len(t.Direct) == 0 {
		return fmt.Errorf("%w: no inputs", ErrInvalidTable)
	}

	// pins tracks which GPIO owns each ADC channel so two pins can't claim one channel.
	pins := make(map[ADCChannel]uint8)
	claim := func(adc ADCChannel, pin uint8, what string) error {
		if adc.Unit != ADC1 && adc.Unit != ADC2 {
			return fmt.Errorf("%w: %s: unknown ADC unit %d", ErrInvalidTable, what, adc.Unit)
		}
		if prev, ok := pins[adc]; ok && prev != pin {
			return fmt.Errorf("%w: %s: %s already wired to GPIO%d", ErrInvalidTable, what, adc, prev)
		}
		pins[adc] = pin
		return nil
	}

	covered := make(map[LogicalInput]bool)
	seen := make(map[MuxID]bool)
	for _, m := range t.Muxes {
		if m.ID == 0 {
			return fmt.Errorf("%w: mux id 0", ErrInvalidTable)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate mux %d", ErrInvalidTable, m.ID)
		}
		seen[m.ID] = true
		if err := claim(m.Out, m.OutPin, fmt.Sprintf("mux %d output", m.ID)); err != nil {
			return err
		}
		for ch, in := range m.Inputs {
			if err := checkInput(in); err != nil {
				return fmt.Errorf("%w (MUX%d_CH%d)", err, m.ID, ch)
			}
			covered[in] = true
		}
	}

	checkSource := func(src Source, what string) error {
		switch s := src.(type) {
		case MuxChannel:
			if _, ok := t.Mux(s.Mux); !ok {
				return fmt.Errorf("%w: %s: unknown mux %d", ErrInvalidTable, what, s.Mux)
			}
			if s.Channel >= MuxChannels {
				return fmt.Errorf("%w: %s: channel %d out of range", ErrInvalidTable, what, s.Channel)
			}
		case DirectChannel:
			return claim(s.ADC, s.Pin, what)
		case nil:
			return fmt.Errorf("%w: %s: missing source", ErrInvalidTable, what)
		default:
			return fmt.Errorf("%w: %s: unsupported source %T", ErrInvalidTable, what, src)
		}
		return nil
	}

	for _, d := range t.Direct {
		if err := checkInput(d.Input); err != nil {
			return err
		}
		if err := checkSource(d.Tip, fmt.Sprintf("input %d tip", d.Input)); err != nil {
			return err
		}
		if d.Ring != nil {
			if err := checkSource(d.Ring, fmt.Sprintf("input %d ring", d.Input)); err != nil {
				return err
			}
		}
		covered[d.Input] = true
	}

	if err := checkSource(t.Reference, "reference"); err != nil {
		return err
	}

	for in := LogicalInput(1); in <= NumInputs; in++ {
		if !covered[in] {
			return fmt.Errorf("%w: input %d has no conductor", ErrInvalidTable, in)
		}
	}

	return nil
}

func checkInput(in LogicalInput) error {
	if in < 1 || in > NumInputs {
		return fmt.Errorf("%w: logical input %d out of range 1..%d", ErrInvalidTable, in, NumInputs)
	}
	return nil
}
