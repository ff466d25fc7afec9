//go:build tinygo

package main

import (
	"context"
	"errors"
	"machine"
	"time"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/wiring"
)

var errUnknownChannel = errors.New("unknown ADC channel")

// hardware drives the mux select lines and the on-chip ADC.
type hardware struct {
	adcs    map[wiring.ADCChannel]machine.ADC
	selects map[wiring.MuxID][wiring.SelectLines]machine.Pin
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})
	time.Sleep(STARTUP_DELAY)

	table := wiring.D20V11()
	if err := table.Validate(); err != nil {
		halt(err)
	}

	hw := configure(table)
	fe := frontend.New(table, hw, hw, frontend.WithResolution(ADC_RESOLUTION))
	scanner := scan.New(fe, table, scan.WriterSink(machine.Serial), scan.WithStepDelay(STEP_DELAY))

	// Runs forever; a read failure is reported in the stream and scanning continues.
	if err := scanner.Run(context.Background(), 0); err != nil {
		halt(err)
	}
}

// configure sets up select pins as outputs and every ADC pin of the table.
func configure(table *wiring.Table) *hardware {
	hw := &hardware{
		adcs:    make(map[wiring.ADCChannel]machine.ADC),
		selects: make(map[wiring.MuxID][wiring.SelectLines]machine.Pin),
	}

	adcConfig := machine.ADCConfig{Resolution: ADC_RESOLUTION}
	addADC := func(pin uint8, ch wiring.ADCChannel, mode machine.PinMode) {
		if _, ok := hw.adcs[ch]; ok {
			return
		}
		p := machine.Pin(pin)
		p.Configure(machine.PinConfig{Mode: mode})
		a := machine.ADC{Pin: p}
		a.Configure(adcConfig)
		hw.adcs[ch] = a
	}

	for _, m := range table.Muxes {
		var pins [wiring.SelectLines]machine.Pin
		for i, n := range m.Select {
			pins[i] = machine.Pin(n)
			pins[i].Configure(machine.PinConfig{Mode: machine.PinOutput})
			pins[i].Low()
		}
		hw.selects[m.ID] = pins
		addADC(m.OutPin, m.Out, machine.PinInput)
	}
	// The bleed between reads relies on the pulldowns of the direct pins.
	for _, dc := range table.DirectPins() {
		addADC(dc.Pin, dc.ADC, machine.PinInputPulldown)
	}
	return hw
}

// Select drives S0..S3 of mux to channel.
func (hw *hardware) Select(mux wiring.MuxID, channel uint8) error {
	pins, ok := hw.selects[mux]
	if !ok {
		return errors.New("unknown mux")
	}
	for i, p := range pins {
		p.Set(channel>>i&1 == 1)
	}
	return nil
}

// Convert returns one conversion scaled to ADC_RESOLUTION bits.
func (hw *hardware) Convert(ch wiring.ADCChannel) (uint16, error) {
	a, ok := hw.adcs[ch]
	if !ok {
		return 0, errUnknownChannel
	}
	// Get returns a left-aligned 16-bit value.
	return a.Get() >> (16 - ADC_RESOLUTION), nil
}

// halt reports a fatal error on the console forever.
func halt(err error) {
	for {
		println("padscan:", err.Error())
		time.Sleep(time.Second)
	}
}
