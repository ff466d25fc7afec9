//go:build linux

package rig

import (
	"fmt"

	"github.com/warthog618/gpiod"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/wiring"
)

// Open requests the rig's select lines, opens the SPI port and builds the front end
// for the configured wiring table.
func Open(cfg *config.Config) (*Rig, error) {
	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}

	adc, port, err := openMCP3208(cfg.Rig)
	if err != nil {
		return nil, err
	}

	sel, err := openSelector(cfg.Rig)
	if err != nil {
		port.Close()
		return nil, err
	}

	r, err := New(table, sel, adc, cfg.FrontEndOptions()...)
	if err != nil {
		sel.Close()
		port.Close()
		return nil, err
	}
	r.closer = port.Close
	return r, nil
}

func openMCP3208(cfg config.RigConfig) (*MCP3208, spi.PortCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialise periph host: %w", err)
	}

	p, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open SPI port %q: %w", cfg.SPIPort, err)
	}

	freq := physic.Frequency(cfg.SPIHz) * physic.Hertz
	if err := p.LimitSpeed(freq); err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("failed to limit SPI speed: %w", err)
	}

	c, err := p.Connect(freq, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("failed to connect to MCP3208: %w", err)
	}

	adc, err := NewMCP3208(c, cfg.Channels)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return adc, p, nil
}

func openSelector(cfg config.RigConfig) (*Selector, error) {
	c, err := gpiod.NewChip(cfg.Chip, gpiod.WithConsumer("padscan"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Chip, err)
	}
	// Requested lines outlive the chip handle.
	defer c.Close()

	lines := make(map[wiring.MuxID]LineSetter, len(cfg.Muxes))
	sel := NewSelector(lines)
	for _, m := range cfg.Muxes {
		if len(m.Lines) != wiring.SelectLines {
			sel.Close()
			return nil, fmt.Errorf("mux %d: expected %d select lines, got %d", m.ID, wiring.SelectLines, len(m.Lines))
		}
		l, err := c.RequestLines(m.Lines, gpiod.AsOutput(0, 0, 0, 0))
		if err != nil {
			sel.Close()
			return nil, fmt.Errorf("mux %d: failed to request lines %v: %w", m.ID, m.Lines, err)
		}
		lines[wiring.MuxID(m.ID)] = l
	}
	return sel, nil
}
