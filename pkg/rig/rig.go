// Package rig drives the front end from a Linux bench rig: the mux select lines
// come from a GPIO character device and conversions from an MCP3208 on SPI, so the
// scan loop can be exercised against real muxes and sensors without the MCU.
package rig

import (
	"errors"
	"fmt"
	"sync"

	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/wiring"
)

// MCP3208Inputs is the number of single-ended inputs of the MCP3208.
const MCP3208Inputs = 8

// ErrClosed indicates the rig has been closed.
var ErrClosed = errors.New("closed")

// Conn is a full duplex SPI connection.
type Conn interface {
	Tx(w, r []byte) error
}

// LineSetter sets a group of output lines at once.
type LineSetter interface {
	SetValues(values []int) error
	Close() error
}

// MCP3208 converts MCU ADC channels on an MCP3208 wired in their place.
type MCP3208 struct {
	mu       sync.Mutex
	conn     Conn
	channels map[wiring.ADCChannel]int
}

// NewMCP3208 creates a converter over conn using the rig channel map.
func NewMCP3208(conn Conn, channels []config.RigChannelConfig) (*MCP3208, error) {
	m := &MCP3208{conn: conn, channels: make(map[wiring.ADCChannel]int, len(channels))}
	for _, c := range channels {
		adc, err := wiring.ParseADCChannel(c.ADC)
		if err != nil {
			return nil, err
		}
		if c.Input < 0 || c.Input >= MCP3208Inputs {
			return nil, fmt.Errorf("%s: MCP3208 input %d out of range", adc, c.Input)
		}
		if _, ok := m.channels[adc]; ok {
			return nil, fmt.Errorf("%s mapped twice", adc)
		}
		m.channels[adc] = c.Input
	}
	return m, nil
}

// Convert implements frontend.Converter.
func (m *MCP3208) Convert(adc wiring.ADCChannel) (uint16, error) {
	ch, ok := m.channels[adc]
	if !ok {
		return 0, fmt.Errorf("%s is not wired to the MCP3208", adc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return 0, ErrClosed
	}

	rx := make([]byte, 3)
	if err := m.conn.Tx(frame(ch), rx); err != nil {
		return 0, fmt.Errorf("spi transfer: %w", err)
	}
	return value(rx), nil
}

func (m *MCP3208) detach() {
	m.mu.Lock()
	m.conn = nil
	m.mu.Unlock()
}

// frame builds the single-ended conversion request for input ch:
// start bit, SGL, D2 in the first byte; D1, D0 in the top of the second.
func frame(ch int) []byte {
	return []byte{0x06 | byte(ch>>2), byte(ch&3) << 6, 0}
}

// value extracts the 12-bit result from the response.
func value(rx []byte) uint16 {
	return uint16(rx[1]&0x0F)<<8 | uint16(rx[2])
}

// Selector drives the S0..S3 lines of every mux.
type Selector struct {
	mu    sync.Mutex
	lines map[wiring.MuxID]LineSetter
}

// NewSelector creates a selector over already requested line groups.
func NewSelector(lines map[wiring.MuxID]LineSetter) *Selector {
	return &Selector{lines: lines}
}

// Select implements frontend.Selector.
func (s *Selector) Select(mux wiring.MuxID, channel uint8) error {
	if channel >= wiring.MuxChannels {
		return fmt.Errorf("mux %d: channel %d out of range", mux, channel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lines == nil {
		return ErrClosed
	}
	l, ok := s.lines[mux]
	if !ok {
		return fmt.Errorf("mux %d has no select lines", mux)
	}
	return l.SetValues(selectValues(channel))
}

// Close releases all line groups.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, l := range s.lines {
		errs = append(errs, l.Close())
	}
	s.lines = nil
	return errors.Join(errs...)
}

// selectValues returns the S0..S3 levels for channel.
func selectValues(channel uint8) []int {
	v := make([]int, wiring.SelectLines)
	for i := range v {
		v[i] = int(channel>>i) & 1
	}
	return v
}

// Rig is a front end backed by rig hardware.
type Rig struct {
	*frontend.FrontEnd
	Selector *Selector
	ADC      *MCP3208
	closer   func() error
}

// Close releases the GPIO lines and the SPI port.
func (r *Rig) Close() error {
	r.ADC.detach()
	err := r.Selector.Close()
	if r.closer != nil {
		err = errors.Join(err, r.closer())
	}
	return err
}

func checkCoverage(table *wiring.Table, sel *Selector, adc *MCP3208) error {
	for _, m := range table.Muxes {
		if _, ok := sel.lines[m.ID]; !ok {
			return fmt.Errorf("rig: mux %d has no select lines", m.ID)
		}
	}
	for _, e := range table.Schedule() {
		ch, err := table.ADC(e.Source)
		if err != nil {
			return err
		}
		if _, ok := adc.channels[ch]; !ok {
			return fmt.Errorf("rig: %s (%s) is not wired to the MCP3208", ch, e.Source.Label())
		}
	}
	return nil
}

// New builds a front end over sel and adc. Every mux of table needs select lines
// and every ADC channel of table needs an MCP3208 input.
func New(table *wiring.Table, sel *Selector, adc *MCP3208, opts ...frontend.Option) (*Rig, error) {
	if err := checkCoverage(table, sel, adc); err != nil {
		return nil, err
	}
	return &Rig{
		FrontEnd: frontend.New(table, adc, sel, opts...),
		Selector: sel,
		ADC:      adc,
	}, nil
}
