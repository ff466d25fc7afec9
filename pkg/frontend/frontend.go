// Package frontend reads the drum module's analog inputs through the shared
// sample-and-hold front end of the MCU's ADC.
//
// The multiplexer outputs and the direct inputs are high impedance, so the hold
// capacitor keeps a memory of whatever was converted last. ReadStable removes that
// memory by first converting a channel that is known to sit near ground, and then
// discarding one conversion of the target before returning the next one.
package frontend

import (
	"fmt"
	"sync"
	"time"

	"github.com/itohio/padscan/pkg/wiring"
)

const (
	// DefaultMuxSettle is the time the mux output needs after the select lines change.
	DefaultMuxSettle = 3 * time.Microsecond
	// DefaultBleed is the pause after the reference conversion that lets residual
	// charge bleed off through the pull-downs.
	DefaultBleed = 30 * time.Microsecond
	// DefaultResolution is the ADC resolution in bits.
	DefaultResolution = 12
)

// RawSample is one quantized conversion result.
type RawSample uint16

// Converter performs a single blocking conversion on a hardware ADC channel.
type Converter interface {
	Convert(ch wiring.ADCChannel) (uint16, error)
}

// Selector drives a multiplexer's select lines.
type Selector interface {
	Select(mux wiring.MuxID, channel uint8) error
}

// Timing holds the fixed delays of the read protocol.
type Timing struct {
	MuxSettle time.Duration
	Bleed     time.Duration
}

// DefaultTiming returns the delays the D20 hardware was characterised with.
func DefaultTiming() Timing {
	return Timing{MuxSettle: DefaultMuxSettle, Bleed: DefaultBleed}
}

// Option configures a FrontEnd.
type Option func(*FrontEnd)

// WithTiming overrides the protocol delays.
func WithTiming(t Timing) Option {
	return func(f *FrontEnd) { f.timing = t }
}

// WithSleep replaces the delay function. Firmware and host use time.Sleep; the
// simulator passes its virtual clock.
func WithSleep(sleep func(time.Duration)) Option {
	return func(f *FrontEnd) { f.sleep = sleep }
}

// WithResolution sets the ADC resolution in bits. Results are clamped to it.
func WithResolution(bits int) Option {
	return func(f *FrontEnd) {
		if bits > 0 && bits <= 16 {
			f.resolution = bits
		}
	}
}

// FrontEnd owns the multiplexers and the ADC front end. All access is serialized:
// nothing may touch the front end between the reference conversion and the target
// conversions of a stable read.
type FrontEnd struct {
	mu sync.Mutex

	table      *wiring.Table
	conv       Converter
	sel        Selector
	sleep      func(time.Duration)
	timing     Timing
	resolution int
}

// New creates a FrontEnd over the given wiring. The table is expected to be
// validated already; the ADC channels it names must be configured by the caller.
func New(table *wiring.Table, conv Converter, sel Selector, opts ...Option) *FrontEnd {
	f := &FrontEnd{
		table:      table,
		conv:       conv,
		sel:        sel,
		sleep:      time.Sleep,
		timing:     DefaultTiming(),
		resolution: DefaultResolution,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Table returns the wiring the front end was built with.
func (f *FrontEnd) Table() *wiring.Table {
	return f.table
}

// Max returns the largest sample value at the configured resolution.
func (f *FrontEnd) Max() RawSample {
	return RawSample(1<<f.resolution - 1)
}

// ReadStable returns a conversion of target that does not depend on what was
// converted before it.
//
// The hold capacitor is first pulled towards the reference level by converting
// reference and discarding the result. The target is then converted twice and the
// first (dummy) result is discarded. The reference value is never returned.
func (f *FrontEnd) ReadStable(target, reference wiring.Source) (RawSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	refADC, err := f.activate(reference)
	if err != nil {
		return 0, err
	}
	// A direct reference still gets the settle wait before its conversion.
	if _, ok := reference.(wiring.DirectChannel); ok {
		f.settle()
	}
	if _, err := f.conv.Convert(refADC); err != nil {
		return 0, &ReadFailure{Source: reference, Err: err}
	}
	if f.timing.Bleed > 0 {
		f.sleep(f.timing.Bleed)
	}

	adc, err := f.activate(target)
	if err != nil {
		return 0, err
	}
	if _, err := f.conv.Convert(adc); err != nil {
		return 0, &ReadFailure{Source: target, Err: err}
	}
	v, err := f.conv.Convert(adc)
	if err != nil {
		return 0, &ReadFailure{Source: target, Err: err}
	}
	return f.clamp(v), nil
}

// ReadRaw selects src and returns a single conversion without conditioning the
// front end. The result carries charge left over from the previous conversion; it
// is only meant for bench checks such as verifying the reference idles near ground.
func (f *FrontEnd) ReadRaw(src wiring.Source) (RawSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	adc, err := f.activate(src)
	if err != nil {
		return 0, err
	}
	v, err := f.conv.Convert(adc)
	if err != nil {
		return 0, &ReadFailure{Source: src, Err: err}
	}
	return f.clamp(v), nil
}

// activate routes src to its ADC channel and waits for the mux to settle.
func (f *FrontEnd) activate(src wiring.Source) (wiring.ADCChannel, error) {
	switch s := src.(type) {
	case wiring.MuxChannel:
		m, ok := f.table.Mux(s.Mux)
		if !ok {
			return wiring.ADCChannel{}, &ReadFailure{Source: src, Err: fmt.Errorf("unknown mux %d", s.Mux)}
		}
		if err := f.sel.Select(s.Mux, s.Channel); err != nil {
			return wiring.ADCChannel{}, &ReadFailure{Source: src, Err: err}
		}
		f.settle()
		return m.Out, nil
	case wiring.DirectChannel:
		return s.ADC, nil
	default:
		return wiring.ADCChannel{}, &ReadFailure{Source: src, Err: fmt.Errorf("unsupported source %T", src)}
	}
}

func (f *FrontEnd) settle() {
	if f.timing.MuxSettle > 0 {
		f.sleep(f.timing.MuxSettle)
	}
}

func (f *FrontEnd) clamp(v uint16) RawSample {
	if m := f.Max(); RawSample(v) > m {
		return m
	}
	return RawSample(v)
}
