// Package sim simulates the drum module's analog front end, including the charge
// the ADC's sample-and-hold capacitor carries from one conversion to the next.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/wiring"
)

// ErrConversion is returned for channels marked with FailOn.
var ErrConversion = errors.New("simulated conversion failure")

// Conversion is one journaled conversion.
type Conversion struct {
	ADC   wiring.ADCChannel
	Value uint16
}

// Sim implements frontend.Converter and frontend.Selector over a simple model:
// every conversion closes ChargeTransfer of the gap between the held level and the
// level of the connected source, and idle time bleeds the held level toward ground.
type Sim struct {
	mu sync.Mutex

	table *wiring.Table
	cfg   config.SimConfig
	max   float64
	rng   *rand.Rand

	held     float64
	selected map[wiring.MuxID]uint8
	mux      map[wiring.MuxID]*[wiring.MuxChannels]float64
	direct   map[wiring.ADCChannel]float64
	fail     map[wiring.ADCChannel]bool

	conversions []Conversion
	elapsed     time.Duration
}

var (
	_ frontend.Converter = (*Sim)(nil)
	_ frontend.Selector  = (*Sim)(nil)
)

// New creates a simulator for table. resolution is the ADC width in bits.
func New(table *wiring.Table, cfg *config.SimConfig, resolution int) (*Sim, error) {
	if cfg == nil {
		def := config.Default().Sim
		cfg = &def
	}
	if resolution <= 0 {
		resolution = frontend.DefaultResolution
	}

	s := &Sim{
		table:    table,
		cfg:      *cfg,
		max:      float64(int(1)<<resolution - 1),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		selected: make(map[wiring.MuxID]uint8),
		mux:      make(map[wiring.MuxID]*[wiring.MuxChannels]float64),
		direct:   make(map[wiring.ADCChannel]float64),
		fail:     make(map[wiring.ADCChannel]bool),
	}
	for _, m := range table.Muxes {
		levels := new([wiring.MuxChannels]float64)
		for i := range levels {
			levels[i] = cfg.Idle
		}
		s.mux[m.ID] = levels
	}

	labels := make(map[string]wiring.Source)
	for _, e := range table.Schedule() {
		labels[e.Source.Label()] = e.Source
	}
	for _, l := range cfg.Levels {
		src, ok := labels[l.Label]
		if !ok {
			return nil, fmt.Errorf("unknown channel label %q", l.Label)
		}
		if err := s.SetLevel(src, l.Raw); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SetLevel sets the true level of a source in raw counts.
func (s *Sim) SetLevel(src wiring.Source, raw float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := src.(type) {
	case wiring.MuxChannel:
		levels, ok := s.mux[v.Mux]
		if !ok {
			return fmt.Errorf("unknown mux %d", v.Mux)
		}
		if v.Channel >= wiring.MuxChannels {
			return fmt.Errorf("channel %d out of range", v.Channel)
		}
		levels[v.Channel] = raw
	case wiring.DirectChannel:
		s.direct[v.ADC] = raw
	default:
		return fmt.Errorf("unsupported source %T", src)
	}
	return nil
}

// FailOn makes every conversion on adc fail.
func (s *Sim) FailOn(adc wiring.ADCChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[adc] = true
}

// Reset models a power-on reset: discharged capacitor, all muxes on channel 0.
// Levels and failures are kept.
func (s *Sim) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = 0
	clear(s.selected)
	s.conversions = nil
	s.elapsed = 0
}

// Select implements frontend.Selector.
func (s *Sim) Select(mux wiring.MuxID, channel uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mux[mux]; !ok {
		return fmt.Errorf("unknown mux %d", mux)
	}
	if channel >= wiring.MuxChannels {
		return fmt.Errorf("channel %d out of range", channel)
	}
	s.selected[mux] = channel
	return nil
}

// Convert implements frontend.Converter.
func (s *Sim) Convert(adc wiring.ADCChannel) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail[adc] {
		return 0, fmt.Errorf("%w on %s", ErrConversion, adc)
	}

	level := s.levelOf(adc)
	s.held += s.cfg.ChargeTransfer * (level - s.held)

	v := s.held
	if s.cfg.Noise > 0 {
		v += (s.rng.Float64()*2 - 1) * s.cfg.Noise
	}
	v = math.Round(math.Min(math.Max(v, 0), s.max))

	s.conversions = append(s.conversions, Conversion{ADC: adc, Value: uint16(v)})
	return uint16(v), nil
}

// Sleep advances virtual time; the held charge bleeds toward ground.
func (s *Sim) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed += d
	if s.cfg.BleedTau > 0 && d > 0 {
		s.held *= math.Exp(-float64(d) / float64(s.cfg.BleedTau))
	}
}

// Held returns the level currently held on the sampling capacitor.
func (s *Sim) Held() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Elapsed returns the virtual time spent sleeping.
func (s *Sim) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Conversions returns a copy of the conversion journal.
func (s *Sim) Conversions() []Conversion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversion(nil), s.conversions...)
}

// levelOf returns the level of whatever is connected to adc. A mux output sees
// its selected channel. Unknown channels float at the idle level.
func (s *Sim) levelOf(adc wiring.ADCChannel) float64 {
	for _, m := range s.table.Muxes {
		if m.Out == adc {
			return s.mux[m.ID][s.selected[m.ID]]
		}
	}
	if v, ok := s.direct[adc]; ok {
		return v
	}
	return s.cfg.Idle
}
