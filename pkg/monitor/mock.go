package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/sim"
	"github.com/itohio/padscan/pkg/wiring"
)

// Mock runs the real scanner against a simulated front end, for development
// without a board attached.
type Mock struct {
	cfg   *config.Config
	table *wiring.Table
	sim   *sim.Sim
	log   zerolog.Logger

	readings  chan Reading
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewMock creates a new mocked device from cfg. A nil cfg uses defaults.
func NewMock(cfg *config.Config, log zerolog.Logger) (*Mock, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}

	s, err := sim.New(table, &cfg.Sim, cfg.ADC.Resolution)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:      cfg,
		table:    table,
		sim:      s,
		log:      log,
		readings: make(chan Reading, DefaultBufferSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Sim exposes the simulator so callers can change source levels while running.
func (m *Mock) Sim() *sim.Sim {
	return m.sim
}

// Connect starts scanning.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	fe := frontend.New(m.table, m.sim, m.sim,
		append(m.cfg.FrontEndOptions(), frontend.WithSleep(m.sim.Sleep))...)
	scanner := scan.New(fe, m.table, scan.SinkFunc(m.emit),
		scan.WithStepDelay(m.cfg.Timing.StepDelay),
		scan.WithErrorHandler(func(e wiring.Entry, err error) {
			m.log.Warn().Err(err).Uint8("input", uint8(e.Input)).Msg("reading failed")
		}),
	)

	m.connected = true
	go m.run(scanner)

	return nil
}

// Close stops scanning and closes the readings channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	m.mu.Unlock()

	<-m.done
	return nil
}

// Readings returns the channel for reading lines.
func (m *Mock) Readings() <-chan Reading {
	return m.readings
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Mock) run(scanner *scan.Scanner) {
	defer close(m.done)
	defer close(m.readings)

	if err := scanner.Run(m.ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
		m.log.Error().Err(err).Msg("mock scanner stopped")
	}
}

func (m *Mock) emit(l scan.Line) error {
	select {
	case m.readings <- Reading{Timestamp: time.Now(), Line: l}:
	case <-m.ctx.Done():
		return m.ctx.Err()
	default:
		m.log.Warn().Str("label", l.Label).Msg("readings channel full, dropping reading")
	}
	return nil
}
