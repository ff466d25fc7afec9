package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
)

const (
	// DefaultBaudRate is the console baud rate of the firmware.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
)

// Reading is one diagnostic line received from the board.
type Reading struct {
	Timestamp time.Time
	scan.Line
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the drum module's diagnostic console.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	limit    frontend.RawSample
	log      zerolog.Logger

	conn      serial.Port
	readings  chan Reading
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int, log zerolog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		log:       log.With().Str("port", port).Logger(),
		readings:  make(chan Reading, bufSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// SetMaxSample overrides the largest accepted sample value (12-bit by default).
func (d *Serial) SetMaxSample(limit frontend.RawSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limit = limit
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readLines(port)

	return nil
}

// Close closes the connection and stops reading.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			d.log.Warn().Err(err).Msg("error closing serial port")
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// Readings returns the channel of parsed lines. It is closed once the reader stops.
func (d *Serial) Readings() <-chan Reading {
	return d.readings
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readLines reads lines from r and parses them into Readings.
func (d *Serial) readLines(r io.Reader) {
	defer close(d.readings)
	defer func() {
		if p := recover(); p != nil {
			d.log.Error().Interface("panic", p).Msg("panic in serial reader")
		}
	}()

	d.mu.RLock()
	limit := d.limit
	d.mu.RUnlock()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if d.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parsed, err := scan.ParseLine(line, limit)
		if err != nil {
			// Boot banners and partial lines are expected after a reset.
			d.log.Warn().Err(err).Str("line", line).Msg("failed to parse line")
			continue
		}

		select {
		case d.readings <- Reading{Timestamp: time.Now(), Line: parsed}:
		case <-d.ctx.Done():
			return
		default:
			d.log.Warn().Msg("readings channel full, dropping reading")
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
		d.log.Error().Err(err).Msg("error reading from serial port")
	}
}
