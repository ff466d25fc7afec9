// Package scan walks the wiring schedule and emits one diagnostic line per reading.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/wiring"
)

// DefaultStepDelay is the pause after each reading so a human can follow the stream.
const DefaultStepDelay = 250 * time.Millisecond

// Reader is the part of the front end the scanner needs.
type Reader interface {
	ReadStable(target, reference wiring.Source) (frontend.RawSample, error)
}

// Sink receives every emitted line.
type Sink interface {
	Emit(Line) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Line) error

func (f SinkFunc) Emit(l Line) error { return f(l) }

// WriterSink writes formatted lines to w.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(func(l Line) error {
		_, err := io.WriteString(w, Format(l))
		return err
	})
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithStepDelay sets the pause after each reading. Zero disables it.
func WithStepDelay(d time.Duration) Option {
	return func(s *Scanner) { s.step = d }
}

// WithErrorHandler is called for every failed reading before the failure line is
// emitted.
func WithErrorHandler(fn func(wiring.Entry, error)) Option {
	return func(s *Scanner) { s.onError = fn }
}

// Scanner reads every entry of a wiring table's schedule in order.
type Scanner struct {
	reader    Reader
	reference wiring.Source
	schedule  []wiring.Entry
	sink      Sink
	step      time.Duration
	onError   func(wiring.Entry, error)
}

// New creates a scanner over table. The table must already be validated.
func New(reader Reader, table *wiring.Table, sink Sink, opts ...Option) *Scanner {
	s := &Scanner{
		reader:    reader,
		reference: table.Reference,
		schedule:  table.Schedule(),
		sink:      sink,
		step:      DefaultStepDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of lines one cycle emits.
func (s *Scanner) Len() int {
	return len(s.schedule)
}

// Cycle performs one pass over the schedule and returns the number of lines
// emitted. A failed reading produces a failure line and scanning continues; a sink
// error or a cancelled context stops the cycle.
func (s *Scanner) Cycle(ctx context.Context) (int, error) {
	emitted := 0
	for _, e := range s.schedule {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}

		line := Line{Input: e.Input, Label: e.Source.Label()}
		v, err := s.reader.ReadStable(e.Source, s.reference)
		if err != nil {
			var rf *frontend.ReadFailure
			if !errors.As(err, &rf) {
				err = &frontend.ReadFailure{Source: e.Source, Err: err}
			}
			if s.onError != nil {
				s.onError(e, err)
			}
			line.Failed = true
		} else {
			line.Value = v
		}

		if err := s.sink.Emit(line); err != nil {
			return emitted, fmt.Errorf("failed to emit line: %w", err)
		}
		emitted++

		if err := s.wait(ctx); err != nil {
			return emitted, err
		}
	}
	return emitted, nil
}

// Run repeats Cycle until the context is done or cycles passes have completed.
// cycles <= 0 runs forever.
func (s *Scanner) Run(ctx context.Context, cycles int) error {
	for n := 0; cycles <= 0 || n < cycles; n++ {
		if _, err := s.Cycle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) wait(ctx context.Context) error {
	if s.step <= 0 {
		return nil
	}
	t := time.NewTimer(s.step)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
