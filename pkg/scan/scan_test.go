package scan

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/wiring"
)

type fakeReader struct {
	values map[string]frontend.RawSample
	fail   map[string]error
	refs   []wiring.Source
	reads  []string
}

func (f *fakeReader) ReadStable(target, reference wiring.Source) (frontend.RawSample, error) {
	f.reads = append(f.reads, target.Label())
	f.refs = append(f.refs, reference)
	if err, ok := f.fail[target.Label()]; ok {
		return 0, err
	}
	return f.values[target.Label()], nil
}

func newReader() *fakeReader {
	return &fakeReader{values: map[string]frontend.RawSample{}, fail: map[string]error{}}
}

func TestLineFormat(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want string
	}{
		{"mux", Line{Input: 6, Label: "MUX1_CH0", Value: 12}, "6\tMUX1_CH0\t12\n"},
		{"direct", Line{Input: 17, Label: "GPIO14", Value: 4095}, "17\tGPIO14\t4095\n"},
		{"failed", Line{Input: 20, Label: "GPIO18", Value: 99, Failed: true}, "20\tGPIO18\tERR\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.line))
		})
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		limit   frontend.RawSample
		want    Line
		wantErr bool
	}{
		{name: "mux", line: "6\tMUX1_CH0\t12", want: Line{Input: 6, Label: "MUX1_CH0", Value: 12}},
		{name: "crlf", line: "18\tMUX2_CH8\t2048\r\n", want: Line{Input: 18, Label: "MUX2_CH8", Value: 2048}},
		{name: "failure", line: "17\tGPIO14\tERR", want: Line{Input: 17, Label: "GPIO14", Failed: true}},
		{name: "full scale", line: "1\tGPIO2\t4095", want: Line{Input: 1, Label: "GPIO2", Value: 4095}},
		{name: "wider limit", line: "1\tGPIO2\t8191", limit: 8191, want: Line{Input: 1, Label: "GPIO2", Value: 8191}},
		{name: "over limit", line: "1\tGPIO2\t4096", wantErr: true},
		{name: "input zero", line: "0\tGPIO2\t1", wantErr: true},
		{name: "input too large", line: "21\tGPIO2\t1", wantErr: true},
		{name: "bad label", line: "1\tPIN2\t1", wantErr: true},
		{name: "bad mux label", line: "1\tMUX1CH2\t1", wantErr: true},
		{name: "negative value", line: "1\tGPIO2\t-1", wantErr: true},
		{name: "two fields", line: "1\tGPIO2", wantErr: true},
		{name: "spaces", line: "1 GPIO2 5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line, tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_FormatRoundTrip(t *testing.T) {
	for _, e := range wiring.D20V11().Schedule() {
		l := Line{Input: e.Input, Label: e.Source.Label(), Value: 1234}
		got, err := ParseLine(Format(l), 0)
		require.NoError(t, err, e.Source.Label())
		assert.Equal(t, l, got)
	}
}

func TestCycle_ScheduleOrder(t *testing.T) {
	table := wiring.D20V11()
	r := newReader()
	r.values["MUX1_CH0"] = 12
	r.values["GPIO18"] = 3000

	var buf bytes.Buffer
	s := New(r, table, WriterSink(&buf), WithStepDelay(0))
	assert.Equal(t, 39, s.Len())

	n, err := s.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 39, n)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 39)
	assert.Equal(t, "6\tMUX1_CH0\t12", lines[0])
	assert.Equal(t, "20\tGPIO18\t3000", lines[38])

	for i, e := range table.Schedule() {
		assert.Equal(t, e.Source.Label(), r.reads[i])
		assert.Equal(t, table.Reference, r.refs[i], "every reading conditions on the reference")
	}
}

func TestCycle_FailureContinues(t *testing.T) {
	table := wiring.D20V11()
	r := newReader()
	boom := errors.New("boom")
	r.fail["GPIO14"] = boom

	var handled []error
	var lines []Line
	s := New(r, table, SinkFunc(func(l Line) error {
		lines = append(lines, l)
		return nil
	}), WithStepDelay(0), WithErrorHandler(func(e wiring.Entry, err error) {
		assert.Equal(t, "GPIO14", e.Source.Label())
		handled = append(handled, err)
	}))

	n, err := s.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 39, n)
	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], boom)

	var rf *frontend.ReadFailure
	require.ErrorAs(t, handled[0], &rf)
	assert.Equal(t, "GPIO14", rf.Source.Label())

	failed := 0
	for _, l := range lines {
		if l.Failed {
			failed++
			assert.Equal(t, wiring.LogicalInput(17), l.Input)
			assert.Equal(t, "17\tGPIO14\tERR", l.String())
		}
	}
	assert.Equal(t, 1, failed)
}

func TestCycle_SinkError(t *testing.T) {
	r := newReader()
	full := errors.New("full")
	calls := 0
	s := New(r, wiring.D20V11(), SinkFunc(func(Line) error {
		calls++
		if calls == 3 {
			return full
		}
		return nil
	}), WithStepDelay(0))

	n, err := s.Cycle(context.Background())
	assert.ErrorIs(t, err, full)
	assert.Equal(t, 2, n)
}

func TestCycle_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newReader()
	s := New(r, wiring.D20V11(), SinkFunc(func(Line) error {
		cancel()
		return nil
	}), WithStepDelay(time.Hour))

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		defer close(done)
		n, err = s.Cycle(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cycle did not stop on cancel")
	}
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Cycles(t *testing.T) {
	r := newReader()
	count := 0
	s := New(r, wiring.D20V11(), SinkFunc(func(Line) error {
		count++
		return nil
	}), WithStepDelay(0))

	require.NoError(t, s.Run(context.Background(), 3))
	assert.Equal(t, 3*39, count)
}

func TestRun_StepDelay(t *testing.T) {
	r := newReader()
	s := New(r, wiring.D20V11(), SinkFunc(func(Line) error { return nil }),
		WithStepDelay(time.Millisecond))

	start := time.Now()
	require.NoError(t, s.Run(context.Background(), 1))
	assert.GreaterOrEqual(t, time.Since(start), 39*time.Millisecond)
}
