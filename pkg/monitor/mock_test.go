package monitor

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/wiring"
)

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Timing.StepDelay = time.Millisecond
	return cfg
}

func TestNewMock(t *testing.T) {
	m, err := NewMock(newTestConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, m.Sim())
	assert.False(t, m.IsConnected())
}

func TestNewMock_NilConfig(t *testing.T) {
	m, err := NewMock(nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, config.Default().Timing, m.cfg.Timing)
}

func TestNewMock_InvalidWiring(t *testing.T) {
	cfg := newTestConfig()
	cfg.Wiring.Direct = cfg.Wiring.Direct[:2]

	_, err := NewMock(cfg, zerolog.Nop())
	assert.ErrorIs(t, err, wiring.ErrInvalidTable)
}

func TestMock_EmitsScheduleInOrder(t *testing.T) {
	cfg := newTestConfig()
	m, err := NewMock(cfg, zerolog.Nop())
	require.NoError(t, err)

	table, err := cfg.Table()
	require.NoError(t, err)
	sched := table.Schedule()

	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())
	assert.Error(t, m.Connect())

	var got []Reading
	timeout := time.After(5 * time.Second)
	for len(got) < len(sched) {
		select {
		case r := <-m.Readings():
			got = append(got, r)
		case <-timeout:
			t.Fatalf("received %d of %d readings", len(got), len(sched))
		}
	}
	require.NoError(t, m.Close())

	for i, e := range sched {
		assert.Equal(t, e.Input, got[i].Input, "reading %d", i)
		assert.Equal(t, e.Source.Label(), got[i].Label, "reading %d", i)
		assert.False(t, got[i].Failed)
	}
}

func TestMock_ReportsFailures(t *testing.T) {
	m, err := NewMock(newTestConfig(), zerolog.Nop())
	require.NoError(t, err)
	m.Sim().FailOn(wiring.ADCChannel{Unit: wiring.ADC2, Index: 7})

	require.NoError(t, m.Connect())
	defer m.Close()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case r := <-m.Readings():
			if r.Label == "GPIO18" {
				assert.True(t, r.Failed)
				return
			}
			assert.False(t, r.Failed, r.Label)
		case <-timeout:
			t.Fatal("no reading for GPIO18")
		}
	}
}

func TestMock_EmitLogsDrops(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewMock(newTestConfig(), zerolog.New(&buf))
	require.NoError(t, err)

	for range DefaultBufferSize + 2 {
		require.NoError(t, m.emit(scan.Line{Input: 20, Label: "GPIO18", Value: 1}))
	}

	assert.Len(t, m.readings, DefaultBufferSize)
	assert.Equal(t, 2, strings.Count(buf.String(), "readings channel full, dropping reading"))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

// TestMock_GracefulShutdown tests that the readings channel closes on Close.
func TestMock_GracefulShutdown(t *testing.T) {
	m, err := NewMock(newTestConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Connect())

	readings := m.Readings()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range readings {
			received++
			if received == 3 {
				go m.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Readings channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3, "Should receive readings before channel closes")
	assert.False(t, m.IsConnected())
}
