package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/padscan/pkg/board"
	"github.com/itohio/padscan/pkg/config"
	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/sim"
	"github.com/itohio/padscan/pkg/wiring"
)

func TestParseLevel(t *testing.T) {
	l, err := parseLevel("MUX1_CH5=4095")
	require.NoError(t, err)
	assert.Equal(t, config.SimLevel{Label: "MUX1_CH5", Raw: 4095}, l)

	for _, bad := range []string{"MUX1_CH5", "=12", "GPIO14=high"} {
		_, err := parseLevel(bad)
		assert.Error(t, err, bad)
	}
}

func TestWriteSchedule(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSchedule(&buf, wiring.D20V11()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2+39)
	assert.Contains(t, lines[0], "reference MUX1_CH0 (ADC1_CH1)")
	assert.Equal(t, []string{"1", "6", "MUX1_CH0", "ADC1_CH1"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"39", "20", "GPIO18", "ADC2_CH7"}, strings.Fields(lines[len(lines)-1]))
}

func TestCompareReads(t *testing.T) {
	table := wiring.D20V11()
	simCfg := config.Default().Sim
	s, err := sim.New(table, &simCfg, 12)
	require.NoError(t, err)
	require.NoError(t, s.SetLevel(wiring.MuxChannel{Mux: 1, Channel: 5}, 4095))
	s.FailOn(wiring.ADCChannel{Unit: wiring.ADC2, Index: 7})
	fe := frontend.New(table, s, s, frontend.WithSleep(s.Sleep))

	var buf bytes.Buffer
	require.NoError(t, compareReads(&buf, fe, s))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1+39)
	assert.Equal(t, []string{"20", "GPIO18", scan.FailureMarker, scan.FailureMarker}, strings.Fields(lines[len(lines)-1]))
}

func TestCycleStatus(t *testing.T) {
	sched := wiring.D20V11().Schedule()
	b := board.New(sched, 4095, 3.1)
	assert.Equal(t, "waiting for a full cycle", cycleStatus(b))

	now := time.Now()
	feed := func(entries []wiring.Entry) {
		for _, e := range entries {
			b.Update(scan.Line{Input: e.Input, Label: e.Source.Label()}, now)
		}
	}
	feed(sched[24:])
	feed(sched)
	feed(sched[:1])
	assert.Equal(t, "cycle 1: 39 lines", cycleStatus(b))

	feed(sched[1:37])
	feed(sched[:1])
	assert.Equal(t, "cycle 2: incomplete, 37 of 39 lines", cycleStatus(b))
}
