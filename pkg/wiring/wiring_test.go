package wiring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestD20V11_Valid(t *testing.T) {
	require.NoError(t, D20V11().Validate())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "MUX1_CH0", MuxChannel{Mux: 1, Channel: 0}.Label())
	assert.Equal(t, "MUX2_CH15", MuxChannel{Mux: 2, Channel: 15}.Label())
	assert.Equal(t, "GPIO14", DirectChannel{Pin: 14, ADC: ADCChannel{Unit: ADC2, Index: 3}}.Label())
	assert.Equal(t, "ADC2_CH3", ADCChannel{Unit: ADC2, Index: 3}.String())
}

func TestSchedule_Count(t *testing.T) {
	tbl := D20V11()

	conductors := 0
	for _, d := range tbl.Direct {
		conductors++
		if d.Ring != nil {
			conductors++
		}
	}

	sched := tbl.Schedule()
	assert.Len(t, sched, 2*MuxChannels+conductors)
	assert.Len(t, sched, 39)
}

func TestSchedule_Order(t *testing.T) {
	tbl := D20V11()
	sched := tbl.Schedule()

	for i := range MuxChannels {
		assert.Equal(t, MuxChannel{Mux: 1, Channel: uint8(i)}, sched[i].Source)
		assert.Equal(t, tbl.Muxes[0].Inputs[i], sched[i].Input)
		assert.Equal(t, MuxChannel{Mux: 2, Channel: uint8(i)}, sched[MuxChannels+i].Source)
		assert.Equal(t, tbl.Muxes[1].Inputs[i], sched[MuxChannels+i].Input)
	}

	var tail []LogicalInput
	for _, e := range sched[2*MuxChannels:] {
		tail = append(tail, e.Input)
	}
	assert.Equal(t, []LogicalInput{17, 17, 18, 18, 19, 19, 20}, tail)

	// Input 18's ring goes through MUX2 channel 8.
	assert.Equal(t, MuxChannel{Mux: 2, Channel: 8}, sched[2*MuxChannels+3].Source)
}

func TestTable_ADC(t *testing.T) {
	tbl := D20V11()

	adc, err := tbl.ADC(MuxChannel{Mux: 2, Channel: 8})
	require.NoError(t, err)
	assert.Equal(t, ADCChannel{Unit: ADC1, Index: 6}, adc)

	adc, err = tbl.ADC(DirectChannel{Pin: 18, ADC: ADCChannel{Unit: ADC2, Index: 7}})
	require.NoError(t, err)
	assert.Equal(t, ADCChannel{Unit: ADC2, Index: 7}, adc)

	_, err = tbl.ADC(MuxChannel{Mux: 9})
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"input out of range", func(tb *Table) { tb.Muxes[0].Inputs[3] = 21 }},
		{"input zero", func(tb *Table) { tb.Muxes[1].Inputs[0] = 0 }},
		{"missing tip", func(tb *Table) { tb.Direct[0].Tip = nil }},
		{"unknown mux in ring", func(tb *Table) { tb.Direct[1].Ring = MuxChannel{Mux: 3, Channel: 1} }},
		{"mux channel out of range", func(tb *Table) { tb.Direct[1].Ring = MuxChannel{Mux: 2, Channel: 16} }},
		{"uncovered input", func(tb *Table) { tb.Direct = tb.Direct[:3] }},
		{"adc claimed by two pins", func(tb *Table) {
			tb.Direct[3].Tip = DirectChannel{Pin: 40, ADC: ADCChannel{Unit: ADC1, Index: 1}}
		}},
		{"bad adc unit", func(tb *Table) {
			tb.Direct[3].Tip = DirectChannel{Pin: 18, ADC: ADCChannel{Unit: 3, Index: 7}}
		}},
		{"duplicate mux", func(tb *Table) { tb.Muxes[1].ID = 1 }},
		{"missing reference", func(tb *Table) { tb.Reference = nil }},
		{"pointer source", func(tb *Table) { tb.Reference = &MuxChannel{Mux: 1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := D20V11()
			tt.mutate(tbl)
			err := tbl.Validate()
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	var tbl *Table
	assert.ErrorIs(t, tbl.Validate(), ErrInvalidTable)
}

func TestDirectInput_Conductors(t *testing.T) {
	tbl := D20V11()
	assert.Len(t, tbl.Direct[0].Conductors(), 2)
	assert.Len(t, tbl.Direct[3].Conductors(), 1)
}

func TestTable_DirectPins(t *testing.T) {
	var pins []uint8
	for _, dc := range D20V11().DirectPins() {
		pins = append(pins, dc.Pin)
	}
	// Input 18's ring is MUX2_CH8 and stays off the list.
	assert.Equal(t, []uint8{14, 12, 13, 16, 15, 18}, pins)
}

func TestParseADCChannel(t *testing.T) {
	ch, err := ParseADCChannel("ADC2_CH3")
	require.NoError(t, err)
	assert.Equal(t, ADCChannel{Unit: ADC2, Index: 3}, ch)

	for _, bad := range []string{"", "ADC2", "ADC2_CH", "adc1_ch1", "ADC1_CH1x", "GPIO4", "ADC0_CH1", "ADC3_CH1"} {
		_, err := ParseADCChannel(bad)
		assert.Error(t, err, bad)
	}
}
