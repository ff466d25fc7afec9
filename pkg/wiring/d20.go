package wiring

// D20V11 returns the wiring of the D20 v1.1 drum module on an ESP32-S3.
//
// ADC channels follow the ESP32-S3 pin map: GPIO1..10 are ADC1 channels 0..9 and
// GPIO11..20 are ADC2 channels 0..9.
func D20V11() *Table {
	return &Table{
		Name:      "d20-v1.1",
		Reference: MuxChannel{Mux: 1, Channel: 0},
		Muxes: []Mux{
			{
				ID:     1,
				OutPin: 2,
				Out:    ADCChannel{Unit: ADC1, Index: 1},
				Select: [SelectLines]uint8{5, 6, 3, 4},
				Inputs: [MuxChannels]LogicalInput{6, 3, 4, 3, 4, 2, 1, 1, 10, 7, 8, 7, 8, 5, 6, 5},
			},
			{
				ID:     2,
				OutPin: 7,
				Out:    ADCChannel{Unit: ADC1, Index: 6},
				Select: [SelectLines]uint8{10, 11, 8, 9},
				Inputs: [MuxChannels]LogicalInput{14, 11, 11, 12, 12, 9, 10, 9, 18, 15, 16, 15, 16, 13, 14, 13},
			},
		},
		Direct: []DirectInput{
			{
				Input: 17,
				Tip:   DirectChannel{Pin: 14, ADC: ADCChannel{Unit: ADC2, Index: 3}},
				Ring:  DirectChannel{Pin: 12, ADC: ADCChannel{Unit: ADC2, Index: 1}},
			},
			{
				Input: 18,
				Tip:   DirectChannel{Pin: 13, ADC: ADCChannel{Unit: ADC2, Index: 2}},
				Ring:  MuxChannel{Mux: 2, Channel: 8},
			},
			{
				Input: 19,
				Tip:   DirectChannel{Pin: 16, ADC: ADCChannel{Unit: ADC2, Index: 5}},
				Ring:  DirectChannel{Pin: 15, ADC: ADCChannel{Unit: ADC2, Index: 4}},
			},
			{
				Input: 20,
				Tip:   DirectChannel{Pin: 18, ADC: ADCChannel{Unit: ADC2, Index: 7}},
			},
		},
	}
}
