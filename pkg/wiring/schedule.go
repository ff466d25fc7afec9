package wiring

// Entry is one reading in a scan cycle.
type Entry struct {
	Input  LogicalInput
	Source Source
}

// Schedule returns the fixed scan order: every mux channel in mux order, then the
// populated conductors of each direct input, tip before ring.
func (t *Table) Schedule() []Entry {
	entries := make([]Entry, 0, len(t.Muxes)*MuxChannels+len(t.Direct)*2)

	for _, m := range t.Muxes {
		for ch := range MuxChannels {
			entries = append(entries, Entry{
				Input:  m.Inputs[ch],
				Source: MuxChannel{Mux: m.ID, Channel: uint8(ch)},
			})
		}
	}

	for _, d := range t.Direct {
		for _, src := range d.Conductors() {
			entries = append(entries, Entry{Input: d.Input, Source: src})
		}
	}

	return entries
}
