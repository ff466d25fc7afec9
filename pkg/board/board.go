// Package board keeps the latest reading of every conductor reported by the drum
// module and tracks whether whole scan cycles arrive.
package board

import (
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/scan"
	"github.com/itohio/padscan/pkg/wiring"
)

// Entry is the state of one conductor.
type Entry struct {
	Input    wiring.LogicalInput
	Label    string
	Raw      frontend.RawSample
	Volts    float32
	Min      frontend.RawSample
	Max      frontend.RawSample
	Count    int // successful readings
	Failures int
	Updated  time.Time
}

// Spread is the difference between the largest and smallest reading seen.
func (e Entry) Spread() frontend.RawSample {
	if e.Count == 0 {
		return 0
	}
	return e.Max - e.Min
}

// Level is the last reading as a fraction of full scale.
func (e Entry) Level(limit frontend.RawSample) float32 {
	if limit == 0 {
		return 0
	}
	return math32.Min(float32(e.Raw)/float32(limit), 1)
}

type key struct {
	input wiring.LogicalInput
	label string
}

// Board is a latest-value table with one entry per schedule position. A
// conductor may appear at more than one position (a ring wired to a mux channel
// is read in both the mux scan and the direct scan), so lines are placed by
// following the schedule rather than by their identity alone. A cycle starts
// whenever the scan wraps back to the start of the schedule.
type Board struct {
	mu        sync.RWMutex
	max       frontend.RawSample
	fullScale float32

	entries   []Entry
	positions map[key][]int

	synced  bool // at least one line has been placed
	last    int  // position of the last placed line
	started bool // a cycle boundary has been seen

	current   int
	lastCycle int
	cycles    int
	unknown   int
}

// New creates a board for the given schedule, for samples in [0, limit] spanning
// fullScale volts. A zero limit means 12-bit.
func New(schedule []wiring.Entry, limit frontend.RawSample, fullScale float32) *Board {
	if limit == 0 {
		limit = 1<<frontend.DefaultResolution - 1
	}
	b := &Board{
		max:       limit,
		fullScale: fullScale,
		entries:   make([]Entry, len(schedule)),
		positions: make(map[key][]int),
	}
	for i, e := range schedule {
		label := e.Source.Label()
		b.entries[i] = Entry{Input: e.Input, Label: label}
		k := key{e.Input, label}
		b.positions[k] = append(b.positions[k], i)
	}
	return b
}

// Max returns the largest sample value.
func (b *Board) Max() frontend.RawSample {
	return b.max
}

// Len returns the number of schedule positions, which is the length of a
// complete cycle.
func (b *Board) Len() int {
	return len(b.entries)
}

// Volts converts a raw sample to volts.
func (b *Board) Volts(raw frontend.RawSample) float32 {
	return math32.Min(float32(raw)/float32(b.max), 1) * b.fullScale
}

// place picks the schedule position of a line. ok is false for lines that are not
// in the schedule and for ambiguous lines seen before the board has synced.
func (b *Board) place(k key) (int, bool) {
	cands := b.positions[k]
	switch {
	case len(cands) == 0:
		return 0, false
	case len(cands) == 1:
		return cands[0], true
	case !b.synced:
		return 0, false
	}
	for _, i := range cands {
		if i > b.last {
			return i, true
		}
	}
	return cands[0], true
}

// Update records one line received at the given time.
func (b *Board) Update(l scan.Line, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.place(key{l.Input, l.Label})
	if !ok {
		if len(b.positions[key{l.Input, l.Label}]) == 0 {
			b.unknown++
		}
		return
	}

	if (b.synced && i <= b.last) || (!b.synced && i == 0) {
		if b.started {
			b.lastCycle = b.current
			b.cycles++
		}
		b.started = true
		b.current = 0
	}
	b.synced = true
	b.last = i
	if b.started {
		b.current++
	}

	e := &b.entries[i]
	e.Updated = at

	if l.Failed {
		e.Failures++
		return
	}

	if e.Count == 0 || l.Value < e.Min {
		e.Min = l.Value
	}
	if e.Count == 0 || l.Value > e.Max {
		e.Max = l.Value
	}
	e.Raw = l.Value
	e.Volts = b.Volts(l.Value)
	e.Count++
}

// Snapshot returns a copy of all entries in schedule order.
func (b *Board) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// At returns the entry at one schedule position.
func (b *Board) At(i int) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i < 0 || i >= len(b.entries) {
		return Entry{}, false
	}
	return b.entries[i], true
}

// Cycles returns the number of completed cycles.
func (b *Board) Cycles() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cycles
}

// LastCycleLen returns the line count of the last completed cycle.
func (b *Board) LastCycleLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastCycle
}

// Unknown returns the number of lines whose conductor is not in the schedule.
func (b *Board) Unknown() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unknown
}

// Complete reports whether the last completed cycle covered the whole schedule.
func (b *Board) Complete() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cycles > 0 && b.lastCycle == len(b.entries)
}

// Reset clears all readings and cycle accounting. The schedule is kept.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.entries {
		b.entries[i] = Entry{Input: b.entries[i].Input, Label: b.entries[i].Label}
	}
	b.synced = false
	b.last = 0
	b.started = false
	b.current = 0
	b.lastCycle = 0
	b.cycles = 0
	b.unknown = 0
}
