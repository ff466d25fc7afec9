package scan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/padscan/pkg/frontend"
	"github.com/itohio/padscan/pkg/wiring"
)

// FailureMarker replaces the value column when a reading failed.
const FailureMarker = "ERR"

// Line is one diagnostic line: a reading of one conductor of a logical input.
type Line struct {
	Input  wiring.LogicalInput
	Label  string
	Value  frontend.RawSample
	Failed bool
}

// String formats the line without the trailing newline.
func (l Line) String() string {
	value := FailureMarker
	if !l.Failed {
		value = strconv.Itoa(int(l.Value))
	}
	return fmt.Sprintf("%d\t%s\t%s", l.Input, l.Label, value)
}

// Format returns the line as written to the serial stream:
// <input>\t<label>\t<value>\n
func Format(l Line) string {
	return l.String() + "\n"
}

// ParseLine parses a diagnostic line. limit is the largest valid sample value; zero
// means 12-bit.
// Format: <input>\t<label>\t<value>
// Example: 17\tGPIO14\t2048
func ParseLine(line string, limit frontend.RawSample) (Line, error) {
	if limit == 0 {
		limit = 1<<frontend.DefaultResolution - 1
	}

	parts := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(parts) != 3 {
		return Line{}, fmt.Errorf("invalid line format: expected 3 tab-separated values, got %d", len(parts))
	}

	input, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Line{}, fmt.Errorf("invalid input number: %w", err)
	}
	if input < 1 || input > wiring.NumInputs {
		return Line{}, fmt.Errorf("input out of range: %d (1..%d)", input, wiring.NumInputs)
	}

	label := parts[1]
	if !validLabel(label) {
		return Line{}, fmt.Errorf("invalid channel label: %q", label)
	}

	l := Line{Input: wiring.LogicalInput(input), Label: label}
	if parts[2] == FailureMarker {
		l.Failed = true
		return l, nil
	}

	value, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return Line{}, fmt.Errorf("invalid value: %w", err)
	}
	if frontend.RawSample(value) > limit {
		return Line{}, fmt.Errorf("value out of range: %d (max %d)", value, limit)
	}
	l.Value = frontend.RawSample(value)

	return l, nil
}

// validLabel accepts MUX<m>_CH<c> and GPIO<pin>.
func validLabel(label string) bool {
	if pin, ok := strings.CutPrefix(label, "GPIO"); ok {
		return isNumber(pin)
	}
	rest, ok := strings.CutPrefix(label, "MUX")
	if !ok {
		return false
	}
	mux, ch, ok := strings.Cut(rest, "_CH")
	return ok && isNumber(mux) && isNumber(ch)
}

func isNumber(s string) bool {
	_, err := strconv.ParseUint(s, 10, 8)
	return err == nil
}
