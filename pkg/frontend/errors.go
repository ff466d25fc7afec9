package frontend

import (
	"fmt"

	"github.com/itohio/padscan/pkg/wiring"
)

// ReadFailure reports a conversion or selection that failed on a source.
type ReadFailure struct {
	Source wiring.Source
	Err    error
}

func (e *ReadFailure) Error() string {
	label := "<nil>"
	if e.Source != nil {
		label = e.Source.Label()
	}
	return fmt.Sprintf("read failure on %s: %v", label, e.Err)
}

func (e *ReadFailure) Unwrap() error {
	return e.Err
}
