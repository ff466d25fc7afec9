// Package monitor receives the drum module's diagnostic stream on the host.
package monitor

// Device is a source of diagnostic readings (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Readings() <-chan Reading
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
