// Package hardware provides the I/O capability the controller scans
// against.
//
// The controller never touches pins directly. It reads inputs and drives
// outputs through IO, whose calls must not block: a read returns the most
// recent known value and a write is either immediate or queued.
//
// Implementations:
//   - Simulated: in-memory channels, used by tests and the "sim" backend
//   - MQTTIO: field I/O modules reached over MQTT; inputs are cached from
//     state topics and outputs are published by a background writer
package hardware

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// IO is the hardware capability consumed by the engine.
type IO interface {
	ReadDigitalInput(ch int) bool
	ReadAnalogInput(ch int) uint32
	WriteDigitalOutput(ch int, level bool)
	// NowMs is a free-running millisecond counter that wraps at 2^32.
	NowMs() uint32
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// millis returns the wrapping millisecond counter since start.
func millis(clock clockwork.Clock, start time.Time) uint32 {
	return uint32(clock.Since(start).Milliseconds()) //nolint:gosec // counter wraps like the hardware tick
}
