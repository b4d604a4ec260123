package scan

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRunMode is returned when parsing an unknown run-mode token.
var ErrUnknownRunMode = errors.New("scan: unknown run mode")

// RunMode selects how the scheduler advances through the scan order.
type RunMode uint8

const (
	// RunNormal executes one full pass per scan interval.
	RunNormal RunMode = iota
	// RunStep executes one card per step request.
	RunStep
	// RunBreakpoint executes cards in order and pauses after a card whose
	// breakpoint flag is set.
	RunBreakpoint
	// RunSlow behaves like RunNormal at the slow interval.
	RunSlow
)

var runModeNames = [...]string{"RUN_NORMAL", "RUN_STEP", "RUN_BREAKPOINT", "RUN_SLOW"}

func (m RunMode) String() string {
	if int(m) < len(runModeNames) {
		return runModeNames[m]
	}
	return fmt.Sprintf("RunMode(%d)", m)
}

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool { return int(m) < len(runModeNames) }

// ParseRunMode parses a run-mode token such as "RUN_STEP".
func ParseRunMode(s string) (RunMode, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range runModeNames {
		if n == u {
			return RunMode(i), nil //nolint:gosec // four entries
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRunMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m RunMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRunMode, m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RunMode) UnmarshalText(b []byte) error {
	v, err := ParseRunMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
