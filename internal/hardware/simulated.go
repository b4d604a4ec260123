package hardware

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Simulated is an in-memory IO. Inputs are set by the test or operator and
// outputs are recorded. It is safe for concurrent use.
type Simulated struct {
	clock clockwork.Clock
	start time.Time

	mu      sync.Mutex
	digital map[int]bool
	analog  map[int]uint32
	outputs map[int]bool
	writes  uint64
}

// NewSimulated creates a simulated IO whose millisecond counter starts at
// zero on clock.
func NewSimulated(clock clockwork.Clock) *Simulated {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Simulated{
		clock:   clock,
		start:   clock.Now(),
		digital: make(map[int]bool),
		analog:  make(map[int]uint32),
		outputs: make(map[int]bool),
	}
}

// SetDigitalInput sets the level seen on a DI channel.
func (s *Simulated) SetDigitalInput(ch int, level bool) {
	s.mu.Lock()
	s.digital[ch] = level
	s.mu.Unlock()
}

// SetAnalogInput sets the raw value seen on an AI channel.
func (s *Simulated) SetAnalogInput(ch int, v uint32) {
	s.mu.Lock()
	s.analog[ch] = v
	s.mu.Unlock()
}

// DigitalOutput returns the last level written to a DO channel.
func (s *Simulated) DigitalOutput(ch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs[ch]
}

// Writes returns the number of output writes performed.
func (s *Simulated) Writes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ReadDigitalInput implements IO.
func (s *Simulated) ReadDigitalInput(ch int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digital[ch]
}

// ReadAnalogInput implements IO.
func (s *Simulated) ReadAnalogInput(ch int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analog[ch]
}

// WriteDigitalOutput implements IO.
func (s *Simulated) WriteDigitalOutput(ch int, level bool) {
	s.mu.Lock()
	s.outputs[ch] = level
	s.writes++
	s.mu.Unlock()
}

// NowMs implements IO.
func (s *Simulated) NowMs() uint32 {
	return millis(s.clock, s.start)
}
