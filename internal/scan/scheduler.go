// Package scan decides which cards execute on each engine tick.
//
// The scan order is fixed: every DI, then AI, then SIO, then DO, then MATH,
// then RTC. Inputs are therefore sampled before the outputs that depend on
// them within one pass. A cursor walks the order and wraps at the end; each
// wrap completes a pass, whose accumulated execution time is checked against
// the scan budget.
package scan

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
)

var orderFamilies = [...]card.Family{
	card.FamilyDI, card.FamilyAI, card.FamilySIO, card.FamilyDO, card.FamilyMath, card.FamilyRTC,
}

// Order returns the card ids of layout in scan order.
func Order(layout card.Layout) []int {
	order := make([]int, 0, layout.Total())
	for _, f := range orderFamilies {
		start := layout.Start(f)
		for i := 0; i < layout.Count(f); i++ {
			order = append(order, start+i)
		}
	}
	return order
}

// Metrics are the scheduler's pass counters.
type Metrics struct {
	PassCount     uint64 `json:"pass_count"`
	OverrunCount  uint64 `json:"overrun_count"`
	LastPassUs    int64  `json:"last_pass_us"`
	MaxPassUs     int64  `json:"max_pass_us"`
	LastOverrun   bool   `json:"last_overrun"`
	CardsExecuted uint64 `json:"cards_executed"`
}

// Outcome describes one Tick.
type Outcome struct {
	// Executed is the number of cards run.
	Executed int
	// FullPass is set when the tick completed a pass.
	FullPass bool
	// Paused is set when the scheduler is halted at a breakpoint.
	Paused bool
}

// Scheduler tracks the cursor, run mode and breakpoints. It belongs to the
// engine context and is not safe for concurrent use.
type Scheduler struct {
	clock  clockwork.Clock
	budget time.Duration

	order       []int
	cursor      int
	mode        RunMode
	breakpoints []bool
	steps       int
	paused      bool

	passElapsed time.Duration
	metrics     Metrics
}

// New creates a scheduler for layout. budget is the scan-interval budget a
// full pass is measured against.
func New(layout card.Layout, clock clockwork.Clock, budget time.Duration) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:       clock,
		budget:      budget,
		order:       Order(layout),
		breakpoints: make([]bool, layout.Total()),
	}
}

// Mode returns the current run mode.
func (s *Scheduler) Mode() RunMode { return s.mode }

// SetMode switches run mode. Any breakpoint pause and outstanding step
// requests are cleared.
func (s *Scheduler) SetMode(m RunMode) {
	s.mode = m
	s.paused = false
	s.steps = 0
}

// SetBudget changes the pass budget. The controller keeps it equal to the
// tick interval of the current run mode.
func (s *Scheduler) SetBudget(d time.Duration) { s.budget = d }

// Budget returns the pass budget.
func (s *Scheduler) Budget() time.Duration { return s.budget }

// RequestStep asks for one card in RunStep mode, or resumes a breakpoint
// pause in RunBreakpoint mode.
func (s *Scheduler) RequestStep() { s.steps++ }

// SetBreakpoint flags card id. It reports false when id is out of range.
func (s *Scheduler) SetBreakpoint(id int, enabled bool) bool {
	if id < 0 || id >= len(s.breakpoints) {
		return false
	}
	s.breakpoints[id] = enabled
	return true
}

// Breakpoints returns a copy of the breakpoint flags indexed by card id.
func (s *Scheduler) Breakpoints() []bool {
	cpy := make([]bool, len(s.breakpoints))
	copy(cpy, s.breakpoints)
	return cpy
}

// Paused reports whether a breakpoint halted the scan.
func (s *Scheduler) Paused() bool { return s.paused }

// Cursor returns the position in the scan order of the next card.
func (s *Scheduler) Cursor() int { return s.cursor }

// Next returns the card id the cursor points at.
func (s *Scheduler) Next() int {
	if len(s.order) == 0 {
		return -1
	}
	return s.order[s.cursor]
}

// Metrics returns the pass counters.
func (s *Scheduler) Metrics() Metrics { return s.metrics }

// Restart rewinds to the start of the order and drops any partial pass.
// Mode, breakpoints and counters are kept.
func (s *Scheduler) Restart() {
	s.cursor = 0
	s.paused = false
	s.steps = 0
	s.passElapsed = 0
}

// Tick runs the cards due this tick through exec.
func (s *Scheduler) Tick(exec func(id int)) Outcome {
	var out Outcome
	if len(s.order) == 0 {
		return out
	}

	start := s.clock.Now()
	switch s.mode {
	case RunStep:
		// steps left over at a wrap carry into the next tick
		for s.steps > 0 {
			s.steps--
			if s.advance(exec, &out) {
				break
			}
		}
	case RunBreakpoint:
		if s.paused {
			if s.steps == 0 {
				out.Paused = true
				return out
			}
			s.paused = false
		}
		s.steps = 0
		for {
			id := s.order[s.cursor]
			wrapped := s.advance(exec, &out)
			if s.breakpoints[id] {
				s.paused = true
				break
			}
			if wrapped {
				break
			}
		}
	default:
		s.steps = 0
		for !s.advance(exec, &out) {
		}
	}
	s.passElapsed += s.clock.Since(start)

	if out.FullPass {
		s.finishPass()
	}
	out.Paused = s.paused
	return out
}

// advance executes the card at the cursor and moves on. It reports whether
// the pass wrapped.
func (s *Scheduler) advance(exec func(id int), out *Outcome) bool {
	id := s.order[s.cursor]
	exec(id)
	out.Executed++
	s.metrics.CardsExecuted++

	s.cursor++
	if s.cursor < len(s.order) {
		return false
	}
	s.cursor = 0
	out.FullPass = true
	return true
}

func (s *Scheduler) finishPass() {
	us := s.passElapsed.Microseconds()
	s.metrics.PassCount++
	s.metrics.LastPassUs = us
	s.metrics.MaxPassUs = max(s.metrics.MaxPassUs, us)
	s.metrics.LastOverrun = s.budget > 0 && s.passElapsed > s.budget
	if s.metrics.LastOverrun {
		s.metrics.OverrunCount++
	}
	s.passElapsed = 0
}
