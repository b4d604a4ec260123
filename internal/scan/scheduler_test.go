package scan

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
)

// ids: DI 0-1, DO 2-3, AI 4, SIO 5-6, MATH 7, RTC 8
var layout = card.Layout{DI: 2, DO: 2, AI: 1, SIO: 2, Math: 1, RTC: 1}

type recorder struct {
	ids []int
}

func (r *recorder) exec(id int) { r.ids = append(r.ids, id) }

func TestOrder(t *testing.T) {
	want := []int{0, 1, 4, 5, 6, 2, 3, 7, 8}
	if diff := cmp.Diff(want, Order(layout)); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalRunsFullPass(t *testing.T) {
	s := New(layout, clockwork.NewFakeClock(), 10*time.Millisecond)
	r := &recorder{}

	out := s.Tick(r.exec)
	if out.Executed != 9 || !out.FullPass || out.Paused {
		t.Errorf("Tick() = %+v, want 9 executed full pass", out)
	}
	if diff := cmp.Diff(Order(layout), r.ids); diff != "" {
		t.Errorf("executed order mismatch (-want +got):\n%s", diff)
	}
	if m := s.Metrics(); m.PassCount != 1 || m.CardsExecuted != 9 {
		t.Errorf("Metrics() = %+v", m)
	}
	if s.Cursor() != 0 {
		t.Errorf("Cursor() = %d, want 0", s.Cursor())
	}
}

func TestStepMode(t *testing.T) {
	s := New(layout, clockwork.NewFakeClock(), 0)
	s.SetMode(RunStep)
	r := &recorder{}

	if out := s.Tick(r.exec); out.Executed != 0 {
		t.Errorf("idle step tick executed %d cards", out.Executed)
	}

	s.RequestStep()
	out := s.Tick(r.exec)
	if out.Executed != 1 || r.ids[0] != 0 {
		t.Errorf("one step = %+v ids=%v", out, r.ids)
	}

	s.RequestStep()
	s.RequestStep()
	s.Tick(r.exec)
	if diff := cmp.Diff([]int{0, 1, 4}, r.ids); diff != "" {
		t.Errorf("step ids mismatch (-want +got):\n%s", diff)
	}
	if s.Next() != 5 {
		t.Errorf("Next() = %d, want 5", s.Next())
	}
}

func TestStepModeWrapCompletesPass(t *testing.T) {
	s := New(layout, clockwork.NewFakeClock(), 0)
	s.SetMode(RunStep)
	r := &recorder{}
	for i := 0; i < 10; i++ {
		s.RequestStep()
	}
	out := s.Tick(r.exec)
	if out.Executed != 9 || !out.FullPass {
		t.Errorf("Tick() = %+v, want pass to stop at wrap", out)
	}
	out = s.Tick(r.exec)
	if out.Executed != 1 || r.ids[9] != 0 {
		t.Errorf("carried step = %+v ids=%v", out, r.ids)
	}
}

func TestBreakpointMode(t *testing.T) {
	s := New(layout, clockwork.NewFakeClock(), 0)
	s.SetMode(RunBreakpoint)
	if !s.SetBreakpoint(5, true) {
		t.Fatal("SetBreakpoint(5) = false")
	}
	if s.SetBreakpoint(9, true) {
		t.Error("SetBreakpoint(out of range) = true")
	}
	r := &recorder{}

	out := s.Tick(r.exec)
	if !out.Paused || out.Executed != 4 {
		t.Fatalf("Tick() = %+v, want pause after 4 cards", out)
	}
	if diff := cmp.Diff([]int{0, 1, 4, 5}, r.ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	out = s.Tick(r.exec)
	if !out.Paused || out.Executed != 0 {
		t.Errorf("paused tick = %+v, want nothing executed", out)
	}

	s.RequestStep()
	out = s.Tick(r.exec)
	if out.Paused || !out.FullPass || out.Executed != 5 {
		t.Errorf("resumed tick = %+v, want rest of pass", out)
	}
}

func TestBreakpointOnLastCard(t *testing.T) {
	s := New(layout, clockwork.NewFakeClock(), 0)
	s.SetMode(RunBreakpoint)
	s.SetBreakpoint(8, true)
	out := s.Tick(func(int) {})
	if !out.Paused || !out.FullPass {
		t.Errorf("Tick() = %+v, want paused full pass", out)
	}
}

func TestSetModeResumesPause(t *testing.T) {
	s := New(layout, clockwork.NewFakeClock(), 0)
	s.SetMode(RunBreakpoint)
	s.SetBreakpoint(0, true)
	s.Tick(func(int) {})
	if !s.Paused() {
		t.Fatal("expected pause")
	}
	s.SetMode(RunNormal)
	if s.Paused() {
		t.Error("SetMode did not clear pause")
	}
	if out := s.Tick(func(int) {}); out.Executed != 8 {
		t.Errorf("Tick() executed %d, want rest of pass 8", out.Executed)
	}
}

func TestOverrunAccounting(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(layout, clock, 5*time.Millisecond)

	slow := func(int) { clock.Advance(time.Millisecond) }
	out := s.Tick(slow)
	if !out.FullPass || out.Executed != 9 {
		t.Fatalf("overrunning pass was cut short: %+v", out)
	}
	m := s.Metrics()
	if !m.LastOverrun || m.OverrunCount != 1 || m.LastPassUs != 9000 {
		t.Errorf("Metrics() = %+v, want one overrun of 9000us", m)
	}

	s.Tick(func(int) {})
	m = s.Metrics()
	if m.LastOverrun || m.OverrunCount != 1 || m.MaxPassUs != 9000 {
		t.Errorf("Metrics() after fast pass = %+v", m)
	}
}

func TestParseRunMode(t *testing.T) {
	for _, m := range []RunMode{RunNormal, RunStep, RunBreakpoint, RunSlow} {
		got, err := ParseRunMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseRunMode(%s) = %v, %v", m, got, err)
		}
	}
	if _, err := ParseRunMode("RUN_FAST"); !errors.Is(err, ErrUnknownRunMode) {
		t.Errorf("ParseRunMode(RUN_FAST) error = %v", err)
	}
	if _, err := RunMode(9).MarshalText(); !errors.Is(err, ErrUnknownRunMode) {
		t.Errorf("MarshalText(9) error = %v", err)
	}
}

func TestSetBudgetMovesOverrunThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(layout, clock, 5*time.Millisecond)
	slow := func(int) { clock.Advance(time.Millisecond) }

	s.SetBudget(20 * time.Millisecond)
	if got := s.Budget(); got != 20*time.Millisecond {
		t.Fatalf("Budget() = %v, want 20ms", got)
	}
	s.Tick(slow)
	if m := s.Metrics(); m.LastOverrun || m.OverrunCount != 0 {
		t.Errorf("9ms pass against 20ms budget counted as overrun: %+v", m)
	}

	s.SetBudget(5 * time.Millisecond)
	s.Tick(slow)
	if m := s.Metrics(); !m.LastOverrun || m.OverrunCount != 1 {
		t.Errorf("9ms pass against 5ms budget not counted: %+v", m)
	}
}
