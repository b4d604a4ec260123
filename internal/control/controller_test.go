package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/hardware"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

// ids: DI 0-1, DO 2-3, AI 4, SIO 5, MATH 6, RTC 7
var testLayout = card.Layout{DI: 2, DO: 2, AI: 1, SIO: 1, Math: 1, RTC: 1}

type fixture struct {
	clock *clockwork.FakeClock
	io    *hardware.Simulated
	ctrl  *Controller
}

func newFixture(t *testing.T, mutate func([]card.Card)) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	io := hardware.NewSimulated(clock)
	cards := card.DefaultCards(testLayout)
	if mutate != nil {
		mutate(cards)
	}
	ctrl, err := New(Options{Layout: testLayout, Cards: cards, IO: io, Clock: clock, QueueCapacity: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{clock: clock, io: io, ctrl: ctrl}
}

func (f *fixture) submit(t *testing.T, cmd Command) error {
	t.Helper()
	res := make(chan error, 1)
	cmd.Result = res
	if err := f.ctrl.SubmitCommand(cmd); err != nil {
		t.Fatalf("SubmitCommand(%s) error = %v", cmd.Kind, err)
	}
	f.ctrl.Tick()
	select {
	case err := <-res:
		return err
	default:
		t.Fatalf("no result for %s", cmd.Kind)
		return nil
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cards := card.DefaultCards(testLayout)
	cards[2].Set = card.When(99, card.OpLogicalTrue, 0)
	_, err := New(Options{Layout: testLayout, Cards: cards, IO: hardware.NewSimulated(nil)})
	if !errors.Is(err, card.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestInputDrivesOutput(t *testing.T) {
	f := newFixture(t, nil)
	f.io.SetDigitalInput(0, true)

	out := f.ctrl.Tick()
	if !out.FullPass || out.Executed != testLayout.Total() {
		t.Fatalf("Tick() = %+v, want full pass", out)
	}

	snap := f.ctrl.CopySnapshot()
	if snap.Cards[0].Signals.State != card.StateQualified {
		t.Errorf("DI state = %s, want QUALIFIED", snap.Cards[0].Signals.State)
	}
	if snap.Cards[2].Signals.State != card.StateActive || !snap.Eval[2].Set {
		t.Errorf("DO = %+v eval = %+v, want ACTIVE with set true", snap.Cards[2].Signals, snap.Eval[2])
	}
	if !f.io.DigitalOutput(0) {
		t.Error("DO channel 0 not driven high")
	}
	if f.io.DigitalOutput(1) {
		t.Error("DO channel 1 driven without its input")
	}
}

func TestSequenceAdvancesOnlyWhenCardsRun(t *testing.T) {
	f := newFixture(t, nil)
	if seq := f.ctrl.CopySnapshot().Seq; seq != 0 {
		t.Fatalf("initial seq = %d, want 0", seq)
	}

	f.ctrl.Tick()
	f.ctrl.Tick()
	if seq := f.ctrl.CopySnapshot().Seq; seq != 2 {
		t.Errorf("seq after two passes = %d, want 2", seq)
	}

	if err := f.submit(t, SetRunMode(scan.RunBreakpoint)); err != nil {
		t.Fatal(err)
	}
	if err := f.submit(t, SetBreakpoint(0, true)); err != nil {
		t.Fatal(err)
	}
	seq := f.ctrl.CopySnapshot().Seq
	if !f.ctrl.CopySnapshot().Paused {
		t.Fatal("expected breakpoint pause")
	}

	out := f.ctrl.Tick()
	snap := f.ctrl.CopySnapshot()
	if !out.Paused || out.Executed != 0 || snap.Seq != seq {
		t.Errorf("paused tick: out=%+v seq=%d, want unchanged %d", out, snap.Seq, seq)
	}

	if err := f.submit(t, StepOnce()); err != nil {
		t.Fatal(err)
	}
	if got := f.ctrl.CopySnapshot().Seq; got <= seq {
		t.Errorf("seq after resume = %d, want > %d", got, seq)
	}
}

func TestStepModeRunsOneCard(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.submit(t, SetRunMode(scan.RunStep)); err != nil {
		t.Fatal(err)
	}
	before := f.ctrl.CopySnapshot()
	if err := f.submit(t, StepOnce()); err != nil {
		t.Fatal(err)
	}
	after := f.ctrl.CopySnapshot()
	if after.Seq != before.Seq+1 || after.Cursor != 1 {
		t.Errorf("after step seq=%d cursor=%d, want %d 1", after.Seq, after.Cursor, before.Seq+1)
	}
	if after.RunMode != scan.RunStep {
		t.Errorf("RunMode = %s, want RUN_STEP", after.RunMode)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"breakpoint out of range", SetBreakpoint(8, true), ErrInvalidTarget},
		{"force high on AI", SetInputForce(4, ForceHigh, 0), ErrInvalidTarget},
		{"force value on DI", SetInputForce(0, ForceValue, 10), ErrInvalidTarget},
		{"bad force mode", SetInputForce(0, ForceMode(9), 0), ErrInvalidArgument},
		{"mask on SIO", SetOutputMask(5, true), ErrInvalidTarget},
		{"rtc state on DO", SetRTCCardState(2, true), ErrInvalidTarget},
		{"bad run mode", SetRunMode(scan.RunMode(7)), ErrInvalidArgument},
		{"unknown kind", Command{Kind: CommandKind(42)}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.ctrl.SubmitCommand(tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("SubmitCommand() error = %v, want %v", err, tt.want)
			}
			if f.ctrl.Submit(tt.cmd) {
				t.Error("Submit() accepted invalid command")
			}
		})
	}
	if f.ctrl.queue.Len() != 0 {
		t.Errorf("invalid commands reached the queue: %d", f.ctrl.queue.Len())
	}
}

func TestQueueFullRejects(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 4; i++ {
		if !f.ctrl.Submit(SetBreakpoint(i, true)) {
			t.Fatalf("command %d rejected below capacity", i)
		}
	}
	if err := f.ctrl.SubmitCommand(StepOnce()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("SubmitCommand() on full queue = %v, want ErrQueueFull", err)
	}

	f.ctrl.Tick()
	snap := f.ctrl.CopySnapshot()
	for i := 0; i < 4; i++ {
		if !snap.Breakpoints[i] {
			t.Errorf("breakpoint %d not applied", i)
		}
	}
	if snap.Metrics.Queue.Rejected != 1 || snap.Metrics.CommandsApplied != 4 {
		t.Errorf("metrics = %+v", snap.Metrics)
	}
}

func TestApplyLatency(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Submit(SetTestMode(true))
	f.clock.Advance(5 * time.Millisecond)
	f.ctrl.Tick()

	m := f.ctrl.CopySnapshot().Metrics
	if m.LastApplyLatencyUs != 5000 || m.MaxApplyLatencyUs != 5000 {
		t.Errorf("latency = %d/%d, want 5000/5000", m.LastApplyLatencyUs, m.MaxApplyLatencyUs)
	}

	// latency is recorded for failing commands as well
	f.ctrl.Submit(SetTestMode(false))
	f.ctrl.Submit(SetInputForce(0, ForceHigh, 0))
	f.clock.Advance(time.Millisecond)
	f.ctrl.Tick()
	m = f.ctrl.CopySnapshot().Metrics
	if m.LastApplyLatencyUs != 1000 || m.MaxApplyLatencyUs != 5000 || m.CommandsFailed != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestTestModeGatesOverrides(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.submit(t, SetInputForce(1, ForceHigh, 0)); !errors.Is(err, ErrTestModeInactive) {
		t.Fatalf("force outside test mode = %v, want ErrTestModeInactive", err)
	}
	if err := f.submit(t, SetTestMode(true)); err != nil {
		t.Fatal(err)
	}
	if err := f.submit(t, SetInputForce(1, ForceHigh, 0)); err != nil {
		t.Fatal(err)
	}
	if err := f.submit(t, SetOutputMask(2, true)); err != nil {
		t.Fatal(err)
	}

	f.io.SetDigitalInput(0, true)
	f.ctrl.Tick()
	snap := f.ctrl.CopySnapshot()

	if snap.Cards[1].Signals.CurrentValue != 1 {
		t.Errorf("forced DI count = %d, want 1", snap.Cards[1].Signals.CurrentValue)
	}
	if !f.io.DigitalOutput(1) {
		t.Error("DO driven by forced DI not written")
	}
	if !snap.Cards[2].Signals.PhysicalState {
		t.Error("masked DO must keep running its state machine")
	}
	if f.io.DigitalOutput(0) {
		t.Error("masked DO reached hardware")
	}
	if !snap.Eval[1].Override || !snap.Eval[2].Override {
		t.Errorf("override flags = %+v %+v", snap.Eval[1], snap.Eval[2])
	}

	if err := f.submit(t, SetTestMode(false)); err != nil {
		t.Fatal(err)
	}
	snap = f.ctrl.CopySnapshot()
	if snap.TestMode || snap.Forces[1].Mode != ForceReal || snap.Masks[2] {
		t.Errorf("overrides survived test mode exit: forces=%v masks=%v", snap.Forces, snap.Masks)
	}
}

func TestForcedAnalogValue(t *testing.T) {
	f := newFixture(t, nil)
	f.submit(t, SetTestMode(true))
	if err := f.submit(t, SetInputForce(4, ForceValue, 4095)); err != nil {
		t.Fatal(err)
	}
	f.ctrl.Tick()
	if got := f.ctrl.CopySnapshot().Cards[4].Signals.CurrentValue; got != card.DefaultAIOutMax {
		t.Errorf("AI value = %d, want %d", got, card.DefaultAIOutMax)
	}
}

func TestGlobalMask(t *testing.T) {
	f := newFixture(t, nil)
	f.submit(t, SetTestMode(true))
	if err := f.submit(t, SetOutputMaskGlobal(true)); err != nil {
		t.Fatal(err)
	}
	writes := f.io.Writes()
	f.io.SetDigitalInput(0, true)
	f.ctrl.Tick()
	if f.io.Writes() != writes {
		t.Errorf("writes = %d, want none while globally masked", f.io.Writes()-writes)
	}
}

func TestRTCCommand(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.submit(t, SetRTCCardState(7, true)); err != nil {
		t.Fatal(err)
	}
	s := f.ctrl.CopySnapshot().Cards[7].Signals
	if !s.LogicalState || s.CurrentValue != 1 {
		t.Errorf("RTC after assert = %+v", s)
	}
	if err := f.submit(t, SetRTCCardState(7, false)); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.CopySnapshot().Cards[7].Signals.LogicalState {
		t.Error("RTC still asserted after clear")
	}
}

func TestCopySnapshotIsDeep(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Tick()
	cpy := f.ctrl.CopySnapshot()
	cpy.Cards[0].Signals.CurrentValue = 999
	cpy.Breakpoints[0] = true
	if f.ctrl.Latest().Cards[0].Signals.CurrentValue == 999 || f.ctrl.Latest().Breakpoints[0] {
		t.Error("mutating a copy changed the published snapshot")
	}
}

func TestApplyConfigStopped(t *testing.T) {
	f := newFixture(t, nil)
	f.io.SetDigitalInput(0, true)
	f.ctrl.Tick()
	seq := f.ctrl.CopySnapshot().Seq

	cards := card.DefaultCards(testLayout)
	cards[6].Math.Fallback = 12
	if err := f.ctrl.ApplyConfig(context.Background(), cards); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	snap := f.ctrl.CopySnapshot()
	if snap.Seq != seq+1 || snap.Metrics.ConfigApplies != 1 {
		t.Errorf("seq=%d applies=%d, want %d 1", snap.Seq, snap.Metrics.ConfigApplies, seq+1)
	}
	if snap.Cards[0].Signals.CurrentValue != 0 || snap.Cards[6].Signals.CurrentValue != 12 {
		t.Errorf("runtime not reset to safe defaults: DI=%d MATH=%d",
			snap.Cards[0].Signals.CurrentValue, snap.Cards[6].Signals.CurrentValue)
	}

	bad := card.DefaultCards(testLayout)[:3]
	if err := f.ctrl.ApplyConfig(context.Background(), bad); !errors.Is(err, card.ErrLayoutMismatch) {
		t.Errorf("ApplyConfig(bad) error = %v, want ErrLayoutMismatch", err)
	}
}

func TestApplyConfigPauseTimeout(t *testing.T) {
	io := hardware.NewSimulated(nil)
	ctrl, err := New(Options{
		Layout:       testLayout,
		Cards:        card.DefaultCards(testLayout),
		IO:           io,
		PauseTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	// marked running but nobody ticks, so the pause is never acknowledged
	ctrl.running.Store(true)

	cards := card.DefaultCards(testLayout)
	cards[6].Math.Fallback = 12
	err = ctrl.ApplyConfig(context.Background(), cards)
	if !errors.Is(err, ErrPauseTimeout) {
		t.Fatalf("ApplyConfig() error = %v, want ErrPauseTimeout", err)
	}
	if ctrl.CopySnapshot().Cards[6].Math.Fallback != 0 {
		t.Error("configuration changed despite timeout")
	}
	if ctrl.pauseReq.Load() {
		t.Error("pause request left set after timeout")
	}
}

func TestApplyConfigWhileRunning(t *testing.T) {
	tests := []struct {
		name       string
		mode       scan.RunMode
		wantBudget time.Duration
	}{
		{name: "normal", mode: scan.RunNormal, wantBudget: time.Millisecond},
		// the slow tick is far longer than the pause timeout, so the pause
		// has to be acknowledged between ticks
		{name: "slow", mode: scan.RunSlow, wantBudget: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, err := New(Options{
				Layout:       testLayout,
				Cards:        card.DefaultCards(testLayout),
				IO:           hardware.NewSimulated(nil),
				ScanInterval: time.Millisecond,
				SlowInterval: 10 * time.Second,
				PauseTimeout: 200 * time.Millisecond,
			})
			if err != nil {
				t.Fatal(err)
			}
			if !ctrl.Submit(SetRunMode(tt.mode)) {
				t.Fatal("SetRunMode rejected")
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- ctrl.Run(ctx) }()

			deadline := time.Now().Add(time.Second)
			for {
				snap := ctrl.CopySnapshot()
				if snap.Seq > 0 && snap.RunMode == tt.mode {
					break
				}
				if time.Now().After(deadline) {
					t.Fatal("engine never ticked")
				}
				time.Sleep(time.Millisecond)
			}

			for i := uint32(1); i <= 4; i++ {
				cards := card.DefaultCards(testLayout)
				cards[6].Math.Fallback = 10 + i
				if err := ctrl.ApplyConfig(context.Background(), cards); err != nil {
					t.Fatalf("ApplyConfig() #%d error = %v", i, err)
				}
				if got := ctrl.CopySnapshot().Cards[6].Math.Fallback; got != 10+i {
					t.Errorf("Fallback = %d, want %d", got, 10+i)
				}
			}

			cancel()
			if err := <-done; err != nil {
				t.Errorf("Run() error = %v", err)
			}
			if got := ctrl.sched.Budget(); got != tt.wantBudget {
				t.Errorf("scan budget = %v, want %v", got, tt.wantBudget)
			}
		})
	}
}

func TestSlowModeInterval(t *testing.T) {
	f := newFixture(t, nil)
	if f.ctrl.interval() != DefaultScanInterval {
		t.Errorf("interval() = %v, want %v", f.ctrl.interval(), DefaultScanInterval)
	}
	f.submit(t, SetRunMode(scan.RunSlow))
	if f.ctrl.interval() != DefaultSlowInterval {
		t.Errorf("slow interval() = %v, want %v", f.ctrl.interval(), DefaultSlowInterval)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(2)
	a, b := StepOnce(), SetTestMode(true)
	if !q.Enqueue(a) || !q.Enqueue(b) {
		t.Fatal("enqueue below capacity rejected")
	}
	if q.Enqueue(SetTestMode(false)) {
		t.Error("enqueue above capacity accepted")
	}
	for _, want := range []Command{a, b} {
		got, ok := q.TryDequeue()
		if !ok || got.ID != want.ID {
			t.Errorf("TryDequeue() = %s,%v want %s", got.ID, ok, want.ID)
		}
	}
	if _, ok := q.TryDequeue(); ok {
		t.Error("TryDequeue() on empty queue returned a command")
	}
	if s := q.Stats(); s.Accepted != 2 || s.Rejected != 1 || s.Capacity != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}
