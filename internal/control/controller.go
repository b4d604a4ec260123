package control

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/condition"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/engine"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/hardware"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/store"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultScanInterval  = 10 * time.Millisecond
	DefaultSlowInterval  = 500 * time.Millisecond
	DefaultQueueCapacity = 64
	DefaultPauseTimeout  = 500 * time.Millisecond
)

// Logger is the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configure a Controller.
type Options struct {
	Layout card.Layout
	// Cards is the validated initial card array.
	Cards []card.Card
	IO    hardware.IO
	Clock clockwork.Clock

	ScanInterval  time.Duration
	SlowInterval  time.Duration
	QueueCapacity int
	PauseTimeout  time.Duration

	Logger Logger
}

// Controller is the engine context. It owns the card array, the runtime
// store and the scheduler; other goroutines reach it only through Submit,
// CopySnapshot and ApplyConfig.
type Controller struct {
	layout       card.Layout
	io           hardware.IO
	clock        clockwork.Clock
	logger       Logger
	queue        *Queue
	shared       SharedSnapshot
	scanInterval time.Duration
	slowInterval time.Duration
	pauseTimeout time.Duration

	// engine-owned
	cards      []card.Card
	store      *store.Store
	sched      *scan.Scheduler
	env        *scanEnv
	forces     []Force
	masks      []bool
	globalMask bool
	testMode   bool
	eval       []Eval
	seq        uint64
	applied    uint64
	failed     uint64
	lastLat    time.Duration
	maxLat     time.Duration
	applies    uint64

	// config-apply rendezvous
	applyMu  sync.Mutex
	running  atomic.Bool
	pauseReq atomic.Bool
	pauseAck atomic.Bool
	ackCh    chan struct{}
	// wakeCh lets Run acknowledge a pause between ticks instead of
	// waiting for the next one, which in RUN_SLOW can be far away.
	wakeCh   chan struct{}
}

// New builds a controller and publishes the initial snapshot.
//
// It performs the following setup:
//  1. Validates the card array against the layout
//  2. Fills zero Options fields with the package defaults
//  3. Loads the cards into the runtime store and rewinds the scheduler
//  4. Publishes snapshot zero so readers never see nil
//
// Parameters:
//   - opts: Layout, initial cards and the I/O backend are required
//
// Returns:
//   - *Controller: Ready for Run, or for Tick from a test
//   - error: A card validation error, or ErrInvalidArgument for a nil IO
func New(opts Options) (*Controller, error) {
	if err := card.Validate(opts.Cards, opts.Layout); err != nil {
		return nil, err
	}
	if opts.IO == nil {
		return nil, fmt.Errorf("%w: nil IO", ErrInvalidArgument)
	}

	// Defaults
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	if opts.SlowInterval <= 0 {
		opts.SlowInterval = DefaultSlowInterval
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.PauseTimeout <= 0 {
		opts.PauseTimeout = DefaultPauseTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	// Per-card override tables are sized once; the layout never changes.
	total := opts.Layout.Total()
	c := &Controller{
		layout:       opts.Layout,
		io:           opts.IO,
		clock:        opts.Clock,
		logger:       opts.Logger,
		queue:        NewQueue(opts.QueueCapacity),
		scanInterval: opts.ScanInterval,
		slowInterval: opts.SlowInterval,
		pauseTimeout: opts.PauseTimeout,
		store:        store.New(opts.Layout),
		sched:        scan.New(opts.Layout, opts.Clock, opts.ScanInterval),
		forces:       make([]Force, total),
		masks:        make([]bool, total),
		eval:         make([]Eval, total),
		ackCh:        make(chan struct{}, 1),
		wakeCh:       make(chan struct{}, 1),
	}
	c.env = &scanEnv{c: c}
	if err := c.load(card.CloneCards(opts.Cards)); err != nil {
		return nil, err
	}
	c.publish(false)
	return c, nil
}

// Layout returns the fixed card layout.
func (c *Controller) Layout() card.Layout { return c.layout }

// Submit validates cmd and enqueues it. It never blocks and reports whether
// the command was accepted.
func (c *Controller) Submit(cmd Command) bool {
	return c.SubmitCommand(cmd) == nil
}

// SubmitCommand is Submit with the rejection reason: a validation error, or
// ErrQueueFull when the caller should retry later.
func (c *Controller) SubmitCommand(cmd Command) error {
	if err := Validate(cmd, c.layout); err != nil {
		return err
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	cmd.EnqueuedAt = c.clock.Now()
	if !c.queue.Enqueue(cmd) {
		return ErrQueueFull
	}
	return nil
}

// CopySnapshot returns a deep copy of the latest published snapshot.
func (c *Controller) CopySnapshot() Snapshot {
	return c.shared.Copy()
}

// Latest returns the latest published snapshot without copying. Callers
// must not modify it.
func (c *Controller) Latest() *Snapshot {
	return c.shared.Latest()
}

// Run drives Tick at the interval of the current run mode until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.applyMu.Lock()
	c.running.Store(true)
	c.applyMu.Unlock()
	defer func() {
		c.applyMu.Lock()
		c.running.Store(false)
		c.applyMu.Unlock()
	}()

	interval := c.interval()
	c.sched.SetBudget(interval)
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("engine started", "cards", c.layout.Total(), "interval", interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("engine stopped")
			return nil
		case <-c.wakeCh:
			c.holdIfPaused()
		case <-ticker.Chan():
			c.Tick()
			if next := c.interval(); next != interval {
				interval = next
				ticker.Reset(interval)
				// overruns are measured against the interval actually in force
				c.sched.SetBudget(interval)
				c.logger.Debug("scan interval changed", "interval", interval)
			}
		}
	}
}

func (c *Controller) interval() time.Duration {
	if c.sched.Mode() == scan.RunSlow {
		return c.slowInterval
	}
	return c.scanInterval
}

// Tick runs one engine cycle: apply queued commands, run the cards due, and
// publish a snapshot. It must only be called from the engine goroutine.
func (c *Controller) Tick() scan.Outcome {
	if c.holdIfPaused() {
		return scan.Outcome{Paused: true}
	}

	c.drain()
	c.env.now = c.io.NowMs()
	out := c.sched.Tick(c.execute)
	c.publish(out.Executed > 0)
	return out
}

// holdIfPaused reports whether a config apply has asked the engine to hold,
// acknowledging the request the first time it is seen.
func (c *Controller) holdIfPaused() bool {
	if !c.pauseReq.Load() {
		return false
	}
	if !c.pauseAck.Swap(true) {
		select {
		case c.ackCh <- struct{}{}:
		default:
		}
	}
	return true
}

// drain applies at most one queue's worth of commands so a flood of
// submissions cannot starve the scan.
func (c *Controller) drain() {
	for i := c.queue.Cap(); i > 0; i-- {
		cmd, ok := c.queue.TryDequeue()
		if !ok {
			return
		}
		lat := c.clock.Since(cmd.EnqueuedAt)
		c.lastLat = lat
		c.maxLat = max(c.maxLat, lat)

		err := c.apply(cmd)
		if err != nil {
			c.failed++
			c.logger.Warn("command failed", "id", cmd.ID, "kind", cmd.Kind, "card", cmd.CardID, "error", err)
		} else {
			c.applied++
		}
		if cmd.Result != nil {
			select {
			case cmd.Result <- err:
			default:
			}
		}
	}
}

func (c *Controller) apply(cmd Command) error {
	if err := Validate(cmd, c.layout); err != nil {
		return err
	}
	switch cmd.Kind {
	case CmdSetRunMode:
		c.sched.SetMode(cmd.RunMode)
	case CmdStepOnce:
		c.sched.RequestStep()
	case CmdSetBreakpoint:
		c.sched.SetBreakpoint(cmd.CardID, cmd.Enabled)
	case CmdSetTestMode:
		c.testMode = cmd.Enabled
		if !cmd.Enabled {
			c.clearOverrides()
		}
	case CmdSetInputForce:
		if !c.testMode {
			return ErrTestModeInactive
		}
		c.forces[cmd.CardID] = Force{Mode: cmd.Force, Value: cmd.Value}
	case CmdSetOutputMask:
		if !c.testMode {
			return ErrTestModeInactive
		}
		c.masks[cmd.CardID] = cmd.Enabled
	case CmdSetOutputMaskGlobal:
		if !c.testMode {
			return ErrTestModeInactive
		}
		c.globalMask = cmd.Enabled
	case CmdSetRTCCardState:
		st := c.store.State(cmd.CardID)
		*st = engine.AssertRTC(*st, cmd.Enabled, c.io.NowMs())
		c.store.MirrorCard(&c.cards[cmd.CardID])
	}
	return nil
}

func (c *Controller) clearOverrides() {
	clear(c.forces)
	clear(c.masks)
	c.globalMask = false
}

// execute runs one card: evaluate its conditions against the live card
// array, step its family engine and mirror the result back.
func (c *Controller) execute(id int) {
	cd := &c.cards[id]
	st := c.store.State(id)
	stepper := engine.For(cd.Family)
	if st == nil || stepper == nil {
		return
	}

	var set, reset bool
	if engine.UsesConditions(cd.Family) {
		set = condition.EvaluateBlock(c.cards, cd.Set)
		reset = condition.EvaluateBlock(c.cards, cd.Reset)
	}
	c.eval[id] = Eval{Set: set, Reset: reset, Override: c.overridden(id)}

	*st = stepper.Step(c.env, cd, *st, set, reset)
	cd.Signals = st.Signals
}

func (c *Controller) overridden(id int) bool {
	if c.forces[id].Mode != ForceReal || c.masks[id] {
		return true
	}
	return c.globalMask && c.cards[id].Family == card.FamilyDO
}

// publish builds a snapshot from engine state and hands it off. The
// sequence advances only when changed is set.
func (c *Controller) publish(changed bool) {
	if changed {
		c.seq++
	}
	m := Metrics{
		Metrics:            c.sched.Metrics(),
		Queue:              c.queue.Stats(),
		CommandsApplied:    c.applied,
		CommandsFailed:     c.failed,
		LastApplyLatencyUs: c.lastLat.Microseconds(),
		MaxApplyLatencyUs:  c.maxLat.Microseconds(),
		ConfigApplies:      c.applies,
	}
	snap := &Snapshot{
		Seq:         c.seq,
		PublishedAt: c.clock.Now(),
		Layout:      c.layout,
		Cards:       card.CloneCards(c.cards),
		Forces:      cloneSlice(c.forces),
		Masks:       cloneSlice(c.masks),
		GlobalMask:  c.globalMask,
		Breakpoints: c.sched.Breakpoints(),
		Eval:        cloneSlice(c.eval),
		RunMode:     c.sched.Mode(),
		TestMode:    c.testMode,
		Paused:      c.sched.Paused(),
		Cursor:      c.sched.Cursor(),
		Metrics:     m,
	}
	c.shared.Publish(snap)
}

// load replaces the card array and resets all runtime state.
func (c *Controller) load(cards []card.Card) error {
	if err := c.store.Load(cards); err != nil {
		return err
	}
	c.cards = cards
	c.clearOverrides()
	clear(c.eval)
	c.sched.Restart()
	return nil
}

// ApplyConfig replaces the card array. When the engine is running it is
// asked to pause first; if it does not acknowledge within the pause timeout
// ApplyConfig returns ErrPauseTimeout and the previous configuration keeps
// running. On success all runtime state restarts from safe defaults.
//
// Parameters:
//   - ctx: Cancels the wait for the pause acknowledgement
//   - cards: The full card array for the fixed layout; it is copied
//
// Returns:
//   - error: A card validation error, ErrPauseTimeout, or ctx.Err()
func (c *Controller) ApplyConfig(ctx context.Context, cards []card.Card) error {
	if err := card.Validate(cards, c.layout); err != nil {
		return err
	}
	next := card.CloneCards(cards)

	// One apply at a time; Run cannot start or stop while we hold this.
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	// Hold the engine between ticks
	if c.running.Load() {
		if err := c.pause(ctx); err != nil {
			return err
		}
		defer c.resume()
	}

	// Swap cards and reset forces, masks, eval and the scan cursor
	if err := c.load(next); err != nil {
		return err
	}
	c.applies++
	c.publish(true)
	c.logger.Info("configuration applied", "cards", len(next), "seq", c.seq)
	return nil
}

func (c *Controller) pause(ctx context.Context) error {
	select {
	case <-c.ackCh:
	default:
	}
	c.pauseAck.Store(false)
	c.pauseReq.Store(true)
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}

	timeout := c.clock.NewTimer(c.pauseTimeout)
	defer timeout.Stop()

	select {
	case <-c.ackCh:
		return nil
	case <-timeout.Chan():
		c.pauseReq.Store(false)
		c.logger.Warn("engine did not acknowledge pause", "timeout", c.pauseTimeout)
		return ErrPauseTimeout
	case <-ctx.Done():
		c.pauseReq.Store(false)
		return ctx.Err()
	}
}

func (c *Controller) resume() {
	c.pauseAck.Store(false)
	c.pauseReq.Store(false)
}

// scanEnv gives engine steppers access to I/O, forces and masks.
type scanEnv struct {
	c   *Controller
	now uint32
}

func (e *scanEnv) NowMs() uint32 { return e.now }

func (e *scanEnv) Digital(cd *card.Card) bool {
	switch e.c.forces[cd.ID].Mode {
	case ForceHigh:
		return true
	case ForceLow:
		return false
	}
	if cd.Virtual() {
		return false
	}
	return e.c.io.ReadDigitalInput(cd.Channel)
}

func (e *scanEnv) Analog(cd *card.Card) uint32 {
	if f := e.c.forces[cd.ID]; f.Mode == ForceValue {
		return f.Value
	}
	if cd.Virtual() {
		return 0
	}
	return e.c.io.ReadAnalogInput(cd.Channel)
}

func (e *scanEnv) Value(id int) (uint32, bool) {
	if id < 0 || id >= len(e.c.cards) {
		return 0, false
	}
	return e.c.cards[id].Signals.CurrentValue, true
}

func (e *scanEnv) Write(cd *card.Card, level bool) {
	if cd.Virtual() || e.c.globalMask || e.c.masks[cd.ID] {
		return
	}
	e.c.io.WriteDigitalOutput(cd.Channel, level)
}
