// Package engine holds the per-family card state machines.
//
// Each family has a pure step function (StepDI, StepDO, StepAI, StepMath,
// StepRTC) that maps (card config, prior state, inputs) to the next state.
// SIO cards run the DO machine unchanged; their output simply never reaches
// hardware because SIO cards have no channel.
//
// The Stepper capability wraps a step function with the input gathering and
// output side effects its family needs, so the scan loop selects a Stepper
// once per card by family and never switches on family itself.
//
// All timestamps are uint32 milliseconds that wrap; elapsed time is computed
// by unsigned subtraction and stays correct across one wrap.
package engine

import "github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"

// State is the runtime state of one card: the reported signals plus the
// private memory a family keeps between ticks.
type State struct {
	Signals card.Signals

	// PrevSample is the DI sample seen on the previous tick.
	PrevSample bool
	// Armed is set once a DI has qualified an edge; the debounce window only
	// applies from then on.
	Armed bool
}

// Inputs are the per-tick values a step function consumes.
type Inputs struct {
	NowMs uint32
	Set   bool
	Reset bool

	// Digital is the DI raw sample after any force, before invert.
	Digital bool
	// Analog is the AI raw sample after any force.
	Analog uint32
	// A and B are the resolved MATH operands.
	A, B uint32
}

// Initial returns the safe state for a card.
func Initial(c *card.Card) State {
	return State{Signals: card.SafeSignals(c)}
}

// Env is what a Stepper needs from the running controller.
type Env interface {
	NowMs() uint32
	// Digital returns the DI sample for c, honoring input forces.
	Digital(c *card.Card) bool
	// Analog returns the AI sample for c, honoring input forces.
	Analog(c *card.Card) uint32
	// Value returns the CurrentValue of card id.
	Value(id int) (uint32, bool)
	// Write drives the output of c. Implementations skip masked and virtual
	// cards.
	Write(c *card.Card, level bool)
}

// Stepper advances one card by one tick.
type Stepper interface {
	Step(env Env, c *card.Card, st State, set, reset bool) State
}

type stepperFunc func(env Env, c *card.Card, st State, set, reset bool) State

func (f stepperFunc) Step(env Env, c *card.Card, st State, set, reset bool) State {
	return f(env, c, st, set, reset)
}

var steppers = [card.FamilyCount]Stepper{
	card.FamilyDI:   stepperFunc(stepDI),
	card.FamilyDO:   stepperFunc(stepOutput),
	card.FamilyAI:   stepperFunc(stepAI),
	card.FamilySIO:  stepperFunc(stepOutput),
	card.FamilyMath: stepperFunc(stepMath),
	card.FamilyRTC:  stepperFunc(stepRTC),
}

// For returns the Stepper for family f, or nil for an unknown family.
func For(f card.Family) Stepper {
	if !f.Valid() {
		return nil
	}
	return steppers[f]
}

// UsesConditions reports whether the family consults its Set/Reset blocks.
func UsesConditions(f card.Family) bool {
	switch f {
	case card.FamilyDI, card.FamilyDO, card.FamilySIO, card.FamilyMath:
		return true
	}
	return false
}

func stepDI(env Env, c *card.Card, st State, set, reset bool) State {
	return StepDI(c, st, Inputs{NowMs: env.NowMs(), Set: set, Reset: reset, Digital: env.Digital(c)})
}

func stepOutput(env Env, c *card.Card, st State, set, reset bool) State {
	next := StepDO(c, st, Inputs{NowMs: env.NowMs(), Set: set, Reset: reset})
	env.Write(c, next.Signals.PhysicalState)
	return next
}

func stepAI(env Env, c *card.Card, st State, _, _ bool) State {
	return StepAI(c, st, Inputs{NowMs: env.NowMs(), Analog: env.Analog(c)})
}

func stepMath(env Env, c *card.Card, st State, set, reset bool) State {
	in := Inputs{NowMs: env.NowMs(), Set: set, Reset: reset}
	in.A = operand(env, c.Math.InputA)
	in.B = operand(env, c.Math.InputB)
	return StepMath(c, st, in)
}

func stepRTC(env Env, c *card.Card, st State, _, _ bool) State {
	return StepRTC(c, st, Inputs{NowMs: env.NowMs()})
}

// operand resolves a MATH input. A source that cannot be read yields 0.
func operand(env Env, op card.Operand) uint32 {
	if op.Source == card.NoSource {
		return op.Value
	}
	v, ok := env.Value(op.Source)
	if !ok {
		return 0
	}
	return v
}

// elapsed returns now - start in wrapping millisecond arithmetic.
func elapsed(now, start uint32) uint32 {
	return now - start
}
