package engine

import "github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"

// StepDI advances a digital input.
//
// The sample (after invert) is always reflected in PhysicalState and
// remembered for edge detection, even while the card is inhibited or
// disabled. A qualifying edge sets TriggerFlag for that tick only.
func StepDI(c *card.Card, st State, in Inputs) State {
	sample := in.Digital != c.Invert
	prev := st.PrevSample
	st.PrevSample = sample

	s := &st.Signals
	s.PhysicalState = sample
	s.TriggerFlag = false

	if in.Reset {
		s.LogicalState = false
		s.CurrentValue = 0
		s.StartOnMs = 0
		s.StartOffMs = 0
		s.RepeatCounter = 0
		s.State = card.StateInhibited
		st.Armed = false
		return st
	}
	if !in.Set {
		s.State = card.StateIdle
		return st
	}

	rising := !prev && sample
	falling := prev && !sample
	var match bool
	switch c.DI.EdgeMode {
	case card.EdgeRising:
		match = rising
	case card.EdgeFalling:
		match = falling
	case card.EdgeChange:
		match = rising || falling
	}
	if !match {
		s.State = card.StateIdle
		return st
	}

	if c.DI.DebounceMs > 0 && st.Armed && elapsed(in.NowMs, s.StartOnMs) < c.DI.DebounceMs {
		s.State = card.StateFiltering
		return st
	}

	s.State = card.StateQualified
	s.TriggerFlag = true
	s.CurrentValue++
	s.LogicalState = sample
	s.StartOnMs = in.NowMs
	st.Armed = true
	return st
}
