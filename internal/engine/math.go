package engine

import (
	"math"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
)

// StepMath advances a math block. While Set holds it publishes the saturating
// sum of its operands, clamped when clamping is enabled. When Set drops the
// last value is held.
func StepMath(c *card.Card, st State, in Inputs) State {
	s := &st.Signals
	s.State = card.StateNone

	if in.Reset {
		s.LogicalState, s.PhysicalState, s.TriggerFlag = false, false, false
		s.CurrentValue = c.Math.Fallback
		return st
	}
	if !in.Set {
		s.LogicalState, s.PhysicalState, s.TriggerFlag = false, false, false
		return st
	}

	s.LogicalState, s.PhysicalState, s.TriggerFlag = true, true, true
	v := SaturatingAdd(in.A, in.B)
	if c.Math.ClampEnabled() {
		v = min(max(v, c.Math.ClampMin), c.Math.ClampMax)
	}
	s.CurrentValue = v
	return st
}

// SaturatingAdd returns a+b, or MaxUint32 on overflow.
func SaturatingAdd(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
