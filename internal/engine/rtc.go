package engine

import "github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"

// StepRTC decays an asserted RTC card once TriggerDurationMs has passed. A
// zero duration keeps it asserted until the schedule clears it.
func StepRTC(c *card.Card, st State, in Inputs) State {
	s := &st.Signals
	s.State = card.StateNone

	if !s.LogicalState {
		s.PhysicalState = false
		s.TriggerFlag = false
		s.CurrentValue = 0
		return st
	}
	d := c.RTC.TriggerDurationMs
	if d > 0 && elapsed(in.NowMs, s.StartOnMs) > d {
		s.LogicalState = false
		s.PhysicalState = false
		s.TriggerFlag = false
		s.CurrentValue = 0
	}
	return st
}

// AssertRTC applies a schedule transition to an RTC card.
func AssertRTC(st State, on bool, nowMs uint32) State {
	s := &st.Signals
	s.State = card.StateNone
	if !on {
		st.Signals = card.Signals{State: card.StateNone}
		return st
	}
	s.LogicalState = true
	s.PhysicalState = true
	s.TriggerFlag = true
	s.CurrentValue = 1
	s.StartOnMs = nowMs
	return st
}
