package engine

import "github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"

// StepDO advances a DO or SIO mission.
//
// An Idle or Finished card restarts whenever Set is true, held or freshly
// raised. PhysicalState is the mission output XOR Invert; a rising edge on it
// counts a cycle in CurrentValue and pulses TriggerFlag.
func StepDO(c *card.Card, st State, in Inputs) State {
	s := &st.Signals
	cfg := c.Output
	prevPhysical := s.PhysicalState

	if in.Reset {
		st.Signals = card.Signals{State: card.StateIdle, PhysicalState: c.Invert}
		return st
	}

	if (s.State == card.StateIdle || s.State == card.StateFinished) && in.Set {
		s.LogicalState = true
		s.RepeatCounter = 0
		if cfg.Mode == card.ModeImmediate {
			s.State = card.StateActive
			s.StartOffMs = in.NowMs
		} else {
			s.State = card.StateOnDelay
			s.StartOnMs = in.NowMs
		}
	}

	if cfg.Mode == card.ModeGated && s.State.Running() && !in.Set {
		s.State = card.StateIdle
		s.LogicalState = false
		s.StartOnMs = 0
		s.StartOffMs = 0
		s.RepeatCounter = 0
	}

	out := false
	if s.State == card.StateOnDelay {
		if cfg.OnDelayMs == 0 || elapsed(in.NowMs, s.StartOnMs) >= cfg.OnDelayMs {
			s.State = card.StateActive
			s.StartOffMs = in.NowMs
		}
	}
	if s.State == card.StateActive {
		out = true
		if cfg.ActiveMs > 0 && elapsed(in.NowMs, s.StartOffMs) >= cfg.ActiveMs {
			out = false
			s.RepeatCounter++
			if cfg.RepeatCount > 0 && s.RepeatCounter >= cfg.RepeatCount {
				s.LogicalState = false
				s.State = card.StateFinished
			} else {
				s.State = card.StateOnDelay
				s.StartOnMs = in.NowMs
			}
		}
	}

	s.PhysicalState = out != c.Invert
	s.TriggerFlag = !prevPhysical && s.PhysicalState
	if s.TriggerFlag {
		s.CurrentValue++
	}
	return st
}
