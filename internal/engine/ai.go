package engine

import "github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"

const maxAlpha = 100

// StepAI advances an analog input: clamp, rescale, then smooth with an
// exponential moving average weighted by Alpha percent.
func StepAI(c *card.Card, st State, in Inputs) State {
	cfg := c.AI
	scaled := Scale(in.Analog, cfg.InputMin, cfg.InputMax, cfg.OutputMin, cfg.OutputMax)

	alpha := uint64(min(cfg.Alpha, maxAlpha))
	prev := uint64(st.Signals.CurrentValue)
	filtered := (alpha*uint64(scaled) + (maxAlpha-alpha)*prev) / maxAlpha

	st.Signals.CurrentValue = uint32(filtered) //nolint:gosec // weighted mean of two uint32 values
	st.Signals.State = card.StateStreaming
	return st
}

// Scale clamps raw into the input range and maps it linearly onto the output
// range. Input bounds may be given in either order; a reversed output range
// maps inversely. The result truncates toward outMin.
//
// The product of two uint32 spans always fits in uint64, so the full range
// is safe.
func Scale(raw, inMin, inMax, outMin, outMax uint32) uint32 {
	lo, hi := min(inMin, inMax), max(inMin, inMax)
	if lo == hi {
		return outMin
	}
	off := uint64(min(max(raw, lo), hi) - lo)
	span := uint64(hi - lo)

	if outMax >= outMin {
		return outMin + uint32(off*uint64(outMax-outMin)/span) //nolint:gosec // quotient <= outMax-outMin
	}
	return outMin - uint32(off*uint64(outMin-outMax)/span) //nolint:gosec // quotient <= outMin-outMax
}
