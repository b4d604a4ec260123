// Package condition evaluates card Set/Reset condition blocks against the
// current card array.
//
// Evaluation never fails: a clause whose source is out of range, or whose
// operator is not legal for the source family, evaluates false. The engine
// relies on this because conditions are also evaluated against snapshots
// that may lag the configuration.
package condition

import "github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"

// Evaluate resolves one clause against its source card.
func Evaluate(cards []card.Card, cl card.Clause) bool {
	switch cl.Op {
	case card.OpAlwaysTrue:
		return true
	case card.OpAlwaysFalse:
		return false
	}

	if cl.Source < 0 || cl.Source >= len(cards) {
		return false
	}
	src := &cards[cl.Source]
	if !card.OperatorLegal(src.Family, cl.Op) {
		return false
	}
	return apply(cl.Op, &src.Signals, cl.Threshold)
}

func apply(op card.Operator, s *card.Signals, threshold uint32) bool {
	switch op {
	case card.OpLogicalTrue:
		return s.LogicalState
	case card.OpLogicalFalse:
		return !s.LogicalState
	case card.OpPhysicalOn:
		return s.PhysicalState
	case card.OpPhysicalOff:
		return !s.PhysicalState
	case card.OpTriggered:
		return s.TriggerFlag
	case card.OpTriggerCleared:
		return !s.TriggerFlag
	case card.OpGT:
		return s.CurrentValue > threshold
	case card.OpLT:
		return s.CurrentValue < threshold
	case card.OpEQ:
		return s.CurrentValue == threshold
	case card.OpNEQ:
		return s.CurrentValue != threshold
	case card.OpGTE:
		return s.CurrentValue >= threshold
	case card.OpLTE:
		return s.CurrentValue <= threshold
	case card.OpRunning:
		return s.State == card.StateOnDelay || s.State == card.StateActive
	case card.OpFinished:
		return s.State == card.StateFinished
	case card.OpStopped:
		return s.State == card.StateIdle || s.State == card.StateFinished
	}
	return false
}

// EvaluateBlock resolves a block. With CombineNone only clause A counts.
// An unknown combiner evaluates false.
func EvaluateBlock(cards []card.Card, b card.ConditionBlock) bool {
	a := Evaluate(cards, b.A)
	switch b.Combiner {
	case card.CombineNone:
		return a
	case card.CombineAnd:
		return a && Evaluate(cards, b.B)
	case card.CombineOr:
		return a || Evaluate(cards, b.B)
	}
	return false
}
